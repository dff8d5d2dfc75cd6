package storage

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// EncodeCursor renders a LastKey as an opaque pagination token.
func EncodeCursor(key *Key) string {
	if key == nil {
		return ""
	}
	raw, _ := json.Marshal(key)
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token yields nil.
func DecodeCursor(token string) (*Key, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid pagination token: %w", err)
	}
	var key Key
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("invalid pagination token: %w", err)
	}
	if key.PartitionKey == "" || key.SortKey == "" {
		return nil, fmt.Errorf("invalid pagination token")
	}
	return &key, nil
}
