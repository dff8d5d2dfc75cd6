package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Item is one row of the component table: a flat attribute map.
type Item map[string]any

// Key addresses one row. JobID is only set on keys returned from the JobId index.
type Key struct {
	PartitionKey string `json:"PartitionKey" dynamodbav:"PartitionKey"`
	SortKey      string `json:"SortKey" dynamodbav:"SortKey"`
	JobID        string `json:"JobId,omitempty" dynamodbav:"JobId,omitempty"`
}

// Filter keeps rows whose string attribute contains Value.
type Filter struct {
	Attribute string
	Value     string
}

// Query selects rows of one partition, or every row of one job through the JobId index.
type Query struct {
	PartitionKey  string
	SortKeyPrefix string
	// JobID switches the query to the JobId index. PartitionKey then filters.
	JobID    string
	Contains []Filter
	Limit    int
	StartKey *Key
}

// Page is one page of query results. LastKey is nil on the last page.
type Page struct {
	Items   []Item
	LastKey *Key
}

// Table is the wide table every repository persists to.
type Table interface {
	PutItem(ctx context.Context, item Item) error
	PutItems(ctx context.Context, items []Item) error
	GetItem(ctx context.Context, key Key) (Item, error)
	DeleteItem(ctx context.Context, key Key) error
	Query(ctx context.Context, q Query) (Page, error)
	Close() error
}

// Maintainer is implemented by backends that need housekeeping.
type Maintainer interface {
	PurgeExpired(ctx context.Context) (int64, error)
	Vacuum(ctx context.Context) error
}

// Encode converts a tagged struct into an Item.
func Encode(v any) (Item, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode item: %w", err)
	}
	var item Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to encode item: %w", err)
	}
	return item, nil
}

// Decode fills v from an Item.
func Decode(item Item, v any) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to decode item: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode item: %w", err)
	}
	return nil
}

// DecodeAll decodes every item into a new slice of T.
func DecodeAll[T any](items []Item) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := Decode(item, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// QueryAll follows LastKey until the query is exhausted. q.Limit bounds each page only.
func QueryAll(ctx context.Context, table Table, q Query) ([]Item, error) {
	var out []Item
	for {
		page, err := table.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.LastKey == nil {
			return out, nil
		}
		q.StartKey = page.LastKey
	}
}

// DedupeByKey drops items whose primary key reappears later in items. The last write wins
// and the order of first appearance is kept.
func DedupeByKey(items []Item) ([]Item, error) {
	index := make(map[Key]int, len(items))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		key, err := keyOf(item)
		if err != nil {
			return nil, err
		}
		if i, ok := index[key]; ok {
			out[i] = item
			continue
		}
		index[key] = len(out)
		out = append(out, item)
	}
	return out, nil
}

func keyOf(item Item) (Key, error) {
	pk, _ := item["PartitionKey"].(string)
	sk, _ := item["SortKey"].(string)
	if pk == "" || sk == "" {
		return Key{}, fmt.Errorf("item is missing PartitionKey or SortKey")
	}
	return Key{PartitionKey: pk, SortKey: sk}, nil
}

func jobIDOf(item Item) string {
	id, _ := item["JobId"].(string)
	return id
}

func expiresAtOf(item Item) int64 {
	switch v := item["ExpiresAt"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// ExpiresAt returns the epoch second ttlDays after now.
func ExpiresAt(now time.Time, ttlDays int) int64 {
	return now.Add(time.Duration(ttlDays) * 24 * time.Hour).Unix()
}
