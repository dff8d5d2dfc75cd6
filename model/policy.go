package model

import (
	"encoding/json"
	"fmt"
)

// PolicyDocument is an IAM policy document. Statement may be a single object or a list.
type PolicyDocument struct {
	Version   string            `json:"Version,omitempty"`
	ID        string            `json:"Id,omitempty"`
	Statement []PolicyStatement `json:"Statement"`
}

// PolicyStatement keeps the polymorphic elements raw so they can be re-encoded unchanged.
type PolicyStatement struct {
	Sid          string          `json:"Sid,omitempty"`
	Effect       string          `json:"Effect"`
	Principal    json.RawMessage `json:"Principal,omitempty"`
	NotPrincipal json.RawMessage `json:"NotPrincipal,omitempty"`
	Action       json.RawMessage `json:"Action,omitempty"`
	NotAction    json.RawMessage `json:"NotAction,omitempty"`
	Resource     json.RawMessage `json:"Resource,omitempty"`
	NotResource  json.RawMessage `json:"NotResource,omitempty"`
	Condition    json.RawMessage `json:"Condition,omitempty"`
}

// UnmarshalJSON accepts Statement as an object or an array of objects.
func (d *PolicyDocument) UnmarshalJSON(data []byte) error {
	var raw struct {
		Version   string          `json:"Version"`
		ID        string          `json:"Id"`
		Statement json.RawMessage `json:"Statement"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Version = raw.Version
	d.ID = raw.ID
	d.Statement = nil

	if len(raw.Statement) == 0 || string(raw.Statement) == "null" {
		return nil
	}
	switch raw.Statement[0] {
	case '[':
		return json.Unmarshal(raw.Statement, &d.Statement)
	case '{':
		var single PolicyStatement
		if err := json.Unmarshal(raw.Statement, &single); err != nil {
			return err
		}
		d.Statement = []PolicyStatement{single}
		return nil
	default:
		return fmt.Errorf("unexpected Statement element: %s", raw.Statement)
	}
}

// ConditionBlock is the {operator: {key: value}} structure of a statement condition.
type ConditionBlock map[string]map[string]json.RawMessage

// Conditions decodes the statement condition. A missing condition yields nil.
func (s PolicyStatement) Conditions() (ConditionBlock, error) {
	if len(s.Condition) == 0 || string(s.Condition) == "null" {
		return nil, nil
	}
	var block ConditionBlock
	if err := json.Unmarshal(s.Condition, &block); err != nil {
		return nil, fmt.Errorf("failed to decode condition: %w", err)
	}
	return block, nil
}
