// Package policyitems denormalizes policy documents into one searchable item per statement.
package policyitems

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/arnidentity"
)

// ErrIncompleteDetails is returned when a required attribute of Details is empty.
var ErrIncompleteDetails = errors.New("incomplete policy details")

// Details describes one policy attached to one resource.
type Details struct {
	PolicyType         model.PolicyType
	AccountID          string
	Service            string
	ResourceIdentifier string
	ResourceType       string
	Region             string
	Policy             string
	JobID              string
}

// FromARN fills the identity attributes of Details from a resource ARN.
// defaultRegion is used for ARNs without a region, such as IAM and S3.
func FromARN(policyType model.PolicyType, arn, policy, defaultRegion string) (Details, error) {
	id, err := arnidentity.Parse(arn)
	if err != nil {
		return Details{}, err
	}
	id = id.WithDefaultRegion(defaultRegion)
	return Details{
		PolicyType:         policyType,
		AccountID:          id.AccountID,
		Service:            id.Service,
		ResourceIdentifier: id.ResourceIdentifier,
		ResourceType:       id.ResourceType,
		Region:             id.Region,
		Policy:             policy,
	}, nil
}

// Missing lists the required attributes that are empty.
func (d Details) Missing() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"AccountId", d.AccountID},
		{"PolicyType", string(d.PolicyType)},
		{"Service", d.Service},
		{"ResourceIdentifier", d.ResourceIdentifier},
		{"Region", d.Region},
		{"Policy", d.Policy},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// SortKey is region#service#account#resource#statementNumber.
func SortKey(d Details, statement int) string {
	return fmt.Sprintf("%s#%s#%s#%s#%d", d.Region, d.Service, d.AccountID, d.ResourceIdentifier, statement)
}

// Convert returns one item per policy statement, numbered from 1.
func Convert(d Details, expiresAt int64) ([]model.PolicyItem, error) {
	if missing := d.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s required", ErrIncompleteDetails, strings.Join(missing, ", "))
	}

	var doc model.PolicyDocument
	if err := json.Unmarshal([]byte(d.Policy), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy of %s: %w", d.ResourceIdentifier, err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(d.Policy)); err != nil {
		return nil, fmt.Errorf("failed to parse policy of %s: %w", d.ResourceIdentifier, err)
	}

	items := make([]model.PolicyItem, 0, len(doc.Statement))
	for i, st := range doc.Statement {
		items = append(items, model.PolicyItem{
			TableKeys: model.TableKeys{
				PartitionKey: string(d.PolicyType),
				SortKey:      SortKey(d, i+1),
				ExpiresAt:    expiresAt,
			},
			JobID:              d.JobID,
			Region:             d.Region,
			AccountID:          d.AccountID,
			Service:            d.Service,
			ResourceIdentifier: d.ResourceIdentifier,
			ResourceType:       d.ResourceType,
			Effect:             st.Effect,
			Sid:                st.Sid,
			Policy:             compact.String(),
			Principal:          element(st.Principal),
			NotPrincipal:       element(st.NotPrincipal),
			Action:             element(st.Action),
			NotAction:          element(st.NotAction),
			Resource:           element(st.Resource),
			NotResource:        element(st.NotResource),
			Condition:          element(st.Condition),
		})
	}
	return items, nil
}

// element renders a statement element as compact JSON. Empty elements yield "".
func element(raw json.RawMessage) string {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", `""`, "[]", "{}", "false", "0":
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
