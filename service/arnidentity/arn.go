// Package arnidentity splits resource ARNs into the identity fields stored with findings.
package arnidentity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingARN is returned for an empty ARN.
var ErrMissingARN = errors.New("missing ARN")

// ErrInvalidARN is returned when the ARN has fewer than six components.
var ErrInvalidARN = errors.New("invalid ARN")

// Identity is the account, service, region and resource named by an ARN.
type Identity struct {
	AccountID          string `json:"AccountId"`
	Service            string `json:"Service"`
	Region             string `json:"Region"`
	ResourceIdentifier string `json:"ResourceIdentifier"`
	// ResourceType is the leading resource-type segment when the ARN has one.
	ResourceType string `json:"ResourceType,omitempty"`
}

// Parse splits arn:partition:service:region:account-id:resource.
//
// With seven or more components the resource type and id are rejoined with
// ":" into ResourceIdentifier. Components after the seventh are dropped.
func Parse(arn string) (Identity, error) {
	if arn == "" {
		return Identity{}, ErrMissingARN
	}

	parts := strings.Split(arn, ":")
	switch {
	case len(parts) == 6:
		return Identity{
			AccountID:          parts[4],
			Service:            parts[2],
			Region:             parts[3],
			ResourceIdentifier: parts[5],
			ResourceType:       slashType(parts[5]),
		}, nil
	case len(parts) >= 7:
		return Identity{
			AccountID:          parts[4],
			Service:            parts[2],
			Region:             parts[3],
			ResourceIdentifier: parts[5] + ":" + parts[6],
			ResourceType:       parts[5],
		}, nil
	default:
		return Identity{}, fmt.Errorf("%w %s", ErrInvalidARN, arn)
	}
}

// WithDefaultRegion fills Region when the ARN carried none.
func (i Identity) WithDefaultRegion(region string) Identity {
	if i.Region == "" {
		i.Region = region
	}
	return i
}

func slashType(resource string) string {
	typ, _, found := strings.Cut(resource, "/")
	if !found {
		return ""
	}
	return typ
}
