package resourcepolicy

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/thirukguru/aws-account-assessment/model"
)

// GlobalRegion is the Region of resources that do not live in a region, such as IAM policies.
const GlobalRegion = "GLOBAL"

// ResourcePolicy is one policy document attached to one resource.
type ResourcePolicy struct {
	ResourceName string
	ResourceArn  string
	// Region is where the resource lives. Empty means the scanned region.
	Region     string
	PolicyType model.PolicyType
	Policy     string
}

// Fetcher reads the resource policies of one service in one account and region.
// Resources without a policy are omitted. Any other failure aborts the region.
type Fetcher interface {
	Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error)
}

// Registry maps service names to their fetcher.
type Registry map[string]Fetcher

// Lookup returns the fetcher of serviceName.
func (r Registry) Lookup(serviceName string) (Fetcher, bool) {
	f, ok := r[serviceName]
	return f, ok
}
