package resourcepolicy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/thirukguru/aws-account-assessment/model"
	awsconfig "github.com/thirukguru/aws-account-assessment/service/aws_config"
	"github.com/thirukguru/aws-account-assessment/service/awserrors"
	"github.com/thirukguru/aws-account-assessment/service/pagination"
)

// S3ClientAPI is the interface for the AWS S3 client methods used by the fetcher.
type S3ClientAPI interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetBucketPolicy(ctx context.Context, params *s3.GetBucketPolicyInput, optFns ...func(*s3.Options)) (*s3.GetBucketPolicyOutput, error)
}

type s3Fetcher struct {
	newClient func(aws.Config) S3ClientAPI
}

// NewS3Fetcher reads bucket policies. Each policy is read from the bucket's own region.
func NewS3Fetcher() Fetcher {
	return s3Fetcher{newClient: func(cfg aws.Config) S3ClientAPI { return s3.NewFromConfig(cfg) }}
}

func (f s3Fetcher) Fetch(ctx context.Context, cfg aws.Config, accountID, region string) ([]ResourcePolicy, error) {
	client := f.newClient(cfg)
	buckets, err := pagination.Collect(ctx,
		func(ctx context.Context, token *string) (*s3.ListBucketsOutput, error) {
			return client.ListBuckets(ctx, &s3.ListBucketsInput{ContinuationToken: token, MaxBuckets: aws.Int32(1000)})
		},
		pagination.Shape[s3.ListBucketsOutput, s3types.Bucket]{
			Items: func(o *s3.ListBucketsOutput) []s3types.Bucket { return o.Buckets },
			Next:  func(o *s3.ListBucketsOutput) *string { return o.ContinuationToken },
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	partition := awsconfig.PartitionForRegion(cfg.Region)
	regional := map[string]S3ClientAPI{}
	var out []ResourcePolicy
	for _, b := range buckets {
		name := aws.ToString(b.Name)
		loc, err := client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: b.Name})
		if err != nil {
			if awserrors.IsNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("failed to get location of bucket %s: %w", name, err)
		}
		bucketRegion := bucketRegion(loc.LocationConstraint)

		rc, ok := regional[bucketRegion]
		if !ok {
			rc = f.newClient(withRegion(cfg, bucketRegion))
			regional[bucketRegion] = rc
		}
		resp, err := rc.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{Bucket: b.Name})
		var document *string
		if err == nil {
			document = resp.Policy
		}
		policy, err := policyOrEmpty(document, err)
		if err != nil {
			return nil, fmt.Errorf("failed to get policy of bucket %s: %w", name, err)
		}
		out = appendPolicy(out, ResourcePolicy{
			ResourceName: name,
			ResourceArn:  fmt.Sprintf("arn:%s:s3:::%s", partition, name),
			Region:       bucketRegion,
			PolicyType:   model.PolicyTypeResourceBased,
			Policy:       policy,
		})
	}
	return out, nil
}

// bucketRegion maps a location constraint to a region. An empty constraint is us-east-1.
func bucketRegion(constraint s3types.BucketLocationConstraint) string {
	switch constraint {
	case "":
		return "us-east-1"
	case s3types.BucketLocationConstraintEu:
		return "eu-west-1"
	default:
		return string(constraint)
	}
}
