package scanconfig

import (
	"github.com/thirukguru/aws-account-assessment/model"
)

// Global services are scanned once per account from GlobalRegion.
const GlobalRegion = "us-east-1"

var supportedServices = []model.SupportedService{
	{ServiceName: "iam", ServicePrincipal: "iam.amazonaws.com", FriendlyName: "AWS Identity and Access Management (AWS IAM)", Global: true},
	{ServiceName: "s3", ServicePrincipal: "s3.amazonaws.com", FriendlyName: "Amazon S3 (Amazon Simple Storage Service)", Global: true},
	{ServiceName: "sns", ServicePrincipal: "sns.amazonaws.com", FriendlyName: "Amazon Simple Notification Service (Amazon SNS)"},
	{ServiceName: "sqs", ServicePrincipal: "sqs.amazonaws.com", FriendlyName: "Amazon Simple Queue Service (Amazon SQS)"},
	{ServiceName: "lambda", ServicePrincipal: "lambda.amazonaws.com", FriendlyName: "AWS Lambda"},
	{ServiceName: "secretsmanager", ServicePrincipal: "secretsmanager.amazonaws.com", FriendlyName: "AWS Secrets Manager"},
	{ServiceName: "kms", ServicePrincipal: "kms.amazonaws.com", FriendlyName: "AWS Key Management Service (KMS)"},
	{ServiceName: "apigateway", ServicePrincipal: "apigateway.amazonaws.com", FriendlyName: "Amazon API Gateway"},
	{ServiceName: "events", ServicePrincipal: "events.amazonaws.com", FriendlyName: "Amazon EventBridge"},
	{ServiceName: "ses", ServicePrincipal: "ses.amazonaws.com", FriendlyName: "Amazon Simple Email Service (SES)"},
	{ServiceName: "ecr", ServicePrincipal: "ecr.amazonaws.com", FriendlyName: "Amazon Elastic Container Registry"},
	{ServiceName: "config", ServicePrincipal: "config.amazonaws.com", FriendlyName: "AWS Config"},
	{ServiceName: "backup", ServicePrincipal: "backup.amazonaws.com", FriendlyName: "AWS Backup"},
	{ServiceName: "ec2", ServicePrincipal: "ec2.amazonaws.com", FriendlyName: "Amazon VPC (VPC Endpoints)"},
	{ServiceName: "logs", ServicePrincipal: "logs.amazonaws.com", FriendlyName: "Amazon CloudWatch Logs"},
	{ServiceName: "dynamodb", ServicePrincipal: "dynamodb.amazonaws.com", FriendlyName: "Amazon DynamoDB"},
}

var supportedRegions = []model.SupportedRegion{
	{Region: "us-east-1", RegionName: "US East (N. Virginia)"},
	{Region: "us-east-2", RegionName: "US East (Ohio)"},
	{Region: "us-west-1", RegionName: "US West (N. California)"},
	{Region: "us-west-2", RegionName: "US West (Oregon)"},
	{Region: "af-south-1", RegionName: "Africa (Cape Town) [Opt-In Required]"},
	{Region: "ap-east-1", RegionName: "Asia Pacific (Hong Kong) [Opt-In Required]"},
	{Region: "ap-southeast-1", RegionName: "Asia Pacific (Singapore)"},
	{Region: "ap-southeast-2", RegionName: "Asia Pacific (Sydney)"},
	{Region: "ap-southeast-3", RegionName: "Asia Pacific (Jakarta) [Opt-In Required]"},
	{Region: "ap-south-1", RegionName: "Asia Pacific (Mumbai)"},
	{Region: "ap-northeast-3", RegionName: "Asia Pacific (Osaka)"},
	{Region: "ap-northeast-2", RegionName: "Asia Pacific (Seoul)"},
	{Region: "ap-northeast-1", RegionName: "Asia Pacific (Tokyo)"},
	{Region: "ca-central-1", RegionName: "Canada (Central)"},
	{Region: "eu-central-1", RegionName: "Europe (Frankfurt)"},
	{Region: "eu-west-3", RegionName: "Europe (Paris)"},
	{Region: "eu-west-2", RegionName: "Europe (London)"},
	{Region: "eu-west-1", RegionName: "Europe (Ireland)"},
	{Region: "eu-north-1", RegionName: "Europe (Stockholm)"},
	{Region: "eu-south-1", RegionName: "Europe (Milan) [Opt-In Required]"},
	{Region: "me-south-1", RegionName: "Middle East (Bahrain) [Opt-In Required]"},
	{Region: "me-central-1", RegionName: "Middle East (UAE) [Opt-In Required]"},
	{Region: "sa-east-1", RegionName: "South America (São Paulo)"},
}

// SupportedServices returns the services the policy scanners can read.
func SupportedServices() []model.SupportedService {
	return append([]model.SupportedService(nil), supportedServices...)
}

// SupportedRegions returns the regions scans may target.
func SupportedRegions() []model.SupportedRegion {
	return append([]model.SupportedRegion(nil), supportedRegions...)
}

// ServiceNames returns the supported service names in catalog order.
func ServiceNames() []string {
	names := make([]string, 0, len(supportedServices))
	for _, s := range supportedServices {
		names = append(names, s.ServiceName)
	}
	return names
}

// RegionNames returns the supported region codes in catalog order.
func RegionNames() []string {
	names := make([]string, 0, len(supportedRegions))
	for _, r := range supportedRegions {
		names = append(names, r.Region)
	}
	return names
}

// LookupService returns the catalog entry of name.
func LookupService(name string) (model.SupportedService, bool) {
	for _, s := range supportedServices {
		if s.ServiceName == name {
			return s, true
		}
	}
	return model.SupportedService{}, false
}

// IsGlobal reports whether name is scanned once per account rather than per region.
func IsGlobal(name string) bool {
	s, ok := LookupService(name)
	return ok && s.Global
}

// Retain intersects requested with valid, keeping the order of valid.
// A nil requested slice means "everything valid". A non-nil request that keeps
// nothing returns ok=false.
func Retain(requested, valid []string) (kept []string, ok bool) {
	if requested == nil {
		return append([]string(nil), valid...), true
	}
	want := make(map[string]struct{}, len(requested))
	for _, r := range requested {
		want[r] = struct{}{}
	}
	for _, v := range valid {
		if _, found := want[v]; found {
			kept = append(kept, v)
		}
	}
	return kept, len(kept) > 0
}
