// Package resourcepolicy reads resource based and identity based policies from AWS services.
//
// Every supported service has a Fetcher that lists its resources and fetches the
// policy of each one. Missing policies are skipped using awserrors.IsNotFound.
package resourcepolicy

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/thirukguru/aws-account-assessment/service/awserrors"
)

// NewRegistry returns a fetcher for every supported service backed by real SDK clients.
func NewRegistry() Registry {
	return Registry{
		"iam":            NewIAMFetcher(),
		"s3":             NewS3Fetcher(),
		"sns":            NewSNSFetcher(),
		"sqs":            NewSQSFetcher(),
		"lambda":         NewLambdaFetcher(),
		"secretsmanager": NewSecretsManagerFetcher(),
		"kms":            NewKMSFetcher(),
		"apigateway":     NewAPIGatewayFetcher(),
		"events":         NewEventBusFetcher(),
		"ses":            NewSESFetcher(),
		"ecr":            NewECRFetcher(),
		"config":         NewConfigRuleFetcher(),
		"backup":         NewBackupFetcher(),
		"ec2":            NewVPCEndpointFetcher(),
		"logs":           NewLogsFetcher(),
		"dynamodb":       NewDynamoDBFetcher(),
	}
}

// policyOrEmpty turns a not found error into an empty policy.
func policyOrEmpty(policy *string, err error) (string, error) {
	if err != nil {
		if awserrors.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return aws.ToString(policy), nil
}

// decodeURLEncoded decodes IAM policy documents, which are returned URL encoded.
func decodeURLEncoded(document string) string {
	decoded, err := url.QueryUnescape(document)
	if err != nil {
		return document
	}
	return decoded
}

// unescapePolicy strips the backslashes API Gateway adds around policy strings.
func unescapePolicy(policy string) string {
	if policy == "" || json.Valid([]byte(policy)) {
		return policy
	}
	return strings.ReplaceAll(policy, `\`, "")
}

func withRegion(cfg aws.Config, region string) aws.Config {
	out := cfg.Copy()
	out.Region = region
	return out
}

func lastSegment(s, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}

func appendPolicy(out []ResourcePolicy, p ResourcePolicy) []ResourcePolicy {
	if strings.TrimSpace(p.Policy) == "" {
		return out
	}
	return append(out, p)
}
