// Package awserrors classifies AWS SDK errors for the scan tasks.
package awserrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

// Error codes that mean the resource or its policy does not exist.
var notFoundCodes = map[string]struct{}{
	"ResourceNotFoundException":               {},
	"NoSuchEntity":                            {},
	"NoSuchEntityException":                   {},
	"RepositoryPolicyNotFoundException":       {},
	"PolicyNotFound":                          {},
	"PolicyNotFoundException":                 {},
	"NotFoundException":                       {},
	"NoSuchBucketPolicy":                      {},
	"NoSuchBucket":                            {},
	"InvalidParameterException":               {},
	"PolicyNotFoundError":                     {},
	"NoSuchConfigRuleException":               {},
	"NoSuchOrganizationConfigRuleException":   {},
	"PolicyNotAttachedException":              {},
	"NotFound":                                {},
	"QueueDoesNotExist":                       {},
	"AWS.SimpleQueueService.NonExistentQueue": {},
}

var throttlingCodes = map[string]struct{}{
	"Throttling":                             {},
	"ThrottlingException":                    {},
	"ThrottledException":                     {},
	"RequestThrottled":                       {},
	"RequestThrottledException":              {},
	"RequestLimitExceeded":                   {},
	"TooManyRequestsException":               {},
	"ProvisionedThroughputExceededException": {},
	"TransactionInProgressException":         {},
	"SlowDown":                               {},
	"PriorRequestNotComplete":                {},
	"EC2ThrottledException":                  {},
	"RequestTimeout":                         {},
	"RequestTimeoutException":                {},
	"InternalError":                          {},
	"InternalFailure":                        {},
	"ServiceUnavailable":                     {},
	"ServiceUnavailableException":            {},
}

// Code returns the AWS error code of err, or "".
func Code(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// StatusCode returns the HTTP status of the failed response, or 0.
func StatusCode(err error) int {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}

// IsNotFound reports whether err means "no such resource or policy".
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	_, ok := notFoundCodes[Code(err)]
	return ok
}

// IsTransient reports whether retrying err later may succeed.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if _, ok := throttlingCodes[Code(err)]; ok {
		return true
	}
	if status := StatusCode(err); status == 429 || status >= 500 {
		return true
	}
	return isTimeout(err) || isConnection(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnection(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// Describe renders err as a task failure message for region.
func Describe(err error, region string) string {
	if err == nil {
		return ""
	}
	if region == "" {
		region = "global"
	}
	code := Code(err)
	switch {
	case code == "UnrecognizedClientException" || code == "InvalidClientTokenId":
		return fmt.Sprintf("%s is disabled, you must enable it before scanning resources in this region.", region)
	case code == "503" || StatusCode(err) == 503 || isConnection(err):
		return fmt.Sprintf("Service is not available in %s.", region)
	case code == "AccessDeniedException" || code == "AccessDenied":
		return fmt.Sprintf("Caught AccessDenied Exception in %s", region)
	case isTimeout(err):
		return fmt.Sprintf("Service endpoint connection timed out in %s", region)
	}
	return strings.TrimSpace(err.Error())
}
