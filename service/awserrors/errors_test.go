package awserrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
)

func apiErr(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code + " message"}
}

func responseErr(status int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      errors.New("upstream"),
		},
	}
}

func TestIsNotFound(t *testing.T) {
	for _, code := range []string{
		"ResourceNotFoundException", "NoSuchEntityException", "RepositoryPolicyNotFoundException",
		"PolicyNotFound", "NotFoundException", "NoSuchBucketPolicy", "PolicyNotFoundException", "InvalidParameterException",
		"NoSuchOrganizationConfigRuleException", "AWS.SimpleQueueService.NonExistentQueue",
	} {
		assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", apiErr(code))), code)
	}
	assert.False(t, IsNotFound(apiErr("AccessDeniedException")))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "throttling", err: apiErr("ThrottlingException"), want: true},
		{name: "too many requests", err: apiErr("TooManyRequestsException"), want: true},
		{name: "server error status", err: responseErr(503), want: true},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: true},
		{name: "connection", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: true},
		{name: "access denied", err: apiErr("AccessDeniedException"), want: false},
		{name: "client error status", err: responseErr(400), want: false},
		{name: "cancelled", err: context.Canceled, want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "ap-east-1 is disabled, you must enable it before scanning resources in this region.",
		Describe(apiErr("UnrecognizedClientException"), "ap-east-1"))
	assert.Equal(t, "Service is not available in us-east-1.", Describe(responseErr(503), "us-east-1"))
	assert.Equal(t, "Caught AccessDenied Exception in eu-west-1", Describe(apiErr("AccessDeniedException"), "eu-west-1"))
	assert.Equal(t, "Service endpoint connection timed out in global", Describe(context.DeadlineExceeded, ""))
	assert.Equal(t, "boom", Describe(errors.New("boom"), "us-east-1"))
	assert.Equal(t, "", Describe(nil, "us-east-1"))
}
