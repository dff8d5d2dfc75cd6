package stepfunctions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

type fakeSFN struct {
	input *sfn.StartExecutionInput
	err   error
}

func (f *fakeSFN) StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sfn.StartExecutionOutput{ExecutionArn: aws.String("arn:aws:states:us-east-1:111111111111:execution:scan:" + aws.ToString(params.Name))}, nil
}

func TestStartUsesJobIDAsExecutionName(t *testing.T) {
	client := &fakeSFN{}
	starter := NewStarterWithClient(client, "arn:aws:states:us-east-1:111111111111:stateMachine:scan", logging.Discard())

	err := starter.Start(context.Background(), model.ScanStartInput{
		JobID: "job-1",
		Scan:  model.Scan{AccountIDs: []string{"111111111111"}, Regions: []string{"us-east-1"}, ServiceNames: []string{"s3"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "job-1", aws.ToString(client.input.Name))
	assert.Equal(t, "arn:aws:states:us-east-1:111111111111:stateMachine:scan", aws.ToString(client.input.StateMachineArn))

	var decoded model.ScanStartInput
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.input.Input)), &decoded))
	assert.Equal(t, []string{"111111111111"}, decoded.Scan.AccountIDs)
	assert.Equal(t, []string{"s3"}, decoded.Scan.ServiceNames)
}

func TestStartPropagatesErrors(t *testing.T) {
	client := &fakeSFN{err: errors.New("ExecutionAlreadyExists")}
	starter := NewStarterWithClient(client, "arn", logging.Discard())

	err := starter.Start(context.Background(), model.ScanStartInput{JobID: "job-1"})
	if err == nil {
		t.Fatalf("Start succeeded, want error")
	}
	assert.Contains(t, err.Error(), "job-1")
}
