// Package stepfunctions starts scan state machine executions.
package stepfunctions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

// NewStarter creates a Starter for the state machine stateMachineARN.
func NewStarter(cfg aws.Config, stateMachineARN string, logger *slog.Logger) Starter {
	return NewStarterWithClient(sfn.NewFromConfig(cfg), stateMachineARN, logger)
}

// NewStarterWithClient creates a Starter with a custom client.
func NewStarterWithClient(client SFNClientAPI, stateMachineARN string, logger *slog.Logger) Starter {
	return &service{
		client:          client,
		stateMachineARN: stateMachineARN,
		logger:          logging.OrDefault(logger).With("component", "stepfunctions"),
	}
}

// Start runs the state machine with the job id as execution name, so a job starts at most one execution.
func (s *service) Start(ctx context.Context, input model.ScanStartInput) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to encode execution input: %w", err)
	}
	out, err := s.client.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(s.stateMachineARN),
		Name:            aws.String(input.JobID),
		Input:           aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to start execution for job %s: %w", input.JobID, err)
	}
	s.logger.Info("started state machine execution",
		"job_id", input.JobID, "execution_arn", aws.ToString(out.ExecutionArn),
		"accounts", len(input.Scan.AccountIDs), "services", len(input.Scan.ServiceNames))
	return nil
}
