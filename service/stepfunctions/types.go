package stepfunctions

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/thirukguru/aws-account-assessment/model"
)

// SFNClientAPI is the interface for the AWS Step Functions client methods used by the service.
type SFNClientAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
}

// Starter starts one orchestrator execution per job.
type Starter interface {
	Start(ctx context.Context, input model.ScanStartInput) error
}

type service struct {
	client          SFNClientAPI
	stateMachineARN string
	logger          *slog.Logger
}
