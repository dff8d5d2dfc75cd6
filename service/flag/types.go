package flag

import "github.com/thirukguru/aws-account-assessment/model"

type service struct{}

// Service parses the global flags and the subcommand arguments.
type Service interface {
	GetParsedFlags() (model.Flags, error)
}
