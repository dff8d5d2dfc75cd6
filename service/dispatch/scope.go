package dispatch

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/thirukguru/aws-account-assessment/model"
	awsorganizations "github.com/thirukguru/aws-account-assessment/service/organizations"
	"github.com/thirukguru/aws-account-assessment/service/scanconfig"
	"github.com/thirukguru/aws-account-assessment/shared/apperror"
)

var orgUnitIDPattern = regexp.MustCompile(`^ou-[a-z0-9]{4,32}-[a-z0-9]{8,32}$`)

// ValidOrgUnitID reports whether id looks like an organizational unit id.
func ValidOrgUnitID(id string) bool {
	return orgUnitIDPattern.MatchString(id)
}

// ResolveScope turns a scan request into the accounts, regions and services to scan.
// Every problem with the request is collected into one validation error. Errors from
// listing accounts are returned unchanged.
func ResolveScope(ctx context.Context, accounts AccountSource, req model.ScanRequest) (model.Scan, error) {
	var problems []string

	accountIDs, problem, err := resolveAccounts(ctx, accounts, req)
	if err != nil {
		return model.Scan{}, err
	}
	if problem != "" {
		problems = append(problems, problem)
	}

	services, ok := scanconfig.Retain(req.ServiceNames, scanconfig.ServiceNames())
	if !ok {
		problems = append(problems, "No valid ServiceNames selected")
	}
	regions, ok := scanconfig.Retain(req.Regions, scanconfig.RegionNames())
	if !ok {
		problems = append(problems, "No valid Regions selected")
	}
	if req.ConfigurationName != "" && !scanconfig.ValidConfigurationName(req.ConfigurationName) {
		problems = append(problems, "Invalid configuration name.")
	}

	if len(problems) > 0 {
		return model.Scan{}, apperror.Validation("Validation Error", strings.Join(problems, ", "))
	}
	return model.Scan{
		AccountIDs:   nonNil(accountIDs),
		Regions:      regions,
		ServiceNames: services,
	}, nil
}

func resolveAccounts(ctx context.Context, accounts AccountSource, req model.ScanRequest) ([]string, string, error) {
	if req.OrgUnitIDs != nil {
		var invalid []string
		for _, id := range req.OrgUnitIDs {
			if !ValidOrgUnitID(id) {
				invalid = append(invalid, id)
			}
		}
		if len(invalid) > 0 {
			sort.Strings(invalid)
			return nil, "Invalid OrgUnitIds: " + strings.Join(invalid, ", "), nil
		}
		found, err := accounts.AccountsForOrgUnits(ctx, dedupe(req.OrgUnitIDs))
		if err != nil {
			return nil, "", err
		}
		return awsorganizations.AccountIDs(found), "", nil
	}

	active, err := accounts.ListActiveAccounts(ctx)
	if err != nil {
		return nil, "", err
	}
	kept, ok := scanconfig.Retain(req.AccountIDs, awsorganizations.AccountIDs(active))
	if !ok {
		return nil, "No valid AccountIds selected", nil
	}
	return kept, "", nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
