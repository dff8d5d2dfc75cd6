package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/findings"
	"github.com/thirukguru/aws-account-assessment/service/scanconfig"
	"github.com/thirukguru/aws-account-assessment/service/storage"
	"github.com/thirukguru/aws-account-assessment/shared/apperror"
)

// Jobs

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.URL.Query().Get("selection") != "latest" {
		all, err := s.deps.Jobs.FindAllJobs(ctx)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ResultList[model.Job]{Results: all})
		return
	}

	markers, err := s.deps.Jobs.FindAllLastJobMarkers(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	latest := make([]model.Job, 0, len(markers))
	for _, marker := range markers {
		job, err := s.deps.Jobs.GetJob(ctx, marker.AssessmentType, marker.JobID)
		if errors.Is(err, apperror.ErrNotFound) {
			// The marker outlives a deleted job.
			continue
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		latest = append(latest, job)
	}
	writeJSON(w, http.StatusOK, ResultList[model.Job]{Results: latest})
}

func jobPath(r *http.Request) (model.AssessmentType, string, error) {
	assessmentType := model.AssessmentType(chi.URLParam(r, "assessmentType"))
	if !assessmentType.Valid() {
		return "", "", apperror.Validation("Bad Request", "Invalid assessment type "+string(assessmentType))
	}
	jobID := chi.URLParam(r, "jobID")
	if _, err := uuid.Parse(jobID); err != nil {
		return "", "", apperror.Validation("Bad Request", "Invalid jobId "+jobID)
	}
	return assessmentType, jobID, nil
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assessmentType, jobID, err := jobPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	job, err := s.deps.Jobs.GetJob(ctx, assessmentType, jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	failures, err := s.deps.Jobs.FindTaskFailuresByJobID(ctx, jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := s.deps.Findings.FindByJobID(ctx, assessmentType, jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if failures == nil {
		failures = []model.JobTaskFailure{}
	}
	writeJSON(w, http.StatusOK, model.JobDetails{Job: job, Findings: rows, TaskFailures: failures})
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	assessmentType, jobID, err := jobPath(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Jobs.DeleteJob(r.Context(), assessmentType, jobID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Scans

func (s *Server) handleStartScan(assessmentType model.AssessmentType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		strategy, ok := s.strategies[assessmentType]
		if !ok {
			s.writeError(w, r, apperror.NotFound("Not Found", "Scans of type "+string(assessmentType)+" are not enabled"))
			return
		}
		req, err := decodeScanRequest(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		startedBy := r.Header.Get(StartedByHeader)
		if startedBy == "" {
			startedBy = "unknown"
		}

		job, err := s.deps.Runner.Run(r.Context(), strategy, req, startedBy)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

// Findings

func (s *Server) handleListDelegatedAdmins(w http.ResponseWriter, r *http.Request) {
	rows, err := s.deps.Findings.FindAllDelegatedAdmins(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResultList[model.DelegatedAdminFinding]{Results: rows})
}

func (s *Server) handleListTrustedServices(w http.ResponseWriter, r *http.Request) {
	rows, err := s.deps.Findings.FindAllTrustedAccess(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResultList[model.TrustedAccessFinding]{Results: rows})
}

func (s *Server) handleListResourceBasedPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inProgress, err := s.deps.Jobs.InProgress(ctx, model.AssessmentResourceBasedPolicy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := s.deps.Findings.FindAllResourceBasedPolicies(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResourceBasedPolicies{ScanInProgress: inProgress, Results: rows})
}

func (s *Server) handleScanConfigs(w http.ResponseWriter, r *http.Request) {
	saved, err := s.deps.Configs.FindAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ScanConfigs{
		SavedConfigurations: saved,
		SupportedServices:   scanconfig.SupportedServices(),
		SupportedRegions:    scanconfig.SupportedRegions(),
	})
}

// Policy explorer

// searchFilters maps query parameters to policy item attributes.
var searchFilters = []struct {
	param     string
	attribute string
}{
	{"principal", "Principal"},
	{"notPrincipal", "NotPrincipal"},
	{"action", "Action"},
	{"notAction", "NotAction"},
	{"resource", "Resource"},
	{"notResource", "NotResource"},
	{"effect", "Effect"},
	{"condition", "Condition"},
}

// MaxResults parses the page size parameter. Missing or malformed values mean the default.
func MaxResults(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return findings.DefaultSearchLimit
	}
	return findings.ClampLimit(n)
}

func (s *Server) handleSearchPolicies(w http.ResponseWriter, r *http.Request) {
	policyType := model.PolicyType(chi.URLParam(r, "policyType"))
	if !policyType.Valid() {
		s.writeError(w, r, apperror.Validation("Invalid policy type", ""))
		return
	}
	query := r.URL.Query()
	region := query.Get("region")
	if region == "" {
		s.writeError(w, r, apperror.Validation(`Query parameter "region" is required`, ""))
		return
	}

	filters := map[string]string{}
	filterNames := []string{}
	for _, f := range searchFilters {
		if v := query.Get(f.param); v != "" {
			filters[f.attribute] = v
			filterNames = append(filterNames, f.attribute)
		}
	}

	maxResults := query.Get("maxResults")
	if maxResults == "" {
		maxResults = query.Get("limit")
	}
	startKey, err := storage.DecodeCursor(query.Get("nextToken"))
	if err != nil {
		s.logger.Warn("ignoring invalid nextToken", "error", err)
		startKey = nil
	}

	result, err := s.deps.Findings.SearchPolicyItems(r.Context(), findings.SearchRequest{
		PolicyType: policyType,
		Region:     region,
		Filters:    filters,
		Limit:      MaxResults(maxResults),
		StartKey:   startKey,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.SendSearchMetrics(r.Context(), policyType, region, filterNames, len(result.Items))
	}

	resp := PolicySearch{Results: result.Items}
	if resp.Results == nil {
		resp.Results = []model.PolicyItem{}
	}
	if result.LastKey != nil {
		token := storage.EncodeCursor(result.LastKey)
		resp.Pagination = Pagination{NextToken: &token, HasMoreResults: true}
	}
	writeJSON(w, http.StatusOK, resp)
}
