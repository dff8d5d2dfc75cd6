// Package findings persists assessment findings in the component table.
package findings

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/thirukguru/aws-account-assessment/model"
	"github.com/thirukguru/aws-account-assessment/service/storage"
	"github.com/thirukguru/aws-account-assessment/shared/logging"
)

// NewService creates the finding repositories. Findings expire after ttlDays,
// policy explorer items after policyItemTTLDays.
func NewService(table storage.Table, ttlDays, policyItemTTLDays int, opts ...Option) Service {
	s := &service{
		table:             table,
		ttlDays:           ttlDays,
		policyItemTTLDays: policyItemTTLDays,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger).With("component", "findings")
	return s
}

// ResourceBasedPolicySortKey is service#account#region#resource#dependencyType#dependencyOn.
func ResourceBasedPolicySortKey(f model.ResourceBasedPolicyFinding) string {
	return fmt.Sprintf("%s#%s#%s#%s#%s#%s",
		f.ServiceName, f.AccountID, f.Region, f.ResourceName, f.DependencyType, f.DependencyOn)
}

// DelegatedAdminSortKey is servicePrincipal#accountId.
func DelegatedAdminSortKey(f model.DelegatedAdminFinding) string {
	return f.ServicePrincipal + "#" + f.AccountID
}

func (s *service) keys(partition, sortKey, jobID string) model.FindingKeys {
	return model.FindingKeys{
		TableKeys: model.TableKeys{
			PartitionKey: partition,
			SortKey:      sortKey,
			ExpiresAt:    storage.ExpiresAt(s.now(), s.ttlDays),
		},
		JobID:      jobID,
		AssessedAt: model.Timestamp(s.now()),
	}
}

// PutResourceBasedPolicies stores one row per sort key. A condition repeated across
// statements of a policy yields a single finding.
func (s *service) PutResourceBasedPolicies(ctx context.Context, jobID string, findings []model.ResourceBasedPolicyFinding) ([]model.ResourceBasedPolicyFinding, error) {
	out := make([]model.ResourceBasedPolicyFinding, 0, len(findings))
	seen := make(map[string]int, len(findings))
	for _, f := range findings {
		sortKey := ResourceBasedPolicySortKey(f)
		f.FindingKeys = s.keys(PartitionPolicies, sortKey, jobID)
		if i, ok := seen[sortKey]; ok {
			out[i] = f
			continue
		}
		seen[sortKey] = len(out)
		out = append(out, f)
	}
	if err := putAll(ctx, s.table, out); err != nil {
		return nil, fmt.Errorf("failed to store resource based policies: %w", err)
	}
	return out, nil
}

func (s *service) FindAllResourceBasedPolicies(ctx context.Context) ([]model.ResourceBasedPolicyFinding, error) {
	return findAll[model.ResourceBasedPolicyFinding](ctx, s.table, storage.Query{PartitionKey: PartitionPolicies})
}

func (s *service) FindResourceBasedPoliciesByJobID(ctx context.Context, jobID string) ([]model.ResourceBasedPolicyFinding, error) {
	return findAll[model.ResourceBasedPolicyFinding](ctx, s.table, storage.Query{JobID: jobID, PartitionKey: PartitionPolicies})
}

func (s *service) PutDelegatedAdmins(ctx context.Context, jobID string, findings []model.DelegatedAdminFinding) ([]model.DelegatedAdminFinding, error) {
	out := make([]model.DelegatedAdminFinding, 0, len(findings))
	for _, f := range findings {
		f.FindingKeys = s.keys(PartitionDelegatedAdmins, DelegatedAdminSortKey(f), jobID)
		out = append(out, f)
	}
	if err := putAll(ctx, s.table, out); err != nil {
		return nil, fmt.Errorf("failed to store delegated admins: %w", err)
	}
	return out, nil
}

func (s *service) FindAllDelegatedAdmins(ctx context.Context) ([]model.DelegatedAdminFinding, error) {
	return findAll[model.DelegatedAdminFinding](ctx, s.table, storage.Query{PartitionKey: PartitionDelegatedAdmins})
}

func (s *service) PutTrustedAccess(ctx context.Context, jobID string, findings []model.TrustedAccessFinding) ([]model.TrustedAccessFinding, error) {
	out := make([]model.TrustedAccessFinding, 0, len(findings))
	for _, f := range findings {
		f.FindingKeys = s.keys(PartitionTrustedServices, f.ServicePrincipal, jobID)
		out = append(out, f)
	}
	if err := putAll(ctx, s.table, out); err != nil {
		return nil, fmt.Errorf("failed to store trusted services: %w", err)
	}
	return out, nil
}

func (s *service) FindAllTrustedAccess(ctx context.Context) ([]model.TrustedAccessFinding, error) {
	return findAll[model.TrustedAccessFinding](ctx, s.table, storage.Query{PartitionKey: PartitionTrustedServices})
}

// PutPolicyItems stores items, stamping the policy item TTL when unset.
func (s *service) PutPolicyItems(ctx context.Context, items []model.PolicyItem) error {
	expiresAt := storage.ExpiresAt(s.now(), s.policyItemTTLDays)
	for i := range items {
		if items[i].ExpiresAt == 0 {
			items[i].ExpiresAt = expiresAt
		}
	}
	if err := putAll(ctx, s.table, items); err != nil {
		return fmt.Errorf("failed to store policy items: %w", err)
	}
	return nil
}

func (s *service) SearchPolicyItems(ctx context.Context, req SearchRequest) (SearchResult, error) {
	q := storage.Query{
		PartitionKey:  string(req.PolicyType),
		SortKeyPrefix: req.Region,
		Limit:         ClampLimit(req.Limit),
		StartKey:      req.StartKey,
	}
	for _, attr := range sortedAttributes(req.Filters) {
		q.Contains = append(q.Contains, storage.Filter{Attribute: attr, Value: req.Filters[attr]})
	}

	page, err := s.table.Query(ctx, q)
	if err != nil {
		return SearchResult{}, fmt.Errorf("failed to search %s items: %w", req.PolicyType, err)
	}
	items, err := storage.DecodeAll[model.PolicyItem](page.Items)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Items: items, LastKey: page.LastKey}, nil
}

func (s *service) FindByJobID(ctx context.Context, assessmentType model.AssessmentType, jobID string) ([]map[string]any, error) {
	var partition string
	switch assessmentType {
	case model.AssessmentResourceBasedPolicy:
		partition = PartitionPolicies
	case model.AssessmentDelegatedAdmin:
		partition = PartitionDelegatedAdmins
	case model.AssessmentTrustedAccess:
		partition = PartitionTrustedServices
	default:
		// Policy explorer jobs produce too many items to return with the job.
		return []map[string]any{}, nil
	}

	items, err := storage.QueryAll(ctx, s.table, storage.Query{JobID: jobID, PartitionKey: partition})
	if err != nil {
		return nil, fmt.Errorf("failed to read findings of %s: %w", jobID, err)
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out, nil
}

// ClampLimit applies the search page size rules: below 1 means the default, above the maximum is clamped.
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return DefaultSearchLimit
	case limit > MaxSearchLimit:
		return MaxSearchLimit
	default:
		return limit
	}
}

func sortedAttributes(filters map[string]string) []string {
	attrs := make([]string, 0, len(filters))
	for attr, value := range filters {
		if value != "" {
			attrs = append(attrs, attr)
		}
	}
	sort.Strings(attrs)
	return attrs
}

func putAll[T any](ctx context.Context, table storage.Table, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	items := make([]storage.Item, 0, len(rows))
	for _, row := range rows {
		item, err := storage.Encode(row)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	return table.PutItems(ctx, items)
}

func findAll[T any](ctx context.Context, table storage.Table, q storage.Query) ([]T, error) {
	items, err := storage.QueryAll(ctx, table, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.PartitionKey, err)
	}
	return storage.DecodeAll[T](items)
}
