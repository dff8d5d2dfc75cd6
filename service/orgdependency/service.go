// Package orgdependency finds policy statements that depend on AWS Organizations identity.
package orgdependency

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thirukguru/aws-account-assessment/model"
)

// Organization boundary condition keys.
const (
	PrincipalOrgID    = "aws:PrincipalOrgID"
	PrincipalOrgPaths = "aws:PrincipalOrgPaths"
	ResourceOrgID     = "aws:ResourceOrgID"
	ResourceOrgPaths  = "aws:ResourceOrgPaths"
	SourceOrgID       = "aws:SourceOrgID"
	SourceOrgPaths    = "aws:SourceOrgPaths"
)

// Keys lists every recognized organization boundary key.
var Keys = []string{
	PrincipalOrgID,
	PrincipalOrgPaths,
	ResourceOrgID,
	ResourceOrgPaths,
	SourceOrgID,
	SourceOrgPaths,
}

var knownKeys = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Keys))
	for _, k := range Keys {
		m[strings.ToLower(k)] = struct{}{}
	}
	return m
}()

// Dependency is one (condition key, value) pair found in a statement.
type Dependency struct {
	ResourceName   string
	DependencyType string
	DependencyOn   string
}

// IsOrgKey reports whether key is an organization boundary key, ignoring case.
func IsOrgKey(key string) bool {
	_, ok := knownKeys[strings.ToLower(key)]
	return ok
}

// Check returns one Dependency per statement and organization condition key.
// An empty policy yields no dependencies.
func Check(resourceName, policy string) ([]Dependency, error) {
	if strings.TrimSpace(policy) == "" {
		return nil, nil
	}
	doc, err := ParseDocument(policy)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy of %s: %w", resourceName, err)
	}
	return CheckDocument(resourceName, doc)
}

// CheckDocument is Check for an already decoded document.
func CheckDocument(resourceName string, doc model.PolicyDocument) ([]Dependency, error) {
	var deps []Dependency
	for _, statement := range doc.Statement {
		block, err := statement.Conditions()
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", resourceName, err)
		}
		for _, operator := range sortedKeys(block) {
			keyValues := block[operator]
			for _, key := range sortedKeys(keyValues) {
				if !IsOrgKey(key) {
					continue
				}
				deps = append(deps, Dependency{
					ResourceName:   resourceName,
					DependencyType: key,
					DependencyOn:   conditionValue(keyValues[key]),
				})
			}
		}
	}
	return deps, nil
}

// ParseDocument decodes a policy document. API Gateway returns policies with
// escaped quotes, those are unescaped before a second attempt.
func ParseDocument(policy string) (model.PolicyDocument, error) {
	var doc model.PolicyDocument
	err := json.Unmarshal([]byte(policy), &doc)
	if err == nil {
		return doc, nil
	}
	if !strings.Contains(policy, `\"`) {
		return doc, err
	}
	if retryErr := json.Unmarshal([]byte(strings.ReplaceAll(policy, `\`, "")), &doc); retryErr != nil {
		return doc, err
	}
	return doc, nil
}

// conditionValue renders strings as-is and lists joined by ",".
func conditionValue(raw json.RawMessage) string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, ",")
	}
	return string(raw)
}
