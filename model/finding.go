package model

// FindingKeys are the attributes shared by every finding row.
type FindingKeys struct {
	TableKeys
	JobID      string `json:"JobId"`
	AssessedAt string `json:"AssessedAt"`
}

// ResourceBasedPolicyFinding is one organization dependency found in a resource policy.
type ResourceBasedPolicyFinding struct {
	FindingKeys
	AccountID      string `json:"AccountId"`
	Region         string `json:"Region"`
	ServiceName    string `json:"ServiceName"`
	ResourceName   string `json:"ResourceName"`
	ResourceArn    string `json:"ResourceArn,omitempty"`
	DependencyType string `json:"DependencyType"`
	DependencyOn   string `json:"DependencyOn"`
}

// DelegatedAdminFinding is one delegated administrator registration for a service.
type DelegatedAdminFinding struct {
	FindingKeys
	AccountID             string `json:"AccountId"`
	ServicePrincipal      string `json:"ServicePrincipal"`
	Arn                   string `json:"Arn,omitempty"`
	Email                 string `json:"Email,omitempty"`
	Name                  string `json:"Name,omitempty"`
	Status                string `json:"Status,omitempty"`
	JoinedMethod          string `json:"JoinedMethod,omitempty"`
	JoinedTimestamp       string `json:"JoinedTimestamp,omitempty"`
	DelegationEnabledDate string `json:"DelegationEnabledDate,omitempty"`
}

// TrustedAccessFinding is one service principal with trusted access enabled.
type TrustedAccessFinding struct {
	FindingKeys
	ServicePrincipal string `json:"ServicePrincipal"`
	DateEnabled      string `json:"DateEnabled,omitempty"`
}

// PolicyItem is one statement of a policy, denormalized for the policy explorer.
type PolicyItem struct {
	TableKeys
	JobID              string `json:"JobId,omitempty"`
	Region             string `json:"Region"`
	AccountID          string `json:"AccountId"`
	Service            string `json:"Service"`
	ResourceIdentifier string `json:"ResourceIdentifier"`
	ResourceType       string `json:"ResourceType,omitempty"`
	Effect             string `json:"Effect"`
	Sid                string `json:"Sid,omitempty"`
	Policy             string `json:"Policy"`
	Principal          string `json:"Principal,omitempty"`
	NotPrincipal       string `json:"NotPrincipal,omitempty"`
	Action             string `json:"Action,omitempty"`
	NotAction          string `json:"NotAction,omitempty"`
	Resource           string `json:"Resource,omitempty"`
	NotResource        string `json:"NotResource,omitempty"`
	Condition          string `json:"Condition,omitempty"`
}

// ScanConfig is a named, saved scope for resource based policy scans.
type ScanConfig struct {
	TableKeys
	ConfigurationName string   `json:"ConfigurationName"`
	AccountIDs        []string `json:"AccountIds,omitempty"`
	OrgUnitIDs        []string `json:"OrgUnitIds,omitempty"`
	Regions           []string `json:"Regions,omitempty"`
	ServiceNames      []string `json:"ServiceNames,omitempty"`
}

// SupportedService describes a service the policy scanners can read.
type SupportedService struct {
	ServiceName      string `json:"ServiceName"`
	ServicePrincipal string `json:"ServicePrincipal"`
	FriendlyName     string `json:"FriendlyName"`
	Global           bool   `json:"-"`
}

// SupportedRegion describes a region scans may target.
type SupportedRegion struct {
	Region     string `json:"Region"`
	RegionName string `json:"RegionName"`
}
