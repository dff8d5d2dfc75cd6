package model

// Scan is the resolved scan universe of an asynchronous assessment.
type Scan struct {
	AccountIDs   []string `json:"AccountIds"`
	Regions      []string `json:"Regions,omitempty"`
	ServiceNames []string `json:"ServiceNames"`
}

// ScanStartInput is the payload handed to the orchestrator.
type ScanStartInput struct {
	JobID          string         `json:"JobId"`
	AssessmentType AssessmentType `json:"AssessmentType,omitempty"`
	Scan           Scan           `json:"Scan"`
}

// ScanRequest is the body of a scan start request. Absent lists mean "all supported".
type ScanRequest struct {
	AccountIDs        []string `json:"AccountIds,omitempty"`
	OrgUnitIDs        []string `json:"OrgUnitIds,omitempty"`
	Regions           []string `json:"Regions,omitempty"`
	ServiceNames      []string `json:"ServiceNames,omitempty"`
	ConfigurationName string   `json:"ConfigurationName,omitempty"`

	// Single service policy explorer scans.
	AccountID   string `json:"AccountId,omitempty"`
	ServiceName string `json:"ServiceName,omitempty"`
}

// AccountValidationRequest is the input of the account access check.
type AccountValidationRequest struct {
	AccountID      string         `json:"AccountId"`
	JobID          string         `json:"JobId"`
	AssessmentType AssessmentType `json:"AssessmentType,omitempty"`
	ServiceNames   []string       `json:"ServiceNames"`
	Regions        []string       `json:"Regions,omitempty"`
}

// AccountValidationResponse is the output of the account access check.
type AccountValidationResponse struct {
	Validation               ValidationType `json:"Validation"`
	ServicesToScanForAccount []string       `json:"ServicesToScanForAccount"`
	Regions                  []string       `json:"Regions"`
}

// ScanServiceRequest is the input of one scan branch.
type ScanServiceRequest struct {
	JobID          string         `json:"JobId"`
	AssessmentType AssessmentType `json:"AssessmentType"`
	AccountID      string         `json:"AccountId"`
	ServiceName    string         `json:"ServiceName"`
	Region         string         `json:"Region,omitempty"`
	Regions        []string       `json:"Regions,omitempty"`
}

// ScanServiceResponse summarizes one scan branch.
type ScanServiceResponse struct {
	FindingsCount int `json:"FindingsCount"`
	FailedRegions int `json:"FailedRegions"`
}

// FinishRequest is the input of the terminal step.
type FinishRequest struct {
	AssessmentType AssessmentType `json:"AssessmentType"`
	JobID          string         `json:"JobId"`
	Result         string         `json:"Result"`
	// Error is stored on the job when set.
	Error string `json:"Error,omitempty"`
}

// FinishResponse is the output of the terminal step.
type FinishResponse struct {
	Status JobStatus `json:"Status"`
}
