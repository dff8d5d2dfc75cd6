// Package tables renders jobs, findings and task failures for the CLI.
package tables

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/thirukguru/aws-account-assessment/model"
)

// findingColumns lists the attributes shown per assessment type.
var findingColumns = map[model.AssessmentType][]string{
	model.AssessmentDelegatedAdmin:      {"AccountId", "ServicePrincipal", "Name", "Email", "Status", "DelegationEnabledDate"},
	model.AssessmentTrustedAccess:       {"ServicePrincipal", "DateEnabled"},
	model.AssessmentResourceBasedPolicy: {"AccountId", "Region", "ServiceName", "ResourceName", "DependencyType", "DependencyOn"},
}

// DrawJobsTable renders one row per job.
func DrawJobsTable(w io.Writer, jobs []model.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, text.FgYellow.Sprint("No jobs found."))
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Assessment", "Job ID", "Status", "Started", "Finished", "Started By"})
	for _, job := range jobs {
		t.AppendRow(table.Row{job.AssessmentType, job.JobID, formatStatus(job.JobStatus), job.StartedAt, job.FinishedAt, job.StartedBy})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// DrawJobDetails renders a job followed by its findings and task failures.
func DrawJobDetails(w io.Writer, details model.JobDetails) {
	DrawJobsTable(w, []model.Job{details.Job})
	if details.Job.Error != "" {
		fmt.Fprintln(w, text.FgRed.Sprint("Error: "+details.Job.Error))
	}

	columns, ok := findingColumns[details.Job.AssessmentType]
	switch {
	case !ok:
		fmt.Fprintln(w, "\nPolicy explorer results are searched with the API.")
	case len(details.Findings) == 0:
		fmt.Fprintln(w, text.FgGreen.Sprint("\nNo findings."))
	default:
		fmt.Fprintf(w, "\nFindings (%d)\n", len(details.Findings))
		t := table.NewWriter()
		t.SetOutputMirror(w)
		header := make(table.Row, 0, len(columns))
		for _, c := range columns {
			header = append(header, c)
		}
		t.AppendHeader(header)
		for _, finding := range details.Findings {
			row := make(table.Row, 0, len(columns))
			for _, c := range columns {
				row = append(row, cell(finding[c]))
			}
			t.AppendRow(row)
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	}

	DrawTaskFailures(w, details.TaskFailures)
}

// DrawTaskFailures renders failed scan branches. Nothing is printed without failures.
func DrawTaskFailures(w io.Writer, failures []model.JobTaskFailure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(w, "\n"+text.FgRed.Sprintf("Task failures (%d)", len(failures)))
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Service", "Account", "Region", "Failed At", "Error"})
	for _, f := range failures {
		region := ""
		if f.Region != nil {
			region = *f.Region
		}
		t.AppendRow(table.Row{f.ServiceName, f.AccountID, region, f.FailedAt, truncate(f.Error, 80)})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func formatStatus(status model.JobStatus) string {
	switch status {
	case model.JobStatusSucceeded:
		return text.FgGreen.Sprint(status)
	case model.JobStatusSucceededWithFailedTasks:
		return text.FgYellow.Sprint(status)
	case model.JobStatusFailed:
		return text.FgRed.Sprint(status)
	default:
		return text.FgCyan.Sprint(status)
	}
}

func cell(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
