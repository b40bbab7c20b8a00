package models

import "time"

// EnquiryReport is an inspector's report plus the review trail layered on it. The latest row is authoritative.
type EnquiryReport struct {
	ID                        int64     `db:"id" json:"id"`
	PetitionID                int64     `db:"petition_id" json:"petition_id"`
	SubmittedBy               string    `db:"submitted_by" json:"submitted_by"`
	ReportText                string    `db:"report_text" json:"report_text"`
	Findings                  *string   `db:"findings" json:"findings,omitempty"`
	Recommendation            *string   `db:"recommendation" json:"recommendation,omitempty"`
	ReportFile                *string   `db:"report_file" json:"report_file,omitempty"`
	DetailedRequested         bool      `db:"detailed_requested" json:"detailed_requested"`
	CVOComments               *string   `db:"cvo_comments" json:"cvo_comments,omitempty"`
	CVOConsolidatedReportFile *string   `db:"cvo_consolidated_report_file" json:"cvo_consolidated_report_file,omitempty"`
	POConclusion              *string   `db:"po_conclusion" json:"po_conclusion,omitempty"`
	POInstructions            *string   `db:"po_instructions" json:"po_instructions,omitempty"`
	ConclusionFile            *string   `db:"conclusion_file" json:"conclusion_file,omitempty"`
	ActionTaken               *string   `db:"action_taken" json:"action_taken,omitempty"`
	CMDActionReportFile       *string   `db:"cmd_action_report_file" json:"cmd_action_report_file,omitempty"`
	CreatedAt                 time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time `db:"updated_at" json:"updated_at"`
}

// ReportChange is the report side effect of a transition.
// A non-nil Insert adds a new report row; otherwise non-nil fields patch the latest row.
type ReportChange struct {
	Insert *EnquiryReport

	CVOComments               *string
	CVOConsolidatedReportFile *string
	POConclusion              *string
	POInstructions            *string
	ConclusionFile            *string
	ActionTaken               *string
	CMDActionReportFile       *string
}

// Empty reports whether the change carries nothing to write.
func (c *ReportChange) Empty() bool {
	return c == nil || (c.Insert == nil && c.CVOComments == nil && c.CVOConsolidatedReportFile == nil &&
		c.POConclusion == nil && c.POInstructions == nil && c.ConclusionFile == nil &&
		c.ActionTaken == nil && c.CMDActionReportFile == nil)
}
