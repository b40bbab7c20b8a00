package workflow

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

// Enquiry mode choices accepted by set_enquiry_mode.
const (
	ModeDirect     = "direct"
	ModePermission = "permission"
)

// Payload carries every operation-specific input. Each rule reads the fields it needs.
type Payload struct {
	Comments        string              `json:"comments"`
	Reason          string              `json:"reason"`
	EnquiryType     models.EnquiryType  `json:"enquiry_type"`
	TargetCVO       models.Jurisdiction `json:"target_cvo"`
	InspectorID     string              `json:"inspector_id"`
	EfileNo         string              `json:"efile_no"`
	FileRef         string              `json:"file_ref"`
	ReportText      string              `json:"report_text"`
	Findings        string              `json:"findings"`
	Recommendation  string              `json:"recommendation"`
	CVOComments     string              `json:"cvo_comments"`
	Conclusion      string              `json:"conclusion"`
	Instructions    string              `json:"instructions"`
	ActionTaken     string              `json:"action_taken"`
	Remarks         string              `json:"remarks"`
	Mode            string              `json:"mode"`
	RequestDetailed bool                `json:"request_detailed"`
	EreceiptNo      string              `json:"ereceipt_no"`
}

func (p Payload) normalized() Payload {
	trim := strings.TrimSpace
	p.Comments = trim(p.Comments)
	p.Reason = trim(p.Reason)
	p.EnquiryType = models.EnquiryType(strings.ToLower(trim(string(p.EnquiryType))))
	p.TargetCVO = models.Jurisdiction(strings.ToLower(trim(string(p.TargetCVO))))
	p.InspectorID = trim(p.InspectorID)
	p.EfileNo = trim(p.EfileNo)
	p.FileRef = trim(p.FileRef)
	p.ReportText = trim(p.ReportText)
	p.Findings = trim(p.Findings)
	p.Recommendation = trim(p.Recommendation)
	p.CVOComments = trim(p.CVOComments)
	p.Conclusion = trim(p.Conclusion)
	p.Instructions = trim(p.Instructions)
	p.ActionTaken = trim(p.ActionTaken)
	p.Remarks = trim(p.Remarks)
	p.Mode = strings.ToLower(trim(p.Mode))
	p.EreceiptNo = trim(p.EreceiptNo)
	return p
}

// Field limits in characters.
const (
	MaxReportText     = 20000
	MaxFindings       = 20000
	MaxRecommendation = 5000
	MaxCVOComments    = 5000
	MaxConclusion     = 10000
	MaxInstructions   = 5000
	MaxActionTaken    = 10000
	MaxComments       = 5000
	MaxEreceiptNo     = 100
)

type field struct {
	label string
	value string
	max   int
}

func (f field) check(required bool) error {
	if f.value == "" {
		if required {
			return appErrors.Clone(appErrors.ErrInvalidPayload, fmt.Sprintf("%s is required.", f.label))
		}
		return nil
	}
	if f.max > 0 && utf8.RuneCountInString(f.value) > f.max {
		return appErrors.Clone(appErrors.ErrInvalidPayload, fmt.Sprintf("%s is too long.", f.label))
	}
	return nil
}

func optional(label, value string, max int) error {
	return field{label: label, value: value, max: max}.check(false)
}

func required(label, value string, max int) error {
	return field{label: label, value: value, max: max}.check(true)
}

func invalidPayload(format string, args ...interface{}) error {
	return appErrors.Clone(appErrors.ErrInvalidPayload, fmt.Sprintf(format, args...))
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	v := s
	return &v
}
