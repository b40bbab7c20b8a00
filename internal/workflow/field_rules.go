package workflow

import (
	"context"
	"sort"
)

// FieldRules reports whether an optional-by-schema payload field is currently mandatory.
type FieldRules interface {
	Required(ctx context.Context, key string) bool
}

// FieldRuleDef describes one configurable requiredness rule.
type FieldRuleDef struct {
	Key         string
	Operation   Operation
	Field       string
	Default     bool
	Description string
}

// RuleKey builds the configuration key for a field of an operation.
func RuleKey(op Operation, field string) string {
	return string(op) + "." + field
}

var fieldRuleCatalog = []FieldRuleDef{
	{Operation: OpApprovePermission, Field: "efile_no", Default: false, Description: "E-Office File No when approving permission"},
	{Operation: OpRejectPermission, Field: "reason", Default: true, Description: "Reason when rejecting permission"},
	{Operation: OpSubmitEnquiryReport, Field: "report_file", Default: false, Description: "Report PDF when submitting an enquiry report"},
	{Operation: OpSubmitEnquiryReport, Field: "recommendation", Default: true, Description: "Recommendation when submitting an enquiry report"},
	{Operation: OpCVOAddComments, Field: "cvo_comments", Default: true, Description: "CVO/DSP comments when forwarding to PO"},
	{Operation: OpSendToCMD, Field: "instructions", Default: false, Description: "Instructions when forwarding to CMD"},
	{Operation: OpSendToCMD, Field: "efile_no", Default: true, Description: "E-Office File No when forwarding to CMD"},
	{Operation: OpPOLodge, Field: "efile_no", Default: false, Description: "E-Office File No when lodging"},
	{Operation: OpPOLodge, Field: "remarks", Default: false, Description: "Remarks when lodging"},
	{Operation: OpPODirectLodge, Field: "efile_no", Default: false, Description: "E-Office File No when direct lodging"},
	{Operation: OpPODirectLodge, Field: "remarks", Default: false, Description: "Remarks when direct lodging"},
	{Operation: OpCMDSubmitActionReport, Field: "action_taken", Default: true, Description: "Action taken text in the CMD action report"},
}

func init() {
	for i := range fieldRuleCatalog {
		fieldRuleCatalog[i].Key = RuleKey(fieldRuleCatalog[i].Operation, fieldRuleCatalog[i].Field)
	}
	sort.SliceStable(fieldRuleCatalog, func(i, j int) bool { return fieldRuleCatalog[i].Key < fieldRuleCatalog[j].Key })
}

// FieldRuleCatalog returns every configurable rule sorted by key.
func FieldRuleCatalog() []FieldRuleDef {
	out := make([]FieldRuleDef, len(fieldRuleCatalog))
	copy(out, fieldRuleCatalog)
	return out
}

// LookupFieldRule returns the catalog entry for key.
func LookupFieldRule(key string) (FieldRuleDef, bool) {
	for _, def := range fieldRuleCatalog {
		if def.Key == key {
			return def, true
		}
	}
	return FieldRuleDef{}, false
}

// StaticFieldRules serves overrides from a map and falls back to catalog defaults.
type StaticFieldRules map[string]bool

// Required implements FieldRules.
func (s StaticFieldRules) Required(_ context.Context, key string) bool {
	if v, ok := s[key]; ok {
		return v
	}
	def, ok := LookupFieldRule(key)
	return ok && def.Default
}
