package dto

// UpdateFieldRuleRequest toggles one field rule.
type UpdateFieldRuleRequest struct {
	Key      string `json:"key" validate:"required"`
	Required *bool  `json:"required" validate:"required"`
}

// BulkUpdateFieldRulesRequest toggles several field rules at once.
type BulkUpdateFieldRulesRequest struct {
	Items []UpdateFieldRuleRequest `json:"items" validate:"required,min=1,dive"`
}
