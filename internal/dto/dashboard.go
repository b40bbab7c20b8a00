package dto

import "github.com/noah-isme/vigilance-tracker-api/internal/models"

// DrilldownQuery binds GET /dashboard/drilldown.
type DrilldownQuery struct {
	Metric string `form:"metric" binding:"required"`
	Mode   string `form:"mode"`
}

// DrilldownResponse lists the petitions behind a dashboard metric.
type DrilldownResponse struct {
	Metric    string            `json:"metric"`
	Count     int               `json:"count"`
	Truncated bool              `json:"truncated"`
	Petitions []models.Petition `json:"petitions"`
}
