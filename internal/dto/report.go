package dto

import (
	"time"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
)

// ReportRequest captures the POST /reports payload.
type ReportRequest struct {
	Type   models.ReportType   `json:"type" validate:"required,oneof=sla_register petition_register"`
	Format models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	Status string              `json:"status,omitempty"`
	Mode   string              `json:"mode,omitempty" validate:"omitempty,oneof=all direct permission"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress and, once finished, a signed download URL.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Type      models.ReportType   `json:"type"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
