package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportType enumerates supported asynchronous report categories.
type ReportType string

const (
	ReportTypeSLARegister      ReportType = "sla_register"
	ReportTypePetitionRegister ReportType = "petition_register"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJob is a queued register export. ResultPath is relative to the report storage root.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultPath   *string         `db:"result_path" json:"-"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// Terminal reports whether the worker is done with the job.
func (j *ReportJob) Terminal() bool {
	return j.Status == ReportStatusFinished || j.Status == ReportStatusFailed
}

// Filter rebuilds the register selection of the requester. Role is the one captured at
// request time, so a later role change does not widen an export already queued.
func (j *ReportJob) Filter() (PetitionFilter, error) {
	filter := PetitionFilter{
		Visibility: Visibility{UserID: j.CreatedBy, Role: j.Params.Role},
		Mode:       j.Params.Mode,
	}
	if j.Params.Status == "" || j.Params.Status == ModeAll {
		return filter, nil
	}
	st := PetitionStatus(j.Params.Status)
	if !st.Valid() {
		return PetitionFilter{}, fmt.Errorf("unknown status %q", j.Params.Status)
	}
	filter.Status = &st
	return filter, nil
}

// ReportJobParams is the JSONB register selection stored with the job.
type ReportJobParams struct {
	Format ReportFormat `json:"format"`
	Role   UserRole     `json:"role"`
	Status string       `json:"status,omitempty"`
	Mode   string       `json:"mode,omitempty"`
}

// Value marshals params to JSON for persistence.
func (p ReportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal report job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ReportJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = ReportJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ReportJobParams", value)
	}
	if len(data) == 0 {
		*p = ReportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal report job params: %w", err)
	}
	return nil
}
