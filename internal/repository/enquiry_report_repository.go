package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
)

// EnquiryReportRepository reads enquiry reports.
type EnquiryReportRepository struct {
	db *sqlx.DB
}

// NewEnquiryReportRepository constructs the repository.
func NewEnquiryReportRepository(db *sqlx.DB) *EnquiryReportRepository {
	return &EnquiryReportRepository{db: db}
}

// Latest returns the most recent report of a petition.
func (r *EnquiryReportRepository) Latest(ctx context.Context, petitionID int64) (*models.EnquiryReport, error) {
	const query = `SELECT id, petition_id, submitted_by, report_text, findings, recommendation, report_file, detailed_requested,
cvo_comments, cvo_consolidated_report_file, po_conclusion, po_instructions, conclusion_file, action_taken,
cmd_action_report_file, created_at, updated_at
FROM enquiry_reports WHERE petition_id = $1 ORDER BY id DESC LIMIT 1`
	var report models.EnquiryReport
	if err := r.db.GetContext(ctx, &report, query, petitionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("latest enquiry report: %w", err)
	}
	return &report, nil
}
