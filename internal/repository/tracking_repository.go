package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
)

// TrackingRepository reads the append-only petition ledger. Writes happen only inside PetitionRepository transactions.
type TrackingRepository struct {
	db *sqlx.DB
}

// NewTrackingRepository constructs the repository.
func NewTrackingRepository(db *sqlx.DB) *TrackingRepository {
	return &TrackingRepository{db: db}
}

// ListByPetition returns the ledger of a petition ordered by sequence.
func (r *TrackingRepository) ListByPetition(ctx context.Context, petitionID int64) ([]models.TrackingEntry, error) {
	const query = `SELECT t.id, t.petition_id, t.seq, t.from_user_id, t.from_role, t.to_user_id, t.to_role, t.action, t.comments,
t.status_before, t.status_after, t.created_at, fu.full_name AS from_user_name, tu.full_name AS to_user_name
FROM petition_tracking t
LEFT JOIN users fu ON t.from_user_id = fu.id
LEFT JOIN users tu ON t.to_user_id = tu.id
WHERE t.petition_id = $1
ORDER BY t.seq ASC`
	var entries []models.TrackingEntry
	if err := r.db.SelectContext(ctx, &entries, query, petitionID); err != nil {
		return nil, fmt.Errorf("list tracking entries: %w", err)
	}
	return entries, nil
}

const slaTimestampsSelect = `SELECT p.id AS petition_id, p.enquiry_type,
MIN(CASE WHEN t.status_after = 'assigned_to_inspector' THEN t.created_at END) AS assigned_at,
MIN(CASE WHEN t.status_after = 'closed' THEN t.created_at END) AS closed_at
FROM petitions p
LEFT JOIN petition_tracking t ON t.petition_id = p.id`

// SLATimestamps returns the earliest assignment and closure times of one petition.
func (r *TrackingRepository) SLATimestamps(ctx context.Context, petitionID int64) (*models.SLATimestamps, error) {
	query := slaTimestampsSelect + ` WHERE p.id = $1 GROUP BY p.id, p.enquiry_type`
	var ts models.SLATimestamps
	if err := r.db.GetContext(ctx, &ts, query, petitionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sla timestamps: %w", err)
	}
	return &ts, nil
}

// SLATimestampsFor returns SLA inputs for a set of petitions.
func (r *TrackingRepository) SLATimestampsFor(ctx context.Context, petitionIDs []int64) ([]models.SLATimestamps, error) {
	if len(petitionIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(slaTimestampsSelect+` WHERE p.id IN (?) GROUP BY p.id, p.enquiry_type ORDER BY p.id`, petitionIDs)
	if err != nil {
		return nil, fmt.Errorf("build sla timestamps query: %w", err)
	}
	var rows []models.SLATimestamps
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("sla timestamps batch: %w", err)
	}
	return rows, nil
}

// PetitionsActionedBy returns the ids of petitions on which userID wrote an entry labelled action.
func (r *TrackingRepository) PetitionsActionedBy(ctx context.Context, userID, action string) ([]int64, error) {
	const query = `SELECT DISTINCT petition_id FROM petition_tracking WHERE from_user_id = $1 AND action = $2 ORDER BY petition_id`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, userID, action); err != nil {
		return nil, fmt.Errorf("petitions actioned by user: %w", err)
	}
	return ids, nil
}
