package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/workflow"
	"github.com/noah-isme/vigilance-tracker-api/pkg/database"
)

// ErrVersionMismatch is returned when a transition lost the optimistic version race.
var ErrVersionMismatch = errors.New("petition version mismatch")

const petitionColumns = `p.id, p.sno, p.petitioner_name, p.contact, p.place, p.subject, p.petition_type, p.source_of_petition,
p.govt_institution_type, p.received_at, p.received_date, p.remarks, p.ereceipt_no, p.ereceipt_file, p.status,
p.enquiry_type, p.requires_permission, p.permission_status, p.efile_no, p.target_cvo, p.assigned_inspector_id,
p.current_handler_id, p.version, p.created_by, p.created_at, p.updated_at,
u1.full_name AS created_by_name, u2.full_name AS inspector_name, u3.full_name AS handler_name`

const petitionJoins = `FROM petitions p
LEFT JOIN users u1 ON p.created_by = u1.id
LEFT JOIN users u2 ON p.assigned_inspector_id = u2.id
LEFT JOIN users u3 ON p.current_handler_id = u3.id`

// PetitionRepository persists petition heads together with their ledger.
type PetitionRepository struct {
	db *sqlx.DB
}

// NewPetitionRepository constructs the repository.
func NewPetitionRepository(db *sqlx.DB) *PetitionRepository {
	return &PetitionRepository{db: db}
}

// Create assigns the serial number and inserts the head and its genesis ledger entry in one transaction.
func (r *PetitionRepository) Create(ctx context.Context, p *models.Petition, program string, actor models.Actor) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create petition tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var seq int64
	if err = tx.GetContext(ctx, &seq, `SELECT nextval('petition_sno_seq')`); err != nil {
		return fmt.Errorf("next petition serial: %w", err)
	}

	now := time.Now().UTC()
	p.SNo = fmt.Sprintf("%s/%s/%d/%04d", program, models.OfficeCode(p.ReceivedAt), now.Year(), seq)
	p.Status = models.StatusReceived
	p.Version = 1
	p.CreatedBy = actor.UserID
	p.CurrentHandlerID = &actor.UserID
	p.CreatedAt = now
	p.UpdatedAt = now

	const insertHead = `INSERT INTO petitions (sno, petitioner_name, contact, place, subject, petition_type, source_of_petition,
govt_institution_type, received_at, received_date, remarks, ereceipt_no, ereceipt_file, status, enquiry_type,
requires_permission, permission_status, efile_no, target_cvo, assigned_inspector_id, current_handler_id, version,
created_by, created_at, updated_at)
VALUES (:sno, :petitioner_name, :contact, :place, :subject, :petition_type, :source_of_petition,
:govt_institution_type, :received_at, :received_date, :remarks, :ereceipt_no, :ereceipt_file, :status, :enquiry_type,
:requires_permission, :permission_status, :efile_no, :target_cvo, :assigned_inspector_id, :current_handler_id, :version,
:created_by, :created_at, :updated_at)
RETURNING id`
	query, args, err := tx.BindNamed(insertHead, p)
	if err != nil {
		return fmt.Errorf("bind petition insert: %w", err)
	}
	if err = tx.QueryRowxContext(ctx, query, args...).Scan(&p.ID); err != nil {
		return fmt.Errorf("insert petition: %w", err)
	}

	genesis := models.TrackingEntry{
		PetitionID:  p.ID,
		Seq:         1,
		FromUserID:  actor.UserID,
		FromRole:    actor.Role,
		Action:      models.ActionPetitionCreated,
		Comments:    stringPtr(fmt.Sprintf("Petition %s created", p.SNo)),
		StatusAfter: models.StatusReceived,
		CreatedAt:   now,
	}
	if err = insertEntry(ctx, tx, &genesis); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create petition tx: %w", err)
	}
	return nil
}

// Get returns the head by id. Missing rows surface as sql.ErrNoRows.
func (r *PetitionRepository) Get(ctx context.Context, id int64) (*models.Petition, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE p.id = $1", petitionColumns, petitionJoins)
	var p models.Petition
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get petition: %w", err)
	}
	return &p, nil
}

// visibilityClause renders the role-scoped row filter. The returned clause is empty for unrestricted roles.
func visibilityClause(v models.Visibility, args []interface{}) (string, []interface{}) {
	switch {
	case v.Role == models.RoleSuperAdmin, v.Role == models.RoleDataEntry:
		return "", args
	case v.Role == models.RolePO:
		args = append(args, v.UserID)
		return fmt.Sprintf("(p.status IN ('forwarded_to_po', 'forwarded_to_jmd', 'sent_for_permission', 'action_taken', 'lodged') OR p.current_handler_id = $%d OR p.requires_permission = FALSE)", len(args)), args
	case v.Role.IsCMD():
		j, _ := v.Role.Jurisdiction()
		args = append(args, j)
		return fmt.Sprintf("(p.target_cvo = $%d AND p.status IN ('action_instructed', 'action_taken'))", len(args)), args
	case v.Role.IsCVO():
		j, _ := v.Role.Jurisdiction()
		args = append(args, j)
		return fmt.Sprintf("p.target_cvo = $%d", len(args)), args
	case v.Role == models.RoleInspector:
		args = append(args, v.UserID)
		return fmt.Sprintf("p.assigned_inspector_id = $%d", len(args)), args
	default:
		return "FALSE", args
	}
}

func petitionConditions(filter models.PetitionFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	clause, args := visibilityClause(filter.Visibility, args)
	if clause != "" {
		conditions = append(conditions, clause)
	}
	switch filter.Mode {
	case models.ModeDirect:
		conditions = append(conditions, "p.requires_permission = FALSE")
	case models.ModePermission:
		conditions = append(conditions, "p.requires_permission = TRUE")
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// List returns a page of petitions visible to the filter's caller, newest first, with the total count.
func (r *PetitionRepository) List(ctx context.Context, filter models.PetitionFilter) ([]models.Petition, int, error) {
	where, args := petitionConditions(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s%s ORDER BY p.created_at DESC, p.id DESC LIMIT %d OFFSET %d", petitionColumns, petitionJoins, where, pageSize, offset)
	var petitions []models.Petition
	if err := r.db.SelectContext(ctx, &petitions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list petitions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM petitions p%s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count petitions: %w", err)
	}
	return petitions, total, nil
}

// ListVisible returns every petition the caller may see. Used by aggregate views and exports.
func (r *PetitionRepository) ListVisible(ctx context.Context, filter models.PetitionFilter) ([]models.Petition, error) {
	where, args := petitionConditions(filter)
	query := fmt.Sprintf("SELECT %s %s%s ORDER BY p.created_at DESC, p.id DESC", petitionColumns, petitionJoins, where)
	var petitions []models.Petition
	if err := r.db.SelectContext(ctx, &petitions, query, args...); err != nil {
		return nil, fmt.Errorf("list visible petitions: %w", err)
	}
	return petitions, nil
}

// ListByIDs returns the petitions with the given ids, newest first.
func (r *PetitionRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Petition, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s %s WHERE p.id IN (?) ORDER BY p.created_at DESC, p.id DESC", petitionColumns, petitionJoins), ids)
	if err != nil {
		return nil, fmt.Errorf("build petitions by id query: %w", err)
	}
	var petitions []models.Petition
	if err := r.db.SelectContext(ctx, &petitions, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list petitions by id: %w", err)
	}
	return petitions, nil
}

// CountPendingFor counts open petitions whose current handler is userID.
func (r *PetitionRepository) CountPendingFor(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM petitions WHERE current_handler_id = $1 AND status <> 'closed'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count pending petitions: %w", err)
	}
	return count, nil
}

// ApplyTransition persists a planned transition atomically. The head is updated only if its version still
// equals the version the transition was planned against; entries get the following sequence numbers.
// It returns the new version, or ErrVersionMismatch when another writer got there first.
func (r *PetitionRepository) ApplyTransition(ctx context.Context, t *workflow.Transition, event models.TransitionEvent) (version int64, err error) {
	if t == nil || len(t.Entries) == 0 {
		return 0, errors.New("apply transition: nothing to write")
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	expected := t.Before.Version
	after := t.After
	const updateHead = `UPDATE petitions SET status = $1, enquiry_type = $2, requires_permission = $3, permission_status = $4,
efile_no = COALESCE(NULLIF(efile_no, ''), $5), target_cvo = $6, assigned_inspector_id = $7, current_handler_id = $8,
ereceipt_no = $9, ereceipt_file = $10, updated_at = $11, version = version + $12
WHERE id = $13 AND version = $14
RETURNING version`
	err = tx.QueryRowxContext(ctx, updateHead,
		after.Status, after.EnquiryType, after.RequiresPermission, after.PermissionStatus,
		after.EfileNo, after.TargetCVO, after.AssignedInspectorID, after.CurrentHandlerID,
		after.EreceiptNo, after.EreceiptFile, after.UpdatedAt, len(t.Entries),
		after.ID, expected,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrVersionMismatch
			return 0, err
		}
		return 0, fmt.Errorf("update petition head: %w", err)
	}

	for i := range t.Entries {
		entry := t.Entries[i]
		entry.PetitionID = after.ID
		entry.Seq = expected + int64(i) + 1
		if err = insertEntry(ctx, tx, &entry); err != nil {
			if database.IsUniqueViolation(err) {
				err = ErrVersionMismatch
			}
			return 0, err
		}
		t.Entries[i] = entry
	}

	if !t.Report.Empty() {
		if err = writeReport(ctx, tx, after.ID, t.Report); err != nil {
			return 0, err
		}
	}

	event.Version = version
	if err = insertOutbox(ctx, tx, models.TopicPetitionTransition, event); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transition tx: %w", err)
	}
	return version, nil
}

func insertEntry(ctx context.Context, tx *sqlx.Tx, entry *models.TrackingEntry) error {
	const query = `INSERT INTO petition_tracking (petition_id, seq, from_user_id, from_role, to_user_id, to_role, action,
comments, status_before, status_after, created_at)
VALUES (:petition_id, :seq, :from_user_id, :from_role, :to_user_id, :to_role, :action, :comments, :status_before,
:status_after, :created_at)
RETURNING id`
	bound, args, err := tx.BindNamed(query, entry)
	if err != nil {
		return fmt.Errorf("bind tracking entry: %w", err)
	}
	if err := tx.QueryRowxContext(ctx, bound, args...).Scan(&entry.ID); err != nil {
		return fmt.Errorf("insert tracking entry: %w", err)
	}
	return nil
}

func writeReport(ctx context.Context, tx *sqlx.Tx, petitionID int64, change *models.ReportChange) error {
	if change.Insert != nil {
		report := *change.Insert
		report.PetitionID = petitionID
		const insert = `INSERT INTO enquiry_reports (petition_id, submitted_by, report_text, findings, recommendation, report_file,
detailed_requested, created_at, updated_at)
VALUES (:petition_id, :submitted_by, :report_text, :findings, :recommendation, :report_file, :detailed_requested,
:created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insert, report); err != nil {
			return fmt.Errorf("insert enquiry report: %w", err)
		}
		return nil
	}

	const patch = `UPDATE enquiry_reports SET
cvo_comments = COALESCE($2, cvo_comments),
cvo_consolidated_report_file = COALESCE($3, cvo_consolidated_report_file),
po_conclusion = COALESCE($4, po_conclusion),
po_instructions = COALESCE($5, po_instructions),
conclusion_file = COALESCE($6, conclusion_file),
action_taken = COALESCE($7, action_taken),
cmd_action_report_file = COALESCE($8, cmd_action_report_file),
updated_at = NOW()
WHERE id = (SELECT id FROM enquiry_reports WHERE petition_id = $1 ORDER BY id DESC LIMIT 1)`
	if _, err := tx.ExecContext(ctx, patch, petitionID,
		change.CVOComments, change.CVOConsolidatedReportFile, change.POConclusion, change.POInstructions,
		change.ConclusionFile, change.ActionTaken, change.CMDActionReportFile,
	); err != nil {
		return fmt.Errorf("update enquiry report: %w", err)
	}
	return nil
}

func insertOutbox(ctx context.Context, tx *sqlx.Tx, topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	const query = `INSERT INTO outbox (id, topic, payload, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, query, uuid.NewString(), topic, body, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

func stringPtr(s string) *string {
	return &s
}
