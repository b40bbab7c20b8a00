package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/repository"
	"github.com/noah-isme/vigilance-tracker-api/internal/workflow"
)

// memUsers backs RoleDirectory in tests.
type memUsers struct {
	users       []models.User
	supervisors map[string]string
}

func newMemUsers() *memUsers {
	return &memUsers{
		users: []models.User{
			{ID: "deo-1", Role: models.RoleDataEntry, FullName: "Data Entry", IsActive: true},
			{ID: "po-1", Role: models.RolePO, FullName: "Permission Officer", IsActive: true},
			{ID: "cvo-1", Role: models.RoleCVOAPSPDCL, FullName: "CVO Tirupathi", IsActive: true},
			{ID: "cvo-2", Role: models.RoleCVOAPEPDCL, FullName: "CVO Vizag", IsActive: true},
			{ID: "dsp-1", Role: models.RoleDSP, FullName: "DSP Headquarters", IsActive: true},
			{ID: "insp-1", Role: models.RoleInspector, FullName: "Inspector One", IsActive: true},
			{ID: "insp-2", Role: models.RoleInspector, FullName: "Inspector Two", IsActive: true},
		},
		supervisors: map[string]string{"insp-1": "cvo-1", "insp-2": "cvo-2"},
	}
}

func (m *memUsers) with(u models.User) *memUsers {
	m.users = append(m.users, u)
	return m
}

func (m *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memUsers) FirstActiveByRole(_ context.Context, role models.UserRole) (*models.User, error) {
	for _, u := range m.users {
		if u.Role == role && u.IsActive {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memUsers) FindSupervisor(ctx context.Context, inspectorID string) (*models.User, error) {
	id, ok := m.supervisors[inspectorID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return m.FindByID(ctx, id)
}

// memPetitions is a compare-and-swap petition store with an in-memory ledger.
type memPetitions struct {
	mu      sync.Mutex
	heads   map[int64]*models.Petition
	ledger  map[int64][]models.TrackingEntry
	reports map[int64]*models.EnquiryReport
	events  []models.TransitionEvent
	nextID  int64
	failCAS bool
}

func newMemPetitions() *memPetitions {
	return &memPetitions{
		heads:   map[int64]*models.Petition{},
		ledger:  map[int64][]models.TrackingEntry{},
		reports: map[int64]*models.EnquiryReport{},
		nextID:  1,
	}
}

// seed stores head as is, without a genesis entry.
func (m *memPetitions) seed(head *models.Petition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heads[head.ID] = head.Clone()
	if head.ID >= m.nextID {
		m.nextID = head.ID + 1
	}
}

func (m *memPetitions) Create(_ context.Context, p *models.Petition, program string, actor models.Actor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	p.ID = m.nextID
	m.nextID++
	p.SNo = fmt.Sprintf("%s/%s/%d/%04d", program, models.OfficeCode(p.ReceivedAt), now.Year(), p.ID)
	p.Status = models.StatusReceived
	p.Version = 1
	p.CreatedBy = actor.UserID
	p.CreatedAt = now
	p.UpdatedAt = now
	m.heads[p.ID] = p.Clone()
	m.ledger[p.ID] = []models.TrackingEntry{{
		PetitionID:  p.ID,
		Seq:         1,
		FromUserID:  actor.UserID,
		FromRole:    actor.Role,
		Action:      models.ActionPetitionCreated,
		StatusAfter: models.StatusReceived,
		CreatedAt:   now,
	}}
	return nil
}

func (m *memPetitions) Get(_ context.Context, id int64) (*models.Petition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.heads[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return p.Clone(), nil
}

func (m *memPetitions) List(_ context.Context, filter models.PetitionFilter) ([]models.Petition, int, error) {
	all, _ := m.ListVisible(context.Background(), filter)
	return all, len(all), nil
}

func (m *memPetitions) ListVisible(_ context.Context, filter models.PetitionFilter) ([]models.Petition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Petition
	for _, p := range m.heads {
		if !filter.Visibility.Sees(p) {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		out = append(out, *p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memPetitions) ApplyTransition(_ context.Context, t *workflow.Transition, event models.TransitionEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.heads[t.Before.ID]
	if !ok || m.failCAS || stored.Version != t.Before.Version {
		return 0, repository.ErrVersionMismatch
	}
	expected := stored.Version
	for i, e := range t.Entries {
		e.Seq = expected + int64(i) + 1
		m.ledger[t.Before.ID] = append(m.ledger[t.Before.ID], e)
	}
	next := t.After.Clone()
	next.Version = expected + int64(len(t.Entries))
	m.heads[t.Before.ID] = next
	if t.Report != nil && t.Report.Insert != nil {
		r := *t.Report.Insert
		m.reports[t.Before.ID] = &r
	}
	m.events = append(m.events, event)
	return next.Version, nil
}

func (m *memPetitions) ListByPetition(_ context.Context, petitionID int64) ([]models.TrackingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TrackingEntry, len(m.ledger[petitionID]))
	copy(out, m.ledger[petitionID])
	return out, nil
}

func (m *memPetitions) Latest(_ context.Context, petitionID int64) (*models.EnquiryReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[petitionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *r
	return &out, nil
}

func (m *memPetitions) SLATimestamps(ctx context.Context, petitionID int64) (*models.SLATimestamps, error) {
	rows, err := m.SLATimestampsFor(ctx, []int64{petitionID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, sql.ErrNoRows
	}
	return &rows[0], nil
}

// SLATimestampsFor mirrors the MIN(created_at) aggregate over the ledger.
func (m *memPetitions) SLATimestampsFor(_ context.Context, ids []int64) ([]models.SLATimestamps, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SLATimestamps
	for _, id := range ids {
		head, ok := m.heads[id]
		if !ok {
			continue
		}
		ts := models.SLATimestamps{PetitionID: id, EnquiryType: head.Clone().EnquiryType}
		for _, e := range m.ledger[id] {
			at := e.CreatedAt
			switch e.StatusAfter {
			case models.StatusAssignedToInspector:
				if ts.AssignedAt == nil {
					ts.AssignedAt = &at
				}
			case models.StatusClosed:
				if ts.ClosedAt == nil {
					ts.ClosedAt = &at
				}
			}
		}
		out = append(out, ts)
	}
	return out, nil
}

func (m *memPetitions) head(id int64) *models.Petition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heads[id].Clone()
}

func (m *memPetitions) entries(id int64) []models.TrackingEntry {
	out, _ := m.ListByPetition(context.Background(), id)
	return out
}

func (m *memPetitions) ListByIDs(_ context.Context, ids []int64) ([]models.Petition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Petition
	for _, id := range ids {
		if p, ok := m.heads[id]; ok {
			out = append(out, *p.Clone())
		}
	}
	return out, nil
}

func (m *memPetitions) CountPendingFor(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.heads {
		if p.Handler() == userID && p.Status != models.StatusClosed {
			n++
		}
	}
	return n, nil
}
