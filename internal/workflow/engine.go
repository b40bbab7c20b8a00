package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

// Request is one attempted transition.
type Request struct {
	Operation Operation
	Actor     models.Actor
	Payload   Payload
	// Trusted skips role and scope checks. Used only for system routing at intake.
	Trusted bool
}

// Transition is a fully validated change ready to be persisted atomically.
// After keeps the version of Before; the store bumps it by len(Entries).
type Transition struct {
	Operation Operation
	Label     string
	Before    *models.Petition
	After     *models.Petition
	Entries   []models.TrackingEntry
	Report    *models.ReportChange
	Handler   *Holder
}

// Engine evaluates requests against the transition table. It holds no petition state.
type Engine struct {
	directory RoleDirectory
	rules     FieldRules
	files     FileRefVerifier
	table     map[Operation]*Rule
	order     []Operation
	now       func() time.Time

	closeAfterRejection bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithFieldRules injects the requiredness configuration.
func WithFieldRules(rules FieldRules) Option {
	return func(e *Engine) {
		if rules != nil {
			e.rules = rules
		}
	}
}

// WithFileVerifier injects the file reference verifier.
func WithFileVerifier(v FileRefVerifier) Option {
	return func(e *Engine) {
		if v != nil {
			e.files = v
		}
	}
}

// WithCloseAfterRejection adds a close edge out of permission_rejected.
func WithCloseAfterRejection(enabled bool) Option {
	return func(e *Engine) { e.closeAfterRejection = enabled }
}

// WithClock overrides the time source used for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds an engine resolving handlers through directory.
func NewEngine(directory RoleDirectory, opts ...Option) *Engine {
	e := &Engine{
		directory: directory,
		rules:     StaticFieldRules(nil),
		files:     acceptAllFiles{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.table, e.order = buildTable(e.closeAfterRejection)
	return e
}

// Rule returns the table entry for op.
func (e *Engine) Rule(op Operation) (*Rule, bool) {
	r, ok := e.table[op]
	return r, ok
}

// Allowed lists the operations actor may attempt on head right now, ignoring payload.
func (e *Engine) Allowed(head *models.Petition, actor models.Actor) []Operation {
	var ops []Operation
	for _, op := range e.order {
		r := e.table[op]
		if r.allows(actor.Role) && r.inScope(head, actor) && r.admits(head) {
			ops = append(ops, op)
		}
	}
	return ops
}

// Plan validates req against head and returns the transition to persist.
// Checks run in a fixed order: role, scope, state, payload, handler.
func (e *Engine) Plan(ctx context.Context, head *models.Petition, req Request) (*Transition, error) {
	if head == nil {
		return nil, appErrors.ErrNotFound
	}
	rule, ok := e.table[req.Operation]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown operation %q", req.Operation))
	}

	if !req.Trusted {
		if !rule.allows(req.Actor.Role) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not %s", req.Actor.Role, rule.Operation))
		}
		if !rule.inScope(head, req.Actor) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "petition is outside your jurisdiction or assignment")
		}
	}
	if !rule.admits(head) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("%s is not allowed while petition is %s", rule.Operation, head.Status))
	}

	c := &call{
		ctx:    ctx,
		engine: e,
		rule:   rule,
		head:   head,
		next:   head.Clone(),
		actor:  req.Actor,
		p:      req.Payload.normalized(),
		at:     e.now(),
	}
	if rule.Validate != nil {
		if err := rule.Validate(c); err != nil {
			return nil, err
		}
	}
	if err := rule.Apply(c); err != nil {
		return nil, err
	}
	if len(c.entries) == 0 || c.entries[len(c.entries)-1].StatusAfter != c.next.Status {
		return nil, appErrors.Internal(fmt.Errorf("%s left ledger and head out of step", rule.Operation), "failed to plan transition")
	}
	if c.handler != nil {
		c.next.CurrentHandlerID = strPtr(c.handler.UserID)
	}
	c.next.UpdatedAt = c.at

	return &Transition{
		Operation: rule.Operation,
		Label:     c.entries[0].Action,
		Before:    head,
		After:     c.next,
		Entries:   c.entries,
		Report:    c.report,
		Handler:   c.handler,
	}, nil
}

// call is the scratch state of one Plan invocation.
type call struct {
	ctx    context.Context
	engine *Engine
	rule   *Rule
	head   *models.Petition
	next   *models.Petition
	actor  models.Actor
	p      Payload
	at     time.Time

	target    models.Jurisdiction
	enquiry   models.EnquiryType
	efile     string
	inspector *Holder

	handler *Holder
	entries []models.TrackingEntry
	report  *models.ReportChange
}

func (c *call) required(field string) bool {
	return c.engine.rules.Required(c.ctx, RuleKey(c.rule.Operation, field))
}

// resolveTarget takes the payload jurisdiction, else the one on the head.
func (c *call) resolveTarget() error {
	target := c.p.TargetCVO
	if target == "" {
		target = c.head.Target()
	}
	if target == "" {
		return invalidPayload("Target CVO jurisdiction is required.")
	}
	if !target.Valid() {
		return invalidPayload("Target CVO jurisdiction %q is not valid.", target)
	}
	c.target = target
	return nil
}

// resolveEnquiry takes the payload enquiry type, else the one on the head.
func (c *call) resolveEnquiry(mandatory bool) error {
	t := c.p.EnquiryType
	if t == "" {
		t = c.head.Enquiry()
	}
	if t == "" {
		if mandatory {
			return invalidPayload("Enquiry type is required.")
		}
		return nil
	}
	if !t.Valid() {
		return invalidPayload("Enquiry type %q is not valid.", t)
	}
	c.enquiry = t
	return nil
}

func (c *call) resolveEfile(mandatory bool) error {
	efile, err := ResolveEfileNo(c.head.Efile(), c.p.EfileNo, mandatory)
	if err != nil {
		return err
	}
	c.efile = efile
	return nil
}

func (c *call) verifyFile(label string, mandatory bool) error {
	if c.p.FileRef == "" {
		if mandatory {
			return invalidPayload("%s is required.", label)
		}
		return nil
	}
	if err := c.engine.files.Verify(c.p.FileRef); err != nil {
		return invalidPayload("%s reference is invalid.", label)
	}
	return nil
}

// checkInspector requires an active inspector and, for CVO callers, one they supervise.
func (c *call) checkInspector(id string) error {
	if id == "" {
		return invalidPayload("Inspector is required.")
	}
	h, err := c.engine.directory.Lookup(c.ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoActiveHolder) {
			return invalidPayload("Inspector %s does not exist.", id)
		}
		return directoryFailure(err)
	}
	if h.Role != models.RoleInspector {
		return invalidPayload("User %s is not an inspector.", id)
	}
	if !h.Active {
		return invalidPayload("Inspector %s is not active.", id)
	}
	if c.actor.Role.IsCVO() {
		sup, err := c.engine.directory.Supervisor(c.ctx, id)
		if err != nil && !errors.Is(err, ErrNoActiveHolder) {
			return directoryFailure(err)
		}
		if sup == nil || sup.UserID != c.actor.UserID {
			return invalidPayload("Inspector %s is not mapped to you.", id)
		}
	}
	c.inspector = h
	return nil
}

func (c *call) holderFor(role models.UserRole) (*Holder, error) {
	h, err := c.engine.directory.ActiveHolder(c.ctx, role)
	if err != nil {
		if errors.Is(err, ErrNoActiveHolder) {
			return nil, appErrors.Clone(appErrors.ErrNoHandler, fmt.Sprintf("no active %s is configured", role))
		}
		return nil, directoryFailure(err)
	}
	return h, nil
}

func (c *call) cvoFor(target models.Jurisdiction) (*Holder, error) {
	role, ok := target.CVORole()
	if !ok {
		return nil, invalidPayload("Target CVO jurisdiction %q is not valid.", target)
	}
	return c.holderFor(role)
}

func (c *call) cmdFor(target models.Jurisdiction) (*Holder, error) {
	role, ok := target.CMDRole()
	if !ok {
		return nil, invalidPayload("Target CVO jurisdiction %q is not valid.", target)
	}
	return c.holderFor(role)
}

func (c *call) po() (*Holder, error) {
	return c.holderFor(models.RolePO)
}

// supervisorOrCVO prefers the inspector's mapped CVO, falling back to the CVO of the jurisdiction.
func (c *call) supervisorOrCVO(inspectorID string) (*Holder, error) {
	if inspectorID != "" {
		h, err := c.engine.directory.Supervisor(c.ctx, inspectorID)
		if err == nil && h != nil {
			return h, nil
		}
		if err != nil && !errors.Is(err, ErrNoActiveHolder) {
			return nil, directoryFailure(err)
		}
	}
	target := c.head.Target()
	if target == "" {
		return nil, appErrors.Clone(appErrors.ErrNoHandler, "no supervising CVO and no target jurisdiction")
	}
	return c.cvoFor(target)
}

func (c *call) self() *Holder {
	return &Holder{UserID: c.actor.UserID, Role: c.actor.Role, FullName: c.actor.FullName, Active: true}
}

// record appends a ledger entry moving the head to status after.
func (c *call) record(label, comment string, to *Holder, after models.PetitionStatus) {
	before := c.next.Status
	if n := len(c.entries); n > 0 {
		before = c.entries[n-1].StatusAfter
	}
	entry := models.TrackingEntry{
		PetitionID:   c.head.ID,
		FromUserID:   c.actor.UserID,
		FromRole:     c.actor.Role,
		Action:       label,
		Comments:     strPtr(comment),
		StatusBefore: &before,
		StatusAfter:  after,
		CreatedAt:    c.at,
	}
	if to != nil {
		entry.ToUserID = strPtr(to.UserID)
		role := to.Role
		entry.ToRole = &role
	}
	c.entries = append(c.entries, entry)
}

// move sets the new status, hands the petition to handler and writes the primary entry.
func (c *call) move(to models.PetitionStatus, handler *Holder, comment string) {
	c.record(c.rule.Label, comment, handler, to)
	c.next.Status = to
	c.handler = handler
}

func (c *call) reportPatch() *models.ReportChange {
	if c.report == nil {
		c.report = &models.ReportChange{}
	}
	return c.report
}

func directoryFailure(err error) error {
	return appErrors.Internal(err, "failed to resolve role holder")
}
