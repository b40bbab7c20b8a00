package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/vigilance-tracker-api/internal/dto"
	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/workflow"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

type fieldRuleRepository interface {
	ListBooleans(ctx context.Context) ([]models.Configuration, error)
	Get(ctx context.Context, key string) (*models.Configuration, error)
	Upsert(ctx context.Context, cfg *models.Configuration) error
	BulkUpsert(ctx context.Context, cfgs []models.Configuration) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// FieldRuleService stores super-admin toggles of payload field requiredness and serves them to the engine.
type FieldRuleService struct {
	repo      fieldRuleRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	ttl       time.Duration
	now       func() time.Time

	mu       sync.RWMutex
	cached   map[string]models.Configuration
	loadedAt time.Time
}

var _ workflow.FieldRules = (*FieldRuleService)(nil)

// NewFieldRuleService constructs the service. Values are cached in-process for ttl.
func NewFieldRuleService(repo fieldRuleRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger, ttl time.Duration) *FieldRuleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &FieldRuleService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Required reports whether the field behind key is mandatory.
// Storage failures fall back to the catalog default so the engine never blocks on configuration reads.
func (s *FieldRuleService) Required(ctx context.Context, key string) bool {
	def, known := workflow.LookupFieldRule(key)
	rows, err := s.snapshot(ctx)
	if err != nil {
		s.logger.Warn("field rules unavailable, using defaults", zap.String("key", key), zap.Error(err))
		return known && def.Default
	}
	if row, ok := rows[key]; ok {
		if v, err := strconv.ParseBool(row.Value); err == nil {
			return v
		}
	}
	return known && def.Default
}

// List returns every known rule with its effective value.
func (s *FieldRuleService) List(ctx context.Context) ([]models.FieldRule, error) {
	rows, err := s.snapshot(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list field rules")
	}
	catalog := workflow.FieldRuleCatalog()
	rules := make([]models.FieldRule, 0, len(catalog))
	for _, def := range catalog {
		rules = append(rules, toFieldRule(def, rows))
	}
	return rules, nil
}

// Update sets one rule and returns its new state.
func (s *FieldRuleService) Update(ctx context.Context, key string, required bool, actor *models.JWTClaims) (*models.FieldRule, error) {
	def, ok := workflow.LookupFieldRule(key)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown field rule %q", key))
	}
	prev, err := s.repo.Get(ctx, key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to fetch field rule")
	}

	cfg := toConfiguration(def, required, actor)
	if err := s.repo.Upsert(ctx, &cfg); err != nil {
		return nil, appErrors.Internal(err, "failed to update field rule")
	}
	s.invalidate()
	s.emitAudit(ctx, actor, key, effective(def, prev), required)

	rule := toFieldRule(def, map[string]models.Configuration{key: cfg})
	return &rule, nil
}

// BulkUpdate sets several rules in one transaction.
func (s *FieldRuleService) BulkUpdate(ctx context.Context, req dto.BulkUpdateFieldRulesRequest, actor *models.JWTClaims) ([]models.FieldRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid bulk payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	before, err := s.snapshot(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load field rules")
	}

	defs := make([]workflow.FieldRuleDef, 0, len(req.Items))
	cfgs := make([]models.Configuration, 0, len(req.Items))
	for _, item := range req.Items {
		def, ok := workflow.LookupFieldRule(item.Key)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown field rule %q", item.Key))
		}
		defs = append(defs, def)
		cfgs = append(cfgs, toConfiguration(def, *item.Required, actor))
	}
	if err := s.repo.BulkUpsert(ctx, cfgs); err != nil {
		return nil, appErrors.Internal(err, "failed to bulk update field rules")
	}
	s.invalidate()

	out := make([]models.FieldRule, 0, len(cfgs))
	for i, cfg := range cfgs {
		prev, had := before[cfg.Key]
		var prevPtr *models.Configuration
		if had {
			prevPtr = &prev
		}
		s.emitAudit(ctx, actor, cfg.Key, effective(defs[i], prevPtr), cfg.Value == "true")
		out = append(out, toFieldRule(defs[i], map[string]models.Configuration{cfg.Key: cfg}))
	}
	return out, nil
}

func (s *FieldRuleService) snapshot(ctx context.Context) (map[string]models.Configuration, error) {
	s.mu.RLock()
	if s.cached != nil && s.now().Sub(s.loadedAt) < s.ttl {
		rows := s.cached
		s.mu.RUnlock()
		return rows, nil
	}
	s.mu.RUnlock()

	list, err := s.repo.ListBooleans(ctx)
	if err != nil {
		return nil, err
	}
	rows := make(map[string]models.Configuration, len(list))
	for _, row := range list {
		rows[row.Key] = row
	}

	s.mu.Lock()
	s.cached = rows
	s.loadedAt = s.now()
	s.mu.Unlock()
	return rows, nil
}

func (s *FieldRuleService) invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *FieldRuleService) emitAudit(ctx context.Context, actor *models.JWTClaims, key string, oldValue, newValue bool) {
	if s.audit == nil {
		return
	}
	oldBytes, _ := json.Marshal(map[string]interface{}{"key": key, "required": oldValue})
	newBytes, _ := json.Marshal(map[string]interface{}{"key": key, "required": newValue})
	log := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionFieldRuleSet,
		Resource:   "field_rule",
		ResourceID: &key,
		OldValues:  oldBytes,
		NewValues:  newBytes,
		IPAddress:  "system",
		UserAgent:  "field-rule-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record field rule audit", zap.Error(err))
	}
}

func toConfiguration(def workflow.FieldRuleDef, required bool, actor *models.JWTClaims) models.Configuration {
	return models.Configuration{
		Key:         def.Key,
		Value:       strconv.FormatBool(required),
		Type:        models.ConfigurationTypeBoolean,
		Description: strPtr(def.Description),
		UpdatedBy:   userIDPtr(actor),
	}
}

func toFieldRule(def workflow.FieldRuleDef, rows map[string]models.Configuration) models.FieldRule {
	rule := models.FieldRule{
		Key:         def.Key,
		Operation:   string(def.Operation),
		Field:       def.Field,
		Required:    def.Default,
		Default:     def.Default,
		Description: def.Description,
	}
	if row, ok := rows[def.Key]; ok {
		if v, err := strconv.ParseBool(row.Value); err == nil {
			rule.Required = v
		}
		rule.UpdatedBy = row.UpdatedBy
		updated := row.UpdatedAt
		rule.UpdatedAt = &updated
	}
	return rule
}

func effective(def workflow.FieldRuleDef, row *models.Configuration) bool {
	if row != nil {
		if v, err := strconv.ParseBool(row.Value); err == nil {
			return v
		}
	}
	return def.Default
}

func userIDPtr(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	return &actor.UserID
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	result := value
	return &result
}
