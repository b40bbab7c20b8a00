package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/vigilance-tracker-api/internal/dto"
	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/workflow"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

type visiblePetitionLister interface {
	ListVisible(ctx context.Context, filter models.PetitionFilter) ([]models.Petition, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.Petition, error)
	CountPendingFor(ctx context.Context, userID string) (int, error)
}

type approvalLedger interface {
	PetitionsActionedBy(ctx context.Context, userID, action string) ([]int64, error)
}

type slaClassifier interface {
	Batch(ctx context.Context, ids []int64) (map[int64]models.SLAStatus, error)
}

// Card styles understood by the dashboard UI.
const (
	stylePrimary = "stat-primary"
	styleInfo    = "stat-info"
	styleWarning = "stat-warning"
	styleSuccess = "stat-success"
	styleAmber   = "stat-amber"
	styleViolet  = "stat-violet"
)

// Drill-down metric keys that are not status filters.
const (
	MetricAll               = "all"
	MetricActive            = "active"
	MetricPOPermissionGiven = "po_permission_given"
	MetricSLATotal          = "sla_total"
	MetricSLAWithin         = "sla_within"
	MetricSLABreached       = "sla_breached"
	MetricSLAInProgress     = "sla_in_progress"
)

const stageCount = 6

var stageByStatus = map[models.PetitionStatus]int{
	models.StatusReceived:               1,
	models.StatusForwardedToCVO:         1,
	models.StatusSentForPermission:      1,
	models.StatusPermissionApproved:     1,
	models.StatusPermissionRejected:     1,
	models.StatusAssignedToInspector:    2,
	models.StatusEnquiryInProgress:      2,
	models.StatusSentBackForReenquiry:   2,
	models.StatusEnquiryReportSubmitted: 3,
	models.StatusForwardedToPO:          3,
	models.StatusForwardedToJMD:         3,
	models.StatusActionInstructed:       4,
	models.StatusActionTaken:            4,
	models.StatusLodged:                 5,
	models.StatusClosed:                 6,
}

// StageOf returns the dashboard stage (1..6) of a status. Unknown statuses count as intake.
func StageOf(status models.PetitionStatus) int {
	if stage, ok := stageByStatus[status]; ok {
		return stage
	}
	return 1
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL       time.Duration
	DrilldownLimit int
}

// DashboardService composes the role dashboards, drill-downs and pending counters.
type DashboardService struct {
	petitions visiblePetitionLister
	approvals approvalLedger
	sla       slaClassifier
	cache     *CacheService
	logger    *zap.Logger
	now       func() time.Time
	cfg       DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Petitions visiblePetitionLister
	Approvals approvalLedger
	SLA       slaClassifier
	Cache     *CacheService
	Logger    *zap.Logger
	Config    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	if cfg.DrilldownLimit <= 0 {
		cfg.DrilldownLimit = 500
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		petitions: params.Petitions,
		approvals: params.Approvals,
		sla:       params.SLA,
		cache:     params.Cache,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		cfg:       cfg,
	}
}

// Summary returns the caller's dashboard and whether it was served from cache.
func (s *DashboardService) Summary(ctx context.Context, actor models.Actor) (*models.DashboardSummary, bool, error) {
	if cached, ok := s.cache.LoadSummary(ctx, actor); ok {
		return cached, true, nil
	}
	summary, err := s.compose(ctx, actor)
	if err != nil {
		return nil, false, err
	}
	s.cache.StoreSummary(ctx, actor, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

func (s *DashboardService) compose(ctx context.Context, actor models.Actor) (*models.DashboardSummary, error) {
	var (
		petitions []models.Petition
		approved  []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		petitions, err = s.petitions.ListVisible(gctx, s.filter(actor, ""))
		return err
	})
	if actor.Role == models.RolePO && s.approvals != nil {
		g.Go(func() error {
			var err error
			approved, err = s.approvals.PetitionsActionedBy(gctx, actor.UserID, workflow.LabelPermissionApproved)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, appErrors.Internal(err, "failed to load dashboard")
	}

	buckets, err := s.sla.Batch(ctx, petitionIDs(petitions))
	if err != nil {
		return nil, err
	}

	counts := make(map[models.PetitionStatus]int)
	stages := make(map[string]int, stageCount)
	for i := 1; i <= stageCount; i++ {
		stages[stageKey(i)] = 0
	}
	for _, p := range petitions {
		counts[p.Status]++
		stages[stageKey(StageOf(p.Status))]++
	}
	var sla models.SLACounts
	for _, p := range petitions {
		sla.Add(buckets[p.ID].Bucket)
	}

	return &models.DashboardSummary{
		Role:        actor.Role,
		Total:       len(petitions),
		Cards:       roleCards(actor.Role, counts, len(petitions), len(approved)),
		Stages:      stages,
		SLA:         sla,
		GeneratedAt: s.now(),
	}, nil
}

func roleCards(role models.UserRole, counts map[models.PetitionStatus]int, total, approved int) []models.KPICard {
	status := func(label string, st models.PetitionStatus, style string) models.KPICard {
		return models.KPICard{Label: label, Value: counts[st], Metric: "status:" + string(st), Style: style}
	}
	multi := func(label, style string, sts ...models.PetitionStatus) models.KPICard {
		names := make([]string, 0, len(sts))
		value := 0
		for _, st := range sts {
			names = append(names, string(st))
			value += counts[st]
		}
		return models.KPICard{Label: label, Value: value, Metric: "multi:" + strings.Join(names, ","), Style: style}
	}
	atPO := func(label, style string) models.KPICard {
		return multi(label, style, models.StatusForwardedToPO, models.StatusForwardedToJMD)
	}

	switch {
	case role == models.RoleSuperAdmin:
		return []models.KPICard{
			status("Received", models.StatusReceived, stylePrimary),
			status("Forwarded to CVO/DSP", models.StatusForwardedToCVO, styleInfo),
			status("Sent for Permission", models.StatusSentForPermission, styleWarning),
			multi("Enquiry In Process", styleWarning, models.StatusAssignedToInspector, models.StatusEnquiryInProgress),
			atPO("Reports at PO", styleInfo),
			status("Action Initiated", models.StatusActionInstructed, styleSuccess),
			status("Action Taken", models.StatusActionTaken, styleSuccess),
			status("Lodged", models.StatusLodged, styleAmber),
			status("Closed", models.StatusClosed, styleViolet),
		}
	case role == models.RolePO:
		return []models.KPICard{
			status("Permission Pending", models.StatusSentForPermission, styleWarning),
			{Label: "Permission Given", Value: approved, Metric: MetricPOPermissionGiven, Style: styleSuccess},
			atPO("Reports Received", styleInfo),
			status("Action Initiated", models.StatusActionInstructed, stylePrimary),
			status("Action Taken", models.StatusActionTaken, styleSuccess),
			status("Lodged", models.StatusLodged, styleAmber),
		}
	case role.IsCVO():
		return []models.KPICard{
			status("Received", models.StatusForwardedToCVO, stylePrimary),
			status("Permission Approved", models.StatusPermissionApproved, styleSuccess),
			status("Assigned to Field Officers", models.StatusAssignedToInspector, styleWarning),
			status("Enquiry Reports Received", models.StatusEnquiryReportSubmitted, styleInfo),
			atPO("Forwarded to PO", styleViolet),
		}
	case role.IsCMD():
		return []models.KPICard{
			status("Pending for Action", models.StatusActionInstructed, styleWarning),
			status("Action Report Submitted", models.StatusActionTaken, styleSuccess),
		}
	case role == models.RoleInspector:
		return []models.KPICard{
			status("Assigned", models.StatusAssignedToInspector, stylePrimary),
			status("Enquiry In Process", models.StatusEnquiryInProgress, styleWarning),
			status("Report Submitted", models.StatusEnquiryReportSubmitted, styleSuccess),
		}
	case role == models.RoleDataEntry:
		return []models.KPICard{
			status("Received", models.StatusReceived, stylePrimary),
			status("Forwarded to CVO/DSP", models.StatusForwardedToCVO, styleInfo),
			status("Sent for Permission", models.StatusSentForPermission, styleWarning),
		}
	default:
		return []models.KPICard{{Label: "Total", Value: total, Metric: MetricAll, Style: stylePrimary}}
	}
}

// Drilldown lists the visible petitions behind a dashboard metric. Unknown metrics yield an empty list.
func (s *DashboardService) Drilldown(ctx context.Context, actor models.Actor, q dto.DrilldownQuery) (*dto.DrilldownResponse, error) {
	metric := strings.TrimSpace(q.Metric)
	resp := &dto.DrilldownResponse{Metric: metric, Petitions: []models.Petition{}}
	if metric == "" {
		return resp, nil
	}

	var (
		matched []models.Petition
		err     error
	)
	if metric == MetricPOPermissionGiven {
		matched, err = s.approvedBy(ctx, actor)
	} else {
		matched, err = s.matchVisible(ctx, actor, metric, strings.ToLower(strings.TrimSpace(q.Mode)))
	}
	if err != nil {
		return nil, err
	}

	resp.Count = len(matched)
	if len(matched) > s.cfg.DrilldownLimit {
		matched = matched[:s.cfg.DrilldownLimit]
		resp.Truncated = true
	}
	if matched != nil {
		resp.Petitions = matched
	}
	return resp, nil
}

func (s *DashboardService) approvedBy(ctx context.Context, actor models.Actor) ([]models.Petition, error) {
	if s.approvals == nil {
		return nil, nil
	}
	ids, err := s.approvals.PetitionsActionedBy(ctx, actor.UserID, workflow.LabelPermissionApproved)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load approvals")
	}
	petitions, err := s.petitions.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load petitions")
	}
	return petitions, nil
}

func (s *DashboardService) matchVisible(ctx context.Context, actor models.Actor, metric, mode string) ([]models.Petition, error) {
	match, slaBucket, ok := metricPredicate(metric)
	if !ok {
		return nil, nil
	}
	petitions, err := s.petitions.ListVisible(ctx, s.filter(actor, mode))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load petitions")
	}

	if slaBucket != "" {
		buckets, err := s.sla.Batch(ctx, petitionIDs(petitions))
		if err != nil {
			return nil, err
		}
		match = func(p *models.Petition) bool {
			b := buckets[p.ID].Bucket
			if slaBucket == MetricSLATotal {
				return b != models.SLAExcluded && b != ""
			}
			return string(b) == slaBucket
		}
	}

	var out []models.Petition
	for i := range petitions {
		if match(&petitions[i]) {
			out = append(out, petitions[i])
		}
	}
	return out, nil
}

// metricPredicate parses a drill-down metric. SLA metrics return the bucket to match instead of a predicate.
func metricPredicate(metric string) (func(*models.Petition) bool, string, bool) {
	switch metric {
	case MetricAll:
		return func(*models.Petition) bool { return true }, "", true
	case MetricActive:
		return func(p *models.Petition) bool { return p.Status != models.StatusClosed }, "", true
	case MetricSLATotal:
		return nil, MetricSLATotal, true
	case MetricSLAWithin:
		return nil, string(models.SLAWithin), true
	case MetricSLABreached:
		return nil, string(models.SLABreached), true
	case MetricSLAInProgress:
		return nil, string(models.SLAInProgress), true
	}

	if strings.HasPrefix(metric, "stage_") {
		n, err := strconv.Atoi(strings.TrimPrefix(metric, "stage_"))
		if err != nil || n < 1 || n > stageCount {
			return nil, "", false
		}
		return func(p *models.Petition) bool { return StageOf(p.Status) == n }, "", true
	}

	kind, value, found := strings.Cut(metric, ":")
	if !found {
		return nil, "", false
	}
	switch kind {
	case "status":
		return func(p *models.Petition) bool { return string(p.Status) == value }, "", true
	case "multi":
		wanted := make(map[string]struct{})
		for _, st := range strings.Split(value, ",") {
			wanted[strings.TrimSpace(st)] = struct{}{}
		}
		return func(p *models.Petition) bool {
			_, ok := wanted[string(p.Status)]
			return ok
		}, "", true
	case "mode":
		switch value {
		case models.ModePermission:
			return func(p *models.Petition) bool { return p.RequiresPermission }, "", true
		case models.ModeDirect:
			return func(p *models.Petition) bool { return !p.RequiresPermission }, "", true
		}
		return nil, "", false
	case "petition_type":
		return func(p *models.Petition) bool { return p.PetitionType == value }, "", true
	case "source":
		return func(p *models.Petition) bool { return p.SourceOfPetition == value }, "", true
	case "received_at":
		return func(p *models.Petition) bool { return p.ReceivedAt == value }, "", true
	case "officer":
		if value == "" {
			return nil, "", false
		}
		return func(p *models.Petition) bool { return p.Inspector() == value }, "", true
	case "month":
		if _, err := time.Parse("2006-01", value); err != nil {
			return nil, "", false
		}
		return func(p *models.Petition) bool { return p.ReceivedDate.Format("2006-01") == value }, "", true
	}
	return nil, "", false
}

// Pending counts open petitions currently waiting on the caller.
func (s *DashboardService) Pending(ctx context.Context, actor models.Actor) (*models.PendingCount, error) {
	n, err := s.petitions.CountPendingFor(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count pending petitions")
	}
	return &models.PendingCount{UserID: actor.UserID, Pending: n}, nil
}

func (s *DashboardService) filter(actor models.Actor, mode string) models.PetitionFilter {
	return models.PetitionFilter{
		Visibility: models.Visibility{UserID: actor.UserID, Role: actor.Role},
		Mode:       mode,
	}
}

func stageKey(n int) string {
	return fmt.Sprintf("stage_%d", n)
}

func petitionIDs(petitions []models.Petition) []int64 {
	ids := make([]int64, 0, len(petitions))
	for _, p := range petitions {
		ids = append(ids, p.ID)
	}
	return ids
}
