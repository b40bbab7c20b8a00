package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/workflow"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

type invalidatorStub struct {
	calls int32
	err   error
}

func (s *invalidatorStub) InvalidateDashboards(ctx context.Context) error {
	atomic.AddInt32(&s.calls, 1)
	return s.err
}

var (
	poActor        = models.Actor{UserID: "po-1", Role: models.RolePO, FullName: "Permission Officer"}
	cvoActor       = models.Actor{UserID: "cvo-1", Role: models.RoleCVOAPSPDCL, FullName: "CVO Tirupathi"}
	inspectorActor = models.Actor{UserID: "insp-1", Role: models.RoleInspector, FullName: "Inspector One"}
)

func newWorkflowForTest(t *testing.T, users *memUsers) (*WorkflowService, *memPetitions, *invalidatorStub) {
	t.Helper()
	store := newMemPetitions()
	cache := &invalidatorStub{}
	engine := workflow.NewEngine(NewRoleDirectory(users))
	return NewWorkflowService(store, engine, cache, NewMetricsService(), zap.NewNop()), store, cache
}

func jurisdiction(j models.Jurisdiction) *models.Jurisdiction { return &j }

func enquiry(e models.EnquiryType) *models.EnquiryType { return &e }

func TestWorkflowServicePermissionPathToClosure(t *testing.T) {
	svc, store, cache := newWorkflowForTest(t, newMemUsers())
	store.seed(&models.Petition{
		ID:                 1,
		SNo:                "VIG/PO/2026/0001",
		Status:             models.StatusReceived,
		RequiresPermission: true,
		PermissionStatus:   models.PermissionPending,
		TargetCVO:          jurisdiction(models.JurisdictionAPSPDCL),
	})
	ctx := context.Background()

	steps := []struct {
		op      workflow.Operation
		actor   models.Actor
		payload workflow.Payload
		status  models.PetitionStatus
		handler string
	}{
		{workflow.OpSendForPermission, poActor, workflow.Payload{}, models.StatusSentForPermission, "po-1"},
		{workflow.OpApprovePermission, poActor, workflow.Payload{EnquiryType: models.EnquiryPreliminary}, models.StatusPermissionApproved, "cvo-1"},
		{workflow.OpAssignToInspector, cvoActor, workflow.Payload{InspectorID: "insp-1"}, models.StatusAssignedToInspector, "insp-1"},
		{workflow.OpSubmitEnquiryReport, inspectorActor, workflow.Payload{ReportText: "Meter bypass confirmed", Recommendation: "Penalise"}, models.StatusEnquiryReportSubmitted, "cvo-1"},
		{workflow.OpCVOAddComments, cvoActor, workflow.Payload{CVOComments: "Agree with findings"}, models.StatusForwardedToPO, "po-1"},
		{workflow.OpGiveConclusion, poActor, workflow.Payload{Conclusion: "Penalty levied", EfileNo: "EO-1"}, models.StatusClosed, "po-1"},
	}
	for i, step := range steps {
		resp, err := svc.Execute(ctx, TransitionCommand{PetitionID: 1, Operation: step.op, Actor: step.actor, Payload: step.payload})
		require.NoError(t, err, step.op)
		assert.Equal(t, step.status, resp.Petition.Status, step.op)
		assert.Equal(t, step.handler, resp.HandlerID, step.op)
		assert.Equal(t, int64(i+1), resp.Version, step.op)
	}

	head := store.head(1)
	assert.Equal(t, models.StatusClosed, head.Status)
	assert.Equal(t, "EO-1", head.Efile())
	assert.Equal(t, models.PermissionApproved, head.PermissionStatus)
	assert.Equal(t, "insp-1", head.Inspector())
	assert.Equal(t, int64(6), head.Version)

	entries := store.entries(1)
	require.Len(t, entries, 6)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
		if i > 0 {
			require.NotNil(t, e.StatusBefore)
			assert.Equal(t, entries[i-1].StatusAfter, *e.StatusBefore, "ledger chain breaks at seq %d", e.Seq)
		}
	}
	assert.Equal(t, workflow.LabelPermissionApproved, entries[1].Action)
	assert.Len(t, store.events, 6)
	assert.Equal(t, int32(6), atomic.LoadInt32(&cache.calls))

	report, err := store.Latest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "insp-1", report.SubmittedBy)

	sla := NewSLAService(store)
	status, err := sla.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.SLAWithin, status.Bucket)
	assert.Equal(t, workflow.PreliminaryDeadlineDays, status.DeadlineDays)
	require.NotNil(t, status.AssignedAt)
	require.NotNil(t, status.ClosedAt)
}

func TestWorkflowServiceConcurrentApprovalHasOneWinner(t *testing.T) {
	svc, store, _ := newWorkflowForTest(t, newMemUsers())
	store.seed(&models.Petition{
		ID:                 2,
		Status:             models.StatusSentForPermission,
		RequiresPermission: true,
		PermissionStatus:   models.PermissionPending,
		TargetCVO:          jurisdiction(models.JurisdictionAPSPDCL),
		Version:            3,
	})

	var applied, conflicts int32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := svc.Execute(ctx, TransitionCommand{
				PetitionID: 2,
				Operation:  workflow.OpApprovePermission,
				Actor:      poActor,
				Payload:    workflow.Payload{EnquiryType: models.EnquiryDetailed},
			})
			switch {
			case err == nil:
				atomic.AddInt32(&applied, 1)
			case errors.Is(err, appErrors.ErrVersionConflict), errors.Is(err, appErrors.ErrInvalidState):
				atomic.AddInt32(&conflicts, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), applied)
	assert.Equal(t, int32(1), conflicts)
	assert.Len(t, store.entries(2), 1)
	assert.Equal(t, int64(4), store.head(2).Version)
}

func TestWorkflowServiceEfileIsWriteOnce(t *testing.T) {
	svc, store, _ := newWorkflowForTest(t, newMemUsers())
	store.seed(&models.Petition{
		ID:               3,
		Status:           models.StatusForwardedToCVO,
		PermissionStatus: models.PermissionNotRequired,
		TargetCVO:        jurisdiction(models.JurisdictionAPSPDCL),
		EnquiryType:      enquiry(models.EnquiryPreliminary),
		Version:          2,
	})
	ctx := context.Background()

	resp, err := svc.Execute(ctx, TransitionCommand{PetitionID: 3, Operation: workflow.OpUpdateEfileNo, Actor: poActor, Payload: workflow.Payload{EfileNo: "EO-9"}})
	require.NoError(t, err)
	assert.Equal(t, models.StatusForwardedToCVO, resp.Petition.Status)

	_, err = svc.Execute(ctx, TransitionCommand{PetitionID: 3, Operation: workflow.OpUpdateEfileNo, Actor: poActor, Payload: workflow.Payload{EfileNo: "EO-10"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidPayload.Code, appErrors.FromError(err).Code)

	head := store.head(3)
	assert.Equal(t, "EO-9", head.Efile())
	assert.Equal(t, int64(3), head.Version)
	assert.Len(t, store.entries(3), 1)
}

func TestWorkflowServiceMissingHandlerLeavesHeadUntouched(t *testing.T) {
	svc, store, cache := newWorkflowForTest(t, newMemUsers())
	store.seed(&models.Petition{
		ID:                 4,
		Status:             models.StatusForwardedToPO,
		RequiresPermission: true,
		PermissionStatus:   models.PermissionApproved,
		TargetCVO:          jurisdiction(models.JurisdictionAPSPDCL),
		EfileNo:            strPtr("EO-4"),
		Version:            5,
	})

	_, err := svc.Execute(context.Background(), TransitionCommand{PetitionID: 4, Operation: workflow.OpSendToCMD, Actor: poActor})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNoHandler))

	head := store.head(4)
	assert.Equal(t, models.StatusForwardedToPO, head.Status)
	assert.Equal(t, int64(5), head.Version)
	assert.Empty(t, store.entries(4))
	assert.Zero(t, atomic.LoadInt32(&cache.calls))
}

func TestWorkflowServiceSendToCMD(t *testing.T) {
	users := newMemUsers().with(models.User{ID: "cmd-1", Role: models.RoleCMDAPSPDCL, FullName: "CMD SPDCL", IsActive: true})
	svc, store, _ := newWorkflowForTest(t, users)
	store.seed(&models.Petition{
		ID:                 5,
		Status:             models.StatusForwardedToPO,
		RequiresPermission: true,
		TargetCVO:          jurisdiction(models.JurisdictionAPSPDCL),
		Version:            5,
	})

	resp, err := svc.Execute(context.Background(), TransitionCommand{
		PetitionID: 5,
		Operation:  workflow.OpSendToCMD,
		Actor:      poActor,
		Payload:    workflow.Payload{EfileNo: "EO-5", Instructions: "Suspend lineman"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActionInstructed, resp.Petition.Status)
	assert.Equal(t, "cmd-1", resp.HandlerID)
	assert.Equal(t, "CMD SPDCL", resp.Handler)
	assert.Equal(t, "EO-5", store.head(5).Efile())
}

func TestWorkflowServiceVersionConflicts(t *testing.T) {
	svc, store, _ := newWorkflowForTest(t, newMemUsers())
	store.seed(&models.Petition{
		ID:                 6,
		Status:             models.StatusReceived,
		RequiresPermission: true,
		PermissionStatus:   models.PermissionPending,
		Version:            4,
	})
	ctx := context.Background()

	stale := int64(3)
	_, err := svc.Execute(ctx, TransitionCommand{PetitionID: 6, Operation: workflow.OpSendForPermission, Actor: poActor, ExpectedVersion: &stale})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrVersionConflict.Code, appErr.Code)
	assert.Equal(t, int64(4), appErr.Details["version"])
	assert.True(t, appErrors.IsRetryable(err))

	store.failCAS = true
	_, err = svc.Execute(ctx, TransitionCommand{PetitionID: 6, Operation: workflow.OpSendForPermission, Actor: poActor})
	require.Error(t, err)
	appErr = appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrVersionConflict.Code, appErr.Code)
	fresh, ok := appErr.Details["petition"].(*models.Petition)
	require.True(t, ok)
	assert.Equal(t, models.StatusReceived, fresh.Status)
	assert.Empty(t, store.entries(6))

	store.failCAS = false
	current := int64(4)
	resp, err := svc.Execute(ctx, TransitionCommand{PetitionID: 6, Operation: workflow.OpSendForPermission, Actor: poActor, ExpectedVersion: &current})
	require.NoError(t, err)
	assert.Equal(t, int64(5), resp.Version)
}

func TestWorkflowServiceRejections(t *testing.T) {
	svc, store, _ := newWorkflowForTest(t, newMemUsers())
	store.seed(&models.Petition{
		ID:                 7,
		Status:             models.StatusSentForPermission,
		RequiresPermission: true,
		PermissionStatus:   models.PermissionPending,
		TargetCVO:          jurisdiction(models.JurisdictionAPSPDCL),
		Version:            2,
	})

	tests := []struct {
		name string
		cmd  TransitionCommand
		code string
	}{
		{"unknown petition", TransitionCommand{PetitionID: 404, Operation: workflow.OpApprovePermission, Actor: poActor}, appErrors.ErrNotFound.Code},
		{"wrong role", TransitionCommand{PetitionID: 7, Operation: workflow.OpApprovePermission, Actor: inspectorActor, Payload: workflow.Payload{EnquiryType: models.EnquiryDetailed}}, appErrors.ErrForbidden.Code},
		{"wrong state", TransitionCommand{PetitionID: 7, Operation: workflow.OpGiveConclusion, Actor: poActor, Payload: workflow.Payload{Conclusion: "x", EfileNo: "EO-7"}}, appErrors.ErrInvalidState.Code},
		{"missing enquiry type", TransitionCommand{PetitionID: 7, Operation: workflow.OpApprovePermission, Actor: poActor}, appErrors.ErrInvalidPayload.Code},
		{"unknown operation", TransitionCommand{PetitionID: 7, Operation: "teleport", Actor: poActor}, appErrors.ErrNotFound.Code},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Execute(context.Background(), tc.cmd)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
	assert.Empty(t, store.entries(7))
	assert.Equal(t, int64(2), store.head(7).Version)
}

func TestWorkflowServiceAllowed(t *testing.T) {
	svc, _, _ := newWorkflowForTest(t, newMemUsers())
	head := &models.Petition{
		ID:                 8,
		Status:             models.StatusSentForPermission,
		RequiresPermission: true,
		TargetCVO:          jurisdiction(models.JurisdictionAPSPDCL),
		UpdatedAt:          time.Now(),
	}

	ops := svc.Allowed(head, poActor)
	assert.Contains(t, ops, string(workflow.OpApprovePermission))
	assert.Contains(t, ops, string(workflow.OpRejectPermission))
	assert.NotContains(t, ops, string(workflow.OpGiveConclusion))

	assert.Empty(t, svc.Allowed(head, inspectorActor))
}
