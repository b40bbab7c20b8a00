package workflow

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(newFixtureDirectory(), append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)
}

func plan(t *testing.T, e *Engine, p *models.Petition, op Operation, a models.Actor, payload Payload) (*Transition, error) {
	t.Helper()
	return e.Plan(context.Background(), p, Request{Operation: op, Actor: a, Payload: payload})
}

func TestPlanCheckOrder(t *testing.T) {
	e := newTestEngine()

	t.Run("role before state", func(t *testing.T) {
		_, err := plan(t, e, head(models.StatusClosed), OpApprovePermission, inspector1, Payload{})
		assert.ErrorIs(t, err, appErrors.ErrForbidden)
	})

	t.Run("scope before state", func(t *testing.T) {
		_, err := plan(t, e, head(models.StatusClosed), OpAssignToInspector, cvoEPDCL, Payload{})
		assert.ErrorIs(t, err, appErrors.ErrForbidden)
	})

	t.Run("state before payload", func(t *testing.T) {
		_, err := plan(t, e, head(models.StatusReceived), OpRejectPermission, poActor, Payload{})
		assert.ErrorIs(t, err, appErrors.ErrInvalidState)
	})

	t.Run("payload before handler", func(t *testing.T) {
		engine := NewEngine(newFixtureDirectory().without(models.RolePO))
		_, err := engine.Plan(context.Background(), head(models.StatusEnquiryReportSubmitted), Request{
			Operation: OpCVOAddComments, Actor: cvoSPDCL,
		})
		assert.ErrorIs(t, err, appErrors.ErrInvalidPayload)
	})

	t.Run("unknown operation", func(t *testing.T) {
		_, err := plan(t, e, head(models.StatusReceived), Operation("teleport"), superAdmin, Payload{})
		assert.ErrorIs(t, err, appErrors.ErrNotFound)
	})
}

func TestPlanScope(t *testing.T) {
	e := newTestEngine()

	_, err := plan(t, e, head(models.StatusAssignedToInspector, assignedTo("insp-2")), OpStartEnquiry, inspector1, Payload{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = plan(t, e, head(models.StatusActionInstructed, func(p *models.Petition) {
		hq := models.JurisdictionHeadquarters
		p.TargetCVO = &hq
	}), OpCMDSubmitActionReport, cmdSPDCL, Payload{ActionTaken: "done"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	tr, err := plan(t, e, head(models.StatusAssignedToInspector, assignedTo("insp-2")), OpStartEnquiry, superAdmin, Payload{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnquiryInProgress, tr.After.Status)
}

func TestForwardToCVO(t *testing.T) {
	e := newTestEngine()
	p := head(models.StatusReceived, func(p *models.Petition) { p.TargetCVO = nil })

	_, err := plan(t, e, p, OpForwardToCVO, deoActor, Payload{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload)

	tr, err := plan(t, e, p, OpForwardToCVO, deoActor, Payload{TargetCVO: "HEADQUARTERS", Comments: "urgent"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusForwardedToCVO, tr.After.Status)
	assert.Equal(t, models.JurisdictionHeadquarters, tr.After.Target())
	assert.Equal(t, "dsp-hq", tr.After.Handler())
	require.Len(t, tr.Entries, 1)
	entry := tr.Entries[0]
	assert.Equal(t, "Forwarded to CVO", entry.Action)
	assert.Equal(t, models.StatusReceived, *entry.StatusBefore)
	assert.Equal(t, models.RoleDSP, *entry.ToRole)
	assert.Equal(t, "urgent", *entry.Comments)
	assert.Equal(t, fixedNow, entry.CreatedAt)
	assert.Nil(t, p.TargetCVO, "input head must not be mutated")
}

func TestSetEnquiryMode(t *testing.T) {
	e := newTestEngine()
	p := head(models.StatusForwardedToCVO, direct)

	_, err := plan(t, e, p, OpSetEnquiryMode, cvoSPDCL, Payload{Mode: "sideways"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload)

	_, err = plan(t, e, p, OpSetEnquiryMode, cvoSPDCL, Payload{Mode: ModeDirect})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload, "direct mode needs an enquiry type")

	tr, err := plan(t, e, p, OpSetEnquiryMode, cvoSPDCL, Payload{Mode: ModeDirect, EnquiryType: models.EnquiryPreliminary})
	require.NoError(t, err)
	assert.Equal(t, models.StatusForwardedToCVO, tr.After.Status)
	assert.False(t, tr.After.RequiresPermission)
	assert.Equal(t, models.PermissionNotRequired, tr.After.PermissionStatus)
	assert.Equal(t, models.EnquiryPreliminary, tr.After.Enquiry())
	assert.Equal(t, "Direct Enquiry Mode Selected", tr.Entries[0].Action)
	assert.Equal(t, "cvo-spdcl", tr.After.Handler())

	tr, err = plan(t, e, p, OpSetEnquiryMode, cvoSPDCL, Payload{Mode: ModePermission})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSentForPermission, tr.After.Status)
	assert.True(t, tr.After.RequiresPermission)
	assert.Equal(t, models.PermissionPending, tr.After.PermissionStatus)
	assert.Equal(t, "po-1", tr.After.Handler())
	assert.Equal(t, "Receipt Sent to PO for Permission", tr.Label)
}

func TestApprovePermission(t *testing.T) {
	e := newTestEngine()
	p := head(models.StatusSentForPermission)

	_, err := plan(t, e, p, OpApprovePermission, poActor, Payload{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload)

	tr, err := plan(t, e, p, OpApprovePermission, poActor, Payload{EnquiryType: models.EnquiryDetailed, TargetCVO: models.JurisdictionAPEPDCL})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPermissionApproved, tr.After.Status)
	assert.Equal(t, models.PermissionApproved, tr.After.PermissionStatus)
	assert.Equal(t, "cvo-epdcl", tr.After.Handler())
	assert.Nil(t, tr.After.EfileNo)

	strict := newTestEngine(WithFieldRules(StaticFieldRules{RuleKey(OpApprovePermission, "efile_no"): true}))
	_, err = plan(t, strict, p, OpApprovePermission, poActor, Payload{EnquiryType: models.EnquiryDetailed})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload)

	_, err = plan(t, e, head(models.StatusSentForPermission, withEfile("EO-1")), OpApprovePermission, poActor,
		Payload{EnquiryType: models.EnquiryDetailed, EfileNo: "EO-2"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload)
}

func TestRejectPermissionIsTerminal(t *testing.T) {
	e := newTestEngine()
	tr, err := plan(t, e, head(models.StatusSentForPermission), OpRejectPermission, poActor, Payload{Reason: "not actionable"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPermissionRejected, tr.After.Status)
	assert.Equal(t, "po-1", tr.After.Handler())

	assert.Empty(t, e.Allowed(tr.After, superAdmin))
	_, err = plan(t, e, tr.After, OpClose, poActor, Payload{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)

	lenient := newTestEngine(WithCloseAfterRejection(true))
	assert.Equal(t, []Operation{OpClose}, lenient.Allowed(tr.After, poActor))
	closed, err := plan(t, lenient, tr.After, OpClose, poActor, Payload{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.After.Status)
}

func TestAssignToInspector(t *testing.T) {
	e := newTestEngine()

	t.Run("permission path", func(t *testing.T) {
		p := head(models.StatusPermissionApproved, withEnquiry(models.EnquiryPreliminary))
		tr, err := plan(t, e, p, OpAssignToInspector, cvoSPDCL, Payload{InspectorID: "insp-1"})
		require.NoError(t, err)
		require.Len(t, tr.Entries, 1)
		assert.Equal(t, "insp-1", tr.After.Handler())
		assert.Equal(t, "insp-1", tr.After.Inspector())
	})

	t.Run("direct path acknowledges the PO", func(t *testing.T) {
		p := head(models.StatusForwardedToCVO, direct, withEnquiry(models.EnquiryDetailed))
		tr, err := plan(t, e, p, OpAssignToInspector, cvoSPDCL, Payload{InspectorID: "insp-1"})
		require.NoError(t, err)
		require.Len(t, tr.Entries, 2)
		ack := tr.Entries[1]
		assert.Equal(t, LabelDirectAcknowledgement, ack.Action)
		assert.Equal(t, models.StatusAssignedToInspector, *ack.StatusBefore)
		assert.Equal(t, models.StatusAssignedToInspector, ack.StatusAfter)
		assert.Equal(t, "po-1", *ack.ToUserID)
		assert.Equal(t, "insp-1", tr.After.Handler())
	})

	t.Run("direct path without PO fails", func(t *testing.T) {
		engine := NewEngine(newFixtureDirectory().without(models.RolePO))
		p := head(models.StatusForwardedToCVO, direct, withEnquiry(models.EnquiryDetailed))
		_, err := engine.Plan(context.Background(), p, Request{Operation: OpAssignToInspector, Actor: cvoSPDCL, Payload: Payload{InspectorID: "insp-1"}})
		assert.ErrorIs(t, err, appErrors.ErrNoHandler)
	})

	t.Run("direct path needs enquiry type", func(t *testing.T) {
		p := head(models.StatusForwardedToCVO, direct)
		_, err := plan(t, e, p, OpAssignToInspector, cvoSPDCL, Payload{InspectorID: "insp-1"})
		assert.ErrorIs(t, err, appErrors.ErrInvalidPayload)
	})

	t.Run("permission path refuses forwarded head", func(t *testing.T) {
		_, err := plan(t, e, head(models.StatusForwardedToCVO), OpAssignToInspector, cvoSPDCL, Payload{InspectorID: "insp-1"})
		assert.ErrorIs(t, err, appErrors.ErrInvalidState)
	})

	t.Run("inspector checks", func(t *testing.T) {
		p := head(models.StatusPermissionApproved, withEnquiry(models.EnquiryPreliminary))
		for _, id := range []string{"", "ghost", "po-1", "insp-off", "insp-2"} {
			_, err := plan(t, e, p, OpAssignToInspector, cvoSPDCL, Payload{InspectorID: id})
			assert.ErrorIs(t, err, appErrors.ErrInvalidPayload, id)
		}
		tr, err := plan(t, e, p, OpAssignToInspector, superAdmin, Payload{InspectorID: "insp-2"})
		require.NoError(t, err, "super admin may assign unmapped inspectors")
		assert.Equal(t, "insp-2", tr.After.Inspector())
	})
}

func TestSubmitEnquiryReport(t *testing.T) {
	e := newTestEngine()
	p := head(models.StatusAssignedToInspector, assignedTo("insp-1"), withEnquiry(models.EnquiryDetailed))

	_, err := plan(t, e, p, OpSubmitEnquiryReport, inspector1, Payload{ReportText: "text"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload, "recommendation is required by default")

	_, err = plan(t, e, p, OpSubmitEnquiryReport, inspector1, Payload{ReportText: "text", Recommendation: "act", RequestDetailed: true})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload, "detailed already")

	tr, err := plan(t, e, p, OpSubmitEnquiryReport, inspector1, Payload{ReportText: "text", Recommendation: "act", Findings: "f"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnquiryReportSubmitted, tr.After.Status)
	assert.Equal(t, "cvo-spdcl", tr.After.Handler())
	require.NotNil(t, tr.Report)
	require.NotNil(t, tr.Report.Insert)
	assert.Equal(t, "text", tr.Report.Insert.ReportText)
	assert.Equal(t, "insp-1", tr.Report.Insert.SubmittedBy)

	unmapped := head(models.StatusEnquiryInProgress, assignedTo("insp-2"), withEnquiry(models.EnquiryPreliminary))
	tr, err = plan(t, e, unmapped, OpSubmitEnquiryReport, actor("insp-2", models.RoleInspector),
		Payload{ReportText: "text", Recommendation: "act", RequestDetailed: true})
	require.NoError(t, err)
	assert.Equal(t, "cvo-spdcl", tr.After.Handler(), "falls back to the jurisdiction CVO")
	assert.True(t, tr.Report.Insert.DetailedRequested)
}

type rejectingFiles struct{}

func (rejectingFiles) Verify(string) error { return errors.New("bad signature") }

func TestFileReferencesAreVerified(t *testing.T) {
	e := newTestEngine(WithFileVerifier(rejectingFiles{}))
	_, err := plan(t, e, head(models.StatusEnquiryReportSubmitted), OpCVOUploadConsolidated, cvoSPDCL, Payload{FileRef: "forged"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload)

	_, err = plan(t, newTestEngine(), head(models.StatusEnquiryReportSubmitted), OpCVOUploadConsolidated, cvoSPDCL, Payload{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload)

	tr, err := plan(t, newTestEngine(), head(models.StatusEnquiryReportSubmitted), OpCVOUploadConsolidated, cvoSPDCL, Payload{FileRef: "tok"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnquiryReportSubmitted, tr.After.Status)
	assert.Equal(t, "tok", *tr.Report.CVOConsolidatedReportFile)
}

func TestSendToCMDWithoutHolder(t *testing.T) {
	e := NewEngine(newFixtureDirectory().without(models.RoleCMDAPSPDCL))
	p := head(models.StatusForwardedToPO, withEfile("EO-4"))
	_, err := e.Plan(context.Background(), p, Request{Operation: OpSendToCMD, Actor: poActor})
	assert.ErrorIs(t, err, appErrors.ErrNoHandler)
	assert.Equal(t, models.StatusForwardedToPO, p.Status)

	_, err = newTestEngine().Plan(context.Background(), head(models.StatusForwardedToPO), Request{Operation: OpSendToCMD, Actor: poActor})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload, "efile is required by default")
}

func TestPOSendBackTargets(t *testing.T) {
	e := newTestEngine()
	tr, err := plan(t, e, head(models.StatusForwardedToPO), OpPOSendBackForReenquiry, poActor, Payload{Reason: "thin"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPermissionApproved, tr.After.Status)

	tr, err = plan(t, e, head(models.StatusForwardedToPO, direct), OpPOSendBackForReenquiry, poActor, Payload{Reason: "thin"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusForwardedToCVO, tr.After.Status)
	assert.Equal(t, "cvo-spdcl", tr.After.Handler())
}

func TestRequestDetailedEnquiry(t *testing.T) {
	e := newTestEngine()
	_, err := plan(t, e, head(models.StatusEnquiryReportSubmitted, withEnquiry(models.EnquiryDetailed)), OpCVORequestDetailedEnquiry, cvoSPDCL, Payload{Comments: "go deeper"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)

	tr, err := plan(t, e, head(models.StatusEnquiryReportSubmitted, withEnquiry(models.EnquiryPreliminary)), OpCVORequestDetailedEnquiry, cvoSPDCL, Payload{Comments: "go deeper"})
	require.NoError(t, err)
	assert.Equal(t, models.EnquiryDetailed, tr.After.Enquiry())
	assert.Equal(t, models.StatusSentForPermission, tr.After.Status)
	assert.Equal(t, models.PermissionPending, tr.After.PermissionStatus)
}

func TestCVOSendBackForReenquiry(t *testing.T) {
	e := newTestEngine()
	p := head(models.StatusEnquiryReportSubmitted, assignedTo("insp-1"))

	_, err := plan(t, e, p, OpCVOSendBackForReenquiry, cvoSPDCL, Payload{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload, "reason is required")

	tr, err := plan(t, e, p, OpCVOSendBackForReenquiry, cvoSPDCL, Payload{Reason: "site visit missing"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSentBackForReenquiry, tr.After.Status)
	assert.Equal(t, "insp-1", tr.After.Handler())
	assert.Equal(t, "site visit missing", *tr.Entries[0].Comments)

	_, err = plan(t, e, p, OpCVOSendBackForReenquiry, cvoSPDCL, Payload{Reason: "r", InspectorID: "insp-2"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload, "insp-2 reports to no CVO")
}

func TestActionAndLodgePath(t *testing.T) {
	e := newTestEngine()

	_, err := plan(t, e, head(models.StatusActionInstructed), OpCMDSubmitActionReport, cmdSPDCL, Payload{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload)

	tr, err := plan(t, e, head(models.StatusActionInstructed), OpCMDSubmitActionReport, cmdSPDCL, Payload{ActionTaken: "Penalty collected", FileRef: "tok"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActionTaken, tr.After.Status)
	assert.Equal(t, "po-1", tr.After.Handler())
	assert.Equal(t, "Penalty collected", *tr.Report.ActionTaken)
	assert.Equal(t, "tok", *tr.Report.CMDActionReportFile)

	lodged, err := plan(t, e, tr.After, OpPOLodge, poActor, Payload{Remarks: "filed"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusLodged, lodged.After.Status)
	assert.Equal(t, "Lodged by PO", lodged.Entries[0].Action)
	assert.Nil(t, lodged.After.EfileNo)

	closed, err := plan(t, e, lodged.After, OpClose, poActor, Payload{Comments: "done"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, closed.After.Status)
	assert.Equal(t, "po-1", closed.After.Handler())
	assert.Empty(t, e.Allowed(closed.After, superAdmin))
}

func TestPODirectLodge(t *testing.T) {
	e := newTestEngine()
	tr, err := plan(t, e, head(models.StatusSentForPermission, withEfile("EO-3")), OpPODirectLodge, poActor, Payload{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusLodged, tr.After.Status)
	assert.Equal(t, "EO-3", tr.After.Efile(), "existing efile survives")

	strict := newTestEngine(WithFieldRules(StaticFieldRules{RuleKey(OpPODirectLodge, "remarks"): true}))
	_, err = plan(t, strict, head(models.StatusSentForPermission), OpPODirectLodge, poActor, Payload{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload)

	_, err = plan(t, e, head(models.StatusForwardedToPO), OpPODirectLodge, poActor, Payload{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestUpdateEreceipt(t *testing.T) {
	e := newTestEngine()
	p := head(models.StatusForwardedToCVO)

	_, err := plan(t, e, p, OpUpdateEreceipt, deoActor, Payload{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidPayload)

	tr, err := plan(t, e, p, OpUpdateEreceipt, cvoSPDCL, Payload{EreceiptNo: "ER-77", FileRef: "tok"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusForwardedToCVO, tr.After.Status)
	assert.Equal(t, "ER-77", *tr.After.EreceiptNo)
	assert.Equal(t, "tok", *tr.After.EreceiptFile)
	assert.Equal(t, models.StatusForwardedToCVO, tr.Entries[0].StatusAfter)

	_, err = plan(t, e, head(models.StatusClosed), OpUpdateEreceipt, deoActor, Payload{EreceiptNo: "ER-1"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)

	_, err = plan(t, e, p, OpUpdateEreceipt, poActor, Payload{EreceiptNo: "ER-1"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestUpdateEfileNo(t *testing.T) {
	e := newTestEngine()

	_, err := plan(t, e, head(models.StatusForwardedToCVO), OpUpdateEfileNo, poActor, Payload{EfileNo: "EO-9"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidState, "only on the direct path")

	_, err = plan(t, e, head(models.StatusEnquiryReportSubmitted, direct), OpUpdateEfileNo, poActor, Payload{EfileNo: "EO-9"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)

	p := head(models.StatusAssignedToInspector, direct)
	tr, err := plan(t, e, p, OpUpdateEfileNo, poActor, Payload{EfileNo: "EO-9"})
	require.NoError(t, err)
	assert.Equal(t, "EO-9", tr.After.Efile())
	assert.Equal(t, models.StatusAssignedToInspector, tr.Entries[0].StatusAfter)

	for _, again := range []string{"EO-10", "EO-9"} {
		_, err = plan(t, e, tr.After, OpUpdateEfileNo, poActor, Payload{EfileNo: again})
		assert.ErrorIs(t, err, appErrors.ErrInvalidPayload)
	}
	assert.Equal(t, "EO-9", tr.After.Efile())
}

func TestTrustedRequestSkipsRoleCheck(t *testing.T) {
	e := newTestEngine()
	p := head(models.StatusReceived)
	_, err := e.Plan(context.Background(), p, Request{Operation: OpSendForPermission, Actor: deoActor})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	tr, err := e.Plan(context.Background(), p, Request{Operation: OpSendForPermission, Actor: deoActor, Trusted: true})
	require.NoError(t, err)
	assert.Equal(t, models.RoleDataEntry, tr.Entries[0].FromRole)
	assert.Equal(t, "po-1", tr.After.Handler())
}

func TestEdgesCoverTable(t *testing.T) {
	edges := Edges()
	assert.NotContains(t, edges, models.StatusClosed)
	assert.NotContains(t, edges, models.StatusPermissionRejected)
	assert.Contains(t, edges[models.StatusForwardedToPO], models.StatusClosed)
	assert.Contains(t, edges[models.StatusForwardedToCVO], models.StatusForwardedToCVO)

	lenient := NewEngine(nil, WithCloseAfterRejection(true)).Edges()
	assert.Equal(t, []models.PetitionStatus{models.StatusClosed}, lenient[models.StatusPermissionRejected])
}

// TestRandomWalkProducesLegalLedgers drives the table with arbitrary legal operations and checks
// every ledger it produces is a path through the state graph ending at most once in closed.
func TestRandomWalkProducesLegalLedgers(t *testing.T) {
	e := newTestEngine()
	edges := map[models.PetitionStatus]map[models.PetitionStatus]bool{}
	for from, tos := range e.Edges() {
		edges[from] = map[models.PetitionStatus]bool{}
		for _, to := range tos {
			edges[from][to] = true
		}
	}

	rng := rand.New(rand.NewSource(20260504))
	for walk := 0; walk < 300; walk++ {
		p := head(models.StatusReceived, func(p *models.Petition) {
			p.TargetCVO = nil
			if rng.Intn(2) == 0 {
				direct(p)
			}
		})
		var ledger []models.TrackingEntry

		for step := 0; step < 40; step++ {
			ops := e.Allowed(p, superAdmin)
			if len(ops) == 0 {
				break
			}
			op := ops[rng.Intn(len(ops))]
			mode := ModeDirect
			if rng.Intn(2) == 0 {
				mode = ModePermission
			}
			tr, err := plan(t, e, p, op, superAdmin, Payload{
				Comments: "c", Reason: "r", TargetCVO: models.JurisdictionAPSPDCL, EnquiryType: models.EnquiryPreliminary,
				InspectorID: "insp-1", EfileNo: "EO-1", FileRef: "tok", ReportText: "report", Recommendation: "rec",
				CVOComments: "ok", Conclusion: "done", Instructions: "act", ActionTaken: "acted", Remarks: "fine",
				Mode: mode, EreceiptNo: "ER-1",
			})
			if err != nil {
				require.ErrorIs(t, err, appErrors.ErrInvalidPayload, "walk %d step %d op %s", walk, step, op)
				continue
			}
			require.Equal(t, p.Version, tr.After.Version)
			ledger = append(ledger, tr.Entries...)
			p = tr.After
			p.Version += int64(len(tr.Entries))
		}

		closedAt := -1
		for i, entry := range ledger {
			require.True(t, edges[*entry.StatusBefore][entry.StatusAfter], "illegal edge %s -> %s", *entry.StatusBefore, entry.StatusAfter)
			if i > 0 {
				require.Equal(t, ledger[i-1].StatusAfter, *entry.StatusBefore)
			}
			if entry.StatusAfter == models.StatusClosed {
				require.Equal(t, -1, closedAt, "closed twice")
				closedAt = i
			}
		}
		if closedAt >= 0 {
			assert.Equal(t, len(ledger)-1, closedAt)
		}
		if len(ledger) > 0 {
			assert.Equal(t, p.Status, ledger[len(ledger)-1].StatusAfter)
		}
	}
}
