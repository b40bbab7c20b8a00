package workflow

import (
	"github.com/noah-isme/vigilance-tracker-api/internal/models"
)

// Operation names a workflow transition.
type Operation string

const (
	OpForwardToCVO              Operation = "forward_to_cvo"
	OpSendForPermission         Operation = "send_for_permission"
	OpSetEnquiryMode            Operation = "set_enquiry_mode"
	OpApprovePermission         Operation = "approve_permission"
	OpRejectPermission          Operation = "reject_permission"
	OpAssignToInspector         Operation = "assign_to_inspector"
	OpStartEnquiry              Operation = "start_enquiry"
	OpSubmitEnquiryReport       Operation = "submit_enquiry_report"
	OpCVOSendBackForReenquiry   Operation = "cvo_send_back_for_reenquiry"
	OpCVOAddComments            Operation = "cvo_add_comments"
	OpCVOUploadConsolidated     Operation = "cvo_upload_consolidated_report"
	OpCVORequestDetailedEnquiry Operation = "cvo_request_detailed_enquiry"
	OpPOSendBackForReenquiry    Operation = "po_send_back_for_reenquiry"
	OpGiveConclusion            Operation = "give_conclusion"
	OpSendToCMD                 Operation = "send_to_cmd"
	OpCMDSubmitActionReport     Operation = "cmd_submit_action_report"
	OpPOLodge                   Operation = "po_lodge"
	OpPODirectLodge             Operation = "po_direct_lodge"
	OpClose                     Operation = "close"
	OpUpdateEfileNo             Operation = "update_efile_no"
	OpUpdateEreceipt            Operation = "update_ereceipt"
)

// Ledger labels read back by aggregate views.
const (
	// LabelDirectAcknowledgement is the informational entry addressed to the PO on the direct enquiry path.
	LabelDirectAcknowledgement = "Direct Enquiry Acknowledgement Sent to PO (for E-Office File No)"
	LabelPermissionApproved    = "Permission Approved - Sent to CVO"
)

// Rule is one row of the transition table.
type Rule struct {
	Operation Operation
	Label     string
	Roles     []models.UserRole
	// From lists precondition states. AnyOpen admits every non-terminal state instead.
	From    []models.PetitionStatus
	AnyOpen bool
	// Guard is an extra precondition on the head, reported as an invalid state.
	Guard func(*models.Petition) bool
	// To lists the states the operation may produce. Empty means the status is unchanged.
	To       []models.PetitionStatus
	Validate func(*call) error
	Apply    func(*call) error
}

func (r *Rule) allows(role models.UserRole) bool {
	if role == models.RoleSuperAdmin {
		return true
	}
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// inScope confines CVO and CMD callers to their jurisdiction and inspectors to their assignments.
func (r *Rule) inScope(head *models.Petition, actor models.Actor) bool {
	switch {
	case actor.Role == models.RoleSuperAdmin:
		return true
	case actor.Role.IsCVO(), actor.Role.IsCMD():
		j, _ := actor.Role.Jurisdiction()
		return head.Target() == j
	case actor.Role == models.RoleInspector:
		return head.Inspector() == actor.UserID
	default:
		return true
	}
}

func (r *Rule) admits(head *models.Petition) bool {
	ok := false
	if r.AnyOpen {
		ok = !head.Status.Terminal()
	} else {
		for _, s := range r.From {
			if head.Status == s {
				ok = true
				break
			}
		}
	}
	if ok && r.Guard != nil {
		ok = r.Guard(head)
	}
	return ok
}

// sources expands the precondition into concrete states.
func (r *Rule) sources() []models.PetitionStatus {
	if !r.AnyOpen {
		return r.From
	}
	var out []models.PetitionStatus
	for _, s := range models.AllStatuses {
		if !s.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

var (
	dataEntry = []models.UserRole{models.RoleDataEntry}
	po        = []models.UserRole{models.RolePO}
	inspector = []models.UserRole{models.RoleInspector}
	cvo       = []models.UserRole{models.RoleCVOAPSPDCL, models.RoleCVOAPEPDCL, models.RoleCVOAPCPDCL, models.RoleDSP}
	cmd       = []models.UserRole{models.RoleCMDAPSPDCL, models.RoleCMDAPEPDCL, models.RoleCMDAPCPDCL, models.RoleCGMHRTransco}
)

func status(s ...models.PetitionStatus) []models.PetitionStatus { return s }

func buildTable(closeAfterRejection bool) (map[Operation]*Rule, []Operation) {
	closeFrom := status(models.StatusLodged)
	if closeAfterRejection {
		closeFrom = append(closeFrom, models.StatusPermissionRejected)
	}

	rules := []*Rule{
		{
			Operation: OpForwardToCVO,
			Label:     "Forwarded to CVO",
			Roles:     dataEntry,
			AnyOpen:   true,
			To:        status(models.StatusForwardedToCVO),
			Validate: func(c *call) error {
				if err := optional("Comments", c.p.Comments, MaxComments); err != nil {
					return err
				}
				return c.resolveTarget()
			},
			Apply: func(c *call) error {
				h, err := c.cvoFor(c.target)
				if err != nil {
					return err
				}
				c.next.TargetCVO = &c.target
				c.move(models.StatusForwardedToCVO, h, c.p.Comments)
				return nil
			},
		},
		{
			Operation: OpSendForPermission,
			Label:     "Sent for Permission to PO",
			Roles:     po,
			AnyOpen:   true,
			To:        status(models.StatusSentForPermission),
			Validate: func(c *call) error {
				return optional("Comments", c.p.Comments, MaxComments)
			},
			Apply: func(c *call) error {
				h, err := c.po()
				if err != nil {
					return err
				}
				c.next.RequiresPermission = true
				c.next.PermissionStatus = models.PermissionPending
				c.move(models.StatusSentForPermission, h, c.p.Comments)
				return nil
			},
		},
		{
			Operation: OpSetEnquiryMode,
			Label:     "Receipt Sent to PO for Permission",
			Roles:     cvo,
			From:      status(models.StatusForwardedToCVO),
			To:        status(models.StatusSentForPermission, models.StatusForwardedToCVO),
			Validate: func(c *call) error {
				if err := optional("Comments", c.p.Comments, MaxComments); err != nil {
					return err
				}
				switch c.p.Mode {
				case ModePermission:
					return nil
				case ModeDirect:
					if err := c.resolveEnquiry(true); err != nil {
						return err
					}
					return c.resolveTarget()
				default:
					return invalidPayload("Enquiry mode must be %q or %q.", ModeDirect, ModePermission)
				}
			},
			Apply: func(c *call) error {
				if c.p.Mode == ModePermission {
					h, err := c.po()
					if err != nil {
						return err
					}
					c.next.RequiresPermission = true
					c.next.PermissionStatus = models.PermissionPending
					c.move(models.StatusSentForPermission, h, c.p.Comments)
					return nil
				}
				h, err := c.cvoFor(c.target)
				if err != nil {
					return err
				}
				c.next.RequiresPermission = false
				c.next.PermissionStatus = models.PermissionNotRequired
				c.next.EnquiryType = &c.enquiry
				c.next.TargetCVO = &c.target
				c.record("Direct Enquiry Mode Selected", c.p.Comments, h, models.StatusForwardedToCVO)
				c.handler = h
				return nil
			},
		},
		{
			Operation: OpApprovePermission,
			Label:     LabelPermissionApproved,
			Roles:     po,
			From:      status(models.StatusSentForPermission),
			To:        status(models.StatusPermissionApproved),
			Validate: func(c *call) error {
				if err := optional("Comments", c.p.Comments, MaxComments); err != nil {
					return err
				}
				if err := c.resolveTarget(); err != nil {
					return err
				}
				if err := c.resolveEnquiry(true); err != nil {
					return err
				}
				return c.resolveEfile(c.required("efile_no"))
			},
			Apply: func(c *call) error {
				h, err := c.cvoFor(c.target)
				if err != nil {
					return err
				}
				c.next.PermissionStatus = models.PermissionApproved
				c.next.TargetCVO = &c.target
				c.next.EnquiryType = &c.enquiry
				c.next.EfileNo = strPtr(c.efile)
				c.move(models.StatusPermissionApproved, h, c.p.Comments)
				return nil
			},
		},
		{
			Operation: OpRejectPermission,
			Label:     "Permission Rejected",
			Roles:     po,
			From:      status(models.StatusSentForPermission),
			To:        status(models.StatusPermissionRejected),
			Validate: func(c *call) error {
				return field{label: "Rejection reason", value: c.p.Reason, max: MaxComments}.check(c.required("reason"))
			},
			Apply: func(c *call) error {
				c.next.PermissionStatus = models.PermissionRejected
				c.move(models.StatusPermissionRejected, c.self(), c.p.Reason)
				return nil
			},
		},
		{
			Operation: OpAssignToInspector,
			Label:     "Assigned to Inspector",
			Roles:     cvo,
			From:      status(models.StatusPermissionApproved, models.StatusForwardedToCVO),
			Guard: func(p *models.Petition) bool {
				if p.RequiresPermission {
					return p.Status == models.StatusPermissionApproved
				}
				return p.Status == models.StatusForwardedToCVO
			},
			To: status(models.StatusAssignedToInspector),
			Validate: func(c *call) error {
				if err := optional("Comments", c.p.Comments, MaxComments); err != nil {
					return err
				}
				if err := c.resolveEnquiry(!c.head.RequiresPermission); err != nil {
					return err
				}
				return c.checkInspector(c.p.InspectorID)
			},
			Apply: func(c *call) error {
				var poHolder *Holder
				if !c.head.RequiresPermission {
					h, err := c.po()
					if err != nil {
						return err
					}
					poHolder = h
				}
				if c.enquiry != "" {
					c.next.EnquiryType = &c.enquiry
				}
				c.next.AssignedInspectorID = strPtr(c.inspector.UserID)
				c.move(models.StatusAssignedToInspector, c.inspector, c.p.Comments)
				if poHolder != nil {
					c.record(LabelDirectAcknowledgement, "Direct enquiry assigned; E-Office File No to be updated by PO.", poHolder, models.StatusAssignedToInspector)
				}
				return nil
			},
		},
		{
			Operation: OpStartEnquiry,
			Label:     "Enquiry Started",
			Roles:     inspector,
			From:      status(models.StatusAssignedToInspector, models.StatusSentBackForReenquiry),
			To:        status(models.StatusEnquiryInProgress),
			Validate: func(c *call) error {
				return optional("Comments", c.p.Comments, MaxComments)
			},
			Apply: func(c *call) error {
				c.record(c.rule.Label, c.p.Comments, nil, models.StatusEnquiryInProgress)
				c.next.Status = models.StatusEnquiryInProgress
				return nil
			},
		},
		{
			Operation: OpSubmitEnquiryReport,
			Label:     "Enquiry Report Submitted",
			Roles:     inspector,
			From:      status(models.StatusAssignedToInspector, models.StatusSentBackForReenquiry, models.StatusEnquiryInProgress),
			To:        status(models.StatusEnquiryReportSubmitted),
			Validate: func(c *call) error {
				if err := required("Report text", c.p.ReportText, MaxReportText); err != nil {
					return err
				}
				if err := optional("Findings", c.p.Findings, MaxFindings); err != nil {
					return err
				}
				if err := (field{label: "Recommendation", value: c.p.Recommendation, max: MaxRecommendation}).check(c.required("recommendation")); err != nil {
					return err
				}
				if c.p.RequestDetailed && c.head.Enquiry() != models.EnquiryPreliminary {
					return invalidPayload("Detailed enquiry can only be requested on a preliminary enquiry.")
				}
				return c.verifyFile("Report file", c.required("report_file"))
			},
			Apply: func(c *call) error {
				inspectorID := c.head.Inspector()
				if inspectorID == "" && c.actor.Role == models.RoleInspector {
					inspectorID = c.actor.UserID
				}
				h, err := c.supervisorOrCVO(inspectorID)
				if err != nil {
					return err
				}
				c.report = &models.ReportChange{Insert: &models.EnquiryReport{
					PetitionID:        c.head.ID,
					SubmittedBy:       c.actor.UserID,
					ReportText:        c.p.ReportText,
					Findings:          strPtr(c.p.Findings),
					Recommendation:    strPtr(c.p.Recommendation),
					ReportFile:        strPtr(c.p.FileRef),
					DetailedRequested: c.p.RequestDetailed,
					CreatedAt:         c.at,
					UpdatedAt:         c.at,
				}}
				c.move(models.StatusEnquiryReportSubmitted, h, c.p.Comments)
				return nil
			},
		},
		{
			Operation: OpCVOSendBackForReenquiry,
			Label:     "Sent Back for Re-Enquiry",
			Roles:     cvo,
			From:      status(models.StatusEnquiryReportSubmitted),
			To:        status(models.StatusSentBackForReenquiry),
			Validate: func(c *call) error {
				if err := required("Reason", c.p.Reason, MaxComments); err != nil {
					return err
				}
				id := c.p.InspectorID
				if id == "" {
					id = c.head.Inspector()
				}
				return c.checkInspector(id)
			},
			Apply: func(c *call) error {
				c.next.AssignedInspectorID = strPtr(c.inspector.UserID)
				c.move(models.StatusSentBackForReenquiry, c.inspector, c.p.Reason)
				return nil
			},
		},
		{
			Operation: OpCVOAddComments,
			Label:     "CVO Comments Added - Forwarded to PO",
			Roles:     cvo,
			From:      status(models.StatusEnquiryReportSubmitted),
			To:        status(models.StatusForwardedToPO),
			Validate: func(c *call) error {
				if err := (field{label: "CVO comments", value: c.p.CVOComments, max: MaxCVOComments}).check(c.required("cvo_comments")); err != nil {
					return err
				}
				return c.verifyFile("Consolidated report", false)
			},
			Apply: func(c *call) error {
				h, err := c.po()
				if err != nil {
					return err
				}
				patch := c.reportPatch()
				patch.CVOComments = strPtr(c.p.CVOComments)
				patch.CVOConsolidatedReportFile = strPtr(c.p.FileRef)
				c.move(models.StatusForwardedToPO, h, c.p.CVOComments)
				return nil
			},
		},
		{
			Operation: OpCVOUploadConsolidated,
			Label:     "CVO/DSP Consolidated Report Uploaded",
			Roles:     cvo,
			From:      status(models.StatusEnquiryReportSubmitted),
			Validate: func(c *call) error {
				if err := optional("Comments", c.p.Comments, MaxComments); err != nil {
					return err
				}
				return c.verifyFile("Consolidated report", true)
			},
			Apply: func(c *call) error {
				c.reportPatch().CVOConsolidatedReportFile = strPtr(c.p.FileRef)
				c.record(c.rule.Label, c.p.Comments, nil, c.head.Status)
				return nil
			},
		},
		{
			Operation: OpCVORequestDetailedEnquiry,
			Label:     "Preliminary Enquiry Completed - Requested PO Permission for Detailed Enquiry",
			Roles:     cvo,
			AnyOpen:   true,
			Guard: func(p *models.Petition) bool {
				return p.Enquiry() == models.EnquiryPreliminary
			},
			To: status(models.StatusSentForPermission),
			Validate: func(c *call) error {
				return required("Comments", c.p.Comments, MaxComments)
			},
			Apply: func(c *call) error {
				h, err := c.po()
				if err != nil {
					return err
				}
				detailed := models.EnquiryDetailed
				c.next.EnquiryType = &detailed
				c.next.RequiresPermission = true
				c.next.PermissionStatus = models.PermissionPending
				c.move(models.StatusSentForPermission, h, c.p.Comments)
				return nil
			},
		},
		{
			Operation: OpPOSendBackForReenquiry,
			Label:     "Sent Back to CVO for Re-Enquiry",
			Roles:     po,
			From:      status(models.StatusForwardedToPO),
			To:        status(models.StatusPermissionApproved, models.StatusForwardedToCVO),
			Validate: func(c *call) error {
				if err := required("Reason", c.p.Reason, MaxComments); err != nil {
					return err
				}
				return c.resolveTarget()
			},
			Apply: func(c *call) error {
				h, err := c.cvoFor(c.target)
				if err != nil {
					return err
				}
				to := models.StatusForwardedToCVO
				if c.head.RequiresPermission {
					to = models.StatusPermissionApproved
				}
				c.move(to, h, c.p.Reason)
				return nil
			},
		},
		{
			Operation: OpGiveConclusion,
			Label:     "Final Conclusion Given - Petition Closed",
			Roles:     po,
			From:      status(models.StatusForwardedToPO),
			To:        status(models.StatusClosed),
			Validate: func(c *call) error {
				if err := required("Conclusion", c.p.Conclusion, MaxConclusion); err != nil {
					return err
				}
				if err := optional("Instructions", c.p.Instructions, MaxInstructions); err != nil {
					return err
				}
				if err := c.verifyFile("Conclusion file", false); err != nil {
					return err
				}
				return c.resolveEfile(true)
			},
			Apply: func(c *call) error {
				c.next.EfileNo = strPtr(c.efile)
				patch := c.reportPatch()
				patch.POConclusion = strPtr(c.p.Conclusion)
				patch.POInstructions = strPtr(c.p.Instructions)
				patch.ConclusionFile = strPtr(c.p.FileRef)
				c.move(models.StatusClosed, c.self(), c.p.Conclusion)
				return nil
			},
		},
		{
			Operation: OpSendToCMD,
			Label:     "Forwarded to CMD for Action",
			Roles:     po,
			From:      status(models.StatusForwardedToPO),
			To:        status(models.StatusActionInstructed),
			Validate: func(c *call) error {
				if err := (field{label: "Instructions", value: c.p.Instructions, max: MaxInstructions}).check(c.required("instructions")); err != nil {
					return err
				}
				if err := c.resolveEfile(c.required("efile_no")); err != nil {
					return err
				}
				return c.resolveTarget()
			},
			Apply: func(c *call) error {
				h, err := c.cmdFor(c.target)
				if err != nil {
					return err
				}
				c.next.EfileNo = strPtr(c.efile)
				c.reportPatch().POInstructions = strPtr(c.p.Instructions)
				c.move(models.StatusActionInstructed, h, c.p.Instructions)
				return nil
			},
		},
		{
			Operation: OpCMDSubmitActionReport,
			Label:     "Action Taken - Copy Sent to PO for Closure",
			Roles:     cmd,
			From:      status(models.StatusActionInstructed),
			To:        status(models.StatusActionTaken),
			Validate: func(c *call) error {
				if err := (field{label: "Action taken", value: c.p.ActionTaken, max: MaxActionTaken}).check(c.required("action_taken")); err != nil {
					return err
				}
				return c.verifyFile("Action report file", false)
			},
			Apply: func(c *call) error {
				h, err := c.po()
				if err != nil {
					return err
				}
				patch := c.reportPatch()
				patch.ActionTaken = strPtr(c.p.ActionTaken)
				patch.CMDActionReportFile = strPtr(c.p.FileRef)
				c.move(models.StatusActionTaken, h, c.p.ActionTaken)
				return nil
			},
		},
		lodgeRule(OpPOLodge, "Lodged by PO", models.StatusActionTaken),
		lodgeRule(OpPODirectLodge, "Direct Lodged by PO (No Enquiry/No Action Required)", models.StatusSentForPermission),
		{
			Operation: OpClose,
			Label:     "Petition Closed",
			Roles:     po,
			From:      closeFrom,
			To:        status(models.StatusClosed),
			Validate: func(c *call) error {
				return optional("Comments", c.p.Comments, MaxComments)
			},
			Apply: func(c *call) error {
				c.move(models.StatusClosed, c.self(), c.p.Comments)
				return nil
			},
		},
		{
			Operation: OpUpdateEfileNo,
			Label:     "E-Office File Number Updated",
			Roles:     po,
			From: status(models.StatusReceived, models.StatusForwardedToCVO,
				models.StatusAssignedToInspector, models.StatusEnquiryInProgress),
			Guard: func(p *models.Petition) bool { return !p.RequiresPermission },
			Validate: func(c *call) error {
				if c.head.Efile() != "" {
					return invalidPayload("E-Office File No is already set. Editing is not allowed.")
				}
				return c.resolveEfile(true)
			},
			Apply: func(c *call) error {
				c.next.EfileNo = strPtr(c.efile)
				c.record(c.rule.Label, "E-Office File No: "+c.efile, nil, c.head.Status)
				return nil
			},
		},
		{
			Operation: OpUpdateEreceipt,
			Label:     "E-Receipt Updated",
			Roles:     append([]models.UserRole{models.RoleDataEntry}, cvo...),
			AnyOpen:   true,
			Validate: func(c *call) error {
				if err := required("E-Receipt No", c.p.EreceiptNo, MaxEreceiptNo); err != nil {
					return err
				}
				return c.verifyFile("E-Receipt file", false)
			},
			Apply: func(c *call) error {
				c.next.EreceiptNo = strPtr(c.p.EreceiptNo)
				if c.p.FileRef != "" {
					c.next.EreceiptFile = strPtr(c.p.FileRef)
				}
				c.record(c.rule.Label, "E-Receipt No: "+c.p.EreceiptNo, nil, c.head.Status)
				return nil
			},
		},
	}

	table := make(map[Operation]*Rule, len(rules))
	order := make([]Operation, 0, len(rules))
	for _, r := range rules {
		table[r.Operation] = r
		order = append(order, r.Operation)
	}
	return table, order
}

func lodgeRule(op Operation, label string, from models.PetitionStatus) *Rule {
	return &Rule{
		Operation: op,
		Label:     label,
		Roles:     po,
		From:      status(from),
		To:        status(models.StatusLodged),
		Validate: func(c *call) error {
			if err := (field{label: "Remarks", value: c.p.Remarks, max: MaxComments}).check(c.required("remarks")); err != nil {
				return err
			}
			return c.resolveEfile(c.required("efile_no"))
		},
		Apply: func(c *call) error {
			c.next.EfileNo = strPtr(c.efile)
			c.move(models.StatusLodged, c.self(), c.p.Remarks)
			return nil
		},
	}
}

// Edges returns the state graph implied by the default transition table.
func Edges() map[models.PetitionStatus][]models.PetitionStatus {
	return NewEngine(nil).Edges()
}

// Edges returns, per source state, the states a single ledger entry may move to.
func (e *Engine) Edges() map[models.PetitionStatus][]models.PetitionStatus {
	seen := map[models.PetitionStatus]map[models.PetitionStatus]bool{}
	add := func(from, to models.PetitionStatus) {
		if seen[from] == nil {
			seen[from] = map[models.PetitionStatus]bool{}
		}
		seen[from][to] = true
	}
	for _, op := range e.order {
		r := e.table[op]
		for _, from := range r.sources() {
			if len(r.To) == 0 {
				add(from, from)
				continue
			}
			for _, to := range r.To {
				add(from, to)
			}
			// assign_to_inspector on the direct path writes a second entry that keeps the status.
			if r.Operation == OpAssignToInspector {
				add(models.StatusAssignedToInspector, models.StatusAssignedToInspector)
			}
		}
	}
	out := make(map[models.PetitionStatus][]models.PetitionStatus, len(seen))
	for _, from := range models.AllStatuses {
		for _, to := range models.AllStatuses {
			if seen[from][to] {
				out[from] = append(out[from], to)
			}
		}
	}
	return out
}
