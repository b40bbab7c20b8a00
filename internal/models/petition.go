package models

import "time"

// PetitionStatus enumerates the workflow states a petition moves through.
type PetitionStatus string

const (
	StatusReceived               PetitionStatus = "received"
	StatusForwardedToCVO         PetitionStatus = "forwarded_to_cvo"
	StatusSentForPermission      PetitionStatus = "sent_for_permission"
	StatusPermissionApproved     PetitionStatus = "permission_approved"
	StatusPermissionRejected     PetitionStatus = "permission_rejected"
	StatusAssignedToInspector    PetitionStatus = "assigned_to_inspector"
	StatusSentBackForReenquiry   PetitionStatus = "sent_back_for_reenquiry"
	StatusEnquiryInProgress      PetitionStatus = "enquiry_in_progress"
	StatusEnquiryReportSubmitted PetitionStatus = "enquiry_report_submitted"
	StatusForwardedToPO          PetitionStatus = "forwarded_to_po"
	StatusActionInstructed       PetitionStatus = "action_instructed"
	StatusActionTaken            PetitionStatus = "action_taken"
	StatusLodged                 PetitionStatus = "lodged"
	StatusClosed                 PetitionStatus = "closed"

	// StatusForwardedToJMD is a legacy alias of forwarded_to_po. It is read and counted, never written.
	StatusForwardedToJMD PetitionStatus = "forwarded_to_jmd"
)

// AllStatuses lists the writable states in workflow order.
var AllStatuses = []PetitionStatus{
	StatusReceived, StatusForwardedToCVO, StatusSentForPermission, StatusPermissionApproved,
	StatusPermissionRejected, StatusAssignedToInspector, StatusSentBackForReenquiry,
	StatusEnquiryInProgress, StatusEnquiryReportSubmitted, StatusForwardedToPO,
	StatusActionInstructed, StatusActionTaken, StatusLodged, StatusClosed,
}

// Valid reports whether s is a known state, including the legacy alias.
func (s PetitionStatus) Valid() bool {
	if s == StatusForwardedToJMD {
		return true
	}
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further default transition leaves s.
func (s PetitionStatus) Terminal() bool {
	return s == StatusClosed || s == StatusPermissionRejected
}

// EnquiryType is the depth of the enquiry and selects the SLA deadline.
type EnquiryType string

const (
	EnquiryPreliminary EnquiryType = "preliminary"
	EnquiryDetailed    EnquiryType = "detailed"
)

// Valid reports whether t is a known enquiry type.
func (t EnquiryType) Valid() bool {
	return t == EnquiryPreliminary || t == EnquiryDetailed
}

// PermissionStatus tracks the PO permission gate.
type PermissionStatus string

const (
	PermissionNotRequired PermissionStatus = "not_required"
	PermissionPending     PermissionStatus = "pending"
	PermissionApproved    PermissionStatus = "approved"
	PermissionRejected    PermissionStatus = "rejected"
)

// Jurisdiction identifies the target office of a petition.
type Jurisdiction string

const (
	JurisdictionAPSPDCL      Jurisdiction = "apspdcl"
	JurisdictionAPEPDCL      Jurisdiction = "apepdcl"
	JurisdictionAPCPDCL      Jurisdiction = "apcpdcl"
	JurisdictionHeadquarters Jurisdiction = "headquarters"
)

// Valid reports whether j is a known jurisdiction.
func (j Jurisdiction) Valid() bool {
	_, ok := cvoRoleByJurisdiction[j]
	return ok
}

var (
	cvoRoleByJurisdiction = map[Jurisdiction]UserRole{
		JurisdictionAPSPDCL:      RoleCVOAPSPDCL,
		JurisdictionAPEPDCL:      RoleCVOAPEPDCL,
		JurisdictionAPCPDCL:      RoleCVOAPCPDCL,
		JurisdictionHeadquarters: RoleDSP,
	}
	cmdRoleByJurisdiction = map[Jurisdiction]UserRole{
		JurisdictionAPSPDCL:      RoleCMDAPSPDCL,
		JurisdictionAPEPDCL:      RoleCMDAPEPDCL,
		JurisdictionAPCPDCL:      RoleCMDAPCPDCL,
		JurisdictionHeadquarters: RoleCGMHRTransco,
	}
	cvoJurisdiction = invert(cvoRoleByJurisdiction)
	cmdJurisdiction = invert(cmdRoleByJurisdiction)
)

func invert(m map[Jurisdiction]UserRole) map[UserRole]Jurisdiction {
	out := make(map[UserRole]Jurisdiction, len(m))
	for j, r := range m {
		out[r] = j
	}
	return out
}

// CVORole returns the CVO (or DSP) role responsible for j.
func (j Jurisdiction) CVORole() (UserRole, bool) {
	r, ok := cvoRoleByJurisdiction[j]
	return r, ok
}

// CMDRole returns the CMD (or CGM HR) role responsible for j.
func (j Jurisdiction) CMDRole() (UserRole, bool) {
	r, ok := cmdRoleByJurisdiction[j]
	return r, ok
}

// Intake vocabularies.
const (
	ReceivedAtJMDOffice     = "jmd_office"
	ReceivedAtCVOTirupathi  = "cvo_apspdcl_tirupathi"
	ReceivedAtCVOVizag      = "cvo_apepdcl_vizag"
	ReceivedAtCVOVijayawada = "cvo_apcpdcl_vijayawada"

	SourceGovt = "govt"

	PermissionTypeDirect   = "direct_enquiry"
	PermissionTypeRequired = "permission_required"

	AnonymousPetitioner = "Anonymous"
)

var (
	PetitionTypes        = []string{"bribe", "harassment", "theft_of_materials", "adverse_news", "procedural_lapses", "other"}
	PetitionSources      = []string{"media", "public_individual", "govt", "sumoto"}
	GovtInstitutionTypes = []string{"aprc", "governor", "cs_energy_department", "cmd_aptransco", "cmo", "energy_department"}
	ReceivingOffices     = []string{ReceivedAtJMDOffice, ReceivedAtCVOTirupathi, ReceivedAtCVOVizag, ReceivedAtCVOVijayawada}
)

var officeCodes = map[string]string{
	ReceivedAtJMDOffice:     "PO",
	ReceivedAtCVOTirupathi:  "SPDCL",
	ReceivedAtCVOVizag:      "EPDCL",
	ReceivedAtCVOVijayawada: "CPDCL",
}

// OfficeCode returns the serial number office segment for a receiving office.
func OfficeCode(receivedAt string) string {
	if code, ok := officeCodes[receivedAt]; ok {
		return code
	}
	return "VIG"
}

// Petition is the mutable head of a complaint case. It changes only through workflow transitions.
type Petition struct {
	ID                  int64            `db:"id" json:"id"`
	SNo                 string           `db:"sno" json:"sno"`
	PetitionerName      string           `db:"petitioner_name" json:"petitioner_name"`
	Contact             *string          `db:"contact" json:"contact,omitempty"`
	Place               *string          `db:"place" json:"place,omitempty"`
	Subject             string           `db:"subject" json:"subject"`
	PetitionType        string           `db:"petition_type" json:"petition_type"`
	SourceOfPetition    string           `db:"source_of_petition" json:"source_of_petition"`
	GovtInstitutionType *string          `db:"govt_institution_type" json:"govt_institution_type,omitempty"`
	ReceivedAt          string           `db:"received_at" json:"received_at"`
	ReceivedDate        time.Time        `db:"received_date" json:"received_date"`
	Remarks             *string          `db:"remarks" json:"remarks,omitempty"`
	EreceiptNo          *string          `db:"ereceipt_no" json:"ereceipt_no,omitempty"`
	EreceiptFile        *string          `db:"ereceipt_file" json:"ereceipt_file,omitempty"`
	Status              PetitionStatus   `db:"status" json:"status"`
	EnquiryType         *EnquiryType     `db:"enquiry_type" json:"enquiry_type,omitempty"`
	RequiresPermission  bool             `db:"requires_permission" json:"requires_permission"`
	PermissionStatus    PermissionStatus `db:"permission_status" json:"permission_status"`
	EfileNo             *string          `db:"efile_no" json:"efile_no,omitempty"`
	TargetCVO           *Jurisdiction    `db:"target_cvo" json:"target_cvo,omitempty"`
	AssignedInspectorID *string          `db:"assigned_inspector_id" json:"assigned_inspector_id,omitempty"`
	CurrentHandlerID    *string          `db:"current_handler_id" json:"current_handler_id,omitempty"`
	Version             int64            `db:"version" json:"version"`
	CreatedBy           string           `db:"created_by" json:"created_by"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`

	CreatedByName *string `db:"created_by_name" json:"created_by_name,omitempty"`
	InspectorName *string `db:"inspector_name" json:"inspector_name,omitempty"`
	HandlerName   *string `db:"handler_name" json:"handler_name,omitempty"`
}

// Enquiry returns the enquiry type or an empty value when not yet decided.
func (p *Petition) Enquiry() EnquiryType {
	if p == nil || p.EnquiryType == nil {
		return ""
	}
	return *p.EnquiryType
}

// Target returns the target jurisdiction or an empty value.
func (p *Petition) Target() Jurisdiction {
	if p == nil || p.TargetCVO == nil {
		return ""
	}
	return *p.TargetCVO
}

// Efile returns the E-Office file number or an empty string.
func (p *Petition) Efile() string {
	if p == nil || p.EfileNo == nil {
		return ""
	}
	return *p.EfileNo
}

// Handler returns the current handler id or an empty string.
func (p *Petition) Handler() string {
	if p == nil || p.CurrentHandlerID == nil {
		return ""
	}
	return *p.CurrentHandlerID
}

// Inspector returns the assigned inspector id or an empty string.
func (p *Petition) Inspector() string {
	if p == nil || p.AssignedInspectorID == nil {
		return ""
	}
	return *p.AssignedInspectorID
}

// Clone returns a deep copy so callers can mutate the head without aliasing pointers.
func (p *Petition) Clone() *Petition {
	if p == nil {
		return nil
	}
	c := *p
	c.Contact = cloneString(p.Contact)
	c.Place = cloneString(p.Place)
	c.GovtInstitutionType = cloneString(p.GovtInstitutionType)
	c.Remarks = cloneString(p.Remarks)
	c.EreceiptNo = cloneString(p.EreceiptNo)
	c.EreceiptFile = cloneString(p.EreceiptFile)
	c.EfileNo = cloneString(p.EfileNo)
	c.AssignedInspectorID = cloneString(p.AssignedInspectorID)
	c.CurrentHandlerID = cloneString(p.CurrentHandlerID)
	c.CreatedByName = cloneString(p.CreatedByName)
	c.InspectorName = cloneString(p.InspectorName)
	c.HandlerName = cloneString(p.HandlerName)
	if p.EnquiryType != nil {
		v := *p.EnquiryType
		c.EnquiryType = &v
	}
	if p.TargetCVO != nil {
		v := *p.TargetCVO
		c.TargetCVO = &v
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Enquiry modes used by list filters.
const (
	ModeAll        = "all"
	ModeDirect     = "direct"
	ModePermission = "permission"
)

// Visibility describes whose view of the petition set is requested.
type Visibility struct {
	UserID string
	Role   UserRole
}

var poVisibleStatuses = map[PetitionStatus]struct{}{
	StatusForwardedToPO:     {},
	StatusForwardedToJMD:    {},
	StatusSentForPermission: {},
	StatusActionTaken:       {},
	StatusLodged:            {},
}

// Sees reports whether the caller may read p. It mirrors the SQL visibility filter used by listings.
func (v Visibility) Sees(p *Petition) bool {
	if p == nil {
		return false
	}
	switch {
	case v.Role == RoleSuperAdmin, v.Role == RoleDataEntry:
		return true
	case v.Role == RolePO:
		_, listed := poVisibleStatuses[p.Status]
		return listed || p.Handler() == v.UserID || !p.RequiresPermission
	case v.Role.IsCMD():
		j, _ := v.Role.Jurisdiction()
		return p.Target() == j && (p.Status == StatusActionInstructed || p.Status == StatusActionTaken)
	case v.Role.IsCVO():
		j, _ := v.Role.Jurisdiction()
		return p.Target() == j
	case v.Role == RoleInspector:
		return p.Inspector() == v.UserID
	default:
		return false
	}
}

// PetitionFilter captures listing criteria.
type PetitionFilter struct {
	Visibility Visibility
	Status     *PetitionStatus
	Mode       string
	Page       int
	PageSize   int
}
