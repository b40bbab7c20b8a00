package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin   UserRole = "super_admin"
	RoleDataEntry    UserRole = "data_entry"
	RolePO           UserRole = "po"
	RoleInspector    UserRole = "inspector"
	RoleDSP          UserRole = "dsp"
	RoleCVOAPSPDCL   UserRole = "cvo_apspdcl"
	RoleCVOAPEPDCL   UserRole = "cvo_apepdcl"
	RoleCVOAPCPDCL   UserRole = "cvo_apcpdcl"
	RoleCMDAPSPDCL   UserRole = "cmd_apspdcl"
	RoleCMDAPEPDCL   UserRole = "cmd_apepdcl"
	RoleCMDAPCPDCL   UserRole = "cmd_apcpdcl"
	RoleCGMHRTransco UserRole = "cgm_hr_transco"
)

// AllRoles lists every role accepted by the directory.
var AllRoles = []UserRole{
	RoleSuperAdmin, RoleDataEntry, RolePO, RoleInspector,
	RoleDSP, RoleCVOAPSPDCL, RoleCVOAPEPDCL, RoleCVOAPCPDCL,
	RoleCMDAPSPDCL, RoleCMDAPEPDCL, RoleCMDAPCPDCL, RoleCGMHRTransco,
}

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsCVO reports whether the role is a jurisdictional CVO or the headquarters DSP.
func (r UserRole) IsCVO() bool {
	_, ok := cvoJurisdiction[r]
	return ok
}

// IsCMD reports whether the role is a CMD office or CGM HR Transco.
func (r UserRole) IsCMD() bool {
	_, ok := cmdJurisdiction[r]
	return ok
}

// Jurisdiction returns the target office a CVO or CMD role covers.
func (r UserRole) Jurisdiction() (Jurisdiction, bool) {
	if j, ok := cvoJurisdiction[r]; ok {
		return j, true
	}
	j, ok := cmdJurisdiction[r]
	return j, ok
}

// User represents an application user stored in the users table.
type User struct {
	ID            string     `db:"id" json:"id"`
	Username      string     `db:"username" json:"username"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	FullName      string     `db:"full_name" json:"full_name"`
	Role          UserRole   `db:"role" json:"role"`
	CVOOffice     *string    `db:"cvo_office" json:"cvo_office,omitempty"`
	AssignedCVOID *string    `db:"assigned_cvo_id" json:"assigned_cvo_id,omitempty"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	Email         *string    `db:"email" json:"email,omitempty"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	LastLogin     *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role          *UserRole
	Active        *bool
	AssignedCVOID *string
	Search        string
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
