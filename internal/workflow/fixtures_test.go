package workflow

import (
	"context"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
)

type fixtureDirectory struct {
	users       []Holder
	supervisors map[string]string
}

func newFixtureDirectory() *fixtureDirectory {
	return &fixtureDirectory{
		users: []Holder{
			{UserID: "deo-1", Role: models.RoleDataEntry, FullName: "Data Entry", Active: true},
			{UserID: "po-1", Role: models.RolePO, FullName: "Permission Officer", Active: true},
			{UserID: "cvo-spdcl", Role: models.RoleCVOAPSPDCL, FullName: "CVO SPDCL", Active: true},
			{UserID: "cvo-epdcl", Role: models.RoleCVOAPEPDCL, FullName: "CVO EPDCL", Active: true},
			{UserID: "dsp-hq", Role: models.RoleDSP, FullName: "DSP HQ", Active: true},
			{UserID: "cmd-spdcl", Role: models.RoleCMDAPSPDCL, FullName: "CMD SPDCL", Active: true},
			{UserID: "insp-1", Role: models.RoleInspector, FullName: "Inspector One", Active: true},
			{UserID: "insp-2", Role: models.RoleInspector, FullName: "Inspector Two", Active: true},
			{UserID: "insp-off", Role: models.RoleInspector, FullName: "Retired Inspector", Active: false},
		},
		supervisors: map[string]string{"insp-1": "cvo-spdcl", "insp-off": "cvo-spdcl"},
	}
}

func (d *fixtureDirectory) without(role models.UserRole) *fixtureDirectory {
	out := &fixtureDirectory{supervisors: d.supervisors}
	for _, u := range d.users {
		if u.Role != role {
			out.users = append(out.users, u)
		}
	}
	return out
}

func (d *fixtureDirectory) ActiveHolder(_ context.Context, role models.UserRole) (*Holder, error) {
	for _, u := range d.users {
		if u.Role == role && u.Active {
			h := u
			return &h, nil
		}
	}
	return nil, ErrNoActiveHolder
}

func (d *fixtureDirectory) Supervisor(ctx context.Context, inspectorID string) (*Holder, error) {
	id, ok := d.supervisors[inspectorID]
	if !ok {
		return nil, ErrNoActiveHolder
	}
	h, err := d.Lookup(ctx, id)
	if err != nil || !h.Active {
		return nil, ErrNoActiveHolder
	}
	return h, nil
}

func (d *fixtureDirectory) Lookup(_ context.Context, userID string) (*Holder, error) {
	for _, u := range d.users {
		if u.UserID == userID {
			h := u
			return &h, nil
		}
	}
	return nil, ErrNoActiveHolder
}

func actor(id string, role models.UserRole) models.Actor {
	return models.Actor{UserID: id, Role: role}
}

var (
	superAdmin = actor("admin-1", models.RoleSuperAdmin)
	poActor    = actor("po-1", models.RolePO)
	cvoSPDCL   = actor("cvo-spdcl", models.RoleCVOAPSPDCL)
	cvoEPDCL   = actor("cvo-epdcl", models.RoleCVOAPEPDCL)
	inspector1 = actor("insp-1", models.RoleInspector)
	deoActor   = actor("deo-1", models.RoleDataEntry)
	cmdSPDCL   = actor("cmd-spdcl", models.RoleCMDAPSPDCL)
)

func head(status models.PetitionStatus, mutate ...func(*models.Petition)) *models.Petition {
	target := models.JurisdictionAPSPDCL
	p := &models.Petition{
		ID:                 42,
		SNo:                "VIG/PO/2026/0042",
		Status:             status,
		RequiresPermission: true,
		PermissionStatus:   models.PermissionPending,
		TargetCVO:          &target,
	}
	for _, m := range mutate {
		m(p)
	}
	return p
}

func withEnquiry(t models.EnquiryType) func(*models.Petition) {
	return func(p *models.Petition) { p.EnquiryType = &t }
}

func direct(p *models.Petition) {
	p.RequiresPermission = false
	p.PermissionStatus = models.PermissionNotRequired
}

func assignedTo(id string) func(*models.Petition) {
	return func(p *models.Petition) { p.AssignedInspectorID = &id }
}

func withEfile(v string) func(*models.Petition) {
	return func(p *models.Petition) { p.EfileNo = &v }
}
