package dto

import (
	"time"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
)

// CreatePetitionRequest is the intake payload of POST /petitions.
type CreatePetitionRequest struct {
	PetitionerName      string  `json:"petitioner_name" validate:"omitempty,max=255"`
	Contact             *string `json:"contact,omitempty" validate:"omitempty,max=50"`
	Place               *string `json:"place,omitempty" validate:"omitempty,max=255"`
	Subject             string  `json:"subject" validate:"required,max=5000"`
	PetitionType        string  `json:"petition_type" validate:"required,oneof=bribe harassment theft_of_materials adverse_news procedural_lapses other"`
	SourceOfPetition    string  `json:"source_of_petition" validate:"required,oneof=media public_individual govt sumoto"`
	GovtInstitutionType *string `json:"govt_institution_type,omitempty" validate:"omitempty,oneof=aprc governor cs_energy_department cmd_aptransco cmo energy_department"`
	ReceivedAt          string  `json:"received_at" validate:"required,oneof=jmd_office cvo_apspdcl_tirupathi cvo_apepdcl_vizag cvo_apcpdcl_vijayawada"`
	ReceivedDate        string  `json:"received_date" validate:"required,datetime=2006-01-02"`
	PermissionType      string  `json:"permission_type" validate:"omitempty,oneof=direct_enquiry permission_required"`
	TargetCVO           *string `json:"target_cvo,omitempty" validate:"omitempty,oneof=apspdcl apepdcl apcpdcl headquarters"`
	EnquiryType         *string `json:"enquiry_type,omitempty" validate:"omitempty,oneof=preliminary detailed"`
	Remarks             *string `json:"remarks,omitempty" validate:"omitempty,max=5000"`
	EreceiptNo          *string `json:"ereceipt_no,omitempty" validate:"omitempty,max=100"`
	EreceiptFile        *string `json:"ereceipt_file,omitempty"`
}

// PetitionDetail is a head with the operations the caller may attempt next.
type PetitionDetail struct {
	*models.Petition
	AllowedOperations []string `json:"allowed_operations"`
}

// TransitionResponse is returned by POST /petitions/:id/actions/:operation.
type TransitionResponse struct {
	Petition  *models.Petition `json:"petition"`
	Operation string           `json:"operation"`
	Action    string           `json:"action"`
	HandlerID string           `json:"handler_id,omitempty"`
	Handler   string           `json:"handler_name,omitempty"`
	Version   int64            `json:"version"`
}

// CreatePetitionResponse carries the created head and, when intake routing failed, why.
type CreatePetitionResponse struct {
	Petition     *models.Petition `json:"petition"`
	RoutingError string           `json:"-"`
}

// PetitionListQuery binds GET /petitions query parameters.
type PetitionListQuery struct {
	Status   string `form:"status"`
	Mode     string `form:"mode"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// FileUploadResponse describes a stored upload.
type FileUploadResponse struct {
	Token     string     `json:"file_ref"`
	Kind      string     `json:"kind"`
	Size      int64      `json:"size"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
