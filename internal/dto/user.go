package dto

// SetSupervisorRequest maps an inspector to a CVO/DSP. An empty CVOID clears the mapping.
type SetSupervisorRequest struct {
	CVOID string `json:"cvo_id" validate:"omitempty,max=64"`
}

// UserListQuery binds GET /users query parameters.
type UserListQuery struct {
	Role      string `form:"role"`
	Active    *bool  `form:"active"`
	Search    string `form:"search"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
}
