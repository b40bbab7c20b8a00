package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vigilance-tracker-api/internal/dto"
	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
	"github.com/noah-isme/vigilance-tracker-api/pkg/response"
)

type fieldRuleService interface {
	List(ctx context.Context) ([]models.FieldRule, error)
	Update(ctx context.Context, key string, required bool, actor *models.JWTClaims) (*models.FieldRule, error)
	BulkUpdate(ctx context.Context, req dto.BulkUpdateFieldRulesRequest, actor *models.JWTClaims) ([]models.FieldRule, error)
}

// FieldRuleHandler exposes the requiredness toggles of workflow payload fields.
type FieldRuleHandler struct {
	service fieldRuleService
}

// NewFieldRuleHandler builds a new handler.
func NewFieldRuleHandler(service fieldRuleService) *FieldRuleHandler {
	return &FieldRuleHandler{service: service}
}

// List godoc
// @Summary List field rules
// @Tags FieldRules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /field-rules [get]
func (h *FieldRuleHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Update godoc
// @Summary Update a field rule
// @Tags FieldRules
// @Accept json
// @Produce json
// @Param key path string true "Rule key, e.g. send_to_cmd.efile_no"
// @Param payload body dto.UpdateFieldRuleRequest true "Rule payload"
// @Success 200 {object} response.Envelope
// @Router /field-rules/{key} [put]
func (h *FieldRuleHandler) Update(c *gin.Context) {
	var req dto.UpdateFieldRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid field rule payload"))
		return
	}
	if req.Key == "" {
		req.Key = c.Param("key")
	}
	if req.Key != c.Param("key") {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "key mismatch between path and body"))
		return
	}
	if req.Required == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "required is mandatory"))
		return
	}
	claims := claimsFromContext(c)
	item, err := h.service.Update(c.Request.Context(), req.Key, *req.Required, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// BulkUpdate godoc
// @Summary Bulk update field rules
// @Tags FieldRules
// @Accept json
// @Produce json
// @Param payload body dto.BulkUpdateFieldRulesRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /field-rules/bulk [put]
func (h *FieldRuleHandler) BulkUpdate(c *gin.Context) {
	var req dto.BulkUpdateFieldRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk payload"))
		return
	}
	claims := claimsFromContext(c)
	items, err := h.service.BulkUpdate(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
