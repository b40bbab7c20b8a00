package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vigilance-tracker-api/internal/dto"
	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/service"
	"github.com/noah-isme/vigilance-tracker-api/internal/workflow"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
	"github.com/noah-isme/vigilance-tracker-api/pkg/response"
)

type petitionService interface {
	Create(ctx context.Context, req dto.CreatePetitionRequest, actor models.Actor) (*dto.CreatePetitionResponse, error)
	Get(ctx context.Context, id int64, actor models.Actor) (*dto.PetitionDetail, error)
	List(ctx context.Context, q dto.PetitionListQuery, actor models.Actor) ([]models.Petition, *models.Pagination, error)
	Ledger(ctx context.Context, id int64, actor models.Actor) ([]models.TrackingEntry, error)
	Report(ctx context.Context, id int64, actor models.Actor) (*models.EnquiryReport, error)
}

type transitionExecutor interface {
	Execute(ctx context.Context, cmd service.TransitionCommand) (*dto.TransitionResponse, error)
}

type slaReader interface {
	Get(ctx context.Context, petitionID int64) (*models.SLAStatus, error)
}

// PetitionHandler exposes petition intake, reads and workflow actions.
type PetitionHandler struct {
	petitions petitionService
	workflow  transitionExecutor
	sla       slaReader
}

// NewPetitionHandler constructs the handler.
func NewPetitionHandler(petitions petitionService, workflow transitionExecutor, sla slaReader) *PetitionHandler {
	return &PetitionHandler{petitions: petitions, workflow: workflow, sla: sla}
}

// Create godoc
// @Summary Register a petition
// @Description Stores a new petition and routes it to the PO or the target CVO
// @Tags Petitions
// @Accept json
// @Produce json
// @Param payload body dto.CreatePetitionRequest true "Petition payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /petitions [post]
func (h *PetitionHandler) Create(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreatePetitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid petition payload"))
		return
	}
	res, err := h.petitions.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if res.RoutingError != "" {
		meta = map[string]interface{}{"routing_error": res.RoutingError}
	}
	response.Versioned(c, http.StatusCreated, res.Petition.Version, res.Petition, meta)
}

// List godoc
// @Summary List visible petitions
// @Tags Petitions
// @Produce json
// @Param status query string false "Status filter or all"
// @Param mode query string false "direct or permission"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /petitions [get]
func (h *PetitionHandler) List(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.PetitionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.petitions.List(c.Request.Context(), q, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get petition head
// @Description Returns the petition with its allowed operations. The ETag carries the version.
// @Tags Petitions
// @Produce json
// @Param id path int true "Petition ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /petitions/{id} [get]
func (h *PetitionHandler) Get(c *gin.Context) {
	actor, id, ok := h.resolve(c)
	if !ok {
		return
	}
	detail, err := h.petitions.Get(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Versioned(c, http.StatusOK, detail.Version, detail)
}

// Ledger godoc
// @Summary Petition ledger
// @Tags Petitions
// @Produce json
// @Param id path int true "Petition ID"
// @Success 200 {object} response.Envelope
// @Router /petitions/{id}/ledger [get]
func (h *PetitionHandler) Ledger(c *gin.Context) {
	actor, id, ok := h.resolve(c)
	if !ok {
		return
	}
	entries, err := h.petitions.Ledger(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Report godoc
// @Summary Latest enquiry report
// @Tags Petitions
// @Produce json
// @Param id path int true "Petition ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /petitions/{id}/report [get]
func (h *PetitionHandler) Report(c *gin.Context) {
	actor, id, ok := h.resolve(c)
	if !ok {
		return
	}
	report, err := h.petitions.Report(c.Request.Context(), id, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// SLA godoc
// @Summary Petition SLA bucket
// @Tags Petitions
// @Produce json
// @Param id path int true "Petition ID"
// @Success 200 {object} response.Envelope
// @Router /petitions/{id}/sla [get]
func (h *PetitionHandler) SLA(c *gin.Context) {
	actor, id, ok := h.resolve(c)
	if !ok {
		return
	}
	if !h.ensureVisible(c, id, actor) {
		return
	}
	status, err := h.sla.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Action godoc
// @Summary Apply a workflow operation
// @Description Runs one transition. Send If-Match with the version from the last ETag to fail fast on concurrent edits.
// @Tags Petitions
// @Accept json
// @Produce json
// @Param id path int true "Petition ID"
// @Param operation path string true "Operation name, e.g. approve_permission"
// @Param If-Match header string false "Expected petition version"
// @Param payload body workflow.Payload false "Operation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /petitions/{id}/actions/{operation} [post]
func (h *PetitionHandler) Action(c *gin.Context) {
	actor, id, ok := h.resolve(c)
	if !ok {
		return
	}
	expected, err := ifMatchVersion(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var payload workflow.Payload
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidPayload.Code, appErrors.ErrInvalidPayload.Status, "invalid action payload"))
			return
		}
	}
	op := workflow.Operation(strings.ToLower(strings.TrimSpace(c.Param("operation"))))

	res, err := h.workflow.Execute(c.Request.Context(), service.TransitionCommand{
		PetitionID:      id,
		Operation:       op,
		Actor:           actor,
		Payload:         payload,
		ExpectedVersion: expected,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Versioned(c, http.StatusOK, res.Version, res)
}

func (h *PetitionHandler) resolve(c *gin.Context) (models.Actor, int64, bool) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return models.Actor{}, 0, false
	}
	id, err := petitionIDParam(c)
	if err != nil {
		response.Error(c, err)
		return models.Actor{}, 0, false
	}
	return actor, id, true
}

// ensureVisible writes the lookup error unless actor may see the petition.
func (h *PetitionHandler) ensureVisible(c *gin.Context, id int64, actor models.Actor) bool {
	if _, err := h.petitions.Get(c.Request.Context(), id, actor); err != nil {
		response.Error(c, err)
		return false
	}
	return true
}
