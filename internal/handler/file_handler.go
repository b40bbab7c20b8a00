package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vigilance-tracker-api/internal/dto"
	"github.com/noah-isme/vigilance-tracker-api/internal/service"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
	"github.com/noah-isme/vigilance-tracker-api/pkg/response"
)

type fileService interface {
	Upload(ctx context.Context, kind, filename string, size int64, r io.Reader, ownerID string) (*dto.FileUploadResponse, error)
	Open(ctx context.Context, token string) (*service.StoredFile, error)
}

// FileHandler stores and serves petition attachments.
type FileHandler struct {
	files fileService
}

// NewFileHandler constructs the handler.
func NewFileHandler(files fileService) *FileHandler {
	return &FileHandler{files: files}
}

// Upload godoc
// @Summary Upload a PDF attachment
// @Description Returns a file_ref token accepted by workflow actions
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF file"
// @Param kind formData string false "Attachment kind, e.g. enquiry_report"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	src, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read uploaded file"))
		return
	}
	defer src.Close() //nolint:errcheck

	kind := strings.TrimSpace(c.PostForm("kind"))
	if kind == "" {
		kind = "general"
	}
	res, err := h.files.Upload(c.Request.Context(), kind, header.Filename, header.Size, src, actor.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Download godoc
// @Summary Download an attachment
// @Tags Files
// @Produce application/pdf
// @Param token path string true "file_ref token"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	stored, err := h.files.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer stored.File.Close() //nolint:errcheck

	info, err := stored.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to stat file"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", stored.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", stored.File, nil)
}
