package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	return c, w
}

func TestNoContentReachesRecorder(t *testing.T) {
	c, w := newContext()
	NoContent(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestVersionedSetsETag(t *testing.T) {
	c, w := newContext()
	Versioned(c, http.StatusOK, 7, gin.H{"id": 1})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"7"`, w.Header().Get("ETag"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestErrorMarksConflictsRetryable(t *testing.T) {
	c, w := newContext()
	Error(c, appErrors.WithDetails(appErrors.ErrVersionConflict, map[string]interface{}{"petition": 3}))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "0", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "VERSION_CONFLICT")
}
