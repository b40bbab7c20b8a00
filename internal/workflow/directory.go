package workflow

import (
	"context"
	"errors"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
)

// ErrNoActiveHolder is returned by a RoleDirectory when nobody active holds the requested role.
var ErrNoActiveHolder = errors.New("no active role holder")

// Holder is a resolved user identity able to receive a petition.
type Holder struct {
	UserID   string
	Role     models.UserRole
	FullName string
	Active   bool
}

// RoleDirectory resolves who must act next. Implementations must be safe for concurrent use.
type RoleDirectory interface {
	// ActiveHolder returns the first active user holding role.
	ActiveHolder(ctx context.Context, role models.UserRole) (*Holder, error)
	// Supervisor returns the active CVO/DSP an inspector reports to.
	Supervisor(ctx context.Context, inspectorID string) (*Holder, error)
	// Lookup returns the user regardless of activity. Unknown ids yield ErrNoActiveHolder.
	Lookup(ctx context.Context, userID string) (*Holder, error)
}

// FileRefVerifier checks opaque file reference tokens issued by the upload service.
type FileRefVerifier interface {
	Verify(token string) error
}

type acceptAllFiles struct{}

func (acceptAllFiles) Verify(string) error { return nil }
