package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	"github.com/noah-isme/vigilance-tracker-api/internal/workflow"
)

type directoryUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FirstActiveByRole(ctx context.Context, role models.UserRole) (*models.User, error)
	FindSupervisor(ctx context.Context, inspectorID string) (*models.User, error)
}

// RoleDirectory resolves workflow handlers from the users table.
type RoleDirectory struct {
	users directoryUserStore
}

var _ workflow.RoleDirectory = (*RoleDirectory)(nil)

// NewRoleDirectory constructs the database-backed directory.
func NewRoleDirectory(users directoryUserStore) *RoleDirectory {
	return &RoleDirectory{users: users}
}

// ActiveHolder returns the first active user holding role.
func (d *RoleDirectory) ActiveHolder(ctx context.Context, role models.UserRole) (*workflow.Holder, error) {
	user, err := d.users.FirstActiveByRole(ctx, role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workflow.ErrNoActiveHolder
		}
		return nil, fmt.Errorf("resolve %s: %w", role, err)
	}
	return holderFromUser(user), nil
}

// Supervisor returns the active CVO/DSP an inspector is mapped to.
func (d *RoleDirectory) Supervisor(ctx context.Context, inspectorID string) (*workflow.Holder, error) {
	user, err := d.users.FindSupervisor(ctx, inspectorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workflow.ErrNoActiveHolder
		}
		return nil, fmt.Errorf("resolve supervisor of %s: %w", inspectorID, err)
	}
	if !user.IsActive {
		return nil, workflow.ErrNoActiveHolder
	}
	return holderFromUser(user), nil
}

// Lookup returns any known user, active or not.
func (d *RoleDirectory) Lookup(ctx context.Context, userID string) (*workflow.Holder, error) {
	user, err := d.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workflow.ErrNoActiveHolder
		}
		return nil, fmt.Errorf("lookup user %s: %w", userID, err)
	}
	return holderFromUser(user), nil
}

func holderFromUser(u *models.User) *workflow.Holder {
	return &workflow.Holder{UserID: u.ID, Role: u.Role, FullName: u.FullName, Active: u.IsActive}
}
