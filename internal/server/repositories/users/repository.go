package users

import (
	"context"

	"github.com/avendale/dataroom/internal/server/models"
	"github.com/avendale/dataroom/internal/server/roles"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// UpdateRoleIf moves the user from one role to another in a single
	// conditional update, and reports whether a row changed. Used for the
	// viewer-to-buyer promotion after NDA signing; losing the race to a
	// concurrent promotion is not an error.
	UpdateRoleIf(ctx context.Context, userID string, from, to roles.Role) (bool, error)
}
