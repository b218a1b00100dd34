package users

import (
	"context"

	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
)

// Repository is the credential store.
type Repository interface {
	// Create inserts a user; a taken email yields common.ErrDuplicateUser.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetByEmail returns common.ErrorNotFound when no such user exists.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdatePassword reports false when the email matched no row.
	UpdatePassword(ctx context.Context, email, passwordHash string, mustReset bool) (bool, error)
	// List returns every account, newest first.
	List(ctx context.Context) ([]models.UserSummary, error)
}
