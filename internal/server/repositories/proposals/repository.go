package proposals

import (
	"context"

	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
)

// Repository is the proposal store. Lookups of a missing id return
// common.ErrorNotFound; listings are ordered by created_at, newest first.
type Repository interface {
	Create(ctx context.Context, p *models.Proposal) error
	GetByID(ctx context.Context, id string) (*models.Proposal, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*models.Proposal, error)
	// Update writes every mutable column of p.
	Update(ctx context.Context, p *models.Proposal) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, email string) ([]*models.Proposal, error)
	ListAll(ctx context.Context) ([]*models.Proposal, error)
}
