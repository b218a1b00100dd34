// Package services contains the server-side business logic: the
// authorization gate, the authentication flows (UserService) and the
// proposal lifecycle (ProposalService). Services take the session email
// explicitly on every call and return value snapshots.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/proposalkeeper/internal/common"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/repositories/repomanager"
)

// Gate answers authorization questions from the credential store.
type Gate struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewGate(db *sql.DB, m repomanager.RepositoryManager) *Gate {
	return &Gate{db: db, repomanager: m}
}

// IsAdmin reports whether email belongs to an admin. A user that no longer
// exists is simply not an admin.
func (g *Gate) IsAdmin(ctx context.Context, email string) (bool, error) {
	u, err := g.repomanager.Users(g.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", common.ErrStorageFailure, err)
	}
	return u.IsAdmin, nil
}

func (g *Gate) RequireAdmin(ctx context.Context, email string) error {
	ok, err := g.IsAdmin(ctx, email)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrForbidden
	}
	return nil
}

func (g *Gate) RequireOwner(email string, p *models.Proposal) error {
	if p.UserEmail != email {
		return common.ErrForbidden
	}
	return nil
}
