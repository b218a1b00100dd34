// Package proposals implements the PostgreSQL proposal store.
package proposals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/proposalkeeper/internal/common"
	"github.com/dmitrijs2005/proposalkeeper/internal/dbx"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
)

const selectColumns = `id, user_email, full_name, email, affiliation, phone_number, title,
		 description, proposal_file, status, review_results, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (*models.Proposal, error) {
	p := &models.Proposal{}
	var status string
	err := row.Scan(&p.ID, &p.UserEmail, &p.FullName, &p.Email, &p.Affiliation, &p.PhoneNumber,
		&p.Title, &p.Description, &p.ProposalFile, &status, &p.ReviewResults, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = models.Status(status)
	if !p.Status.IsValid() {
		return nil, fmt.Errorf("%w: proposal %s has status %q", common.ErrorIncorrectStatus, p.ID, status)
	}
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Proposal) error {
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: status %q", common.ErrorIncorrectStatus, p.Status)
	}

	query :=
		`INSERT INTO proposals (id, user_email, full_name, email, affiliation, phone_number, title,
		 description, proposal_file, status, review_results, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 `

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.UserEmail, p.FullName, p.Email, p.Affiliation, p.PhoneNumber, p.Title,
		p.Description, p.ProposalFile, string(p.Status), p.ReviewResults, p.CreatedAt, p.UpdatedAt)

	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) get(ctx context.Context, query, id string) (*models.Proposal, error) {
	p, err := scanProposal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Proposal, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM proposals
		 WHERE id = $1
		 `
	return r.get(ctx, query, id)
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Proposal, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM proposals
		 WHERE id = $1
		 FOR UPDATE
		 `
	return r.get(ctx, query, id)
}

func (r *PostgresRepository) Update(ctx context.Context, p *models.Proposal) error {
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: status %q", common.ErrorIncorrectStatus, p.Status)
	}

	query :=
		`UPDATE proposals SET full_name = $2, email = $3, affiliation = $4, phone_number = $5,
		 title = $6, description = $7, proposal_file = $8, status = $9, review_results = $10,
		 updated_at = $11
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query,
		p.ID, p.FullName, p.Email, p.Affiliation, p.PhoneNumber, p.Title, p.Description,
		p.ProposalFile, string(p.Status), p.ReviewResults, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return expectOneRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query :=
		`DELETE FROM proposals
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return expectOneRow(res)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, email string) ([]*models.Proposal, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM proposals
		 WHERE user_email = $1
		 ORDER BY created_at DESC
		 `
	return r.list(ctx, query, email)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.Proposal, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM proposals
		 ORDER BY created_at DESC
		 `
	return r.list(ctx, query)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Proposal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
