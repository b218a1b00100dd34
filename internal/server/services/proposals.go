package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/proposalkeeper/internal/common"
	"github.com/dmitrijs2005/proposalkeeper/internal/dbx"
	"github.com/dmitrijs2005/proposalkeeper/internal/logging"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/attachments"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// DocumentStore is the part of attachments.Manager the lifecycle needs.
type DocumentStore interface {
	Store(ctx context.Context, originalName string, data []byte) (string, error)
	Delete(ctx context.Context, storedName string)
	Open(ctx context.Context, storedName string) (io.ReadCloser, error)
	DownloadURL(ctx context.Context, storedName string) (string, bool, error)
}

// ProposalFields are the applicant-editable fields of a proposal.
type ProposalFields struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Affiliation string `json:"affiliation"`
	PhoneNumber string `json:"phone_number"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (f ProposalFields) validate(verr *common.ValidationError) {
	checkRequired(verr, "full_name", f.FullName, "Full name is required.")
	checkEmail(verr, "email", f.Email)
	checkRequired(verr, "affiliation", f.Affiliation, "Affiliation is required.")
	checkRequired(verr, "phone_number", f.PhoneNumber, "Phone number is required.")
	checkRequired(verr, "title", f.Title, "Proposal title is required.")
	checkRequired(verr, "description", f.Description, "Description is required.")
}

func (f ProposalFields) applyTo(p *models.Proposal) {
	p.FullName = strings.TrimSpace(f.FullName)
	p.Email = strings.TrimSpace(f.Email)
	p.Affiliation = strings.TrimSpace(f.Affiliation)
	p.PhoneNumber = strings.TrimSpace(f.PhoneNumber)
	p.Title = strings.TrimSpace(f.Title)
	p.Description = strings.TrimSpace(f.Description)
}

// Document is a downloadable proposal file. Exactly one of Body and URL is
// set: URL when the blob store can presign, Body otherwise. The caller
// closes Body.
type Document struct {
	Name string
	Body io.ReadCloser
	URL  string
}

// ProposalService implements the proposal lifecycle: submission, owner
// edits and withdrawals while Submitted, and admin review.
type ProposalService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	gate        *Gate
	documents   DocumentStore
	logger      logging.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewProposalService(db *sql.DB, m repomanager.RepositoryManager, documents DocumentStore,
	logger logging.Logger, mx *metrics.Metrics) *ProposalService {
	return &ProposalService{
		db:          db,
		repomanager: m,
		gate:        NewGate(db, m),
		documents:   documents,
		logger:      logger.With("module", "proposals"),
		metrics:     mx,
		now:         time.Now,
	}
}

// Create submits a new proposal owned by owner. The document is stored
// before the fields are checked and removed again if anything later fails.
func (s *ProposalService) Create(ctx context.Context, owner string, fields ProposalFields, upload *attachments.Upload) (*models.Proposal, error) {
	if _, err := s.repomanager.Users(s.db).GetByEmail(ctx, owner); err != nil {
		return nil, s.fail(ctx, "lookup owner", err)
	}

	verr := common.NewValidationError()
	if upload == nil || upload.Name == "" {
		fields.validate(verr)
		verr.Add("proposal_file", "A proposal document is required.")
		return nil, verr
	}

	stored, err := s.documents.Store(ctx, upload.Name, upload.Data)
	if err != nil {
		return nil, err
	}

	fields.validate(verr)
	if err := verr.OrNil(); err != nil {
		s.documents.Delete(ctx, stored)
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	p := &models.Proposal{
		ID:           uuid.NewString(),
		UserEmail:    owner,
		ProposalFile: stored,
		Status:       models.StatusSubmitted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	fields.applyTo(p)

	if err := s.repomanager.Proposals(s.db).Create(ctx, p); err != nil {
		s.documents.Delete(ctx, stored)
		return nil, s.fail(ctx, "create proposal", err)
	}

	s.metrics.ProposalCreated()
	s.logger.Info(ctx, "proposal created", "id", p.ID, "owner", owner)
	return p, nil
}

// Edit replaces the applicant fields and, when upload is given, the
// document. Only the owner may edit, and only while the proposal is
// Submitted.
func (s *ProposalService) Edit(ctx context.Context, id, requester string, fields ProposalFields, upload *attachments.Upload) (*models.Proposal, error) {
	current, err := s.repomanager.Proposals(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "load proposal", err)
	}
	if err := s.checkOwnerEditable(requester, current); err != nil {
		return nil, err
	}

	var stored string
	if upload != nil && upload.Name != "" {
		stored, err = s.documents.Store(ctx, upload.Name, upload.Data)
		if err != nil {
			return nil, err
		}
	}

	verr := common.NewValidationError()
	fields.validate(verr)
	if err := verr.OrNil(); err != nil {
		s.documents.Delete(ctx, stored)
		return nil, err
	}

	var updated *models.Proposal
	var previousFile string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Proposals(tx)

		p, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkOwnerEditable(requester, p); err != nil {
			return err
		}

		previousFile = p.ProposalFile
		fields.applyTo(p)
		if stored != "" {
			p.ProposalFile = stored
		}
		p.UpdatedAt = s.nextTimestamp(p.UpdatedAt)

		if err := repo.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		s.documents.Delete(ctx, stored)
		return nil, s.fail(ctx, "edit proposal", err)
	}

	if stored != "" && previousFile != stored {
		s.documents.Delete(ctx, previousFile)
	}

	s.logger.Info(ctx, "proposal edited", "id", id, "file_replaced", stored != "")
	return updated, nil
}

// Delete withdraws a Submitted proposal on behalf of its owner.
func (s *ProposalService) Delete(ctx context.Context, id, requester string) error {
	var file string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Proposals(tx)

		p, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkOwnerEditable(requester, p); err != nil {
			return err
		}

		file = p.ProposalFile
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, "delete proposal", err)
	}

	s.documents.Delete(ctx, file)
	s.metrics.ProposalDeleted("owner")
	s.logger.Info(ctx, "proposal deleted", "id", id)
	return nil
}

// Get returns a proposal to its owner or to an admin.
func (s *ProposalService) Get(ctx context.Context, id, requester string) (*models.Proposal, error) {
	p, err := s.repomanager.Proposals(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "load proposal", err)
	}
	if err := s.checkCanView(ctx, requester, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListForUser returns the user's proposals, newest first.
func (s *ProposalService) ListForUser(ctx context.Context, email string) ([]*models.Proposal, error) {
	list, err := s.repomanager.Proposals(s.db).ListByUser(ctx, email)
	if err != nil {
		return nil, s.fail(ctx, "list proposals", err)
	}
	return list, nil
}

// ListAll returns every proposal, newest first. Admin only.
func (s *ProposalService) ListAll(ctx context.Context, requester string) ([]*models.Proposal, error) {
	if err := s.gate.RequireAdmin(ctx, requester); err != nil {
		return nil, err
	}
	list, err := s.repomanager.Proposals(s.db).ListAll(ctx)
	if err != nil {
		return nil, s.fail(ctx, "list proposals", err)
	}
	return list, nil
}

// SetStatus moves a proposal to status and, when reviewResults is non-nil,
// replaces the review text in the same write. Admin only.
func (s *ProposalService) SetStatus(ctx context.Context, id, requester string, status models.Status, reviewResults *string) (*models.Proposal, error) {
	if err := s.gate.RequireAdmin(ctx, requester); err != nil {
		return nil, err
	}
	if !status.IsValid() {
		verr := common.NewValidationError()
		verr.Add("status", "Invalid status.")
		return nil, verr
	}

	p, err := s.review(ctx, id, func(p *models.Proposal) error {
		if !p.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s to %s", common.ErrInvalidState, p.Status, status)
		}
		p.Status = status
		if reviewResults != nil {
			p.ReviewResults = *reviewResults
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StatusChanged(string(status))
	s.logger.Info(ctx, "proposal status changed", "id", id, "status", status, "by", requester)
	return p, nil
}

// SetReviewResults replaces the review text without touching the status.
// Admin only.
func (s *ProposalService) SetReviewResults(ctx context.Context, id, requester, text string) (*models.Proposal, error) {
	if err := s.gate.RequireAdmin(ctx, requester); err != nil {
		return nil, err
	}

	p, err := s.review(ctx, id, func(p *models.Proposal) error {
		p.ReviewResults = text
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "review results updated", "id", id, "by", requester)
	return p, nil
}

func (s *ProposalService) review(ctx context.Context, id string, mutate func(p *models.Proposal) error) (*models.Proposal, error) {
	var updated *models.Proposal
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Proposals(tx)

		p, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(p); err != nil {
			return err
		}
		p.UpdatedAt = s.nextTimestamp(p.UpdatedAt)

		if err := repo.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "review proposal", err)
	}
	return updated, nil
}

// AdminDelete removes any proposal regardless of status. Admin only.
func (s *ProposalService) AdminDelete(ctx context.Context, id, requester string) error {
	if err := s.gate.RequireAdmin(ctx, requester); err != nil {
		return err
	}

	var file string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Proposals(tx)

		p, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		file = p.ProposalFile
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, "delete proposal", err)
	}

	s.documents.Delete(ctx, file)
	s.metrics.ProposalDeleted("admin")
	s.logger.Info(ctx, "proposal deleted by admin", "id", id, "by", requester)
	return nil
}

// OpenDocument returns the proposal's document to its owner or an admin.
// A blob missing from storage surfaces here as common.ErrorNotFound.
func (s *ProposalService) OpenDocument(ctx context.Context, id, requester string) (*Document, error) {
	p, err := s.Get(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	if p.ProposalFile == "" {
		return nil, common.ErrorNotFound
	}

	url, ok, err := s.documents.DownloadURL(ctx, p.ProposalFile)
	if err != nil {
		return nil, err
	}
	if ok {
		return &Document{Name: p.ProposalFile, URL: url}, nil
	}

	body, err := s.documents.Open(ctx, p.ProposalFile)
	if err != nil {
		return nil, err
	}
	return &Document{Name: p.ProposalFile, Body: body}, nil
}

func (s *ProposalService) checkOwnerEditable(requester string, p *models.Proposal) error {
	if err := s.gate.RequireOwner(requester, p); err != nil {
		return err
	}
	if !p.Status.Editable() {
		return common.ErrInvalidState
	}
	return nil
}

func (s *ProposalService) checkCanView(ctx context.Context, requester string, p *models.Proposal) error {
	if s.gate.RequireOwner(requester, p) == nil {
		return nil
	}
	return s.gate.RequireAdmin(ctx, requester)
}

// nextTimestamp returns the current time, bumped past prev when the clock
// has not advanced, so every mutation moves UpdatedAt forward.
func (s *ProposalService) nextTimestamp(prev time.Time) time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

// fail passes domain errors through and turns anything else into
// common.ErrStorageFailure, logging the cause.
func (s *ProposalService) fail(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrForbidden),
		errors.Is(err, common.ErrInvalidState),
		errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrStorageFailure):
		return err
	}
	s.logger.Error(ctx, op+" failed", "error", err)
	return fmt.Errorf("%w: %s", common.ErrStorageFailure, op)
}
