package httpapi

import (
	"context"
	"io"
	"strings"

	"github.com/dmitrijs2005/proposalkeeper/internal/common"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/attachments"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/services"
)

// tokens maps bearer tokens to session emails.
var tokens = map[string]string{
	"alice-token": "alice@example.com",
	"admin-token": "admin@example.com",
}

type fakeUsers struct {
	signUp     func(email, password, confirm string) (*models.User, error)
	signIn     func(email, password string) (*services.Session, error)
	temp       func(email string) (string, error)
	change     func(email, password, confirm string) error
	listUsers  func(requester string) ([]models.UserSummary, error)
	signedOut  []string
	signOutErr error
}

func (f *fakeUsers) SignUp(_ context.Context, email, password, confirm string) (*models.User, error) {
	return f.signUp(email, password, confirm)
}

func (f *fakeUsers) SignIn(_ context.Context, email, password string) (*services.Session, error) {
	return f.signIn(email, password)
}

func (f *fakeUsers) IssueTemporaryPassword(_ context.Context, email string) (string, error) {
	return f.temp(email)
}

func (f *fakeUsers) ChangePassword(_ context.Context, email, password, confirm string) error {
	return f.change(email, password, confirm)
}

func (f *fakeUsers) ListUsers(_ context.Context, requester string) ([]models.UserSummary, error) {
	return f.listUsers(requester)
}

func (f *fakeUsers) SignOut(_ context.Context, token string) error {
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.signedOut = append(f.signedOut, token)
	return nil
}

func (f *fakeUsers) Authenticate(_ context.Context, token string) (string, error) {
	if token == "expired-token" {
		return "", common.ErrTokenExpired
	}
	email, ok := tokens[token]
	if !ok {
		return "", common.ErrInvalidToken
	}
	return email, nil
}

type createCall struct {
	owner  string
	fields services.ProposalFields
	upload *attachments.Upload
}

type fakeProposals struct {
	created   []createCall
	createErr error

	edited  []createCall
	editErr error

	deleteErr error
	deleted   []string

	list    []*models.Proposal
	listErr error

	statusCalls []setStatusRequest
	statusErr   error

	reviewText string

	adminDeleted []string

	doc    *services.Document
	docErr error
}

func (f *fakeProposals) Create(_ context.Context, owner string, fields services.ProposalFields, upload *attachments.Upload) (*models.Proposal, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, createCall{owner, fields, upload})
	return &models.Proposal{ID: "new-id", UserEmail: owner, Title: fields.Title, Status: models.StatusSubmitted}, nil
}

func (f *fakeProposals) Edit(_ context.Context, id, requester string, fields services.ProposalFields, upload *attachments.Upload) (*models.Proposal, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edited = append(f.edited, createCall{requester, fields, upload})
	return &models.Proposal{ID: id, UserEmail: requester, Title: fields.Title, Status: models.StatusSubmitted}, nil
}

func (f *fakeProposals) Delete(_ context.Context, id, requester string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeProposals) Get(_ context.Context, id, requester string) (*models.Proposal, error) {
	for _, p := range f.list {
		if p.ID == id {
			if p.UserEmail != requester && requester != "admin@example.com" {
				return nil, common.ErrForbidden
			}
			return p, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeProposals) ListForUser(_ context.Context, email string) ([]*models.Proposal, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Proposal
	for _, p := range f.list {
		if p.UserEmail == email {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProposals) ListAll(_ context.Context, requester string) ([]*models.Proposal, error) {
	if requester != "admin@example.com" {
		return nil, common.ErrForbidden
	}
	return f.list, f.listErr
}

func (f *fakeProposals) SetStatus(_ context.Context, id, requester string, status models.Status, reviewResults *string) (*models.Proposal, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	f.statusCalls = append(f.statusCalls, setStatusRequest{Status: string(status), ReviewResults: reviewResults})
	p := &models.Proposal{ID: id, Status: status}
	if reviewResults != nil {
		p.ReviewResults = *reviewResults
	}
	return p, nil
}

func (f *fakeProposals) SetReviewResults(_ context.Context, id, requester, text string) (*models.Proposal, error) {
	f.reviewText = text
	return &models.Proposal{ID: id, Status: models.StatusUnderReview, ReviewResults: text}, nil
}

func (f *fakeProposals) AdminDelete(_ context.Context, id, requester string) error {
	if requester != "admin@example.com" {
		return common.ErrForbidden
	}
	f.adminDeleted = append(f.adminDeleted, id)
	return nil
}

func (f *fakeProposals) OpenDocument(_ context.Context, id, requester string) (*services.Document, error) {
	if f.docErr != nil {
		return nil, f.docErr
	}
	return f.doc, nil
}

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}
