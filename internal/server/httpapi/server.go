// Package httpapi is the HTTP binding of the proposal services: a chi router
// with JSON bodies, multipart document uploads and bearer-token sessions.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/proposalkeeper/internal/logging"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/attachments"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/services"
)

// UserAPI is what the handlers need from services.UserService.
type UserAPI interface {
	SignUp(ctx context.Context, email, password, confirm string) (*models.User, error)
	SignIn(ctx context.Context, email, password string) (*services.Session, error)
	IssueTemporaryPassword(ctx context.Context, email string) (string, error)
	ChangePassword(ctx context.Context, email, password, confirm string) error
	ListUsers(ctx context.Context, requester string) ([]models.UserSummary, error)
	SignOut(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (string, error)
}

// ProposalAPI is what the handlers need from services.ProposalService.
type ProposalAPI interface {
	Create(ctx context.Context, owner string, fields services.ProposalFields, upload *attachments.Upload) (*models.Proposal, error)
	Edit(ctx context.Context, id, requester string, fields services.ProposalFields, upload *attachments.Upload) (*models.Proposal, error)
	Delete(ctx context.Context, id, requester string) error
	Get(ctx context.Context, id, requester string) (*models.Proposal, error)
	ListForUser(ctx context.Context, email string) ([]*models.Proposal, error)
	ListAll(ctx context.Context, requester string) ([]*models.Proposal, error)
	SetStatus(ctx context.Context, id, requester string, status models.Status, reviewResults *string) (*models.Proposal, error)
	SetReviewResults(ctx context.Context, id, requester, text string) (*models.Proposal, error)
	AdminDelete(ctx context.Context, id, requester string) error
	OpenDocument(ctx context.Context, id, requester string) (*services.Document, error)
}

const shutdownTimeout = 10 * time.Second

type HTTPServer struct {
	address       string
	users         UserAPI
	proposals     ProposalAPI
	metrics       *metrics.Metrics
	logger        logging.Logger
	maxUploadSize int64
}

func NewHTTPServer(address string, l logging.Logger, us UserAPI, ps ProposalAPI, m *metrics.Metrics, maxUploadSize int64) *HTTPServer {
	if maxUploadSize <= 0 {
		maxUploadSize = attachments.DefaultMaxSize
	}
	return &HTTPServer{
		address:       address,
		users:         us,
		proposals:     ps,
		metrics:       m,
		logger:        l.With("module", "http_server"),
		maxUploadSize: maxUploadSize,
	}
}

// Handler builds the router.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.accessLog)

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignUp)
		r.Post("/signin", s.handleSignIn)
		r.Post("/temporary-password", s.handleTemporaryPassword)
		r.Post("/signout", s.handleSignOut)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/api/me/password", s.handleChangePassword)

		r.Route("/api/proposals", func(r chi.Router) {
			r.Get("/", s.handleListOwn)
			r.Post("/", s.handleCreate)
			r.Get("/stats", s.handleOwnStats)
			r.Get("/{id}", s.handleGet)
			r.Put("/{id}", s.handleEdit)
			r.Delete("/{id}", s.handleDelete)
			r.Get("/{id}/document", s.handleDocument)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Get("/proposals", s.handleListAll)
			r.Get("/proposals/stats", s.handleAllStats)
			r.Patch("/proposals/{id}/status", s.handleSetStatus)
			r.Put("/proposals/{id}/review", s.handleSetReview)
			r.Delete("/proposals/{id}", s.handleAdminDelete)
			r.Get("/users", s.handleListUsers)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
