package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/dmitrijs2005/proposalkeeper/internal/logging"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/config"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/services"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/session"
)

type adminOps interface {
	io.Closer
	Migrate(ctx context.Context) error
	EnsureAdmin(ctx context.Context, email, password string) (bool, error)
	ListUsers(ctx context.Context) ([]models.UserSummary, error)
	ResetPassword(ctx context.Context, email string) (string, error)
}

var openOps = func(ctx context.Context, cfg *config.Config) (adminOps, error) {
	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	logger := logging.NewJSONLogger(io.Discard, cfg.LogLevel)

	return &dbOps{
		db:    db,
		rm:    rm,
		users: services.NewUserService(db, rm, cfg, session.NewMemoryRevoker(), logger, nil),
	}, nil
}

type dbOps struct {
	db    *sql.DB
	rm    repomanager.RepositoryManager
	users *services.UserService
}

func (o *dbOps) Close() error { return o.db.Close() }

func (o *dbOps) Migrate(ctx context.Context) error {
	return o.rm.RunMigrations(ctx, o.db)
}

func (o *dbOps) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	return o.users.EnsureAdmin(ctx, email, password)
}

func (o *dbOps) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	return o.rm.Users(o.db).List(ctx)
}

func (o *dbOps) ResetPassword(ctx context.Context, email string) (string, error) {
	return o.users.IssueTemporaryPassword(ctx, email)
}
