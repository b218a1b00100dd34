package services

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/proposalkeeper/internal/common"
	"github.com/dmitrijs2005/proposalkeeper/internal/dbx"
	"github.com/dmitrijs2005/proposalkeeper/internal/logging"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/attachments"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/repositories/proposals"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var errBoom = errors.New("boom")

// newTxDB returns an empty in-memory database. The fakes below ignore it;
// it only has to support Begin/Commit/Rollback for dbx.WithTx.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeUsersRepo struct {
	mu    sync.Mutex
	users map[string]models.User

	getErr    error
	createErr error
	updateErr error
	listErr   error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{users: map[string]models.User{}}
}

func (r *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	if _, ok := r.users[u.Email]; ok {
		return nil, common.ErrDuplicateUser
	}
	c := *u
	c.CreatedAt = time.Now().UTC()
	r.users[u.Email] = c
	return &c, nil
}

func (r *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *fakeUsersRepo) UpdatePassword(ctx context.Context, email, hash string, mustReset bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return false, r.updateErr
	}
	u, ok := r.users[email]
	if !ok {
		return false, nil
	}
	u.PasswordHash = hash
	u.MustResetPassword = mustReset
	r.users[email] = u
	return true, nil
}

func (r *fakeUsersRepo) List(ctx context.Context) ([]models.UserSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]models.UserSummary, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

type storedProposal struct {
	p   models.Proposal
	seq int
}

type fakeProposalsRepo struct {
	mu   sync.Mutex
	rows map[string]storedProposal
	seq  int

	createErr error
	updateErr error
	listErr   error
}

func newFakeProposalsRepo() *fakeProposalsRepo {
	return &fakeProposalsRepo{rows: map[string]storedProposal{}}
}

func (r *fakeProposalsRepo) Create(ctx context.Context, p *models.Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if !p.Status.IsValid() {
		return common.ErrorIncorrectStatus
	}
	r.seq++
	r.rows[p.ID] = storedProposal{p: *p, seq: r.seq}
	return nil
}

func (r *fakeProposalsRepo) GetByID(ctx context.Context, id string) (*models.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	p := row.p
	return &p, nil
}

func (r *fakeProposalsRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.Proposal, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeProposalsRepo) Update(ctx context.Context, p *models.Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	row, ok := r.rows[p.ID]
	if !ok {
		return common.ErrorNotFound
	}
	row.p = *p
	r.rows[p.ID] = row
	return nil
}

func (r *fakeProposalsRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeProposalsRepo) list(filter func(models.Proposal) bool) []*models.Proposal {
	rows := make([]storedProposal, 0, len(r.rows))
	for _, row := range r.rows {
		if filter(row.p) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].p.CreatedAt.Equal(rows[j].p.CreatedAt) {
			return rows[i].p.CreatedAt.After(rows[j].p.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]*models.Proposal, 0, len(rows))
	for _, row := range rows {
		p := row.p
		out = append(out, &p)
	}
	return out
}

func (r *fakeProposalsRepo) ListByUser(ctx context.Context, email string) ([]*models.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.list(func(p models.Proposal) bool { return p.UserEmail == email }), nil
}

func (r *fakeProposalsRepo) ListAll(ctx context.Context) ([]*models.Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.list(func(models.Proposal) bool { return true }), nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	p *fakeProposalsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), p: newFakeProposalsRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return m.u }
func (m *fakeRepoManager) Proposals(dbx.DBTX) proposals.Repository     { return m.p }

// addUser stores a user directly, bypassing hashing.
func (m *fakeRepoManager) addUser(email string, admin bool) {
	m.u.users[email] = models.User{Email: email, PasswordHash: "x", IsAdmin: admin, CreatedAt: time.Now().UTC()}
}

type proposalFixture struct {
	svc     *ProposalService
	rm      *fakeRepoManager
	docs    *attachments.Manager
	dir     string
	clock   time.Time
	advance time.Duration
}

const (
	alice = "alice@example.com"
	bob   = "bob@example.com"
	admin = "admin@example.com"
)

func newProposalFixture(t *testing.T) *proposalFixture {
	t.Helper()

	dir := t.TempDir()
	store, err := attachments.NewLocalStore(dir)
	require.NoError(t, err)

	rm := newFakeRepoManager()
	rm.addUser(alice, false)
	rm.addUser(bob, false)
	rm.addUser(admin, true)

	docs := attachments.NewManager(store, 2<<20, logging.Nop{}, nil)

	f := &proposalFixture{
		rm:      rm,
		docs:    docs,
		dir:     dir,
		clock:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		advance: time.Second,
	}
	f.svc = NewProposalService(newTxDB(t), rm, docs, logging.Nop{}, nil)
	f.svc.now = func() time.Time {
		now := f.clock
		f.clock = f.clock.Add(f.advance)
		return now
	}
	return f
}

func (f *proposalFixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func validFields() ProposalFields {
	return ProposalFields{
		FullName:    "Alice Kim",
		Email:       "alice.kim@lab.example.org",
		Affiliation: "Seoul National University",
		PhoneNumber: "+82 10 1234 5678",
		Title:       "Quantum sensing for soil moisture",
		Description: "A three year program.",
	}
}

func pdf(name string) *attachments.Upload {
	return &attachments.Upload{Name: name, Data: []byte("%PDF-1.7 " + name)}
}

func (f *proposalFixture) create(t *testing.T, owner string) *models.Proposal {
	t.Helper()
	p, err := f.svc.Create(context.Background(), owner, validFields(), pdf("plan.pdf"))
	require.NoError(t, err)
	return p
}
