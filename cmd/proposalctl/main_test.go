package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/proposalkeeper/internal/server/config"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
)

type fakeOps struct {
	dsn      string
	migrated bool
	admins   map[string]string
	users    []models.UserSummary
	resetErr error
	closed   bool
}

func (f *fakeOps) Close() error { f.closed = true; return nil }

func (f *fakeOps) Migrate(context.Context) error { f.migrated = true; return nil }

func (f *fakeOps) EnsureAdmin(_ context.Context, email, password string) (bool, error) {
	if _, ok := f.admins[email]; ok {
		return false, nil
	}
	f.admins[email] = password
	return true, nil
}

func (f *fakeOps) ListUsers(context.Context) ([]models.UserSummary, error) { return f.users, nil }

func (f *fakeOps) ResetPassword(_ context.Context, email string) (string, error) {
	if f.resetErr != nil {
		return "", f.resetErr
	}
	return "Tmp" + email[:3], nil
}

func withFakeOps(t *testing.T) *fakeOps {
	t.Helper()
	f := &fakeOps{admins: map[string]string{}}
	orig := openOps
	openOps = func(_ context.Context, cfg *config.Config) (adminOps, error) {
		f.dsn = cfg.DatabaseDSN
		return f, nil
	}
	t.Cleanup(func() { openOps = orig })
	return f
}

func withPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	readPassword = func(int) ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no input")
		}
		a := answers[0]
		answers = answers[1:]
		return []byte(a), nil
	}
	t.Cleanup(func() { readPassword = orig })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	f := withFakeOps(t)

	out, err := run(t, "migrate", "--dsn", "postgres://flag/db")
	require.NoError(t, err)
	assert.True(t, f.migrated)
	assert.True(t, f.closed)
	assert.Equal(t, "postgres://flag/db", f.dsn)
	assert.Contains(t, out, "Migrations applied.")
}

func TestMigrate_DSNFromEnv(t *testing.T) {
	f := withFakeOps(t)
	t.Setenv("PROPOSALKEEPER_DATABASE_DSN", "postgres://env/db")

	_, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", f.dsn)
}

func TestSeedAdmin(t *testing.T) {
	f := withFakeOps(t)

	out, err := run(t, "seed-admin", "--email", "root@example.com", "--password", "s3cretpass")
	require.NoError(t, err)
	assert.Contains(t, out, "Admin root@example.com created.")
	assert.Equal(t, "s3cretpass", f.admins["root@example.com"])

	out, err = run(t, "seed-admin", "-e", "root@example.com", "-p", "other-pass")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
	assert.Equal(t, "s3cretpass", f.admins["root@example.com"])
}

func TestSeedAdmin_Prompt(t *testing.T) {
	f := withFakeOps(t)
	withPasswords(t, "typedpass", "typedpass")

	_, err := run(t, "seed-admin", "--email", "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, "typedpass", f.admins["root@example.com"])
}

func TestSeedAdmin_PromptMismatch(t *testing.T) {
	f := withFakeOps(t)
	withPasswords(t, "typedpass", "different")

	_, err := run(t, "seed-admin", "--email", "root@example.com")
	require.EqualError(t, err, "passwords do not match")
	assert.Empty(t, f.admins)
}

func TestSeedAdmin_MissingEmail(t *testing.T) {
	withFakeOps(t)

	_, err := run(t, "seed-admin", "--password", "whatever1")
	require.EqualError(t, err, "--email is required")
}

func TestListUsers(t *testing.T) {
	f := withFakeOps(t)
	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	origNow := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = origNow })

	f.users = []models.UserSummary{
		{Email: "admin@example.com", IsAdmin: true, CreatedAt: fixed.Add(-2 * time.Hour)},
		{Email: "alice@example.com", CreatedAt: fixed.Add(-3 * 24 * time.Hour)},
	}

	out, err := run(t, "list-users")
	require.NoError(t, err)

	want := "EMAIL              ROLE   CREATED\n" +
		"admin@example.com  admin  2 hours ago\n" +
		"alice@example.com  user   3 days ago\n" +
		"2 account(s)\n"
	assert.Equal(t, want, out)
}

func TestResetPassword(t *testing.T) {
	f := withFakeOps(t)

	out, err := run(t, "reset-password", "--email", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Temporary password for alice@example.com: Tmpali\n", out)

	f.resetErr = errors.New("not found")
	_, err = run(t, "reset-password", "--email", "bob@example.com")
	require.EqualError(t, err, "not found")

	_, err = run(t, "reset-password")
	require.EqualError(t, err, "--email is required")
}
