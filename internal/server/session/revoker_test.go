package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevoker(t *testing.T) {
	r := NewMemoryRevoker()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti-1", now.Add(time.Hour)))
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, r.Revoke(ctx, "already-expired", now.Add(-time.Second)))
	revoked, err = r.IsRevoked(ctx, "already-expired")
	require.NoError(t, err)
	assert.False(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "revocation lapses with the token")
	assert.Empty(t, r.revoked)
}

func setupRedis(t *testing.T) (*RedisRevoker, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	r, err := NewRedisRevoker(context.Background(), "redis://"+s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, s
}

func TestRedisRevoker_RevokeAndExpire(t *testing.T) {
	r, s := setupRedis(t)
	ctx := context.Background()

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, s.Exists("revoked:jti-1"))

	s.FastForward(2 * time.Minute)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevoker_SkipsExpiredTokens(t *testing.T) {
	r, s := setupRedis(t)

	require.NoError(t, r.Revoke(context.Background(), "old", time.Now().Add(-time.Minute)))
	assert.False(t, s.Exists("revoked:old"))
}

func TestNewRedisRevoker_BadURL(t *testing.T) {
	_, err := NewRedisRevoker(context.Background(), "http://not-redis")
	require.Error(t, err)
}

func TestNewRedisRevoker_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	_, err := NewRedisRevoker(context.Background(), "redis://"+addr)
	require.Error(t, err)
}

func TestRedisRevoker_ServerDown(t *testing.T) {
	r, s := setupRedis(t)
	s.Close()

	_, err := r.IsRevoked(context.Background(), "jti")
	require.Error(t, err)
	require.Error(t, r.Revoke(context.Background(), "jti", time.Now().Add(time.Minute)))
}
