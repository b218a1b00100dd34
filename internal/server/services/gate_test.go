package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/proposalkeeper/internal/common"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	rm := newFakeRepoManager()
	rm.addUser(alice, false)
	rm.addUser(admin, true)
	g := NewGate(newTxDB(t), rm)
	ctx := context.Background()

	ok, err := g.IsAdmin(ctx, admin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.IsAdmin(ctx, alice)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.IsAdmin(ctx, "gone@example.com")
	require.NoError(t, err, "a vanished user is not an error")
	assert.False(t, ok)

	require.NoError(t, g.RequireAdmin(ctx, admin))
	require.ErrorIs(t, g.RequireAdmin(ctx, alice), common.ErrForbidden)

	p := &models.Proposal{UserEmail: alice}
	require.NoError(t, g.RequireOwner(alice, p))
	require.ErrorIs(t, g.RequireOwner(admin, p), common.ErrForbidden)
}

func TestGate_StorageError(t *testing.T) {
	rm := newFakeRepoManager()
	rm.u.getErr = errBoom
	g := NewGate(newTxDB(t), rm)

	_, err := g.IsAdmin(context.Background(), admin)
	require.ErrorIs(t, err, common.ErrStorageFailure)
	require.ErrorIs(t, g.RequireAdmin(context.Background(), admin), common.ErrStorageFailure)
}
