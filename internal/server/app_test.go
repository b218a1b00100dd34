package server

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/attachments"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/config"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlobStore(t *testing.T) {
	ctx := context.Background()

	dir := t.TempDir()
	store, err := newBlobStore(ctx, &config.Config{StorageBackend: config.StorageLocal, UploadDir: dir})
	require.NoError(t, err)
	local, ok := store.(*attachments.LocalStore)
	require.True(t, ok)
	assert.Equal(t, dir, local.Dir())

	store, err = newBlobStore(ctx, &config.Config{
		StorageBackend: config.StorageS3,
		S3Region:       "us-east-1",
		S3AccessKey:    "ak",
		S3SecretKey:    "sk",
		S3Bucket:       "proposals",
		S3BaseEndpoint: "http://127.0.0.1:9000",
	})
	require.NoError(t, err)
	assert.IsType(t, &attachments.S3Store{}, store)

	_, err = newBlobStore(ctx, &config.Config{StorageBackend: "ftp"})
	require.Error(t, err)
}

func TestNewRevoker(t *testing.T) {
	ctx := context.Background()

	r, closer, err := newRevoker(ctx, &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.IsType(t, &session.MemoryRevoker{}, r)

	s := miniredis.RunT(t)
	r, closer, err = newRevoker(ctx, &config.Config{RedisURL: "redis://" + s.Addr()})
	require.NoError(t, err)
	require.NotNil(t, closer)
	assert.IsType(t, &session.RedisRevoker{}, r)
	require.NoError(t, closer())

	_, _, err = newRevoker(ctx, &config.Config{RedisURL: "not a url"})
	require.Error(t, err)
}
