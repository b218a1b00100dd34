package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_parseFile_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	want := func() *Config {
		c := defaults()
		c.EndpointAddrHTTP = "www.example:9000"
		c.DatabaseDSN = "proposals.db"
		c.SecretKey = "my_secret_key"
		c.AccessTokenValidityDuration = 45 * time.Minute
		c.StorageBackend = StorageS3
		c.MaxUploadSize = 1024
		c.S3Bucket = "bucket"
		c.S3Prefix = "docs/"
		c.RedisURL = "redis://localhost:6379/1"
		c.PasswordHashCost = 10
		c.RunMigrations = false
		return c
	}

	jsonPath := writeTempFile(t, "cfg.json", `{
		"endpoint_addr_http": "www.example:9000",
		"database_dsn": "proposals.db",
		"secret_key": "my_secret_key",
		"access_token_validity_duration": "45m",
		"storage_backend": "s3",
		"max_upload_size": 1024,
		"s3_bucket": "bucket",
		"s3_prefix": "docs/",
		"redis_url": "redis://localhost:6379/1",
		"password_hash_cost": 10,
		"run_migrations": false
	}`)

	yamlPath := writeTempFile(t, "cfg.yaml", `
endpoint_addr_http: www.example:9000
database_dsn: proposals.db
secret_key: my_secret_key
access_token_validity_duration: 2700000000000
storage_backend: s3
max_upload_size: 1024
s3_bucket: bucket
s3_prefix: docs/
redis_url: redis://localhost:6379/1
password_hash_cost: 10
run_migrations: false
`)

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", jsonPath}

		cfg := defaults()
		parseFile(cfg)
		assert.Empty(t, cmp.Diff(want(), cfg))
	})

	t.Run("loads from yaml", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", yamlPath}

		cfg := defaults()
		parseFile(cfg)
		assert.Empty(t, cmp.Diff(want(), cfg))
	})

	t.Run("no config flag leaves config untouched", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := defaults()
		parseFile(cfg)
		assert.Empty(t, cmp.Diff(defaults(), cfg))
	})

	t.Run("empty file keeps defaults", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", writeTempFile(t, "empty.json", `{}`)}

		cfg := defaults()
		parseFile(cfg)
		assert.Empty(t, cmp.Diff(defaults(), cfg))
	})
}

func Test_parseFile_Errors(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(t.TempDir(), "nope.json")}
		assert.Panics(t, func() { parseFile(&Config{}) })
	})

	t.Run("invalid json panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", writeTempFile(t, "bad.json", `{"secret_key":`)}
		assert.Panics(t, func() { parseFile(&Config{}) })
	})

	t.Run("invalid duration panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", writeTempFile(t, "bad.yml", "access_token_validity_duration: soon\n")}
		assert.Panics(t, func() { parseFile(&Config{}) })
	})
}
