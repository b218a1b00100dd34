package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/proposalkeeper/internal/flagx"
	"github.com/dmitrijs2005/proposalkeeper/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Durations use
// timex.Duration so files may say "15m" or give integer nanoseconds.
// Zero values are treated as "not set" and do not override.
type FileConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http" yaml:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                   string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	StorageBackend              string         `json:"storage_backend" yaml:"storage_backend"`
	UploadDir                   string         `json:"upload_dir" yaml:"upload_dir"`
	MaxUploadSize               int64          `json:"max_upload_size" yaml:"max_upload_size"`
	S3AccessKey                 string         `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey                 string         `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3Bucket                    string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region                    string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3Prefix                    string         `json:"s3_prefix" yaml:"s3_prefix"`
	RedisURL                    string         `json:"redis_url" yaml:"redis_url"`
	PasswordHashCost            int            `json:"password_hash_cost" yaml:"password_hash_cost"`
	LogLevel                    string         `json:"log_level" yaml:"log_level"`
	RunMigrations               *bool          `json:"run_migrations" yaml:"run_migrations"`
}

// parseFile loads the file named by -c/-config, if any. Files ending in
// .yaml or .yml are decoded as YAML, anything else as JSON. A file that
// cannot be read or decoded panics.
func parseFile(config *Config) {
	path := flagx.ConfigFileFromArgs()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc, err := decodeFile(path, data)
	if err != nil {
		panic(err)
	}

	fc.applyTo(config)
}

func decodeFile(path string, data []byte) (*FileConfig, error) {
	fc := &FileConfig{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, fc); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, fc); err != nil {
			return nil, err
		}
	}

	return fc, nil
}

func (fc *FileConfig) applyTo(config *Config) {
	setString(&config.EndpointAddrHTTP, fc.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, fc.DatabaseDSN)
	setString(&config.SecretKey, fc.SecretKey)
	if fc.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = fc.AccessTokenValidityDuration.Duration
	}
	setString(&config.StorageBackend, fc.StorageBackend)
	setString(&config.UploadDir, fc.UploadDir)
	if fc.MaxUploadSize != 0 {
		config.MaxUploadSize = fc.MaxUploadSize
	}
	setString(&config.S3AccessKey, fc.S3AccessKey)
	setString(&config.S3SecretKey, fc.S3SecretKey)
	setString(&config.S3Bucket, fc.S3Bucket)
	setString(&config.S3Region, fc.S3Region)
	setString(&config.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&config.S3Prefix, fc.S3Prefix)
	setString(&config.RedisURL, fc.RedisURL)
	if fc.PasswordHashCost != 0 {
		config.PasswordHashCost = fc.PasswordHashCost
	}
	setString(&config.LogLevel, fc.LogLevel)
	if fc.RunMigrations != nil {
		config.RunMigrations = *fc.RunMigrations
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
