package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/relaytale/internal/flagx"
	"github.com/dmitrijs2005/relaytale/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Pointer fields tell an
// absent key apart from a zero value so only keys present in the file
// override the current settings. Durations accept "10s" or nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP     *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC     *string         `json:"endpoint_addr_grpc"`
	DatabaseDriver       *string         `json:"database_driver"`
	DatabaseDSN          *string         `json:"database_dsn"`
	SecretKey            *string         `json:"secret_key"`
	AccessTokenCookie    *string         `json:"access_token_cookie"`
	CredentialKey        *string         `json:"credential_key"`
	AllowedOrigins       []string        `json:"allowed_origins"`
	DefaultPageSize      *int            `json:"default_page_size"`
	MaxPageSize          *int            `json:"max_page_size"`
	AssignmentRetryLimit *int            `json:"assignment_retry_limit"`
	LogBackend           *string         `json:"log_backend"`
	LogLevel             *string         `json:"log_level"`
	LogFormat            *string         `json:"log_format"`
	ArchiveEnabled       *bool           `json:"archive_enabled"`
	S3RootUser           *string         `json:"s3_root_user"`
	S3RootPassword       *string         `json:"s3_root_password"`
	S3Bucket             *string         `json:"s3_bucket"`
	S3Region             *string         `json:"s3_region"`
	S3BaseEndpoint       *string         `json:"s3_base_endpoint"`
	OTLPEndpoint         *string         `json:"otlp_endpoint"`
	ShutdownTimeout      *timex.Duration `json:"shutdown_timeout"`
}

// parseJson loads the file named by -c/-config (if any) and copies the keys
// it sets into config.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setIf(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setIf(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setIf(&config.DatabaseDriver, c.DatabaseDriver)
	setIf(&config.DatabaseDSN, c.DatabaseDSN)
	setIf(&config.SecretKey, c.SecretKey)
	setIf(&config.AccessTokenCookie, c.AccessTokenCookie)
	setIf(&config.CredentialKey, c.CredentialKey)
	if c.AllowedOrigins != nil {
		config.AllowedOrigins = c.AllowedOrigins
	}
	setIf(&config.DefaultPageSize, c.DefaultPageSize)
	setIf(&config.MaxPageSize, c.MaxPageSize)
	setIf(&config.AssignmentRetryLimit, c.AssignmentRetryLimit)
	setIf(&config.LogBackend, c.LogBackend)
	setIf(&config.LogLevel, c.LogLevel)
	setIf(&config.LogFormat, c.LogFormat)
	setIf(&config.ArchiveEnabled, c.ArchiveEnabled)
	setIf(&config.S3RootUser, c.S3RootUser)
	setIf(&config.S3RootPassword, c.S3RootPassword)
	setIf(&config.S3Bucket, c.S3Bucket)
	setIf(&config.S3Region, c.S3Region)
	setIf(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setIf(&config.OTLPEndpoint, c.OTLPEndpoint)
	if c.ShutdownTimeout != nil {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
	return nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
