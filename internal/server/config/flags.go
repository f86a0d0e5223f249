package config

import (
	"flag"
	"strings"

	"github.com/dmitrijs2005/relaytale/internal/flagx"
)

var knownFlags = []string{
	"-a", "-grpc", "-driver", "-d", "-s", "-k", "-origins",
	"-retries", "-log", "-level", "-archive",
	"-u", "-p", "-b", "-region", "-e", "-otlp",
}

// parseFlags overrides config fields from command-line flags.
//
//	-a string        HTTP bind address (":8080")
//	-grpc string     gRPC health bind address (":50051")
//	-driver string   database driver: postgres or sqlite
//	-d string        database DSN
//	-s string        JWT HMAC secret key
//	-k string        refresh credential sealing passphrase
//	-origins string  comma-separated CORS allowed origins
//	-retries int     assignment retry limit
//	-log string      log backend: slog or zap
//	-level string    log level
//	-archive bool    archive completed stories to S3
//	-u, -p string    S3 user and password
//	-b string        S3 bucket
//	-region string   S3 region
//	-e string        S3 base endpoint
//	-otlp string     OTLP/HTTP trace endpoint, empty disables export
//
// Only the flags above are taken from args; -c/-config is handled separately.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("relaytale", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDriver, "driver", config.DatabaseDriver, "database driver (postgres|sqlite)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.CredentialKey, "k", config.CredentialKey, "credential sealing passphrase")
	origins := fs.String("origins", strings.Join(config.AllowedOrigins, ","), "CORS allowed origins")
	fs.IntVar(&config.AssignmentRetryLimit, "retries", config.AssignmentRetryLimit, "assignment retry limit")
	fs.StringVar(&config.LogBackend, "log", config.LogBackend, "log backend (slog|zap)")
	fs.StringVar(&config.LogLevel, "level", config.LogLevel, "log level")
	fs.BoolVar(&config.ArchiveEnabled, "archive", config.ArchiveEnabled, "archive completed stories")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.OTLPEndpoint, "otlp", config.OTLPEndpoint, "OTLP trace endpoint")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return err
	}

	config.AllowedOrigins = splitList(*origins)
	return nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
