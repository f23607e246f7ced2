package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/dmitrijs2005/lanpos/internal/flagx"
)

var ownFlags = []string{
	"-d", "-n", "-l", "-r", "-i", "-pe", "-pk", "-o",
	"-tls-cert", "-tls-key", "-tls-ca", "-insecure",
	"-b", "-g", "-e", "-u", "-p",
}

// parseFlags overlays command-line flags onto config.
//
//	-d string      database DSN (sqlite file or postgres:// URL)
//	-n string      register name shown to peers
//	-l string      log level
//	-r int         max sync retries per order
//	-i duration    sync worker interval
//	-pe string     commerce platform endpoint
//	-pk string     commerce platform API key
//	-o string      ops HTTP address, empty disables it
//	-tls-cert, -tls-key, -tls-ca string   coordination TLS material
//	-insecure      allow plaintext coordination traffic
//	-b, -g, -e, -u, -p string   report archive bucket, region, endpoint, access key, secret key
//
// Discovery pacing and the remaining timeouts are JSON only.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], ownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RegisterName, "n", config.RegisterName, "register name")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level (debug, info, warn, error)")
	fs.IntVar(&config.MaxSyncRetries, "r", config.MaxSyncRetries, "max sync retries per order")
	fs.DurationVar(&config.SyncInterval, "i", config.SyncInterval, "sync worker interval")
	fs.StringVar(&config.PlatformEndpoint, "pe", config.PlatformEndpoint, "commerce platform endpoint")
	fs.StringVar(&config.PlatformAPIKey, "pk", config.PlatformAPIKey, "commerce platform API key")
	fs.StringVar(&config.OpsAddr, "o", config.OpsAddr, "ops HTTP address")

	fs.StringVar(&config.TLSCertFile, "tls-cert", config.TLSCertFile, "coordination server certificate")
	fs.StringVar(&config.TLSKeyFile, "tls-key", config.TLSKeyFile, "coordination server key")
	fs.StringVar(&config.TLSCAFile, "tls-ca", config.TLSCAFile, "CA for the coordination server")
	fs.BoolVar(&config.AllowInsecureTransport, "insecure", config.AllowInsecureTransport, "allow plaintext coordination")

	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "report archive bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "report archive region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "report archive endpoint")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "report archive access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "report archive secret key")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
