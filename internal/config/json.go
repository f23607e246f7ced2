package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/lanpos/internal/flagx"
	"github.com/dmitrijs2005/lanpos/internal/timex"
)

// JsonConfig is the file format. Durations accept "30s" or nanoseconds.
// Absent keys leave the current value alone.
type JsonConfig struct {
	DatabaseDSN  *string `json:"database_dsn"`
	RegisterName *string `json:"register_name"`
	LogLevel     *string `json:"log_level"`

	MaxSyncRetries   *int            `json:"max_sync_retries"`
	SyncInterval     *timex.Duration `json:"sync_interval"`
	SyncBackoffBase  *timex.Duration `json:"sync_backoff_base"`
	SyncBackoffMax   *timex.Duration `json:"sync_backoff_max"`
	PlatformEndpoint *string         `json:"platform_endpoint"`
	PlatformAPIKey   *string         `json:"platform_api_key"`
	PlatformTimeout  *timex.Duration `json:"platform_timeout"`

	BridgeTimeout          *timex.Duration `json:"bridge_timeout"`
	ProbeTimeout           *timex.Duration `json:"probe_timeout"`
	DiscoveryConcurrency   *int            `json:"discovery_concurrency"`
	DiscoveryRate          *float64        `json:"discovery_rate"`
	TLSCertFile            *string         `json:"tls_cert_file"`
	TLSKeyFile             *string         `json:"tls_key_file"`
	TLSCAFile              *string         `json:"tls_ca_file"`
	AllowInsecureTransport *bool           `json:"allow_insecure_transport"`

	OpsAddr *string `json:"ops_addr"`

	S3Bucket       *string `json:"s3_bucket"`
	S3Region       *string `json:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`
	S3AccessKey    *string `json:"s3_access_key"`
	S3SecretKey    *string `json:"s3_secret_key"`
}

// parseJson overlays the JSON config file, if one is named, onto config.
func parseJson(config *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", jsonConfigFile, err)
	}
	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.RegisterName, c.RegisterName)
	set(&config.LogLevel, c.LogLevel)
	set(&config.MaxSyncRetries, c.MaxSyncRetries)
	setDuration(&config.SyncInterval, c.SyncInterval)
	setDuration(&config.SyncBackoffBase, c.SyncBackoffBase)
	setDuration(&config.SyncBackoffMax, c.SyncBackoffMax)
	set(&config.PlatformEndpoint, c.PlatformEndpoint)
	set(&config.PlatformAPIKey, c.PlatformAPIKey)
	setDuration(&config.PlatformTimeout, c.PlatformTimeout)
	setDuration(&config.BridgeTimeout, c.BridgeTimeout)
	setDuration(&config.ProbeTimeout, c.ProbeTimeout)
	set(&config.DiscoveryConcurrency, c.DiscoveryConcurrency)
	set(&config.DiscoveryRate, c.DiscoveryRate)
	set(&config.TLSCertFile, c.TLSCertFile)
	set(&config.TLSKeyFile, c.TLSKeyFile)
	set(&config.TLSCAFile, c.TLSCAFile)
	set(&config.AllowInsecureTransport, c.AllowInsecureTransport)
	set(&config.OpsAddr, c.OpsAddr)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	set(&config.S3AccessKey, c.S3AccessKey)
	set(&config.S3SecretKey, c.S3SecretKey)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
