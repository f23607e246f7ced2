// Package config handles process configuration for a register: defaults,
// an optional JSON overlay and command-line flags, in that order.
//
// Coordination mode, shared secret and register identity are not here;
// they live in the register's own store so a mode change survives a
// restart without editing files.
package config

import "time"

type Config struct {
	DatabaseDSN  string
	RegisterName string
	LogLevel     string

	MaxSyncRetries   int
	SyncInterval     time.Duration
	SyncBackoffBase  time.Duration
	SyncBackoffMax   time.Duration
	PlatformEndpoint string
	PlatformAPIKey   string
	PlatformTimeout  time.Duration

	BridgeTimeout          time.Duration
	ProbeTimeout           time.Duration
	DiscoveryConcurrency   int
	DiscoveryRate          float64
	TLSCertFile            string
	TLSKeyFile             string
	TLSCAFile              string
	AllowInsecureTransport bool

	OpsAddr string

	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
}

// LoadDefaults sets values suitable for a single register on a shop LAN.
// The platform endpoint and the archive bucket are empty, which disables
// sync submission and report archiving until configured.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "file:lanpos.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	c.RegisterName = "Register"
	c.LogLevel = "info"
	c.MaxSyncRetries = 3
	c.SyncInterval = 30 * time.Second
	c.SyncBackoffBase = 5 * time.Second
	c.SyncBackoffMax = 10 * time.Minute
	c.PlatformTimeout = 15 * time.Second
	c.BridgeTimeout = 30 * time.Second
	c.ProbeTimeout = 400 * time.Millisecond
	c.DiscoveryConcurrency = 32
	c.DiscoveryRate = 200
	c.OpsAddr = ":9100"
	c.S3Region = "us-east-1"
}

// LoadConfig builds a Config from defaults, the JSON file named by -c,
// -config or $LANPOS_CONFIG, and the flags in os.Args.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
