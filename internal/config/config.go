// Package config loads the daemon settings from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mmynk/physioledger/pkg/logging"
)

// Config is the full daemon configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Auth    AuthConfig    `toml:"auth"`
	Replica ReplicaConfig `toml:"replica"`
	Ledger  LedgerConfig  `toml:"ledger"`
	Log     LogConfig     `toml:"log"`
}

type ServerConfig struct {
	Addr            string `toml:"addr"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
	// AllowedOrigin is sent as Access-Control-Allow-Origin.
	AllowedOrigin string `toml:"allowed_origin"`
}

type StorageConfig struct {
	// DBPath is the SQLite file of the durable secondary. Empty disables it
	// and the ledger lives in memory only.
	DBPath string `toml:"db_path"`
	// MemoryQuota caps the bytes held by the in-memory primary; 0 is unlimited.
	MemoryQuota int `toml:"memory_quota"`
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	TokenTTL  string `toml:"token_ttl"`
}

type ReplicaConfig struct {
	// MongoURI enables replication when set.
	MongoURI     string `toml:"mongo_uri"`
	Database     string `toml:"database"`
	SyncInterval string `toml:"sync_interval"`
}

type LedgerConfig struct {
	// Currency is an ISO 4217 code; amounts finer than its minor unit are
	// rejected.
	Currency string `toml:"currency"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: "10s",
			AllowedOrigin:   "*",
		},
		Storage: StorageConfig{
			DBPath:      "./data/ledger.db",
			MemoryQuota: 5 << 20,
		},
		Auth: AuthConfig{
			TokenTTL: "168h",
		},
		Replica: ReplicaConfig{
			Database:     "physioledger",
			SyncInterval: "5m",
		},
		Ledger: LedgerConfig{
			Currency: "TRY",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("unknown config key %q in %s", undecoded[0].String(), path)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	for env, dst := range map[string]*string{
		"LEDGER_ADDR":       &c.Server.Addr,
		"LEDGER_DB_PATH":    &c.Storage.DBPath,
		"LEDGER_JWT_SECRET": &c.Auth.JWTSecret,
		"LEDGER_MONGO_URI":  &c.Replica.MongoURI,
		"LOG_LEVEL":         &c.Log.Level,
	} {
		if v, ok := os.LookupEnv(env); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("LEDGER_MEMORY_QUOTA"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_MEMORY_QUOTA: %w", err)
		}
		c.Storage.MemoryQuota = n
	}
	return nil
}

// Validate rejects settings the daemon cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Storage.MemoryQuota < 0 {
		errs = append(errs, errors.New("storage.memory_quota must not be negative"))
	}
	if c.Replica.MongoURI != "" && c.Replica.Database == "" {
		errs = append(errs, errors.New("replica.database is required with a mongo uri"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	for name, d := range map[string]string{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"auth.token_ttl":          c.Auth.TokenTTL,
		"replica.sync_interval":   c.Replica.SyncInterval,
	} {
		if v, err := time.ParseDuration(d); err != nil || v <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, d))
		}
	}
	return errors.Join(errs...)
}

// ShutdownTimeout returns the graceful shutdown deadline.
func (c Config) ShutdownTimeout() time.Duration {
	return mustDuration(c.Server.ShutdownTimeout)
}

// TokenTTL returns the lifetime of issued tokens.
func (c Config) TokenTTL() time.Duration {
	return mustDuration(c.Auth.TokenTTL)
}

// SyncInterval returns the replica push interval.
func (c Config) SyncInterval() time.Duration {
	return mustDuration(c.Replica.SyncInterval)
}

// mustDuration parses a duration already checked by Validate.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
