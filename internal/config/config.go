// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

// Package config loads accountd configuration from defaults, a YAML file,
// .env files, the environment and command-line flags, in that order of
// increasing precedence.
package config

import (
	"net/url"
	"slices"
	"time"

	"github.com/samber/oops"

	"github.com/hyperlab/accountd/internal/auth"
	"github.com/hyperlab/accountd/internal/logging"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Notifier drivers.
const (
	NotifierLog      = "log"
	NotifierFile     = "file"
	NotifierPostmark = "postmark"
)

// Redacted replaces secret values in Config.Redacted output.
const Redacted = "[REDACTED]"

// Config is the complete accountd configuration.
type Config struct {
	Log           LogConfig           `koanf:"log" yaml:"log"`
	Database      DatabaseConfig      `koanf:"database" yaml:"database"`
	Session       SessionConfig       `koanf:"session" yaml:"session"`
	Hasher        HasherConfig        `koanf:"hasher" yaml:"hasher"`
	Strength      StrengthConfig      `koanf:"strength" yaml:"strength"`
	Reset         ResetConfig         `koanf:"reset" yaml:"reset"`
	Notifier      NotifierConfig      `koanf:"notifier" yaml:"notifier"`
	Observability ObservabilityConfig `koanf:"observability" yaml:"observability"`
}

// LogConfig selects the log format and minimum level.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// DatabaseConfig selects and tunes the account store.
type DatabaseConfig struct {
	Driver          string `koanf:"driver" yaml:"driver"`
	URL             string `koanf:"url" yaml:"url"`
	MaxConns        int32  `koanf:"max_conns" yaml:"max_conns"`
	ConnectAttempts uint64 `koanf:"connect_attempts" yaml:"connect_attempts"`
	AutoMigrate     bool   `koanf:"auto_migrate" yaml:"auto_migrate"`
}

// SessionConfig holds the session signing key and token lifetime.
type SessionConfig struct {
	Secret string        `koanf:"secret" yaml:"secret"`
	TTL    time.Duration `koanf:"ttl" yaml:"ttl"`
	Issuer string        `koanf:"issuer" yaml:"issuer"`
}

// HasherConfig selects the credential hashing algorithm.
type HasherConfig struct {
	Algorithm  string       `koanf:"algorithm" yaml:"algorithm"`
	BcryptCost int          `koanf:"bcrypt_cost" yaml:"bcrypt_cost"`
	Argon2     Argon2Config `koanf:"argon2" yaml:"argon2"`
}

// Argon2Config tunes argon2id. MemoryKiB is in kibibytes.
type Argon2Config struct {
	Time      uint32 `koanf:"time" yaml:"time"`
	MemoryKiB uint32 `koanf:"memory_kib" yaml:"memory_kib"`
	Threads   uint8  `koanf:"threads" yaml:"threads"`
}

// StrengthConfig sets the minimum accepted password score (0-4).
type StrengthConfig struct {
	MinScore int `koanf:"min_score" yaml:"min_score"`
}

// ResetConfig controls reset token lifetime and the message subject.
type ResetConfig struct {
	TTL     time.Duration `koanf:"ttl" yaml:"ttl"`
	Subject string        `koanf:"subject" yaml:"subject"`
}

// NotifierConfig selects how reset messages are delivered.
type NotifierConfig struct {
	Driver   string         `koanf:"driver" yaml:"driver"`
	File     FileConfig     `koanf:"file" yaml:"file"`
	Postmark PostmarkConfig `koanf:"postmark" yaml:"postmark"`
	Retry    RetryConfig    `koanf:"retry" yaml:"retry"`
}

// FileConfig configures the outbox directory notifier.
type FileConfig struct {
	Dir string `koanf:"dir" yaml:"dir"`
}

// PostmarkConfig configures the Postmark email notifier.
type PostmarkConfig struct {
	ServerToken string `koanf:"server_token" yaml:"server_token"`
	From        string `koanf:"from" yaml:"from"`
	Tag         string `koanf:"tag" yaml:"tag"`
	BaseURL     string `koanf:"base_url" yaml:"base_url"`
}

// RetryConfig bounds notification delivery retries.
type RetryConfig struct {
	Attempts   uint64        `koanf:"attempts" yaml:"attempts"`
	Backoff    time.Duration `koanf:"backoff" yaml:"backoff"`
	MaxBackoff time.Duration `koanf:"max_backoff" yaml:"max_backoff"`
}

// ObservabilityConfig sets the metrics and health listener. An empty address
// disables it.
type ObservabilityConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// Validate checks the whole configuration. It fails closed: a missing or
// short session secret is always an error.
func (c *Config) Validate() error {
	if err := c.Log.validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}

	if len(c.Session.Secret) < auth.MinSessionSecretLen {
		return invalid("session.secret", "session secret must be at least %d bytes", auth.MinSessionSecretLen)
	}
	if c.Session.TTL <= 0 {
		return invalid("session.ttl", "session ttl must be positive")
	}

	if !slices.Contains([]string{auth.AlgorithmBcrypt, auth.AlgorithmArgon2id}, c.Hasher.Algorithm) {
		return invalid("hasher.algorithm", "unsupported hash algorithm %q", c.Hasher.Algorithm)
	}
	if c.Strength.MinScore < 0 || c.Strength.MinScore > auth.MaxStrengthScore {
		return invalid("strength.min_score", "minimum score must be between 0 and %d", auth.MaxStrengthScore)
	}
	if c.Reset.TTL <= 0 {
		return invalid("reset.ttl", "reset ttl must be positive")
	}

	return c.Notifier.validate()
}

func (l LogConfig) validate() error {
	if l.Format != "json" && l.Format != "text" {
		return invalid("log.format", "log format must be json or text, got %q", l.Format)
	}
	if _, err := logging.ParseLevel(l.Level); err != nil {
		return invalid("log.level", "unknown log level %q", l.Level)
	}
	return nil
}

// Validate checks only the database section. Commands that never touch the
// session or notifier use it instead of Config.Validate.
func (d DatabaseConfig) Validate() error {
	switch d.Driver {
	case DriverMemory:
		return nil
	case DriverPostgres:
		if d.URL == "" {
			return invalid("database.url", "database url is required for the postgres driver")
		}
		return nil
	default:
		return invalid("database.driver", "unsupported store driver %q", d.Driver)
	}
}

func (n NotifierConfig) validate() error {
	switch n.Driver {
	case NotifierLog:
	case NotifierFile:
		if n.File.Dir == "" {
			return invalid("notifier.file.dir", "outbox directory is required for the file notifier")
		}
	case NotifierPostmark:
		if n.Postmark.ServerToken == "" || n.Postmark.From == "" {
			return invalid("notifier.postmark", "postmark notifier needs server_token and from")
		}
	default:
		return invalid("notifier.driver", "unsupported notifier %q", n.Driver)
	}
	if n.Retry.Attempts == 0 {
		return invalid("notifier.retry.attempts", "at least one delivery attempt is required")
	}
	return nil
}

// Warnings reports settings that are valid but unsafe outside development.
// The log and file notifiers expose plaintext reset tokens on the console or
// on disk, which is acceptable only for throwaway accounts.
func (c *Config) Warnings() []string {
	var out []string
	if c.Database.Driver == DriverPostgres {
		switch c.Notifier.Driver {
		case NotifierLog:
			out = append(out, "notifier.driver=log prints plaintext reset tokens; use postmark with a persistent database")
		case NotifierFile:
			out = append(out, "notifier.driver=file writes plaintext reset tokens to "+c.Notifier.File.Dir+"; use postmark with a persistent database")
		}
	}
	return out
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
}

// Redacted returns a copy of c with secrets masked, safe to print.
func (c *Config) Redacted() Config {
	out := *c
	out.redact()
	return out
}

func (c *Config) redact() {
	if c.Session.Secret != "" {
		c.Session.Secret = Redacted
	}
	if c.Notifier.Postmark.ServerToken != "" {
		c.Notifier.Postmark.ServerToken = Redacted
	}
	if u, err := url.Parse(c.Database.URL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			c.Database.URL = u.Redacted()
		}
	}
}
