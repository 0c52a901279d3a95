// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/hyperlab/accountd/internal/auth"
	"github.com/hyperlab/accountd/internal/xdg"
)

// EnvPrefix namespaces accountd environment variables.
// ACCOUNTD_SESSION_SECRET sets session.secret.
const EnvPrefix = "ACCOUNTD_"

// DatabaseURLEnv is honored when ACCOUNTD_DATABASE_URL is unset.
const DatabaseURLEnv = "DATABASE_URL"

// option is one configuration key with its flag and default.
type option struct {
	key   string
	flag  string
	def   any
	usage string
}

var options = []option{
	{"log.format", "log-format", "json", "log format (json or text)"},
	{"log.level", "log-level", "info", "log level (debug, info, warn, error)"},
	{"database.driver", "store", DriverPostgres, "account store (postgres or memory)"},
	{"database.url", "database-url", "", "PostgreSQL connection URL"},
	{"database.max_conns", "db-max-conns", 10, "maximum pooled database connections"},
	{"database.connect_attempts", "db-connect-attempts", 5, "database pings before giving up"},
	{"database.auto_migrate", "auto-migrate", false, "apply pending migrations on startup"},
	{"session.secret", "session-secret", "", "HMAC key for session tokens (at least 32 bytes)"},
	{"session.ttl", "session-ttl", auth.DefaultSessionTTL, "session token lifetime"},
	{"session.issuer", "session-issuer", auth.DefaultSessionIssuer, "session token issuer"},
	{"hasher.algorithm", "hasher", auth.AlgorithmBcrypt, "hash algorithm for new credentials (bcrypt or argon2id)"},
	{"hasher.bcrypt_cost", "bcrypt-cost", auth.DefaultBcryptCost, "bcrypt work factor"},
	{"hasher.argon2.time", "argon2-time", int(auth.DefaultArgon2Params.Time), "argon2id iterations"},
	{"hasher.argon2.memory_kib", "argon2-memory", int(auth.DefaultArgon2Params.Memory), "argon2id memory in KiB"},
	{"hasher.argon2.threads", "argon2-threads", int(auth.DefaultArgon2Params.Threads), "argon2id parallelism"},
	{"strength.min_score", "min-strength", auth.DefaultMinimumScore, "minimum password strength score (0-4)"},
	{"reset.ttl", "reset-ttl", auth.DefaultResetTokenTTL, "reset token lifetime"},
	{"reset.subject", "reset-subject", auth.DefaultResetSubject, "reset message subject"},
	{"notifier.driver", "notifier", NotifierLog, "reset delivery (log, file or postmark)"},
	{"notifier.file.dir", "outbox-dir", "", "directory for the file notifier (default XDG data dir)"},
	{"notifier.postmark.server_token", "postmark-token", "", "Postmark server token"},
	{"notifier.postmark.from", "postmark-from", "", "sender address for reset emails"},
	{"notifier.postmark.tag", "postmark-tag", "password-reset", "Postmark message tag"},
	{"notifier.postmark.base_url", "postmark-base-url", "", "Postmark API base URL override"},
	{"notifier.retry.attempts", "notify-attempts", 3, "delivery attempts per reset message"},
	{"notifier.retry.backoff", "notify-backoff", 200 * time.Millisecond, "initial delivery retry backoff"},
	{"notifier.retry.max_backoff", "notify-max-backoff", 2 * time.Second, "maximum delivery retry backoff"},
	{"observability.addr", "metrics-addr", "", "metrics and health listen address (empty disables)"},
}

var (
	flagKeys = map[string]string{}
	envKeys  = map[string]string{}
)

func init() {
	for _, opt := range options {
		flagKeys[opt.flag] = opt.key
		envKeys[strings.ReplaceAll(opt.key, ".", "_")] = opt.key
	}
}

// RegisterFlags adds one flag per configuration key to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, opt := range options {
		switch def := opt.def.(type) {
		case string:
			fs.String(opt.flag, def, opt.usage)
		case int:
			fs.Int(opt.flag, def, opt.usage)
		case bool:
			fs.Bool(opt.flag, def, opt.usage)
		case time.Duration:
			fs.Duration(opt.flag, def, opt.usage)
		}
	}
}

// Options controls where Load looks for configuration.
type Options struct {
	// File is an explicit config file. It must exist. When empty the XDG
	// default is read if present.
	File string
	// EnvFiles are .env files merged beneath the process environment.
	// Missing files are skipped.
	EnvFiles []string
	// Environ returns the process environment. Defaults to os.Environ.
	Environ func() []string
}

// Load builds a Config. Flags in fs must have been added by RegisterFlags;
// only flags the user set override the other sources. fs may be nil.
func Load(fs *pflag.FlagSet, opts Options) (*Config, error) {
	k := koanf.New(".")

	for _, opt := range options {
		if err := k.Set(opt.key, opt.def); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", opt.key).Wrap(err)
		}
	}

	if err := loadFile(k, opts.File); err != nil {
		return nil, err
	}

	environ, err := mergedEnviron(opts)
	if err != nil {
		return nil, err
	}
	if err := loadEnv(k, environ); err != nil {
		return nil, err
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}

	if cfg.Notifier.Driver == NotifierFile && cfg.Notifier.File.Dir == "" {
		if dir, err := xdg.OutboxDir(); err == nil {
			cfg.Notifier.File.Dir = dir
		}
	}
	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		def, err := xdg.ConfigFile()
		if err != nil {
			return nil
		}
		path = def
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// mergedEnviron returns the process environment with .env entries added for
// variables the process does not already set.
func mergedEnviron(opts Options) ([]string, error) {
	environ := os.Environ
	if opts.Environ != nil {
		environ = opts.Environ
	}
	vars := environ()

	var present []string
	for _, path := range opts.EnvFiles {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		present = append(present, path)
	}
	if len(present) == 0 {
		return vars, nil
	}

	dotenv, err := godotenv.Read(present...)
	if err != nil {
		return nil, oops.Code("CONFIG_READ_FAILED").With("source", "dotenv").Wrap(err)
	}
	set := make(map[string]bool, len(vars))
	for _, kv := range vars {
		name, _, _ := strings.Cut(kv, "=")
		set[name] = true
	}
	for name, value := range dotenv {
		if !set[name] {
			vars = append(vars, name+"="+value)
		}
	}
	return vars, nil
}

func loadEnv(k *koanf.Koanf, environ []string) error {
	source := func() []string { return environ }

	fallback := env.Provider(".", env.Opt{
		EnvironFunc: source,
		TransformFunc: func(name, value string) (string, any) {
			if name != DatabaseURLEnv || value == "" {
				return "", nil
			}
			return "database.url", value
		},
	})
	if err := k.Load(fallback, nil); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	prefixed := env.Provider(".", env.Opt{
		Prefix:      EnvPrefix,
		EnvironFunc: source,
		TransformFunc: func(name, value string) (string, any) {
			key, ok := envKeys[strings.ToLower(strings.TrimPrefix(name, EnvPrefix))]
			if !ok {
				return "", nil
			}
			return key, value
		},
	})
	if err := k.Load(prefixed, nil); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}
	return nil
}
