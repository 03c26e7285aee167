// Package config provides Viper-based configuration loading for the arcade server.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// MatchmakingConfig holds the per-kind rating window tunables.
type MatchmakingConfig struct {
	// Kinds lists enabled game kinds in matching order.
	Kinds []string `mapstructure:"kinds"`
	// BaseDelta is the rating window every player starts with.
	BaseDelta int `mapstructure:"base_delta"`
	// ExpandInterval is how long a player waits before the window widens.
	ExpandInterval time.Duration `mapstructure:"expand_interval"`
	// DefaultExpandAmount widens the window of kinds without an override.
	DefaultExpandAmount int `mapstructure:"default_expand_amount"`
	// ExpandAmounts overrides DefaultExpandAmount per kind.
	ExpandAmounts map[string]int `mapstructure:"expand_amounts"`
}

// ExpandAmount returns the widening step for kind.
func (m MatchmakingConfig) ExpandAmount(kind string) int {
	if n, ok := m.ExpandAmounts[kind]; ok {
		return n
	}
	return m.DefaultExpandAmount
}

// SchedulerConfig holds session creation settings.
type SchedulerConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// SessionConfig holds live session settings.
type SessionConfig struct {
	// InboxSize buffers messages per session.
	InboxSize int `mapstructure:"inbox_size"`
	// OutboxSize buffers notifications per player connection.
	OutboxSize int `mapstructure:"outbox_size"`
	// MaxAge is the age after which the purger removes a session.
	MaxAge time.Duration `mapstructure:"max_age"`
	// PurgeInterval is how often the purger runs.
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

// DatabaseConfig holds the profile store connection. The pool only serves
// rating lookups while bots are built, so it carries no idle-connection knobs.
type DatabaseConfig struct {
	// Enabled turns on rating lookups from the profiles table.
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// AdminConfig holds the admin HTTP listener settings.
type AdminConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// HealthConfig holds the gRPC health listener settings.
type HealthConfig struct {
	GRPCHost string `mapstructure:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (h HealthConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.GRPCHost, h.GRPCPort)
}

// BotsConfig holds the simulated player settings.
type BotsConfig struct {
	// Roster is a YAML roster file; empty disables simulated players.
	Roster string `mapstructure:"roster"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Session     SessionConfig     `mapstructure:"session"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Health      HealthConfig      `mapstructure:"health"`
	Bots        BotsConfig        `mapstructure:"bots"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, check := range []func() error{
		func() error { return validateLogging(c.Logging) },
		func() error { return validateMatchmaking(c.Matchmaking) },
		func() error { return validateScheduler(c.Scheduler) },
		func() error { return validateSession(c.Session) },
		func() error { return validateDatabase(c.Database) },
		func() error { return validatePort("admin.port", c.Admin.Port) },
		func() error { return validatePort("health.grpc_port", c.Health.GRPCPort) },
	} {
		if err := check(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func joined(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validatePort(key string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be 1-65535, got %d", key, port)
	}
	return nil
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "console"}
	sslModes   = []string{"disable", "require", "verify-ca", "verify-full"}
)

// collect joins the non-nil violations.
func collect(checks ...error) error {
	var errs []string
	for _, err := range checks {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return joined(errs)
}

func oneOf(key, value string, allowed []string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%s must be one of [%s], got %q", key, strings.Join(allowed, ", "), value)
}

func required(key, value string) error {
	if value == "" {
		return fmt.Errorf("%s must not be empty", key)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	return collect(
		oneOf("logging.level", l.Level, logLevels),
		oneOf("logging.format", l.Format, logFormats),
	)
}

func validateMatchmaking(m MatchmakingConfig) error {
	var errs []string
	if len(m.Kinds) == 0 {
		errs = append(errs, "matchmaking.kinds must list at least one game kind")
	}
	seen := make(map[string]bool, len(m.Kinds))
	for _, k := range m.Kinds {
		if seen[k] {
			errs = append(errs, fmt.Sprintf("matchmaking.kinds lists %q twice", k))
		}
		seen[k] = true
	}
	if m.BaseDelta < 0 {
		errs = append(errs, fmt.Sprintf("matchmaking.base_delta must be >= 0, got %d", m.BaseDelta))
	}
	if m.ExpandInterval <= 0 {
		errs = append(errs, "matchmaking.expand_interval must be positive")
	}
	if m.DefaultExpandAmount < 0 {
		errs = append(errs, fmt.Sprintf("matchmaking.default_expand_amount must be >= 0, got %d", m.DefaultExpandAmount))
	}
	for kind, n := range m.ExpandAmounts {
		if n < 0 {
			errs = append(errs, fmt.Sprintf("matchmaking.expand_amounts.%s must be >= 0, got %d", kind, n))
		}
	}
	return joined(errs)
}

func validateScheduler(s SchedulerConfig) error {
	if s.TickInterval <= 0 {
		return fmt.Errorf("scheduler.tick_interval must be positive, got %s", s.TickInterval)
	}
	return nil
}

func validateSession(s SessionConfig) error {
	var errs []string
	if s.InboxSize < 1 {
		errs = append(errs, fmt.Sprintf("session.inbox_size must be >= 1, got %d", s.InboxSize))
	}
	if s.OutboxSize < 1 {
		errs = append(errs, fmt.Sprintf("session.outbox_size must be >= 1, got %d", s.OutboxSize))
	}
	if s.MaxAge <= 0 {
		errs = append(errs, "session.max_age must be positive")
	}
	if s.PurgeInterval <= 0 {
		errs = append(errs, "session.purge_interval must be positive")
	}
	return joined(errs)
}

func validateDatabase(d DatabaseConfig) error {
	if !d.Enabled {
		return nil
	}
	var pool error
	if d.MaxConns < 1 {
		pool = fmt.Errorf("database.max_conns must be >= 1, got %d", d.MaxConns)
	}
	return collect(
		required("database.host", d.Host),
		validatePort("database.port", d.Port),
		required("database.user", d.User),
		required("database.name", d.Name),
		oneOf("database.sslmode", d.SSLMode, sslModes),
		pool,
	)
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and ARCADE_ environment
// overrides applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ARCADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("matchmaking.kinds", []string{"tictactoe", "connectfour"})
	v.SetDefault("matchmaking.base_delta", 50)
	v.SetDefault("matchmaking.expand_interval", "5s")
	v.SetDefault("matchmaking.default_expand_amount", 50)
	v.SetDefault("matchmaking.expand_amounts", map[string]int{"tictactoe": 75, "connectfour": 50, "checkers": 25})

	v.SetDefault("scheduler.tick_interval", "1s")

	v.SetDefault("session.inbox_size", 64)
	v.SetDefault("session.outbox_size", 64)
	v.SetDefault("session.max_age", "2h")
	v.SetDefault("session.purge_interval", "1m")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "arcade")
	v.SetDefault("database.password", "arcade")
	v.SetDefault("database.name", "arcade")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 4)

	v.SetDefault("admin.host", "0.0.0.0")
	v.SetDefault("admin.port", 8080)

	v.SetDefault("health.grpc_host", "127.0.0.1")
	v.SetDefault("health.grpc_port", 50051)

	v.SetDefault("bots.roster", "")
}
