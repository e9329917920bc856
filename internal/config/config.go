// Package config loads client and server settings from flags, environment
// (OUTREACH_*) and an optional config file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iudanet/outreach/internal/logging"
)

// EnvPrefix is the prefix of environment variables, e.g. OUTREACH_SERVER
const EnvPrefix = "OUTREACH"

// Keys shared by flags, env and config file
const (
	KeyConfig    = "config"
	KeyDB        = "db"
	KeyLogLevel  = "log-level"
	KeyLogFormat = "log-format"
	KeyLogFile   = "log-file"

	KeyServer        = "server"
	KeyVolunteerID   = "volunteer-id"
	KeyProbeInterval = "probe-interval"
	KeyProbeTimeout  = "probe-timeout"
	KeySyncInterval  = "sync-interval"
	KeyBackoffBase   = "backoff-base"
	KeyBackoffMax    = "backoff-max"

	KeyAddr            = "addr"
	KeyJWTSecret       = "jwt-secret"
	KeyAccessTokenTTL  = "access-token-ttl"
	KeyAuthRateLimit   = "auth-rate-limit"
	KeyAuthRateWindow  = "auth-rate-window"
	KeyShutdownTimeout = "shutdown-timeout"
)

// Client is the configuration of the outreach CLI and daemon
type Client struct {
	Server        string
	DBPath        string
	VolunteerID   string // профиль волонтёра, подставляется в creator_id
	Log           logging.Config
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	SyncInterval  time.Duration
	BackoffBase   time.Duration
	BackoffMax    time.Duration
}

// Server is the configuration of the remote store server
type Server struct {
	Addr            string
	DBPath          string
	JWTSecret       string
	Log             logging.Config
	AccessTokenTTL  time.Duration
	AuthRateWindow  time.Duration
	ShutdownTimeout time.Duration
	AuthRateLimit   int
}

// New returns a viper instance reading OUTREACH_* variables.
// "probe-interval" maps to OUTREACH_PROBE_INTERVAL.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// SetClientDefaults registers default values of client keys
func SetClientDefaults(v *viper.Viper) {
	def := logging.DefaultConfig()
	v.SetDefault(KeyServer, "http://localhost:8080")
	v.SetDefault(KeyDB, "outreach.db")
	v.SetDefault(KeyProbeInterval, 15*time.Second)
	v.SetDefault(KeyProbeTimeout, 5*time.Second)
	v.SetDefault(KeySyncInterval, 5*time.Minute)
	v.SetDefault(KeyBackoffBase, 2*time.Second)
	v.SetDefault(KeyBackoffMax, 5*time.Minute)
	v.SetDefault(KeyLogLevel, def.Level)
	v.SetDefault(KeyLogFormat, def.Format)
}

// SetServerDefaults registers default values of server keys
func SetServerDefaults(v *viper.Viper) {
	def := logging.DefaultConfig()
	v.SetDefault(KeyAddr, ":8080")
	v.SetDefault(KeyDB, "outreach-server.db")
	v.SetDefault(KeyAccessTokenTTL, 24*time.Hour)
	v.SetDefault(KeyAuthRateLimit, 10)
	v.SetDefault(KeyAuthRateWindow, time.Minute)
	v.SetDefault(KeyShutdownTimeout, 10*time.Second)
	v.SetDefault(KeyLogLevel, def.Level)
	v.SetDefault(KeyLogFormat, def.Format)
}

// readFile loads the file named by the "config" key, if any
func readFile(v *viper.Viper) error {
	path := v.GetString(KeyConfig)
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

func loggingConfig(v *viper.Viper) logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = v.GetString(KeyLogLevel)
	cfg.Format = v.GetString(KeyLogFormat)
	cfg.File = v.GetString(KeyLogFile)
	return cfg
}

// LoadClient reads and validates the client configuration
func LoadClient(v *viper.Viper) (*Client, error) {
	if err := readFile(v); err != nil {
		return nil, err
	}

	cfg := &Client{
		Server:        strings.TrimRight(v.GetString(KeyServer), "/"),
		DBPath:        v.GetString(KeyDB),
		VolunteerID:   v.GetString(KeyVolunteerID),
		Log:           loggingConfig(v),
		ProbeInterval: v.GetDuration(KeyProbeInterval),
		ProbeTimeout:  v.GetDuration(KeyProbeTimeout),
		SyncInterval:  v.GetDuration(KeySyncInterval),
		BackoffBase:   v.GetDuration(KeyBackoffBase),
		BackoffMax:    v.GetDuration(KeyBackoffMax),
	}

	var errs []error
	if u, err := url.Parse(cfg.Server); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("%s: invalid server URL %q", KeyServer, cfg.Server))
	}
	if cfg.DBPath == "" {
		errs = append(errs, fmt.Errorf("%s: path is required", KeyDB))
	}
	if cfg.ProbeInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyProbeInterval))
	}
	if cfg.SyncInterval < 0 {
		errs = append(errs, fmt.Errorf("%s cannot be negative", KeySyncInterval))
	}
	if cfg.BackoffBase <= 0 || cfg.BackoffMax < cfg.BackoffBase {
		errs = append(errs, fmt.Errorf("%s must be positive and not exceed %s", KeyBackoffBase, KeyBackoffMax))
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadServer reads and validates the server configuration
func LoadServer(v *viper.Viper) (*Server, error) {
	if err := readFile(v); err != nil {
		return nil, err
	}

	cfg := &Server{
		Addr:            v.GetString(KeyAddr),
		DBPath:          v.GetString(KeyDB),
		JWTSecret:       v.GetString(KeyJWTSecret),
		Log:             loggingConfig(v),
		AccessTokenTTL:  v.GetDuration(KeyAccessTokenTTL),
		AuthRateLimit:   v.GetInt(KeyAuthRateLimit),
		AuthRateWindow:  v.GetDuration(KeyAuthRateWindow),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
	}

	var errs []error
	if cfg.Addr == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyAddr))
	}
	if cfg.DBPath == "" {
		errs = append(errs, fmt.Errorf("%s: path is required", KeyDB))
	}
	if len(cfg.JWTSecret) < 16 {
		errs = append(errs, fmt.Errorf("%s must be at least 16 characters", KeyJWTSecret))
	}
	if cfg.AccessTokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyAccessTokenTTL))
	}
	if cfg.AuthRateLimit <= 0 || cfg.AuthRateWindow <= 0 {
		errs = append(errs, fmt.Errorf("%s and %s must be positive", KeyAuthRateLimit, KeyAuthRateWindow))
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
