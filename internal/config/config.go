package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/newthinker/archivist/internal/core"
	"github.com/newthinker/archivist/internal/lease"
	"github.com/newthinker/archivist/internal/notifier/webhook"
	"github.com/spf13/viper"
)

// Backend and tracker types
const (
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"

	TrackerHTTP   = "http"
	TrackerMemory = "memory"

	LeaseNone   = "none"
	LeaseMemory = "memory"
	LeaseRedis  = "redis"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Tracker TrackerConfig `mapstructure:"tracker"`
	Lease   LeaseConfig   `mapstructure:"lease"`
	Router  RouterConfig  `mapstructure:"router"`
	Journal JournalConfig `mapstructure:"journal"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	APIKey          string        `mapstructure:"api_key"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type BackendConfig struct {
	Type       string           `mapstructure:"type"` // "filesystem" or "s3"
	Filesystem FilesystemConfig `mapstructure:"filesystem"`
	S3         S3Config         `mapstructure:"s3"`
}

type FilesystemConfig struct {
	ActiveRoot  string `mapstructure:"active_root"`
	ArchiveRoot string `mapstructure:"archive_root"`
}

type S3Config struct {
	Endpoint               string        `mapstructure:"endpoint"`
	Region                 string        `mapstructure:"region"`
	Bucket                 string        `mapstructure:"bucket"`
	AccessKey              string        `mapstructure:"access_key"`
	SecretKey              string        `mapstructure:"secret_key"`
	KeyPrefix              string        `mapstructure:"key_prefix"`
	ArchivedStorageClass   string        `mapstructure:"archived_storage_class"`
	UnarchivedStorageClass string        `mapstructure:"unarchived_storage_class"`
	MaxAttempts            int           `mapstructure:"max_attempts"`
	Timeout                time.Duration `mapstructure:"timeout"`
}

type TrackerConfig struct {
	Type              string        `mapstructure:"type"` // "http" or "memory"
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`

	// Objects seeds the memory tracker. Ignored by the http tracker.
	Objects []TrackedObject `mapstructure:"objects"`
}

// TrackedObject is one record the memory tracker starts with.
type TrackedObject struct {
	ID        string `mapstructure:"id"`
	Status    string `mapstructure:"status"`
	FilePath  string `mapstructure:"filepath"`
	ObjectKey string `mapstructure:"object_key"`
}

// LeaseConfig selects the per-object lease backend. "none" disables leases.
type LeaseConfig struct {
	Backend string            `mapstructure:"backend"`
	Redis   lease.RedisConfig `mapstructure:"redis"`
}

type RouterConfig struct {
	AcceptedActions []string `mapstructure:"accepted_actions"`
}

// JournalConfig bounds the in-memory operation journal.
type JournalConfig struct {
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AlertsConfig configures reconciliation alerts. An empty webhook url disables them.
type AlertsConfig struct {
	Webhook webhook.Config `mapstructure:"webhook"`
}

// legacyEnv maps config keys to the environment variables older deployments set.
var legacyEnv = map[string]string{
	"backend.filesystem.active_root":  "ARCHIVE_SOURCE_DIRECTORY",
	"backend.filesystem.archive_root": "ARCHIVE_TARGET_DIRECTORY",
	"backend.s3.access_key":           "AWS_ACCESS_KEY",
	"backend.s3.secret_key":           "AWS_SECRET_KEY",
	"backend.s3.bucket":               "AWS_BUCKET_NAME",
	"backend.s3.region":               "AWS_REGION",
}

// Load reads configuration from file on top of Defaults. An empty path reads
// the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	// AutomaticEnv only reaches keys viper already knows, so every field is
	// registered up front.
	registerDefaults(v, "", reflect.ValueOf(*Defaults()))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(envReplacer)
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, envName(key), env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

var envReplacer = strings.NewReplacer(".", "_")

// envName is the variable AutomaticEnv consults for key.
func envName(key string) string {
	return strings.ToUpper(envReplacer.Replace(key))
}

// registerDefaults walks a config struct and sets a viper default for every
// mapstructure-tagged leaf, keyed by its dotted path.
func registerDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if !field.IsExported() || tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if fv := val.Field(i); fv.Kind() == reflect.Struct {
			registerDefaults(v, key, fv)
		} else {
			v.SetDefault(key, fv.Interface())
		}
	}
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Backend: BackendConfig{
			Type: BackendFilesystem,
			S3: S3Config{
				Region:                 "us-east-1",
				ArchivedStorageClass:   "REDUCED_REDUNDANCY",
				UnarchivedStorageClass: "STANDARD",
				MaxAttempts:            1,
				Timeout:                60 * time.Second,
			},
		},
		Tracker: TrackerConfig{
			Type:    TrackerHTTP,
			Timeout: 30 * time.Second,
		},
		Lease: LeaseConfig{
			Backend: LeaseNone,
			Redis:   lease.DefaultRedisConfig(),
		},
		Router: RouterConfig{
			AcceptedActions: []string{"manual-submission"},
		},
		Journal: JournalConfig{
			MaxEntries: 1000,
			TTL:        24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// FieldError reports a bad configuration field together with the exit code
// the process should terminate with.
type FieldError struct {
	Field    string
	ExitCode int
	Err      error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func missing(field string, code int) *FieldError {
	return &FieldError{
		Field:    field,
		ExitCode: code,
		Err:      core.WrapError(core.ErrConfigMissing, fmt.Errorf("%s is required", field)),
	}
}

func invalid(field string, code int, format string, args ...any) *FieldError {
	return &FieldError{
		Field:    field,
		ExitCode: code,
		Err:      core.WrapError(core.ErrConfigInvalid, fmt.Errorf(format, args...)),
	}
}

// Validate checks the configuration for errors. Failures are *FieldError.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port", 50, "port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Backend.Type {
	case BackendFilesystem:
		if err := c.Backend.Filesystem.validate(); err != nil {
			return err
		}
	case BackendS3:
		if err := c.Backend.S3.validate(); err != nil {
			return err
		}
	default:
		return invalid("backend.type", 3, "unknown backend %q, want filesystem or s3", c.Backend.Type)
	}

	switch c.Tracker.Type {
	case TrackerHTTP:
		if c.Tracker.BaseURL == "" {
			return missing("tracker.base_url", 30)
		}
		u, err := url.Parse(c.Tracker.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("tracker.base_url", 31, "%q is not an http(s) URL", c.Tracker.BaseURL)
		}
	case TrackerMemory:
		if err := validateSeed(c.Tracker.Objects); err != nil {
			return err
		}
	default:
		return invalid("tracker.type", 32, "unknown tracker %q, want http or memory", c.Tracker.Type)
	}

	if u := c.Alerts.Webhook.URL; u != "" {
		parsed, err := url.Parse(u)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return invalid("alerts.webhook.url", 60, "%q is not an http(s) URL", u)
		}
	}

	switch c.Lease.Backend {
	case LeaseNone, LeaseMemory, "":
	case LeaseRedis:
		if c.Lease.Redis.Addr == "" {
			return missing("lease.redis.addr", 41)
		}
	default:
		return invalid("lease.backend", 40, "unknown lease backend %q", c.Lease.Backend)
	}

	return nil
}

func (f FilesystemConfig) validate() error {
	if f.ActiveRoot == "" {
		return missing("backend.filesystem.active_root", 10)
	}
	if !filepath.IsAbs(f.ActiveRoot) {
		return invalid("backend.filesystem.active_root", 11, "%q is not absolute", f.ActiveRoot)
	}
	if f.ArchiveRoot == "" {
		return missing("backend.filesystem.archive_root", 12)
	}
	if !filepath.IsAbs(f.ArchiveRoot) {
		return invalid("backend.filesystem.archive_root", 13, "%q is not absolute", f.ArchiveRoot)
	}
	if overlaps(filepath.Clean(f.ActiveRoot), filepath.Clean(f.ArchiveRoot)) {
		return invalid("backend.filesystem", 14, "roots %q and %q overlap", f.ActiveRoot, f.ArchiveRoot)
	}
	return nil
}

func (s S3Config) validate() error {
	required := []struct {
		field string
		value string
		code  int
	}{
		{"backend.s3.endpoint", s.Endpoint, 20},
		{"backend.s3.access_key", s.AccessKey, 21},
		{"backend.s3.secret_key", s.SecretKey, 22},
		{"backend.s3.bucket", s.Bucket, 23},
		{"backend.s3.region", s.Region, 24},
		{"backend.s3.archived_storage_class", s.ArchivedStorageClass, 25},
		{"backend.s3.unarchived_storage_class", s.UnarchivedStorageClass, 26},
	}
	for _, r := range required {
		if r.value == "" {
			return missing(r.field, r.code)
		}
	}
	if strings.EqualFold(s.ArchivedStorageClass, s.UnarchivedStorageClass) {
		return invalid("backend.s3.archived_storage_class", 27,
			"archived and unarchived storage class are both %q", s.ArchivedStorageClass)
	}
	return nil
}

func overlaps(a, b string) bool {
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(a, strings.TrimSuffix(b, sep)+sep) ||
		strings.HasPrefix(b, strings.TrimSuffix(a, sep)+sep)
}

func validateSeed(objects []TrackedObject) error {
	seen := make(map[string]bool, len(objects))
	for i, obj := range objects {
		field := fmt.Sprintf("tracker.objects[%d]", i)
		switch {
		case obj.ID == "":
			return invalid(field, 33, "object id is required")
		case seen[obj.ID]:
			return invalid(field, 33, "duplicate object id %q", obj.ID)
		case obj.FilePath == "" && obj.ObjectKey == "":
			return invalid(field, 33, "object %s needs a filepath or object_key", obj.ID)
		}
		if _, err := core.ParseStatus(obj.Status); err != nil {
			return invalid(field, 33, "object %s: %v", obj.ID, err)
		}
		seen[obj.ID] = true
	}
	return nil
}
