// Package config loads ndomog's configuration.
//
// Sources are layered, each overriding the previous one:
//  1. Default()
//  2. a YAML file, decoded strictly (unknown keys are errors)
//  3. environment variables (NDOMOG_*), optionally seeded from a .env file
//
// Command-line flags are applied last by the caller. The merged result is
// checked against an embedded CUE schema by Validate.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ndomog/internal/activity"
	"github.com/roach88/ndomog/internal/reconcile"
)

// Environment variables read by Load.
const (
	EnvDatabase       = "NDOMOG_DB"
	EnvRemoteDatabase = "NDOMOG_REMOTE_DB"
	EnvUserID         = "NDOMOG_USER_ID"
	EnvUserName       = "NDOMOG_USER_NAME"
	EnvUserEmail      = "NDOMOG_USER_EMAIL"
	EnvRejectPolicy   = "NDOMOG_REJECT_POLICY"
	EnvSyncInterval   = "NDOMOG_SYNC_INTERVAL"
)

//go:embed schema.cue
var schemaSource string

// Config is the effective configuration.
type Config struct {
	Database       string   `yaml:"database"`
	RemoteDatabase string   `yaml:"remote_database"`
	User           User     `yaml:"user"`
	Sync           Sync     `yaml:"sync"`
	Activity       Activity `yaml:"activity"`
}

// User is the local account gestures are attributed to.
type User struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Sync mirrors reconcile.Config in file form.
type Sync struct {
	Interval          Duration `yaml:"interval"`
	BackoffMin        Duration `yaml:"backoff_min"`
	BackoffMax        Duration `yaml:"backoff_max"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier"`
	Jitter            float64  `yaml:"jitter"`
	MaxAttempts       int      `yaml:"max_attempts"`
	ActionTimeout     Duration `yaml:"action_timeout"`
	RejectPolicy      string   `yaml:"reject_policy"`
}

// Activity configures the audit trail views.
type Activity struct {
	RecentLimit int `yaml:"recent_limit"`
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"30s\"", node.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in configuration. Databases live under the XDG
// data directory.
func Default() Config {
	rc := reconcile.DefaultConfig()
	dir := filepath.Join(xdg.DataHome, "ndomog")
	return Config{
		Database:       filepath.Join(dir, "ndomog.db"),
		RemoteDatabase: filepath.Join(dir, "remote.db"),
		User:           User{ID: "local", Name: "local"},
		Sync: Sync{
			Interval:          Duration(rc.Interval),
			BackoffMin:        Duration(rc.BackoffMin),
			BackoffMax:        Duration(rc.BackoffMax),
			BackoffMultiplier: rc.Multiplier,
			Jitter:            rc.Jitter,
			MaxAttempts:       rc.MaxAttempts,
			ActionTimeout:     Duration(rc.ActionTimeout),
			RejectPolicy:      string(rc.RejectPolicy),
		},
		Activity: Activity{RecentLimit: activity.DefaultRecentLimit},
	}
}

// Load returns Default overlaid with the YAML file at path (skipped when
// path is empty) and the process environment. The result is validated.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode overlays YAML onto cfg. Keys absent from the document keep their
// current values.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str(EnvDatabase, &c.Database)
	str(EnvRemoteDatabase, &c.RemoteDatabase)
	str(EnvUserID, &c.User.ID)
	str(EnvUserName, &c.User.Name)
	str(EnvUserEmail, &c.User.Email)
	str(EnvRejectPolicy, &c.Sync.RejectPolicy)

	if v, ok := lookup(EnvSyncInterval); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSyncInterval, err)
		}
		c.Sync.Interval = Duration(d)
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

// ValidationError reports the first schema violation.
type ValidationError struct {
	// Path is the dotted config path, e.g. "sync.jitter".
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "invalid config: " + e.Message
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Path, e.Message)
}

// document is the shape checked against #Config.
type document struct {
	Database       string       `json:"database"`
	RemoteDatabase string       `json:"remote_database"`
	User           userDoc      `json:"user"`
	Sync           syncDocument `json:"sync"`
	Activity       activityDoc  `json:"activity"`
}

type userDoc struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type syncDocument struct {
	IntervalMS        int64   `json:"interval_ms"`
	BackoffMinMS      int64   `json:"backoff_min_ms"`
	BackoffMaxMS      int64   `json:"backoff_max_ms"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
	Jitter            float64 `json:"jitter"`
	MaxAttempts       int     `json:"max_attempts"`
	ActionTimeoutMS   int64   `json:"action_timeout_ms"`
	RejectPolicy      string  `json:"reject_policy"`
}

type activityDoc struct {
	RecentLimit int `json:"recent_limit"`
}

func (c Config) document() document {
	ms := func(d Duration) int64 { return time.Duration(d).Milliseconds() }
	return document{
		Database:       c.Database,
		RemoteDatabase: c.RemoteDatabase,
		User:           userDoc(c.User),
		Sync: syncDocument{
			IntervalMS:        ms(c.Sync.Interval),
			BackoffMinMS:      ms(c.Sync.BackoffMin),
			BackoffMaxMS:      ms(c.Sync.BackoffMax),
			BackoffMultiplier: c.Sync.BackoffMultiplier,
			Jitter:            c.Sync.Jitter,
			MaxAttempts:       c.Sync.MaxAttempts,
			ActionTimeoutMS:   ms(c.Sync.ActionTimeout),
			RejectPolicy:      c.Sync.RejectPolicy,
		},
		Activity: activityDoc(c.Activity),
	}
}

// Validate checks c against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c.document()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return toValidationError(err)
	}
	return nil
}

func toValidationError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	first := errs[0]
	path := strings.Join(first.Path(), ".")
	format, args := first.Msg()
	return &ValidationError{
		Path:    strings.TrimPrefix(path, "#Config."),
		Message: fmt.Sprintf(format, args...),
	}
}

// Reconcile converts the sync section.
func (c Config) Reconcile() reconcile.Config {
	return reconcile.Config{
		Interval:      time.Duration(c.Sync.Interval),
		BackoffMin:    time.Duration(c.Sync.BackoffMin),
		BackoffMax:    time.Duration(c.Sync.BackoffMax),
		Multiplier:    c.Sync.BackoffMultiplier,
		Jitter:        c.Sync.Jitter,
		MaxAttempts:   c.Sync.MaxAttempts,
		ActionTimeout: time.Duration(c.Sync.ActionTimeout),
		RejectPolicy:  reconcile.RejectPolicy(c.Sync.RejectPolicy),
	}
}

// EnsureDirs creates the parent directories of both database files.
func (c Config) EnsureDirs() error {
	for _, p := range []string{c.Database, c.RemoteDatabase} {
		if p == "" || p == ":memory:" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	return nil
}

// String renders c as YAML.
func (c Config) String() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "config: " + strconv.Quote(err.Error())
	}
	return string(b)
}
