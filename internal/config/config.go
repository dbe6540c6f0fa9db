// Package config holds the tool-wide settings and merges them from their
// sources: defaults, the manifest's [settings] table, DXDRIVE_* environment
// variables and command-line flags, later sources winning.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"fortio.org/safecast"
	"github.com/mstoykov/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v3"

	"dxdrive/internal/request"
)

// Backend names.
const (
	BackendExec     = "exec"
	BackendDocker   = "docker"
	BackendScripted = "scripted"
)

// Debug info modes.
const (
	DebugEmbed = "embed"
	DebugStrip = "strip"
	DebugNone  = "none"
)

// Config represents dxdrive's settings. Every field is nullable so partial
// configs can be layered with Apply.
type Config struct {
	// Compiler.
	Backend          null.String `json:"backend" toml:"backend" envconfig:"DXDRIVE_BACKEND"`
	DxcPath          null.String `json:"dxcPath,omitempty" toml:"dxc_path" envconfig:"DXDRIVE_DXC_PATH"`
	DockerImage      null.String `json:"dockerImage,omitempty" toml:"docker_image" envconfig:"DXDRIVE_DOCKER_IMAGE"`
	WarningsAsErrors null.Bool   `json:"warningsAsErrors,omitempty" toml:"warnings_as_errors" envconfig:"DXDRIVE_WARNINGS_AS_ERRORS"`
	DebugInfo        null.String `json:"debugInfo,omitempty" toml:"debug_info" envconfig:"DXDRIVE_DEBUG_INFO"`
	StripReflection  null.Bool   `json:"stripReflection,omitempty" toml:"strip_reflection" envconfig:"DXDRIVE_STRIP_REFLECTION"`

	// Build.
	CacheDir  null.String `json:"cacheDir,omitempty" toml:"cache_dir" envconfig:"DXDRIVE_CACHE_DIR"`
	RedisAddr null.String `json:"redisAddr,omitempty" toml:"redis_addr" envconfig:"DXDRIVE_REDIS_ADDR"`
	Jobs      null.Int    `json:"jobs,omitempty" toml:"jobs" envconfig:"DXDRIVE_JOBS"`

	// Output.
	LogLevel       null.String `json:"logLevel,omitempty" toml:"log_level" envconfig:"DXDRIVE_LOG_LEVEL"`
	MaxDiagnostics null.Int    `json:"maxDiagnostics,omitempty" toml:"max_diagnostics" envconfig:"DXDRIVE_MAX_DIAGNOSTICS"`
}

// NewConfig creates a config holding the default values. Defaults are not
// marked valid, so any explicit source overrides them.
func NewConfig() Config {
	return Config{
		Backend:          null.NewString(BackendExec, false),
		DxcPath:          null.NewString("dxc", false),
		WarningsAsErrors: null.NewBool(false, false),
		DebugInfo:        null.NewString(DebugNone, false),
		StripReflection:  null.NewBool(false, false),
		CacheDir:         null.NewString(".dxdrive/cache", false),
		Jobs:             null.NewInt(int64(runtime.GOMAXPROCS(0)), false),
		LogLevel:         null.NewString("info", false),
		MaxDiagnostics:   null.NewInt(100, false),
	}
}

// Apply applies the valid options of cfg to the receiver.
func (c Config) Apply(cfg Config) Config {
	if cfg.Backend.Valid {
		c.Backend = cfg.Backend
	}
	if cfg.DxcPath.Valid {
		c.DxcPath = cfg.DxcPath
	}
	if cfg.DockerImage.Valid {
		c.DockerImage = cfg.DockerImage
	}
	if cfg.WarningsAsErrors.Valid {
		c.WarningsAsErrors = cfg.WarningsAsErrors
	}
	if cfg.DebugInfo.Valid {
		c.DebugInfo = cfg.DebugInfo
	}
	if cfg.StripReflection.Valid {
		c.StripReflection = cfg.StripReflection
	}
	if cfg.CacheDir.Valid {
		c.CacheDir = cfg.CacheDir
	}
	if cfg.RedisAddr.Valid {
		c.RedisAddr = cfg.RedisAddr
	}
	if cfg.Jobs.Valid && cfg.Jobs.Int64 > 0 {
		c.Jobs = cfg.Jobs
	}
	if cfg.LogLevel.Valid {
		c.LogLevel = cfg.LogLevel
	}
	if cfg.MaxDiagnostics.Valid && cfg.MaxDiagnostics.Int64 > 0 {
		c.MaxDiagnostics = cfg.MaxDiagnostics
	}
	return c
}

// FromEnv reads DXDRIVE_* variables through lookup.
func FromEnv(env map[string]string) (Config, error) {
	c := Config{}
	err := envconfig.Process("", &c, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	if err != nil {
		return c, fmt.Errorf("environment: %w", err)
	}
	return c, nil
}

// GetConsolidatedConfig combines {defaults + manifest settings + environment
// + flags} and validates the result.
func GetConsolidatedConfig(manifest *Config, env map[string]string, flags Config) (Config, error) {
	result := NewConfig()
	if manifest != nil {
		result = result.Apply(*manifest)
	}
	envConf, err := FromEnv(env)
	if err != nil {
		return result, err
	}
	result = result.Apply(envConf).Apply(flags)
	return result, result.Validate()
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	switch c.Backend.String {
	case BackendExec, BackendDocker, BackendScripted:
	default:
		return fmt.Errorf("backend must be %s, %s or %s, not %q", BackendExec, BackendDocker, BackendScripted, c.Backend.String)
	}
	switch c.DebugInfo.String {
	case DebugEmbed, DebugStrip, DebugNone:
	default:
		return fmt.Errorf("debug_info must be %s, %s or %s, not %q", DebugEmbed, DebugStrip, DebugNone, c.DebugInfo.String)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.JobCount(); err != nil {
		return err
	}
	return nil
}

// BaselineFlags returns the compiler flags every request gets.
func (c Config) BaselineFlags() request.FlagSet {
	var fs request.FlagSet
	if c.WarningsAsErrors.Bool {
		fs = fs.With(request.WarningsAsErrors)
	}
	switch c.DebugInfo.String {
	case DebugEmbed:
		fs = fs.With(request.EmbedDebug)
	case DebugStrip:
		fs = fs.With(request.StripDebug)
	}
	if c.StripReflection.Bool {
		fs = fs.With(request.StripReflection)
	}
	return fs
}

// Level parses LogLevel.
func (c Config) Level() (logrus.Level, error) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(c.LogLevel.String))
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// JobCount returns Jobs as an int.
func (c Config) JobCount() (int, error) {
	n, err := safecast.Conv[int](c.Jobs.Int64)
	if err != nil {
		return 0, fmt.Errorf("jobs: %w", err)
	}
	if n < 1 {
		n = 1
	}
	return n, nil
}

// DiagnosticLimit returns MaxDiagnostics as an int.
func (c Config) DiagnosticLimit() int {
	n, err := safecast.Conv[int](c.MaxDiagnostics.Int64)
	if err != nil || n < 1 {
		return 100
	}
	return n
}
