package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/guregu/null.v3"

	"dxdrive/internal/backend"
	"dxdrive/internal/backend/dxcdocker"
	"dxdrive/internal/backend/dxcexec"
	"dxdrive/internal/backend/dxcli"
	"dxdrive/internal/config"
	"dxdrive/internal/driver"
	"dxdrive/internal/request"
	"dxdrive/internal/testkit"
)

// flagConfig turns the persistent flags the user actually set into a
// config layer.
func flagConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	var c config.Config
	str := func(name string, dst *null.String) error {
		if !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = null.StringFrom(v)
		return nil
	}
	boolean := func(name string, dst *null.Bool) error {
		if !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = null.BoolFrom(v)
		return nil
	}
	integer := func(name string, dst *null.Int) error {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return err
		}
		*dst = null.IntFrom(int64(v))
		return nil
	}
	steps := []error{
		str("backend", &c.Backend),
		str("dxc", &c.DxcPath),
		str("docker-image", &c.DockerImage),
		str("log-level", &c.LogLevel),
		str("debug-info", &c.DebugInfo),
		boolean("warnings-as-errors", &c.WarningsAsErrors),
		boolean("strip-reflection", &c.StripReflection),
		integer("max-diagnostics", &c.MaxDiagnostics),
		integer("jobs", &c.Jobs),
	}
	for _, err := range steps {
		if err != nil {
			return c, err
		}
	}
	return c, nil
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "DXDRIVE_") {
			env[k] = v
		}
	}
	return env
}

// resolveConfig layers defaults, the manifest's settings (when given), the
// environment and flags.
func resolveConfig(cmd *cobra.Command, manifest *config.Config) (config.Config, error) {
	fromFlags, err := flagConfig(cmd)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.GetConsolidatedConfig(manifest, environ(), fromFlags)
	if err != nil {
		return cfg, fmt.Errorf("configuration: %w", err)
	}
	return cfg, nil
}

// newLogger writes text logs to stderr at the configured level.
func newLogger(cmd *cobra.Command, cfg config.Config) (*logrus.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: level < logrus.DebugLevel})
	return log, nil
}

// newBackend builds the configured backend. The cleanup releases whatever
// the backend holds open.
func newBackend(cfg config.Config, log logrus.FieldLogger) (backend.Backend, func(), error) {
	opts := dxcli.Options{Logger: log}
	switch cfg.Backend.String {
	case config.BackendExec:
		return dxcexec.New(cfg.DxcPath.String, opts), func() {}, nil
	case config.BackendDocker:
		cli, err := dxcdocker.NewClient()
		if err != nil {
			return nil, nil, fmt.Errorf("docker backend: %w", err)
		}
		image := cfg.DockerImage.String
		if image == "" {
			image = dxcdocker.DefaultImage
		}
		cleanup := func() {
			if err := cli.Close(); err != nil {
				log.WithError(err).Debug("closing docker client")
			}
		}
		return dxcdocker.New(cli, image, opts), cleanup, nil
	case config.BackendScripted:
		return testkit.NewResponderBackend(testkit.DevResponder), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend.String)
	}
}

// newDriver wires the backend, logger and baseline flags into a driver.
func newDriver(cfg config.Config, log logrus.FieldLogger) (*driver.Driver, func(), error) {
	be, cleanup, err := newBackend(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	drv := driver.New(driver.Options{
		Backend: be,
		Logger:  log,
		Builder: request.Builder{Baseline: cfg.BaselineFlags()},
	})
	return drv, cleanup, nil
}
