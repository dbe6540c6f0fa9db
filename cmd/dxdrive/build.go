package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dxdrive/internal/buildpipeline"
	"dxdrive/internal/cache"
	"dxdrive/internal/config"
	"dxdrive/internal/project"
	"dxdrive/internal/ui"
)

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Build every shader declared in dxdrive.toml",
		Long: `Build the project whose dxdrive.toml is found in dir or its parents.
Each shader is compiled with its own driver call; up to --jobs calls run at
once and unchanged shaders are served from the cache.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBuild,
	}
	flags := cmd.Flags()
	flags.IntP("jobs", "j", 0, "maximum parallel compilations (default: GOMAXPROCS)")
	flags.String("ui", "auto", "progress UI (auto|on|off)")
	flags.Bool("no-cache", false, "compile everything, bypassing the cache")
	flags.Bool("clean", false, "drop the local cache before building")
	flags.Bool("keep-going", false, "keep compiling after the first failure")
	flags.StringArray("shader", nil, "build only this shader (repeatable)")
	flags.String("diag-format", "pretty", "diagnostics format (pretty|json|sarif|short)")
	return cmd
}

type buildFlags struct {
	ui, diagFormat            string
	noCache, clean, keepGoing bool
	timings                   bool
	shaders                   []string
}

func readBuildFlags(cmd *cobra.Command) (buildFlags, error) {
	var (
		bf   buildFlags
		errs []error
	)
	str := func(name string, dst *string) {
		v, err := cmd.Flags().GetString(name)
		errs = append(errs, err)
		*dst = v
	}
	boolean := func(name string, dst *bool) {
		v, err := cmd.Flags().GetBool(name)
		errs = append(errs, err)
		*dst = v
	}
	str("ui", &bf.ui)
	str("diag-format", &bf.diagFormat)
	boolean("no-cache", &bf.noCache)
	boolean("clean", &bf.clean)
	boolean("keep-going", &bf.keepGoing)
	boolean("timings", &bf.timings)
	shaders, err := cmd.Flags().GetStringArray("shader")
	errs = append(errs, err)
	bf.shaders = shaders
	for _, err := range errs {
		if err != nil {
			return bf, err
		}
	}
	return bf, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	bf, err := readBuildFlags(cmd)
	if err != nil {
		return err
	}
	mode, err := readUIMode(bf.ui)
	if err != nil {
		return err
	}
	format, err := readDiagFormat(bf.diagFormat)
	if err != nil {
		return err
	}
	colorFlag, err := cmd.Flags().GetString("color")
	if err != nil {
		return err
	}
	useColor, err := readColorMode(colorFlag, os.Stderr)
	if err != nil {
		return err
	}

	manifest, err := project.LoadFrom(appFs, dir)
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(cmd, &manifest.Settings)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	jobs, err := cfg.JobCount()
	if err != nil {
		return err
	}
	drv, cleanup, err := newDriver(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	var store cache.Store
	if !bf.noCache {
		s, closeStore, err := openCache(ctx, manifest, cfg, bf.clean, log)
		if err != nil {
			return err
		}
		defer closeStore()
		store = s
	}

	names, err := buildpipeline.ShaderNames(manifest, bf.shaders)
	if err != nil {
		return err
	}
	req := buildpipeline.BuildRequest{
		Manifest:       manifest,
		Driver:         drv,
		Fs:             appFs,
		Cache:          store,
		Jobs:           jobs,
		MaxDiagnostics: cfg.DiagnosticLimit(),
		Shaders:        names,
		KeepGoing:      bf.keepGoing,
		Logger:         log,
	}
	title := manifest.Project.Name
	if title == "" {
		title = filepath.Base(manifest.Root)
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	var (
		result   buildpipeline.BuildResult
		buildErr error
	)
	if shouldUseTUI(mode, len(names)) {
		result, buildErr = runBuildWithUI(ctx, title, names, req)
	} else {
		req.Progress = ui.NewPlainSink(stderr, names)
		result, buildErr = buildpipeline.Build(ctx, &req)
	}
	if len(result.Shaders) == 0 && buildErr != nil {
		return buildErr
	}

	bag := result.Diagnostics(cfg.DiagnosticLimit())
	bag.Sort()
	printer := newDiagOutput(format, useColor, manifest.Root)
	if err := printer.print(stdout, stderr, bag); err != nil {
		return err
	}
	if err := printBuildSummary(stderr, result); err != nil {
		return err
	}
	if bf.timings {
		if err := printStageTimings(stderr, result.Timings, result.Elapsed); err != nil {
			return err
		}
	}
	return buildErr
}

// openCache opens the project cache: the local disk store, fronting redis
// when an address is configured. An unreachable redis only costs sharing.
func openCache(ctx context.Context, m *project.Manifest, cfg config.Config, clean bool, log logrus.FieldLogger) (cache.Store, func(), error) {
	dir := cfg.CacheDir.String
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(m.Root, filepath.FromSlash(dir))
	}
	disk, err := cache.OpenDiskStore(appFs, dir)
	if err != nil {
		return nil, nil, err
	}
	if clean {
		if err := disk.DropAll(); err != nil {
			return nil, nil, err
		}
		log.WithField("dir", disk.Dir()).Debug("cache dropped")
	}
	if !cfg.RedisAddr.Valid || cfg.RedisAddr.String == "" {
		return disk, func() {}, nil
	}
	rdb, err := cache.DialRedis(ctx, cfg.RedisAddr.String)
	if err != nil {
		log.WithError(err).Warn("shared cache unavailable; using the local cache only")
		return disk, func() {}, nil
	}
	closeRedis := func() {
		if err := rdb.Close(); err != nil {
			log.WithError(err).Debug("closing redis client")
		}
	}
	return cache.Tiered{disk, cache.NewRedisStore(rdb, "", cache.DefaultTTL)}, closeRedis, nil
}

func printBuildSummary(out io.Writer, result buildpipeline.BuildResult) error {
	failed := len(result.Failed())
	built := len(result.Shaders) - failed
	var err error
	if failed == 0 {
		_, err = fmt.Fprintf(out, "built %d shaders (%d cached) in %.1f ms\n",
			built, result.CacheHits(), toMillis(result.Elapsed))
	} else {
		_, err = fmt.Fprintf(out, "%d of %d shaders failed\n", failed, len(result.Shaders))
	}
	return err
}
