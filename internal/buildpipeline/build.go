// Package buildpipeline compiles every shader a project manifest declares
// and writes the artifacts under the project's output directory.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"dxdrive/internal/cache"
	"dxdrive/internal/diag"
	"dxdrive/internal/driver"
	"dxdrive/internal/project"
)

var (
	// ErrBuildFailed is returned when at least one shader failed.
	ErrBuildFailed = errors.New("build failed")
	// ErrUnknownShader is returned when a requested shader is not declared.
	ErrUnknownShader = errors.New("unknown shader")
)

// BuildRequest configures a manifest build.
type BuildRequest struct {
	Manifest *project.Manifest
	Driver   *driver.Driver
	// Fs defaults to the OS file system.
	Fs afero.Fs
	// Cache is optional.
	Cache cache.Store
	// Jobs bounds parallel compilations; one call per shader, never more.
	Jobs           int
	MaxDiagnostics int
	// Shaders restricts the build to the named entries; all when empty.
	Shaders []string
	// KeepGoing keeps compiling after the first failure.
	KeepGoing bool
	Progress  ProgressSink
	Logger    logrus.FieldLogger
}

// BuildResult holds one ShaderResult per built shader, in manifest order.
type BuildResult struct {
	Shaders []ShaderResult
	// Timings sums every shader's stage durations.
	Timings Timings
	Elapsed time.Duration
}

// Failed returns the shaders that did not build.
func (r BuildResult) Failed() []ShaderResult {
	var out []ShaderResult
	for _, s := range r.Shaders {
		if !s.OK() {
			out = append(out, s)
		}
	}
	return out
}

// CacheHits counts shaders served from the cache.
func (r BuildResult) CacheHits() int {
	n := 0
	for _, s := range r.Shaders {
		if s.Cached {
			n++
		}
	}
	return n
}

// Diagnostics merges every shader's diagnostics into one bag.
func (r BuildResult) Diagnostics(max int) *diag.Bag {
	bag := diag.NewBag(max)
	for _, s := range r.Shaders {
		if s.Diagnostics != nil {
			bag.Merge(s.Diagnostics)
		}
	}
	return bag
}

// Err summarises failures; nil when every shader built.
func (r BuildResult) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failed))
	for _, s := range failed {
		errs = append(errs, s.Err)
	}
	return fmt.Errorf("%w: %d of %d shaders: %w", ErrBuildFailed, len(failed), len(r.Shaders), errors.Join(errs...))
}

type builder struct {
	manifest       *project.Manifest
	driver         *driver.Driver
	fs             afero.Fs
	cache          cache.Store
	progress       ProgressSink
	log            logrus.FieldLogger
	maxDiagnostics int
}

// Build compiles the selected shaders with at most Jobs compilations in
// flight. Shader failures are reported through the result and summarised in
// the returned error; other errors mean nothing was built.
func Build(ctx context.Context, req *BuildRequest) (BuildResult, error) {
	var result BuildResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing build request")
	}
	if req.Manifest == nil {
		return result, fmt.Errorf("missing manifest")
	}
	if req.Driver == nil {
		return result, fmt.Errorf("missing driver")
	}
	shaders, err := selectShaders(req.Manifest, req.Shaders)
	if err != nil {
		return result, err
	}

	b := &builder{
		manifest:       req.Manifest,
		driver:         req.Driver,
		fs:             req.Fs,
		cache:          req.Cache,
		progress:       req.Progress,
		log:            req.Logger,
		maxDiagnostics: req.MaxDiagnostics,
	}
	if b.fs == nil {
		b.fs = afero.NewOsFs()
	}
	if b.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		b.log = l
	}
	if b.maxDiagnostics <= 0 {
		b.maxDiagnostics = 100
	}
	jobs := req.Jobs
	if jobs < 1 {
		jobs = 1
	}

	start := time.Now()
	for _, s := range shaders {
		b.emit(Event{Shader: s.Name, Stage: StageLoad, Status: StatusQueued})
	}
	b.emit(Event{Stage: StageCompile, Status: StatusWorking})

	result.Shaders = make([]ShaderResult, len(shaders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, max(len(shaders), 1)))
	for i, s := range shaders {
		g.Go(func() error {
			job := &shaderJob{
				b:      b,
				shader: s,
				log:    b.log.WithFields(logrus.Fields{"shader": s.Name, "profile": s.Profile}),
			}
			res := job.run(gctx)
			result.Shaders[i] = res
			if res.Err != nil && !res.Skipped && !req.KeepGoing {
				return res.Err
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Elapsed = time.Since(start)
	for _, s := range result.Shaders {
		for _, stage := range Stages {
			if s.Timings.Has(stage) {
				result.Timings.Add(stage, s.Timings.Duration(stage))
			}
		}
	}

	buildErr := result.Err()
	status := StatusDone
	if buildErr != nil {
		status = StatusError
	}
	b.emit(Event{Stage: StageWrite, Status: status, Err: buildErr, Elapsed: result.Elapsed})
	b.log.WithFields(logrus.Fields{
		"shaders":    len(result.Shaders),
		"failed":     len(result.Failed()),
		"cache_hits": result.CacheHits(),
		"elapsed_ms": result.Elapsed.Milliseconds(),
	}).Info("build finished")
	return result, buildErr
}

func (b *builder) emit(ev Event) {
	if b.progress != nil {
		b.progress.OnEvent(ev)
	}
}

func selectShaders(m *project.Manifest, names []string) ([]*project.Shader, error) {
	if len(names) == 0 {
		out := make([]*project.Shader, 0, len(m.Shaders))
		for i := range m.Shaders {
			out = append(out, &m.Shaders[i])
		}
		return out, nil
	}
	out := make([]*project.Shader, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		s, ok := m.Shader(name)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownShader, name)
		}
		out = append(out, s)
	}
	return out, nil
}

// ShaderNames lists the names Build would compile for names.
func ShaderNames(m *project.Manifest, names []string) ([]string, error) {
	shaders, err := selectShaders(m, names)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(shaders))
	for i, s := range shaders {
		out[i] = s.Name
	}
	return out, nil
}
