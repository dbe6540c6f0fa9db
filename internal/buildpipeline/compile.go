package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"dxdrive/internal/backend"
	"dxdrive/internal/backend/dxcli"
	"dxdrive/internal/cache"
	"dxdrive/internal/diag"
	"dxdrive/internal/driver"
	"dxdrive/internal/project"
)

// ShaderResult is the outcome of one manifest shader.
type ShaderResult struct {
	Name   string
	Source string
	Status driver.Status
	// Cached is set when the artifacts came from the cache.
	Cached bool
	// Skipped is set when the build was cancelled before the shader started.
	Skipped     bool
	BackendCode int32
	// Outputs lists the files written, object first.
	Outputs     []string
	Diagnostics *diag.Bag
	Err         error
	Timings     Timings
}

// OK reports whether the shader built.
func (r *ShaderResult) OK() bool { return r.Err == nil }

// DiagnosticFor describes a failed compilation that produced no compiler
// diagnostics of its own.
func DiagnosticFor(status driver.Status, err error, file string) diag.Diagnostic {
	code := diag.UnknownCode
	switch status {
	case driver.StatusInvalidArgument:
		code = diag.DrvInvalidArgument
	case driver.StatusBackendUnavailable:
		code = diag.DrvBackendUnavailable
	case driver.StatusInvocationFailed:
		code = diag.DrvInvocationFailed
	case driver.StatusMissingArtifact:
		code = diag.DrvMissingArtifact
	}
	msg := status.String()
	if err != nil {
		msg = err.Error()
	}
	return diag.NewError(code, diag.Location{File: file}, msg)
}

// artifacts maps each produced output kind to its bytes.
type artifacts map[backend.OutputKind][]byte

func outcomeArtifacts(out *driver.Outcome) artifacts {
	a := artifacts{backend.KindObject: out.Object.Bytes()}
	if out.RootSignature != nil {
		a[backend.KindRootSignature] = out.RootSignature.Bytes()
	}
	for kind, buf := range out.Extras {
		a[kind] = buf.Bytes()
	}
	return a
}

func entryArtifacts(e *cache.Entry) artifacts {
	a := artifacts{backend.KindObject: e.Object}
	if len(e.RootSignature) > 0 {
		a[backend.KindRootSignature] = e.RootSignature
	}
	for k, data := range e.Extras {
		a[backend.OutputKind(k)] = data
	}
	return a
}

// shaderJob compiles one shader. It owns nothing beyond the call.
type shaderJob struct {
	b      *builder
	shader *project.Shader
	log    logrus.FieldLogger
	res    ShaderResult
}

func (j *shaderJob) emit(stage Stage, status Status, err error, elapsed time.Duration) {
	if j.b.progress == nil {
		return
	}
	j.b.progress.OnEvent(Event{Shader: j.shader.Name, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}

func (j *shaderJob) fail(stage Stage, status driver.Status, err error) ShaderResult {
	j.res.Status = status
	j.res.Err = fmt.Errorf("%s: %w", j.shader.Name, err)
	if j.res.Diagnostics == nil {
		j.res.Diagnostics = diag.NewBag(j.b.maxDiagnostics)
	}
	if !j.res.Diagnostics.HasErrors() {
		j.res.Diagnostics.Add(DiagnosticFor(status, err, j.shader.Source))
	}
	j.emit(stage, StatusError, j.res.Err, 0)
	j.log.WithError(err).WithField("status", status.String()).Debug("shader failed")
	return j.res
}

func (j *shaderJob) run(ctx context.Context) ShaderResult {
	s := j.shader
	j.res = ShaderResult{Name: s.Name, Source: s.Source}
	if err := ctx.Err(); err != nil {
		j.res.Skipped = true
		j.res.Err = fmt.Errorf("%s: %w", s.Name, err)
		j.emit(StageLoad, StatusError, j.res.Err, 0)
		return j.res
	}

	j.emit(StageLoad, StatusWorking, nil, 0)
	start := time.Now()
	src, err := afero.ReadFile(j.b.fs, j.b.manifest.SourcePath(s))
	j.res.Timings.Set(StageLoad, time.Since(start))
	if err != nil {
		j.res.Diagnostics = diag.NewBag(j.b.maxDiagnostics)
		j.res.Diagnostics.Add(diag.NewError(diag.IOLoadFileError, diag.Location{File: s.Source}, err.Error()))
		return j.fail(StageLoad, driver.StatusInvalidArgument, err)
	}
	req, err := s.Request(src)
	if err != nil {
		return j.fail(StageLoad, driver.StatusInvalidArgument, err)
	}
	wanted := s.OutputKinds()

	// A request the builder rejects skips the cache; the driver reports it.
	var key project.Digest
	useCache := false
	if args, argErr := j.b.driver.Args(req); argErr == nil && j.b.cache != nil {
		key = cache.Key(j.b.driver.BackendFingerprint(), args, req.Encoding, src)
		useCache = true
	}

	if useCache {
		j.emit(StageCache, StatusWorking, nil, 0)
		start = time.Now()
		entry, hit := j.lookup(ctx, key, wanted)
		j.res.Timings.Set(StageCache, time.Since(start))
		if hit {
			j.res.Cached = true
			j.res.Status = driver.StatusSuccess
			j.res.Diagnostics = j.parseDiagnostics(entry.Diagnostics)
			if err := j.write(entryArtifacts(entry), wanted); err != nil {
				return j.writeFailed(err)
			}
			j.emit(StageCache, StatusCached, nil, j.res.Timings.Sum(Stages...))
			return j.res
		}
	}

	j.emit(StageCompile, StatusWorking, nil, 0)
	start = time.Now()
	out := j.b.driver.Compile(ctx, req)
	defer out.Release()
	j.res.Timings.Set(StageCompile, time.Since(start))
	j.res.Status = out.Status
	j.res.BackendCode = out.BackendCode
	j.res.Diagnostics = j.parseDiagnostics(out.Diagnostics.String())
	if !out.OK() {
		return j.fail(StageCompile, out.Status, out.Err())
	}

	produced := outcomeArtifacts(&out)
	if err := j.write(produced, wanted); err != nil {
		return j.writeFailed(err)
	}
	if useCache {
		j.store(ctx, key, produced, wanted, out.Diagnostics.String())
	}
	j.emit(StageWrite, StatusDone, nil, j.res.Timings.Sum(Stages...))
	return j.res
}

func (j *shaderJob) writeFailed(err error) ShaderResult {
	j.res.Diagnostics.Add(diag.NewError(diag.IOWriteArtifact, diag.Location{File: j.shader.Source}, err.Error()))
	return j.fail(StageWrite, j.res.Status, err)
}

func (j *shaderJob) parseDiagnostics(text string) *diag.Bag {
	bag := diag.Parse(text, j.b.maxDiagnostics)
	bag.MapFiles(func(file string) string {
		if file == "" || path.Base(filepath.ToSlash(file)) == dxcli.SourceFile {
			return j.shader.Source
		}
		return file
	})
	return bag
}

// lookup returns a cached entry only when it was stored for at least the
// kinds wanted now.
func (j *shaderJob) lookup(ctx context.Context, key project.Digest, wanted []backend.OutputKind) (*cache.Entry, bool) {
	var entry cache.Entry
	ok, err := j.b.cache.Get(ctx, key, &entry)
	if err != nil {
		j.log.WithError(err).Warn("cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	for _, kind := range wanted {
		if !slices.Contains(entry.Requested, uint8(kind)) {
			return nil, false
		}
	}
	return &entry, true
}

func (j *shaderJob) store(ctx context.Context, key project.Digest, produced artifacts, wanted []backend.OutputKind, diagnostics string) {
	entry := cache.NewEntry(j.b.driver.BackendName())
	entry.Object = produced[backend.KindObject]
	entry.RootSignature = produced[backend.KindRootSignature]
	entry.Diagnostics = diagnostics
	for kind, data := range produced {
		if kind != backend.KindObject && kind != backend.KindRootSignature {
			entry.SetExtra(kind, data)
		}
	}
	for _, kind := range wanted {
		entry.Requested = append(entry.Requested, uint8(kind))
	}
	if err := j.b.cache.Put(ctx, key, entry); err != nil {
		j.log.WithError(err).Warn("cache write failed")
	}
}

// write stores every wanted kind under the output directory. Kinds the
// compiler did not produce are skipped; the object always exists here.
func (j *shaderJob) write(produced artifacts, wanted []backend.OutputKind) error {
	j.emit(StageWrite, StatusWorking, nil, 0)
	start := time.Now()
	defer func() { j.res.Timings.Set(StageWrite, time.Since(start)) }()

	outDir := j.b.manifest.OutDir()
	for _, kind := range wanted {
		data := produced[kind]
		if len(data) == 0 {
			j.log.WithField("kind", kind.String()).Debug("output not produced")
			continue
		}
		rel, ok := j.shader.OutputPath(kind)
		if !ok {
			continue
		}
		dst := filepath.Join(outDir, rel)
		if err := j.b.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return writeError(dst, err)
		}
		if err := afero.WriteFile(j.b.fs, dst, data, 0o644); err != nil {
			return writeError(dst, err)
		}
		j.res.Outputs = append(j.res.Outputs, dst)
	}
	return nil
}

// ErrWriteArtifact wraps failures to store an output file.
var ErrWriteArtifact = errors.New("failed to write artifact")

func writeError(path string, err error) error {
	return fmt.Errorf("%w %q: %w", ErrWriteArtifact, path, err)
}
