package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dxdrive/internal/backend"
	"dxdrive/internal/observ"
	"dxdrive/internal/request"
	"dxdrive/internal/trace"
)

var (
	// ErrMissingObject is carried by StatusMissingArtifact outcomes.
	ErrMissingObject = errors.New("backend produced no object code")
	// ErrSilentFailure is carried when the backend reports a failing status
	// without any diagnostics.
	ErrSilentFailure = errors.New("backend failed without diagnostics")
	// ErrNoBackend is carried when the driver has no backend configured.
	ErrNoBackend = errors.New("no backend configured")
)

// Options configures a Driver.
type Options struct {
	Backend backend.Backend
	// Allocator backs every OwnedBuffer; HeapAllocator when nil.
	Allocator Allocator
	// Logger receives one entry per call; discarded when nil.
	Logger logrus.FieldLogger
	// Builder renders request arguments; its Baseline applies to every call.
	Builder       request.Builder
	PhaseObserver PhaseObserver
}

// Driver compiles requests against a backend. It holds no per-call state and
// is safe for concurrent use.
type Driver struct {
	backend  backend.Backend
	alloc    Allocator
	log      logrus.FieldLogger
	builder  request.Builder
	observer PhaseObserver
}

// New creates a Driver.
func New(opts Options) *Driver {
	d := &Driver{
		backend:  opts.Backend,
		alloc:    opts.Allocator,
		log:      opts.Logger,
		builder:  opts.Builder,
		observer: opts.PhaseObserver,
	}
	if d.alloc == nil {
		d.alloc = HeapAllocator{}
	}
	if d.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		d.log = l
	}
	return d
}

// Allocator returns the allocator backing the driver's buffers.
func (d *Driver) Allocator() Allocator { return d.alloc }

// BackendName returns the configured backend's name.
func (d *Driver) BackendName() string {
	if d.backend == nil {
		return ""
	}
	return d.backend.Name()
}

// BackendFingerprint identifies the configured backend build for cache keys.
func (d *Driver) BackendFingerprint() string {
	if d.backend == nil {
		return ""
	}
	return backend.Fingerprint(d.backend)
}

// Args renders the argument list Compile would hand the backend for req,
// baseline flags included.
func (d *Driver) Args(req *request.CompilationRequest) (request.Args, error) {
	return d.builder.Build(req)
}

// Compile runs one compilation. It never returns a Go error: the Outcome's
// Status says what happened, and Outcome.Err converts it when needed.
func (d *Driver) Compile(ctx context.Context, req *request.CompilationRequest) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	p := &pass{
		d:      d,
		ctx:    ctx,
		callID: uuid.NewString(),
		tracer: trace.FromContext(ctx),
		timer:  observ.NewTimer(),
	}
	fields := logrus.Fields{"call_id": p.callID, "backend": d.BackendName()}
	if req != nil {
		fields["entry"] = req.EntryPoint
		fields["profile"] = req.Profile
	}
	p.log = d.log.WithFields(fields)

	span := trace.Begin(p.tracer, trace.ScopeCall, "compile", trace.ParentFromContext(ctx))
	p.span = span.ID()

	out := p.run(req)
	out.CallID = p.callID
	out.Timings = p.timer.Report()

	span.With("call_id", p.callID).With("status", out.Status.String()).End("")
	entry := p.log.WithFields(logrus.Fields{
		"status":   out.Status.String(),
		"total_ms": out.Timings.TotalMS,
	})
	switch out.Status {
	case StatusSuccess:
		entry.WithField("object_bytes", out.Object.Len()).Debug("compiled")
	case StatusCompileErrors:
		entry.WithField("diagnostic_bytes", out.Diagnostics.Len()).Info("compile errors")
	case StatusInvocationFailed:
		entry.WithField("backend_code", fmt.Sprintf("0x%08x", uint32(out.BackendCode))).
			WithError(out.err).Warn("backend invocation failed")
	default:
		entry.WithError(out.err).Warn("compile failed")
	}
	return out
}

// pass is the state of a single Compile call.
type pass struct {
	d      *Driver
	ctx    context.Context
	callID string
	log    *logrus.Entry
	tracer trace.Tracer
	span   uint64
	timer  *observ.Timer

	// phase is the stage in progress; closePhase ends it and is nil between
	// stages.
	phase      string
	closePhase func(note string)
}

// stage opens a stage and returns the function that closes it.
func (p *pass) stage(name string) func(note string) {
	began := time.Now()
	p.phase = name
	if p.d.observer != nil {
		p.d.observer(PhaseEvent{CallID: p.callID, Name: name, Status: PhaseStart})
	}
	span := trace.Begin(p.tracer, trace.ScopeStage, name, p.span)
	endTimer := p.timer.Begin(name)
	end := func(note string) {
		p.closePhase = nil
		endTimer(note)
		span.End(note)
		if p.d.observer != nil {
			p.d.observer(PhaseEvent{CallID: p.callID, Name: name, Status: PhaseEnd, Elapsed: time.Since(began)})
		}
	}
	p.closePhase = end
	return end
}

func (p *pass) fail(status Status, code int32, err error) Outcome {
	return Outcome{Status: status, BackendCode: code, err: err}
}

// recovered turns a backend panic outside Session.Compile into an outcome.
// A panic while creating the session means the backend is unavailable; any
// later one fails the invocation.
func (p *pass) recovered(r any) Outcome {
	if p.closePhase != nil {
		p.closePhase("panic")
	}
	err := fmt.Errorf("backend panic during %s: %v", p.phase, r)
	if p.phase == StageInit {
		return p.fail(StatusBackendUnavailable, 0, fmt.Errorf("%w: %w", backend.ErrUnavailable, err))
	}
	return p.fail(StatusInvocationFailed, backend.CodeFailed, &backend.StatusError{Code: backend.CodeFailed, Err: err})
}

func (p *pass) run(req *request.CompilationRequest) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out.Release()
			out = p.recovered(r)
		}
	}()
	end := p.stage(StageValidate)
	args, err := p.d.builder.Build(req)
	if err != nil {
		end("rejected")
		return p.fail(StatusInvalidArgument, 0, err)
	}
	end(fmt.Sprintf("%d args", len(args)))

	end = p.stage(StageInit)
	if p.d.backend == nil {
		end("unavailable")
		return p.fail(StatusBackendUnavailable, 0, fmt.Errorf("%w: %w", backend.ErrUnavailable, ErrNoBackend))
	}
	sess, err := p.d.backend.NewSession(p.ctx)
	if err != nil {
		end("unavailable")
		return p.fail(StatusBackendUnavailable, 0, fmt.Errorf("%s session: %w", p.d.backend.Name(), err))
	}
	if sess == nil {
		end("unavailable")
		return p.fail(StatusBackendUnavailable, 0, fmt.Errorf("%s session: %w", p.d.backend.Name(), backend.ErrUnavailable))
	}
	end("")
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			p.log.WithError(cerr).Warn("closing backend session")
		}
	}()

	// Invocation is atomic: cancellation of the caller's context does not
	// reach the backend.
	end = p.stage(StageInvoke)
	res, err := invoke(context.WithoutCancel(p.ctx), sess, args, req.Input())
	if err != nil {
		end("failed")
		return p.fail(StatusInvocationFailed, backend.StatusCode(err), err)
	}
	defer res.Release()
	end(fmt.Sprintf("status %d", res.Status()))

	end = p.stage(StageDrainDiagnostics)
	if errs, ok := res.Output(backend.KindErrors); ok && !errs.Empty() {
		diags := newOwnedBuffer(p.d.alloc, errs)
		end(fmt.Sprintf("%d bytes", diags.Len()))
		return Outcome{Status: StatusCompileErrors, Diagnostics: diags}
	}
	if code := res.Status(); code != backend.StatusOK {
		end("silent failure")
		return p.fail(StatusInvocationFailed, code, ErrSilentFailure)
	}
	end("clean")

	end = p.stage(StageDrainArtifacts)
	obj, ok := res.Output(backend.KindObject)
	if !ok || obj.Empty() {
		end("no object")
		return p.fail(StatusMissingArtifact, 0, ErrMissingObject)
	}
	out = Outcome{Status: StatusSuccess, Object: newOwnedBuffer(p.d.alloc, obj)}
	if rs, ok := res.Output(backend.KindRootSignature); ok && !rs.Empty() {
		out.RootSignature = newOwnedBuffer(p.d.alloc, rs)
	}
	for _, kind := range req.Extras {
		switch kind {
		case backend.KindObject, backend.KindRootSignature, backend.KindErrors:
			continue
		}
		if _, dup := out.Extras[kind]; dup {
			continue
		}
		v, ok := res.Output(kind)
		if !ok || v.Empty() {
			continue
		}
		if out.Extras == nil {
			out.Extras = make(map[backend.OutputKind]*OwnedBuffer, len(req.Extras))
		}
		out.Extras[kind] = newOwnedBuffer(p.d.alloc, v)
	}
	end(fmt.Sprintf("object %d bytes, %d extras", out.Object.Len(), len(out.Extras)))
	return out
}

// invoke calls the session, turning a backend panic into an invocation
// failure. A result returned together with an error is released here.
func invoke(ctx context.Context, sess backend.Session, args []string, input backend.Buffer) (res backend.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &backend.StatusError{Code: backend.CodeFailed, Err: fmt.Errorf("backend panic: %v", r)}
		}
	}()
	res, err = sess.Compile(ctx, args, input)
	if err != nil {
		if res != nil {
			res.Release()
		}
		return nil, err
	}
	if res == nil {
		return nil, &backend.StatusError{Code: backend.CodeFailed, Err: errors.New("backend returned no result")}
	}
	return res, nil
}
