// Package trace records spans around compilations so slow or hung backend
// invocations can be located after the fact.
//
// # Usage
//
//	dxdrive compile --trace=- --trace-level=detail shader.hlsl -E main -T cs_6_6
//
// # Tracers
//
//   - Nop: disabled tracing, zero overhead.
//   - StreamTracer: writes every event immediately (text or NDJSON).
//   - RingTracer: keeps the last N events in memory for dumps on failure.
//   - MultiTracer: fans out to several tracers.
//
// # Scopes and levels
//
// Scopes order events from coarse to fine: ScopeDriver (a CLI command or a
// batch build), ScopeCall (one compilation), ScopeStage (one stage of the
// compile state machine), ScopeChannel (one output channel drain). A Level
// admits every scope up to its own granularity.
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeStage, "invoke", parent)
//	defer span.End("")
package trace
