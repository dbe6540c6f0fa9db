// Package driver runs one compilation through a backend and hands the
// selected artifacts to the caller as buffers the caller owns.
//
// # Protocol
//
// Each Compile call is a single pass through a fixed sequence of stages:
//
//   - validate – the request builder checks the request and renders the
//     argument list. Failures end in StatusInvalidArgument before the backend
//     is touched.
//   - init – a fresh backend session is created for this call alone.
//     Failures end in StatusBackendUnavailable.
//   - invoke – the session compiles. An invocation error ends in
//     StatusInvocationFailed carrying the backend's native status code.
//   - drain_diagnostics – a non-empty errors channel ends in
//     StatusCompileErrors with the text copied out, whatever the result's
//     own status says.
//   - drain_artifacts – object code is mandatory (StatusMissingArtifact
//     otherwise); the root signature and any requested extra channels are
//     copied when present.
//
// There are no retries and no loops. Backend results are released before
// Compile returns, so nothing the caller receives aliases backend memory.
//
// # Ownership
//
// Every OwnedBuffer is a fresh block from the driver's Allocator. The caller
// releases it with OwnedBuffer.Release (or Outcome.Release), which hands the
// block back to that same allocator. The driver keeps no reference after
// returning.
//
// # Concurrency
//
// Driver carries configuration only. Concurrent Compile calls are
// independent because each one opens and closes its own session.
package driver
