// Package backend describes the compiler backend capability the driver calls
// into.
//
// # Object model
//
// A Backend is a factory for Sessions. A Session performs compilations; it is
// not safe for concurrent use and is never shared between calls. Each
// compilation yields a Result owned by the backend:
//
//   - Status – the backend's overall status code (0 means success).
//   - Output – query-by-kind access to independently present channels
//     (object code, errors, debug data, root signature, reflection, shader
//     hash, disassembly, text).
//
// Views returned by Output are borrowed: they alias memory owned by the
// Result and are only valid until Release. Consumers that need the bytes
// after Release must copy them.
//
// # Implementations
//
//   - backend/dxcexec: local dxc executable.
//   - backend/dxcdocker: dxc inside a container image.
//   - testkit: scripted double used by tests.
package backend
