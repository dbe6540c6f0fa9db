// Package diag models compiler diagnostics.
//
// The backend hands diagnostics back as one block of text in its errors
// channel. Parse turns that text into Diagnostic records: a header line of
// the form
//
//	path:line:col: severity: message [-Woption]
//
// followed by the context lines the compiler prints underneath (the source
// line and a caret marker). "note:" headers attach to the preceding
// diagnostic instead of starting a new one. Lines that fit no shape become
// context of the current diagnostic, or an error of their own when there is
// none.
//
// Diagnostics are collected in a Bag with a fixed capacity; the CLI and the
// compile service render bags through internal/diagfmt.
//
// Package diag does no IO and no formatting beyond the short single-line
// form used by golden tests and logs.
package diag
