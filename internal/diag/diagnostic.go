package diag

import "fmt"

// Location is a position in a source file. Line and Column are 1-based; a
// zero Line means the diagnostic has no position.
type Location struct {
	File   string `json:"file,omitempty"`
	Line   uint32 `json:"line,omitempty"`
	Column uint32 `json:"column,omitempty"`
}

// Known reports whether the location points somewhere.
func (l Location) Known() bool { return l.Line > 0 }

func (l Location) String() string {
	switch {
	case !l.Known() && l.File == "":
		return "<unknown>"
	case !l.Known():
		return l.File
	case l.Column == 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
}

type Note struct {
	Loc Location
	Msg string
	// Context holds source and caret lines printed under the note.
	Context []string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Location
	// Option is the warning flag reported with the message, e.g. "-Wunused-value".
	Option string
	// Context holds source and caret lines printed under the header.
	Context []string
	Notes   []Note
}

func New(sev Severity, code Code, primary Location, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Message:  msg,
	}
}

func NewError(code Code, primary Location, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

func (d Diagnostic) WithNote(loc Location, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Loc: loc, Msg: msg})
	return d
}

// Caret returns the caret line from the context, if the compiler printed one.
func (d Diagnostic) Caret() (source, caret string, ok bool) {
	for i := 1; i < len(d.Context); i++ {
		if isCaretLine(d.Context[i]) {
			return d.Context[i-1], d.Context[i], true
		}
	}
	return "", "", false
}
