package diag

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

type shortDiagnostic struct {
	Severity string
	Code     string
	Loc      Location
	Message  string
}

// FormatShort renders diagnostics one per line in a stable order, suitable
// for golden tests and log fields. Notes follow as "note" lines when
// includeNotes is set.
func FormatShort(diags []Diagnostic, includeNotes bool) string {
	if len(diags) == 0 {
		return ""
	}
	rendered := make([]shortDiagnostic, 0, len(diags))
	for _, d := range diags {
		rendered = append(rendered, shortDiagnostic{
			Severity: d.Severity.Label(),
			Code:     d.Code.ID(),
			Loc:      normalizeLocation(d.Primary),
			Message:  sanitizeMessage(d.Message),
		})
		if includeNotes {
			for _, n := range d.Notes {
				rendered = append(rendered, shortDiagnostic{
					Severity: "note",
					Code:     d.Code.ID(),
					Loc:      normalizeLocation(n.Loc),
					Message:  sanitizeMessage(n.Msg),
				})
			}
		}
	}

	if !includeNotes {
		sort.SliceStable(rendered, func(i, j int) bool {
			di, dj := rendered[i], rendered[j]
			if di.Loc.File != dj.Loc.File {
				return di.Loc.File < dj.Loc.File
			}
			if di.Loc.Line != dj.Loc.Line {
				return di.Loc.Line < dj.Loc.Line
			}
			if di.Loc.Column != dj.Loc.Column {
				return di.Loc.Column < dj.Loc.Column
			}
			return di.Message < dj.Message
		})
	}

	var b strings.Builder
	for i, d := range rendered {
		fmt.Fprintf(&b, "%s %s %s %s", d.Severity, d.Code, d.Loc, d.Message)
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func normalizeLocation(loc Location) Location {
	p := filepath.ToSlash(loc.File)
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	loc.File = p
	return loc
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
