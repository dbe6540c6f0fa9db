package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"dxdrive/internal/diag"
)

type palette struct {
	err, warn, info, note, loc, caret, dim *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:   color.New(color.FgRed, color.Bold),
		warn:  color.New(color.FgYellow, color.Bold),
		info:  color.New(color.FgCyan),
		note:  color.New(color.FgBlue, color.Bold),
		loc:   color.New(color.Bold),
		caret: color.New(color.FgGreen, color.Bold),
		dim:   color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.note, p.loc, p.caret, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty renders diagnostics for a terminal. Each diagnostic prints as
//
//	<path>:<line>:<col>: <SEV> <CODE>: <Message> [<option>]
//
// followed by the source line with a caret re-aligned to display width, then
// notes in the same shape. Items are printed in bag order; call bag.Sort
// first for a stable order.
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) error {
	if bag == nil {
		return nil
	}
	pal := newPalette(opts.Color)
	var b strings.Builder
	for _, d := range bag.Items() {
		writeHeader(&b, pal, opts, d.Primary, pal.severity(d.Severity).Sprint(d.Severity.String()), d.Code.ID(), d.Message, d.Option)
		if opts.ShowContext {
			writeContext(&b, pal, opts, d.Context)
		}
		if opts.ShowNotes {
			for _, n := range d.Notes {
				writeHeader(&b, pal, opts, n.Loc, pal.note.Sprint("note"), "", n.Msg, "")
				if opts.ShowContext {
					writeContext(&b, pal, opts, n.Context)
				}
			}
		}
	}
	if opts.Summary {
		errs, warns := bag.Counts()
		fmt.Fprintf(&b, "%s, %s", plural(errs, "error"), plural(warns, "warning"))
		if dropped := bag.Dropped(); dropped > 0 {
			fmt.Fprintf(&b, " (%d more not shown)", dropped)
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeHeader(b *strings.Builder, pal palette, opts PrettyOpts, loc diag.Location, sev, code, msg, option string) {
	if loc.File != "" || loc.Known() {
		loc.File = formatPath(loc.File, opts.PathMode, opts.BaseDir)
		b.WriteString(pal.loc.Sprint(loc.String()))
		b.WriteString(": ")
	}
	b.WriteString(sev)
	if code != "" {
		b.WriteString(" " + code)
	}
	b.WriteString(": " + msg)
	if option != "" {
		b.WriteString(pal.dim.Sprint(" [" + option + "]"))
	}
	b.WriteByte('\n')
}

func writeContext(b *strings.Builder, pal palette, opts PrettyOpts, lines []string) {
	for i := 0; i < len(lines); i++ {
		line := expandTabs(lines[i])
		if i+1 < len(lines) && isCaret(lines[i+1]) {
			b.WriteString("  | " + clip(line, opts.Width) + "\n")
			b.WriteString("  | " + pal.caret.Sprint(alignCaret(lines[i], lines[i+1])) + "\n")
			i++
			continue
		}
		b.WriteString("  | " + pal.dim.Sprint(clip(line, opts.Width)) + "\n")
	}
}

// alignCaret moves the caret marker so it sits under the same character of
// src when src contains wide or multi-byte runes. The compiler counts
// columns in bytes.
func alignCaret(src, caretLine string) string {
	start := strings.IndexAny(caretLine, "^~")
	if start < 0 {
		return caretLine
	}
	marks := strings.TrimRight(caretLine[start:], " ")
	prefix := src
	if start < len(prefix) {
		prefix = prefix[:start]
	}
	return strings.Repeat(" ", runewidth.StringWidth(expandTabs(prefix))) + marks
}

func clip(line string, width int) string {
	if width <= 0 || runewidth.StringWidth(line) <= width {
		return line
	}
	return runewidth.Truncate(line, width, "…")
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}

func isCaret(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && strings.Contains(trimmed, "^") && strings.Trim(trimmed, "^~ ") == ""
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
