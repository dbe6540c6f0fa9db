package diag

import (
	"regexp"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

var (
	headerRe  = regexp.MustCompile(`^(.*?):(\d+):(?:(\d+):)? (fatal error|error|warning|note|remark): (.*)$`)
	bareRe    = regexp.MustCompile(`^(fatal error|error|warning|note|remark): (.*)$`)
	optionRe  = regexp.MustCompile(`\s\[(-W[^\]]+)\]$`)
	summaryRe = regexp.MustCompile(`^\d+ (?:warnings?|errors?)(?: and \d+ (?:warnings?|errors?))? generated\.$`)
)

// Parse reads compiler diagnostic text into a new bag holding at most max
// diagnostics. Repeated diagnostics are reported once.
func Parse(text string, max int) *Bag {
	bag := NewBag(max)
	ParseInto(NewDedupReporter(BagReporter{Bag: bag}), text)
	return bag
}

// ParseInto reports every diagnostic found in text to r.
func ParseInto(r Reporter, text string) {
	p := parser{r: r}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		p.line(line)
	}
	p.flush()
}

type parser struct {
	r    Reporter
	cur  *Diagnostic
	note *Note
}

func (p *parser) line(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if summaryRe.MatchString(strings.TrimSpace(line)) {
		return
	}
	if loc, kind, msg, ok := parseHeader(line); ok {
		p.header(loc, kind, msg)
		return
	}
	switch {
	case p.note != nil:
		p.note.Context = append(p.note.Context, line)
	case p.cur != nil:
		p.cur.Context = append(p.cur.Context, line)
	default:
		d := NewError(DxcUnparsedBlock, Location{}, strings.TrimSpace(line))
		p.cur = &d
	}
}

func (p *parser) header(loc Location, kind, msg string) {
	if kind == "note" {
		if p.cur == nil {
			d := New(SevInfo, DxcInfo, loc, msg)
			p.cur = &d
			return
		}
		p.closeNote()
		p.note = &Note{Loc: loc, Msg: msg}
		return
	}
	p.flush()
	d := Diagnostic{Primary: loc, Message: msg}
	if m := optionRe.FindStringSubmatch(msg); m != nil {
		d.Message = strings.TrimSpace(msg[:len(msg)-len(m[0])])
		d.Option = m[1]
	}
	switch kind {
	case "fatal error":
		d.Severity, d.Code = SevError, DxcFatal
	case "error":
		d.Severity, d.Code = SevError, DxcError
		if after, ok := strings.CutPrefix(d.Option, "-Werror,"); ok {
			d.Code = DxcWarningAsErr
			d.Option = after
		} else if strings.Contains(strings.ToLower(d.Message), "validation") {
			d.Code = DxcValidation
		}
	case "warning":
		d.Severity, d.Code = SevWarning, DxcWarning
	default:
		d.Severity, d.Code = SevInfo, DxcInfo
	}
	p.cur = &d
}

func (p *parser) closeNote() {
	if p.note != nil && p.cur != nil {
		p.cur.Notes = append(p.cur.Notes, *p.note)
	}
	p.note = nil
}

func (p *parser) flush() {
	p.closeNote()
	if p.cur != nil {
		p.r.Report(*p.cur)
	}
	p.cur = nil
}

func parseHeader(line string) (Location, string, string, bool) {
	if m := headerRe.FindStringSubmatch(line); m != nil {
		lineNo, err := parseUint32(m[2])
		if err != nil {
			return Location{}, "", "", false
		}
		loc := Location{File: m[1], Line: lineNo}
		if m[3] != "" {
			col, err := parseUint32(m[3])
			if err != nil {
				return Location{}, "", "", false
			}
			loc.Column = col
		}
		return loc, m[4], m[5], true
	}
	if m := bareRe.FindStringSubmatch(line); m != nil {
		return Location{}, m[1], m[2], true
	}
	return Location{}, "", "", false
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return safecast.Conv[uint32](n)
}

func isCaretLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || !strings.Contains(trimmed, "^") {
		return false
	}
	return strings.Trim(trimmed, "^~ ") == ""
}
