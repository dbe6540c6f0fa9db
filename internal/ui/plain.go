package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"

	"dxdrive/internal/buildpipeline"
)

// PlainSink prints one line per finished shader. It is used when the
// terminal UI is off.
type PlainSink struct {
	mu    sync.Mutex
	w     io.Writer
	width int
}

// NewPlainSink pads shader names to the widest of names.
func NewPlainSink(w io.Writer, names []string) *PlainSink {
	width := 0
	for _, n := range names {
		width = max(width, runewidth.StringWidth(n))
	}
	return &PlainSink{w: w, width: width}
}

func (s *PlainSink) OnEvent(ev buildpipeline.Event) {
	if ev.Shader == "" || !ev.Status.Terminal() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name := runewidth.FillRight(ev.Shader, s.width)
	switch ev.Status {
	case buildpipeline.StatusError:
		fmt.Fprintf(s.w, "%6s  %s  %v\n", ev.Status, name, ev.Err)
	default:
		fmt.Fprintf(s.w, "%6s  %s  %s\n", ev.Status, name, ev.Elapsed.Round(100*time.Microsecond))
	}
}
