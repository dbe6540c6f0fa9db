package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dxdrive/internal/buildpipeline"
)

func TestProgressModelTracksShaders(t *testing.T) {
	events := make(chan buildpipeline.Event)
	m := NewProgressModel("build demo", []string{"blur", "tonemap"}, events).(*progressModel)

	m.applyEvent(buildpipeline.Event{Shader: "blur", Stage: buildpipeline.StageCompile, Status: buildpipeline.StatusWorking})
	assert.Equal(t, "compiling", m.items[0].label())
	assert.InDelta(t, 0.25, m.percent(), 1e-9)

	m.applyEvent(buildpipeline.Event{Shader: "blur", Stage: buildpipeline.StageWrite, Status: buildpipeline.StatusDone, Elapsed: 12 * time.Millisecond})
	m.applyEvent(buildpipeline.Event{Shader: "tonemap", Stage: buildpipeline.StageCache, Status: buildpipeline.StatusCached})
	m.applyEvent(buildpipeline.Event{Shader: "unknown", Stage: buildpipeline.StageLoad, Status: buildpipeline.StatusError})
	assert.InDelta(t, 1.0, m.percent(), 1e-9)

	view := m.View()
	assert.Contains(t, view, "blur")
	assert.Contains(t, view, "cached")
	assert.Contains(t, view, "build demo")
	assert.Contains(t, view, "12ms")
	assert.Contains(t, view, "2/2 built, 1 cached, 0 failed")
}

func TestProgressModelShowsFailure(t *testing.T) {
	events := make(chan buildpipeline.Event)
	m := NewProgressModel("build", []string{"blur"}, events).(*progressModel)

	m.applyEvent(buildpipeline.Event{Shader: "blur", Stage: buildpipeline.StageCompile, Status: buildpipeline.StatusError, Err: errors.New("blur: compile-errors")})
	assert.Equal(t, "error", m.items[0].label())
	assert.Contains(t, m.View(), "blur: compile-errors")
	assert.Equal(t, "0/1 built, 0 cached, 1 failed", m.counts())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "shade...", truncate("shaders/very/long/name.hlsl", 8))
}

func TestPlainSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewPlainSink(&buf, []string{"blur", "tonemap"})

	sink.OnEvent(buildpipeline.Event{Shader: "blur", Stage: buildpipeline.StageCompile, Status: buildpipeline.StatusWorking})
	sink.OnEvent(buildpipeline.Event{Shader: "blur", Stage: buildpipeline.StageWrite, Status: buildpipeline.StatusDone, Elapsed: 3 * time.Millisecond})
	sink.OnEvent(buildpipeline.Event{Shader: "tonemap", Stage: buildpipeline.StageCompile, Status: buildpipeline.StatusError, Err: errors.New("tonemap: compile-errors")})
	sink.OnEvent(buildpipeline.Event{Stage: buildpipeline.StageWrite, Status: buildpipeline.StatusError})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"  done  blur     3ms",
		" error  tonemap  tonemap: compile-errors",
	}, lines)
}
