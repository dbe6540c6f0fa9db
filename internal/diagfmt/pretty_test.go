package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dxdrive/internal/diag"
)

func sampleBag() *diag.Bag {
	return diag.Parse(`/work/project/shaders/blur.hlsl:2:9: error: use of undeclared identifier 'tex'
	float4 c = tex.Sample(s, uv);
	           ^
/work/project/shaders/blur.hlsl:1:11: note: did you mean 'Tex'?
/work/project/shaders/blur.hlsl:7:1: warning: implicit truncation [-Wconversion]
`, 8)
}

func TestPathModes(t *testing.T) {
	tests := []struct {
		name     string
		mode     PathMode
		contains string
	}{
		{name: "Absolute path", mode: PathModeAbsolute, contains: "/work/project/shaders/blur.hlsl:2:9"},
		{name: "Relative path", mode: PathModeRelative, contains: "shaders/blur.hlsl:2:9"},
		{name: "Basename only", mode: PathModeBasename, contains: "blur.hlsl:2:9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Pretty(&buf, sampleBag(), PrettyOpts{PathMode: tt.mode, BaseDir: "/work/project"}))
			output := buf.String()
			assert.Contains(t, output, tt.contains)
			assert.Contains(t, output, "ERROR DXC1001")
			assert.Contains(t, output, "use of undeclared identifier")
		})
	}
}

func TestPrettyContextNotesAndSummary(t *testing.T) {
	var buf bytes.Buffer
	err := Pretty(&buf, sampleBag(), PrettyOpts{
		PathMode:    PathModeRelative,
		BaseDir:     "/work/project",
		ShowNotes:   true,
		ShowContext: true,
		Summary:     true,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "shaders/blur.hlsl:2:9: ERROR DXC1001: use of undeclared identifier 'tex'", lines[0])
	assert.Equal(t, "  |     float4 c = tex.Sample(s, uv);", lines[1])
	assert.Equal(t, "  | "+strings.Repeat(" ", 15)+"^", lines[2])
	assert.Equal(t, "shaders/blur.hlsl:1:11: note: did you mean 'Tex'?", lines[3])
	assert.Equal(t, "shaders/blur.hlsl:7:1: WARNING DXC1003: implicit truncation [-Wconversion]", lines[4])
	assert.Equal(t, "1 error, 1 warning", lines[5])
}

func TestAlignCaretWideRunes(t *testing.T) {
	// "値" is three bytes and two columns wide.
	src := "x = 値 + y;"
	caret := strings.Repeat(" ", 10) + "^"
	assert.Equal(t, strings.Repeat(" ", 9)+"^", alignCaret(src, caret))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abcdef", clip("abcdef", 0))
	assert.Equal(t, "abc…", clip("abcdef", 4))
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, sampleBag(), JSONOpts{
		PathMode:     PathModeBasename,
		IncludeNotes: true,
		Max:          1,
	}))
	var out DiagnosticsOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, 1, out.Errors)
	assert.Equal(t, 1, out.Warnings)
	assert.Equal(t, 1, out.Dropped)
	require.Len(t, out.Diagnostics, 1)
	d := out.Diagnostics[0]
	assert.Equal(t, "ERROR", d.Severity)
	assert.Equal(t, "DXC1001", d.Code)
	assert.Equal(t, LocationJSON{File: "blur.hlsl", Line: 2, Column: 9}, d.Location)
	require.Len(t, d.Notes, 1)
	assert.Empty(t, d.Context)
}

func TestSarif(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Sarif(&buf, sampleBag(), SarifRunMeta{ToolVersion: "1.0.0", InvocationArgs: []string{"compile"}}))
	var log sarifLog
	require.NoError(t, json.Unmarshal(buf.Bytes(), &log))
	require.Len(t, log.Runs, 1)
	run := log.Runs[0]
	assert.Equal(t, "dxdrive", run.Tool.Driver.Name)
	assert.Len(t, run.Tool.Driver.Rules, 2)
	require.Len(t, run.Results, 2)
	assert.Equal(t, "error", run.Results[0].Level)
	assert.Equal(t, uint32(2), run.Results[0].Locations[0].PhysicalLocation.Region.StartLine)
	assert.False(t, run.Invocations[0].ExecutionSuccessful)
}
