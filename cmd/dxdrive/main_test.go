package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"dxdrive/internal/backend"
	"dxdrive/internal/buildpipeline"
	"dxdrive/internal/version"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// useMemFs swaps the command file system for an in-memory one.
func useMemFs(t *testing.T) afero.Fs {
	t.Helper()
	prev := appFs
	appFs = afero.NewMemMapFs()
	t.Cleanup(func() { appFs = prev })
	return appFs
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root, finish := newRootCmd()
	t.Cleanup(finish)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func readFile(t *testing.T, fs afero.Fs, path string) []byte {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err, path)
	return data
}

func TestCompileWritesObjectAndChannels(t *testing.T) {
	fs := useMemFs(t)
	src := "#define RootSignature \"CBV(b0)\"\n[numthreads(8,8,1)] void main() {}\n"
	require.NoError(t, afero.WriteFile(fs, "/src/blur.hlsl", []byte(src), 0o644))

	_, stderr, err := execute(t, "compile", "/src/blur.hlsl",
		"--backend", "scripted", "--color", "off", "--log-level", "error",
		"-T", "cs_6_6", "-D", "TILE=8",
		"-o", "/out/blur.cso",
		"--root-signature", "/out/blur.rts",
		"--emit", "disassembly=/out/asm/blur.asm")
	require.NoError(t, err, stderr)

	assert.True(t, bytes.HasPrefix(readFile(t, fs, "/out/blur.cso"), []byte("DXBC")))
	assert.True(t, bytes.HasPrefix(readFile(t, fs, "/out/blur.rts"), []byte("RTS0")))
	listing := string(readFile(t, fs, "/out/asm/blur.asm"))
	assert.Contains(t, listing, "; scripted listing")
	assert.Contains(t, listing, "-D TILE=8")
}

func TestCompileReportsDiagnosticsAgainstTheFile(t *testing.T) {
	fs := useMemFs(t)
	require.NoError(t, afero.WriteFile(fs, "/src/bad.hlsl", []byte("void main() {}\n#error broken lighting\n"), 0o644))

	_, stderr, err := execute(t, "compile", "/src/bad.hlsl",
		"--backend", "scripted", "--color", "off", "--log-level", "error",
		"-T", "ps_6_0", "--diag-format", "short")
	require.Error(t, err)
	assert.Contains(t, stderr, "/src/bad.hlsl:2:1")
	assert.Contains(t, stderr, "broken lighting")

	exists, statErr := afero.Exists(fs, "bad.cso")
	require.NoError(t, statErr)
	assert.False(t, exists)
}

func TestCompileJSONDiagnostics(t *testing.T) {
	fs := useMemFs(t)
	require.NoError(t, afero.WriteFile(fs, "/src/warn.hlsl", []byte("#warning unused\n"), 0o644))

	stdout, _, err := execute(t, "compile", "/src/warn.hlsl",
		"--backend", "scripted", "--color", "off", "--log-level", "error",
		"-T", "ps_6_0", "--warnings-as-errors", "--diag-format", "json")
	require.Error(t, err)

	var payload struct {
		Errors      int `json:"errors"`
		Diagnostics []struct {
			Message string `json:"message"`
		} `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload), stdout)
	assert.Equal(t, 1, payload.Errors)
	require.Len(t, payload.Diagnostics, 1)
	assert.Contains(t, payload.Diagnostics[0].Message, "unused")
}

func TestCompileRejectsConflictingStdout(t *testing.T) {
	fs := useMemFs(t)
	require.NoError(t, afero.WriteFile(fs, "/src/a.hlsl", []byte("void main() {}\n"), 0o644))

	_, _, err := execute(t, "compile", "/src/a.hlsl", "--backend", "scripted",
		"-T", "ps_6_0", "-o", "-", "--diag-format", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdout")
}

func TestCompileMissingProfileIsInvalidArgument(t *testing.T) {
	fs := useMemFs(t)
	require.NoError(t, afero.WriteFile(fs, "/src/a.hlsl", []byte("void main() {}\n"), 0o644))

	_, stderr, err := execute(t, "compile", "/src/a.hlsl", "--backend", "scripted",
		"--color", "off", "--log-level", "error", "--diag-format", "short")
	require.Error(t, err)
	assert.Contains(t, stderr, "DRV")
}

const testManifest = `
[project]
name = "demo"

[settings]
log_level = "error"

[[shader]]
source = "shaders/blur.hlsl"
profile = "cs_6_6"
outputs = { disassembly = "blur.asm" }

[[shader]]
source = "shaders/tonemap.hlsl"
profile = "ps_6_0"
`

func writeProject(t *testing.T, fs afero.Fs) {
	t.Helper()
	files := map[string]string{
		"/proj/dxdrive.toml":         testManifest,
		"/proj/shaders/blur.hlsl":    "[numthreads(8,8,1)] void main() {}\n",
		"/proj/shaders/tonemap.hlsl": "float4 main() : SV_Target { return 1; }\n",
	}
	for path, body := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(body), 0o644))
	}
}

func TestBuildCommandUsesCacheOnSecondRun(t *testing.T) {
	fs := useMemFs(t)
	writeProject(t, fs)
	args := []string{"build", "/proj", "--backend", "scripted", "--ui", "off", "--color", "off"}

	_, stderr, err := execute(t, args...)
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "built 2 shaders (0 cached)")
	assert.True(t, bytes.HasPrefix(readFile(t, fs, "/proj/build/blur.cso"), []byte("DXBC")))
	assert.Contains(t, string(readFile(t, fs, "/proj/build/blur.asm")), "; scripted listing")
	assert.True(t, bytes.HasPrefix(readFile(t, fs, "/proj/build/tonemap.cso"), []byte("DXBC")))

	_, stderr, err = execute(t, args...)
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "built 2 shaders (2 cached)")

	_, stderr, err = execute(t, append(args, "--clean", "--shader", "tonemap")...)
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "built 1 shaders (0 cached)")
}

func TestBuildCommandFailure(t *testing.T) {
	fs := useMemFs(t)
	writeProject(t, fs)
	require.NoError(t, afero.WriteFile(fs, "/proj/shaders/tonemap.hlsl", []byte("#error no tonemapper\n"), 0o644))

	_, stderr, err := execute(t, "build", "/proj", "--backend", "scripted", "--ui", "off",
		"--color", "off", "--keep-going", "--no-cache", "--diag-format", "short")
	require.ErrorIs(t, err, buildpipeline.ErrBuildFailed)
	assert.Contains(t, stderr, filepath.Join("shaders", "tonemap.hlsl")+":1:1")
	assert.Contains(t, stderr, "1 of 2 shaders failed")
}

func TestBuildCommandUnknownShader(t *testing.T) {
	fs := useMemFs(t)
	writeProject(t, fs)

	_, _, err := execute(t, "build", "/proj", "--backend", "scripted", "--ui", "off", "--shader", "nope")
	require.ErrorIs(t, err, buildpipeline.ErrUnknownShader)
}

func TestBuildCommandWithoutManifest(t *testing.T) {
	useMemFs(t)
	_, _, err := execute(t, "build", "/empty", "--backend", "scripted", "--ui", "off")
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version", "--color", "off")
	require.NoError(t, err)
	assert.Equal(t, "dxdrive "+version.Version+"\n", stdout)

	stdout, _, err = execute(t, "version", "--format", "json")
	require.NoError(t, err)
	var payload versionPayload
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload))
	assert.Equal(t, "dxdrive", payload.Tool)
	assert.Equal(t, version.Version, payload.Version)
	assert.NotEmpty(t, payload.Platform)

	_, _, err = execute(t, "version", "--format", "yaml")
	require.Error(t, err)
}

func TestFlagConfigTakesOnlyChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	addPersistentFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--backend=docker", "--max-diagnostics=5", "--strip-reflection"}))

	cfg, err := flagConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "docker", cfg.Backend.String)
	assert.True(t, cfg.Backend.Valid)
	assert.Equal(t, int64(5), cfg.MaxDiagnostics.Int64)
	assert.True(t, cfg.StripReflection.Bool)
	assert.False(t, cfg.LogLevel.Valid)
	assert.False(t, cfg.WarningsAsErrors.Valid)
	assert.False(t, cfg.Jobs.Valid)
}

func TestReadModes(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "AUTO": uiModeAuto, "on": uiModeOn, " off ": uiModeOff} {
		got, err := readUIMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := readUIMode("sometimes")
	require.Error(t, err)

	assert.False(t, shouldUseTUI(uiModeOn, 0))
	assert.True(t, shouldUseTUI(uiModeOn, 2))
	assert.False(t, shouldUseTUI(uiModeOff, 2))

	on, err := readColorMode("always", nil)
	require.NoError(t, err)
	assert.True(t, on)
	_, err = readColorMode("rainbow", nil)
	require.Error(t, err)

	format, err := readDiagFormat("SARIF")
	require.NoError(t, err)
	assert.Equal(t, "sarif", format)
	_, err = readDiagFormat("xml")
	require.Error(t, err)
}

func TestParseEmits(t *testing.T) {
	got, err := parseEmits([]string{"disassembly=a.asm", "reflection=r.bin"})
	require.NoError(t, err)
	assert.Equal(t, map[backend.OutputKind]string{
		backend.KindDisassembly: "a.asm",
		backend.KindReflection:  "r.bin",
	}, got)

	for _, bad := range []string{"disassembly", "object=a.cso", "errors=e.txt", "root-signature=r.rts", "bogus=x"} {
		_, err := parseEmits([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestPrintStageTimings(t *testing.T) {
	var timings buildpipeline.Timings
	timings.Set(buildpipeline.StageLoad, 1500*time.Microsecond)
	timings.Set(buildpipeline.StageCompile, 20*time.Millisecond)

	var out strings.Builder
	require.NoError(t, printStageTimings(&out, timings, 25*time.Millisecond))
	assert.Equal(t, "loaded 1.5 ms\ncompiled 20.0 ms\ntotal 25.0 ms\n", out.String())
}

func TestProfilingFlagsWriteFiles(t *testing.T) {
	fs := useMemFs(t)
	_, _, err := execute(t, "version", "--color", "off", "--mem-profile", "/heap.pprof", "--trace", "/trace.log")
	require.NoError(t, err)

	exists, err := afero.Exists(fs, "/heap.pprof")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = afero.Exists(fs, "/trace.log")
	require.NoError(t, err)
	assert.True(t, exists)
}
