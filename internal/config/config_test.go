package config

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"dxdrive/internal/backend/dxcli"
	"dxdrive/internal/request"
)

func TestConsolidationOrder(t *testing.T) {
	manifest := Config{
		Backend:   null.StringFrom(BackendDocker),
		Jobs:      null.IntFrom(2),
		DebugInfo: null.StringFrom(DebugEmbed),
	}
	env := map[string]string{
		"DXDRIVE_JOBS":               "6",
		"DXDRIVE_WARNINGS_AS_ERRORS": "true",
		"DXDRIVE_LOG_LEVEL":          "debug",
	}
	flags := Config{Backend: null.StringFrom(BackendScripted)}

	c, err := GetConsolidatedConfig(&manifest, env, flags)
	require.NoError(t, err)
	assert.Equal(t, BackendScripted, c.Backend.String)
	assert.EqualValues(t, 6, c.Jobs.Int64)
	assert.True(t, c.WarningsAsErrors.Bool)
	assert.Equal(t, DebugEmbed, c.DebugInfo.String)
	assert.Equal(t, "dxc", c.DxcPath.String)

	lvl, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, lvl)
}

func TestDefaults(t *testing.T) {
	c, err := GetConsolidatedConfig(nil, nil, Config{})
	require.NoError(t, err)
	assert.Equal(t, BackendExec, c.Backend.String)
	assert.False(t, c.Backend.Valid)
	assert.Equal(t, 100, c.DiagnosticLimit())
	n, err := c.JobCount()
	require.NoError(t, err)
	assert.Positive(t, n)
	assert.Equal(t, request.FlagSet(0), c.BaselineFlags())
}

func TestApplyIgnoresNonPositiveCounts(t *testing.T) {
	c := NewConfig().Apply(Config{Jobs: null.IntFrom(0), MaxDiagnostics: null.IntFrom(-1)})
	assert.False(t, c.Jobs.Valid)
	assert.False(t, c.MaxDiagnostics.Valid)
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	_, err := GetConsolidatedConfig(nil, map[string]string{"DXDRIVE_BACKEND": "wasm"}, Config{})
	assert.ErrorContains(t, err, "backend must be")

	_, err = GetConsolidatedConfig(nil, nil, Config{DebugInfo: null.StringFrom("full")})
	assert.ErrorContains(t, err, "debug_info")

	_, err = GetConsolidatedConfig(nil, nil, Config{LogLevel: null.StringFrom("loud")})
	assert.ErrorContains(t, err, "log_level")

	_, err = FromEnv(map[string]string{"DXDRIVE_JOBS": "many"})
	assert.Error(t, err)
}

func TestBaselineFlags(t *testing.T) {
	c := NewConfig().Apply(Config{
		WarningsAsErrors: null.BoolFrom(true),
		DebugInfo:        null.StringFrom(DebugStrip),
		StripReflection:  null.BoolFrom(true),
	})
	fs := c.BaselineFlags()
	assert.True(t, fs.Has(request.WarningsAsErrors))
	assert.True(t, fs.Has(request.StripDebug))
	assert.True(t, fs.Has(request.StripReflection))
	assert.False(t, fs.Has(request.EmbedDebug))
}

func TestStripDebugInfoRequestsSeparateDebugFile(t *testing.T) {
	c := NewConfig().Apply(Config{DebugInfo: null.StringFrom(DebugStrip)})
	req := &request.CompilationRequest{Source: []byte("src"), EntryPoint: "main", Profile: "cs_6_6"}

	args, err := request.Builder{Baseline: c.BaselineFlags()}.Build(req)
	require.NoError(t, err)
	cmd := dxcli.CommandArgs(args)
	assert.Subset(t, cmd, []string{"-Zi", "-Qstrip_debug"})
	assert.Contains(t, strings.Join(cmd, " "), "-Fd "+dxcli.DebugFile)

	c = NewConfig().Apply(Config{DebugInfo: null.StringFrom(DebugEmbed)})
	args, err = request.Builder{Baseline: c.BaselineFlags()}.Build(req)
	require.NoError(t, err)
	assert.NotContains(t, dxcli.CommandArgs(args), "-Fd")
}
