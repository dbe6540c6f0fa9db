package request

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dxdrive/internal/backend"
)

func validRequest() *CompilationRequest {
	return &CompilationRequest{
		Source:     []byte("valid-program"),
		Encoding:   backend.EncodingUTF8,
		EntryPoint: "main",
		Profile:    "profileA",
	}
}

func TestBuildMinimal(t *testing.T) {
	args, err := Builder{}.Build(validRequest())
	require.NoError(t, err)
	assert.Equal(t, Args{"-E", "main", "-T", "profileA"}, args)
}

func TestBuildBaselineAndDefines(t *testing.T) {
	req := validRequest()
	req.Flags = NewFlagSet(EmbedDebug)
	req.Defines = []Define{
		{Name: "USE_STRUCTURED_BUFFERS"},
		{Name: "ZETA", Value: "1"},
		{Name: "ALPHA", Value: "x y"},
	}
	b := Builder{Baseline: NewFlagSet(WarningsAsErrors, StripReflection)}

	args, err := b.Build(req)
	require.NoError(t, err)
	assert.Equal(t, Args{
		"-E", "main", "-T", "profileA",
		"-Qstrip_reflect", "-WX", "-Zi", "-Qembed_debug",
		"-D", "USE_STRUCTURED_BUFFERS",
		"-D", "ZETA=1",
		"-D", "ALPHA=x y",
	}, args)
}

func TestBuildIsDeterministic(t *testing.T) {
	req := validRequest()
	req.Flags = NewFlagSet(SkipOptimizations, StripDebug, WarningsAsErrors)
	first, err := Builder{}.Build(req)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Builder{}.Build(req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CompilationRequest)
		field  string
	}{
		{"empty source", func(r *CompilationRequest) { r.Source = nil }, "source"},
		{"empty entry", func(r *CompilationRequest) { r.EntryPoint = "" }, "entry point"},
		{"empty profile", func(r *CompilationRequest) { r.Profile = "" }, "profile"},
		{"empty define name", func(r *CompilationRequest) { r.Defines = []Define{{Value: "1"}} }, "define"},
		{"duplicate define", func(r *CompilationRequest) {
			r.Defines = []Define{{Name: "A"}, {Name: "A", Value: "2"}}
		}, "define"},
		{"bad extra", func(r *CompilationRequest) { r.Extras = []backend.OutputKind{99} }, "extras"},
		{"embedded and stripped debug", func(r *CompilationRequest) {
			r.Flags = NewFlagSet(EmbedDebug, StripDebug)
		}, "flags"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(req)
			_, err := Builder{}.Build(req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArgument))
			var argErr *ArgumentError
			require.ErrorAs(t, err, &argErr)
			assert.Equal(t, tc.field, argErr.Field)
		})
	}
	assert.Error(t, Validate(nil))
}

func TestBuildRejectsFlagsConflictingWithBaseline(t *testing.T) {
	req := validRequest()
	req.Flags = NewFlagSet(StripDebug)
	require.NoError(t, Validate(req))

	_, err := Builder{Baseline: NewFlagSet(EmbedDebug)}.Build(req)
	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "flags", argErr.Field)
	assert.Contains(t, argErr.Reason, "embed-debug")
}

func TestStripDebugKeepsDebugInfo(t *testing.T) {
	req := validRequest()
	req.Defines = nil
	req.Flags = NewFlagSet(StripDebug)
	args, err := Builder{}.Build(req)
	require.NoError(t, err)
	assert.Equal(t, Args{"-E", "main", "-T", "profileA", "-Zi", "-Qstrip_debug"}, args)
}

func TestFlagSet(t *testing.T) {
	s := NewFlagSet(SkipOptimizations, WarningsAsErrors)
	assert.True(t, s.Has(WarningsAsErrors))
	assert.False(t, s.Has(StripDebug))
	assert.Equal(t, []Flag{WarningsAsErrors, SkipOptimizations}, s.Flags())
	assert.Equal(t, "warnings-as-errors,skip-optimizations", s.String())
	assert.False(t, s.Without(WarningsAsErrors).Has(WarningsAsErrors))

	f, err := ParseFlag("Strip-Reflection")
	require.NoError(t, err)
	assert.Equal(t, StripReflection, f)
	_, err = ParseFlag("nope")
	assert.Error(t, err)
}

func TestWantsExtra(t *testing.T) {
	req := validRequest()
	req.Extras = []backend.OutputKind{backend.KindShaderHash}
	assert.True(t, req.WantsExtra(backend.KindShaderHash))
	assert.False(t, req.WantsExtra(backend.KindReflection))
	in := req.Input()
	assert.Equal(t, backend.EncodingUTF8, in.Encoding)
	assert.Equal(t, req.Source, in.Data)
}
