package project

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dxdrive/internal/backend"
	"dxdrive/internal/config"
	"dxdrive/internal/request"
)

const sampleManifest = `
[project]
name = "demo"
out_dir = "out"

[settings]
backend = "scripted"
warnings_as_errors = true
jobs = 3

[[shader]]
source = "shaders/blur.hlsl"
profile = "cs_6_6"
defines = ["RADIUS=4", "FAST"]
flags = ["skip-optimizations"]
outputs = { root-signature = "blur.rts", disassembly = "asm/blur.asm" }

[[shader]]
name = "tonemap"
source = "shaders/tonemap.hlsl"
entry = "ps_main"
profile = "ps_6_0"
encoding = "utf-16"
`

func writeManifest(t *testing.T, fs afero.Fs, body string) string {
	t.Helper()
	path := filepath.Join(string(filepath.Separator), "proj", ManifestName)
	require.NoError(t, afero.WriteFile(fs, path, []byte(body), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := writeManifest(t, fs, sampleManifest)

	m, err := Load(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "demo", m.Project.Name)
	assert.Equal(t, filepath.Join(m.Root, "out"), m.OutDir())
	assert.Equal(t, config.BackendScripted, m.Settings.Backend.String)
	assert.True(t, m.Settings.WarningsAsErrors.Bool)
	assert.EqualValues(t, 3, m.Settings.Jobs.Int64)
	require.Len(t, m.Shaders, 2)

	blur, ok := m.Shader("blur")
	require.True(t, ok)
	assert.Equal(t, "main", blur.Entry)
	req, err := blur.Request([]byte("void main(){}"))
	require.NoError(t, err)
	assert.Equal(t, []request.Define{{Name: "RADIUS", Value: "4"}, {Name: "FAST"}}, req.Defines)
	assert.True(t, req.Flags.Has(request.SkipOptimizations))
	assert.Equal(t, backend.EncodingUTF8, req.Encoding)
	assert.Equal(t, []backend.OutputKind{backend.KindDisassembly}, req.Extras)

	assert.Equal(t, []backend.OutputKind{backend.KindObject, backend.KindRootSignature, backend.KindDisassembly}, blur.OutputKinds())
	objPath, ok := blur.OutputPath(backend.KindObject)
	require.True(t, ok)
	assert.Equal(t, "blur.cso", objPath)
	asmPath, ok := blur.OutputPath(backend.KindDisassembly)
	require.True(t, ok)
	assert.Equal(t, filepath.FromSlash("asm/blur.asm"), asmPath)
	_, ok = blur.OutputPath(backend.KindReflection)
	assert.False(t, ok)

	tonemap, ok := m.Shader("tonemap")
	require.True(t, ok)
	req, err = tonemap.Request([]byte{0xFF, 0xFE})
	require.NoError(t, err)
	assert.Equal(t, backend.EncodingUTF16, req.Encoding)
	assert.Equal(t, "ps_main", req.EntryPoint)
}

func TestLoadManifestErrors(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"no shaders": {
			body: "[project]\nname = \"x\"\n",
			want: "no [[shader]]",
		},
		"missing source": {
			body: "[[shader]]\nprofile = \"cs_6_6\"\n",
			want: "missing source",
		},
		"missing profile": {
			body: "[[shader]]\nsource = \"a.hlsl\"\n",
			want: "missing profile",
		},
		"duplicate": {
			body: "[[shader]]\nsource = \"a.hlsl\"\nprofile = \"cs_6_6\"\n[[shader]]\nsource = \"b/a.hlsl\"\nprofile = \"cs_6_6\"\n",
			want: "duplicate shader name",
		},
		"bad flag": {
			body: "[[shader]]\nsource = \"a.hlsl\"\nprofile = \"cs_6_6\"\nflags = [\"fast\"]\n",
			want: "fast",
		},
		"bad output": {
			body: "[[shader]]\nsource = \"a.hlsl\"\nprofile = \"cs_6_6\"\noutputs = { errors = \"e.txt\" }\n",
			want: "not an output file",
		},
		"escape source": {
			body: "[[shader]]\nsource = \"../a.hlsl\"\nprofile = \"cs_6_6\"\n",
			want: "escapes the project root",
		},
		"unknown key": {
			body: "[[shader]]\nsource = \"a.hlsl\"\nprofile = \"cs_6_6\"\nentrypoint = \"x\"\n",
			want: "unknown key",
		},
		"bad settings": {
			body: "[settings]\nbackend = \"gpu\"\n[[shader]]\nsource = \"a.hlsl\"\nprofile = \"cs_6_6\"\n",
			want: "[settings]",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			_, err := Load(fs, writeManifest(t, fs, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestFindManifestWalksUp(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := writeManifest(t, fs, sampleManifest)
	nested := filepath.Join(filepath.Dir(path), "shaders", "deep")
	require.NoError(t, fs.MkdirAll(nested, 0o755))

	found, ok, err := FindManifest(fs, nested)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, path, found)

	root, ok, err := FindProjectRoot(fs, nested)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Dir(path), root)
}

func TestDigest(t *testing.T) {
	a := Sum([]byte("a"))
	assert.NotEqual(t, Combine(a, Sum([]byte("b"))), Combine(a, Sum([]byte("c"))))
	assert.Len(t, a.String(), 64)
}
