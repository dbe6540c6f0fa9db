package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dxdrive/internal/backend"
)

func TestReleasePoisonsViews(t *testing.T) {
	b := NewBackend(Success([]byte{1, 2, 3}))
	sess, err := b.NewSession(context.Background())
	require.NoError(t, err)
	res, err := sess.Compile(context.Background(), nil, backend.Buffer{Data: []byte("x")})
	require.NoError(t, err)

	view, ok := res.Output(backend.KindObject)
	require.True(t, ok)
	res.Release()
	res.Release()
	assert.Equal(t, backend.View{Poison, Poison, Poison}, view)
	_, ok = res.Output(backend.KindObject)
	assert.False(t, ok)
	assert.Equal(t, 1, b.Releases())

	require.NoError(t, sess.Close())
	assert.Equal(t, 0, b.OpenSessions())
}

func TestScriptIsNotShared(t *testing.T) {
	object := []byte{7}
	b := NewBackend(Success(object))
	sess, err := b.NewSession(context.Background())
	require.NoError(t, err)
	res, err := sess.Compile(context.Background(), nil, backend.Buffer{Data: []byte("x")})
	require.NoError(t, err)
	res.Release()
	assert.Equal(t, []byte{7}, object)
}

func TestDevResponder(t *testing.T) {
	args := []string{"-E", "main", "-T", "cs_6_6"}
	ok := DevResponder(args, backend.Buffer{Data: []byte("[RootSignature(\"\")]\nvoid main() {}\n")})
	require.Zero(t, ok.Status)
	assert.NotEmpty(t, ok.Outputs[backend.KindObject])
	assert.NotEmpty(t, ok.Outputs[backend.KindRootSignature])
	assert.Len(t, ok.Outputs[backend.KindShaderHash], backend.ShaderHashSize)
	assert.NotContains(t, ok.Outputs, backend.KindDebugData)

	again := DevResponder(args, backend.Buffer{Data: []byte("[RootSignature(\"\")]\nvoid main() {}\n")})
	assert.Equal(t, ok.Outputs[backend.KindObject], again.Outputs[backend.KindObject])

	bad := DevResponder(args, backend.Buffer{Data: []byte("void main() {}\n#error no way\n")})
	assert.Equal(t, "input.hlsl:2:1: error: no way\n", string(bad.Outputs[backend.KindErrors]))

	warn := []byte("#warning careful\nvoid main() {}\n")
	assert.Empty(t, DevResponder(args, backend.Buffer{Data: warn}).Outputs[backend.KindErrors])
	wx := DevResponder(append(args, "-WX"), backend.Buffer{Data: warn})
	assert.Contains(t, string(wx.Outputs[backend.KindErrors]), "error: careful")
}
