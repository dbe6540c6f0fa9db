package backend

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKindRoundTrip(t *testing.T) {
	for _, kind := range Kinds {
		parsed, err := ParseKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}
	_, err := ParseKind("bogus")
	assert.Error(t, err)
	assert.False(t, OutputKind(0).Valid())
	assert.Equal(t, "kind(42)", OutputKind(42).String())
}

func TestParseShaderHash(t *testing.T) {
	raw := []byte{0x01, 0x00, 0x00, 0x00}
	for i := 0; i < 16; i++ {
		raw = append(raw, byte(i))
	}
	h, err := ParseShaderHash(raw)
	require.NoError(t, err)
	assert.Equal(t, ShaderHashIncludesSource, h.Flags)
	assert.Equal(t, "000102030405060708090a0b0c0d0e0f", h.String())

	_, err = ParseShaderHash(raw[:10])
	assert.Error(t, err)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, StatusOK, StatusCode(nil))
	assert.Equal(t, CodeFailed, StatusCode(errors.New("boom")))

	wrapped := fmt.Errorf("invoke: %w", &StatusError{Code: 7, Err: errors.New("exit")})
	assert.Equal(t, int32(7), StatusCode(wrapped))
	assert.Contains(t, wrapped.Error(), "0x00000007")
}

func TestParseEncoding(t *testing.T) {
	enc, err := ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF8, enc)

	enc, err = ParseEncoding("utf16")
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF16, enc)
	assert.Equal(t, "utf-16", enc.String())
	assert.Equal(t, "cp437", Encoding(437).String())

	_, err = ParseEncoding("latin1")
	assert.Error(t, err)
}
