package backend

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// ShaderHashSize is the encoded size of a ShaderHash record.
const ShaderHashSize = 4 + 16

// ShaderHashIncludesSource is set in Flags when the digest covers the source.
const ShaderHashIncludesSource uint32 = 1

// ShaderHash is the payload of the shader-hash channel.
type ShaderHash struct {
	Flags  uint32
	Digest [16]byte
}

// ParseShaderHash decodes the little-endian record produced by the backend.
func ParseShaderHash(b []byte) (ShaderHash, error) {
	var h ShaderHash
	if len(b) < ShaderHashSize {
		return h, fmt.Errorf("shader hash: need %d bytes, got %d", ShaderHashSize, len(b))
	}
	h.Flags = binary.LittleEndian.Uint32(b[:4])
	copy(h.Digest[:], b[4:ShaderHashSize])
	return h, nil
}

// String renders the digest as lowercase hex.
func (h ShaderHash) String() string {
	return hex.EncodeToString(h.Digest[:])
}
