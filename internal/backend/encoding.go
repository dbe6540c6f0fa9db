package backend

import "fmt"

// Encoding is an opaque code-page tag attached to source bytes.
type Encoding uint32

const (
	// EncodingACP means "system code page"; the backend guesses.
	EncodingACP Encoding = 0
	// EncodingUTF8 is UTF-8.
	EncodingUTF8 Encoding = 65001
	// EncodingUTF16 is little-endian UTF-16.
	EncodingUTF16 Encoding = 1200
	// EncodingUTF32 is little-endian UTF-32.
	EncodingUTF32 Encoding = 12000
)

func (e Encoding) String() string {
	switch e {
	case EncodingACP:
		return "acp"
	case EncodingUTF8:
		return "utf-8"
	case EncodingUTF16:
		return "utf-16"
	case EncodingUTF32:
		return "utf-32"
	default:
		return fmt.Sprintf("cp%d", uint32(e))
	}
}

// ParseEncoding accepts the names produced by String.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "utf-16", "utf16":
		return EncodingUTF16, nil
	case "utf-32", "utf32":
		return EncodingUTF32, nil
	case "acp":
		return EncodingACP, nil
	default:
		return EncodingUTF8, fmt.Errorf("unknown encoding %q (expected utf-8|utf-16|utf-32|acp)", s)
	}
}
