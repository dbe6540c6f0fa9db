package dxcli

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"

	"dxdrive/internal/backend"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// toUTF8 converts source text to the UTF-8 the command-line compiler reads.
// EncodingACP is read as Windows-1252.
func toUTF8(in backend.Buffer) ([]byte, error) {
	var dec *encoding.Decoder
	switch in.Encoding {
	case backend.EncodingUTF8:
		return bytes.TrimPrefix(in.Data, utf8BOM), nil
	case backend.EncodingUTF16:
		dec = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	case backend.EncodingUTF32:
		dec = utf32.UTF32(utf32.LittleEndian, utf32.UseBOM).NewDecoder()
	case backend.EncodingACP:
		dec = charmap.Windows1252.NewDecoder()
	default:
		return nil, fmt.Errorf("unsupported source encoding %s", in.Encoding)
	}
	out, err := dec.Bytes(in.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s source: %w", in.Encoding, err)
	}
	return out, nil
}
