package backend

import (
	"fmt"
	"strings"
)

// OutputKind identifies a named output channel.
type OutputKind uint8

const (
	// KindObject is compiled object code.
	KindObject OutputKind = iota + 1
	// KindErrors carries diagnostic text.
	KindErrors
	// KindDebugData carries the program database.
	KindDebugData
	// KindRootSignature carries the serialized root signature.
	KindRootSignature
	// KindReflection carries reflection metadata.
	KindReflection
	// KindShaderHash carries a DxcShaderHash record.
	KindShaderHash
	// KindDisassembly carries the assembly listing.
	KindDisassembly
	// KindText carries textual output (preprocessed source and similar).
	KindText
)

// Kinds lists every output kind in declaration order.
var Kinds = []OutputKind{
	KindObject,
	KindErrors,
	KindDebugData,
	KindRootSignature,
	KindReflection,
	KindShaderHash,
	KindDisassembly,
	KindText,
}

var kindNames = map[OutputKind]string{
	KindObject:        "object",
	KindErrors:        "errors",
	KindDebugData:     "debug-data",
	KindRootSignature: "root-signature",
	KindReflection:    "reflection",
	KindShaderHash:    "shader-hash",
	KindDisassembly:   "disassembly",
	KindText:          "text",
}

// String returns the stable name of the kind.
func (k OutputKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the declared kinds.
func (k OutputKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind converts a kind name back to an OutputKind.
func ParseKind(s string) (OutputKind, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for kind, name := range kindNames {
		if name == want {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown output kind %q", s)
}
