package testkit

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"dxdrive/internal/backend"
)

// DevResponder imitates a compiler closely enough to exercise the tool
// without one installed. Lines starting with "#error" become error
// diagnostics; "#warning" lines are reported only under -WX, as errors.
// Otherwise the object is a digest of arguments and source, so identical
// requests produce identical bytes.
func DevResponder(args []string, input backend.Buffer) Script {
	var diags strings.Builder
	wx := false
	for _, a := range args {
		if a == "-WX" {
			wx = true
		}
	}
	sc := bufio.NewScanner(bytes.NewReader(input.Data))
	line := 0
	failed := false
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(text, "#error"):
			failed = true
			fmt.Fprintf(&diags, "input.hlsl:%d:1: error: %s\n", line, strings.TrimSpace(strings.TrimPrefix(text, "#error")))
		case strings.HasPrefix(text, "#warning"):
			msg := strings.TrimSpace(strings.TrimPrefix(text, "#warning"))
			if wx {
				failed = true
				fmt.Fprintf(&diags, "input.hlsl:%d:1: error: %s [-Werror,-W#warnings]\n", line, msg)
			}
		}
	}
	if failed {
		return Script{Status: 1, Outputs: map[backend.OutputKind][]byte{backend.KindErrors: []byte(diags.String())}}
	}

	h := sha256.New()
	for _, a := range args {
		h.Write([]byte(a))
		h.Write([]byte{0})
	}
	h.Write(input.Data)
	sum := h.Sum(nil)

	object := append([]byte("DXBC"), sum...)
	hash := make([]byte, backend.ShaderHashSize)
	binary.LittleEndian.PutUint32(hash, 0)
	copy(hash[4:], sum[:16])

	outputs := map[backend.OutputKind][]byte{
		backend.KindObject:      object,
		backend.KindShaderHash:  hash,
		backend.KindDisassembly: []byte(fmt.Sprintf("; scripted listing\n; args: %s\n; digest: %x\n", strings.Join(args, " "), sum)),
		backend.KindReflection:  append([]byte("RDAT"), sum[:8]...),
	}
	if bytes.Contains(input.Data, []byte("RootSignature")) {
		outputs[backend.KindRootSignature] = append([]byte("RTS0"), sum[:8]...)
	}
	for _, a := range args {
		if a == "-Zi" {
			outputs[backend.KindDebugData] = append([]byte("PDB\x00"), sum...)
		}
	}
	return Script{Outputs: outputs}
}
