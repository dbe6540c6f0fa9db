package diag

import (
	"strings"
	"testing"
)

const maxFuzzInput = 1 << 16

func FuzzParse(f *testing.F) {
	for _, seed := range []string{
		"input.hlsl:3:5: error: use of undeclared identifier 'x'\n  x = 1;\n  ^\n",
		"input.hlsl:1:1: warning: unused variable [-Wunused-variable]\ninput.hlsl:9:2: note: declared here\n",
		"error: validation failed\n",
		"fatal error: 'missing.hlsli' file not found\n",
		"\r\n\r\n:::\n",
		"",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, text string) {
		if len(text) > maxFuzzInput {
			text = text[:maxFuzzInput]
		}
		bag := Parse(text, 16)
		if bag.Len() > 16 {
			t.Fatalf("bag holds %d diagnostics, cap 16", bag.Len())
		}
		if bag.Len() == 0 {
			return
		}
		if lines := strings.Count(FormatShort(bag.Items(), false), "\n") + 1; lines != bag.Len() {
			t.Fatalf("short form has %d lines for %d diagnostics", lines, bag.Len())
		}
	})
}
