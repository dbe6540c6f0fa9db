package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dxcOutput = `shaders/blur.hlsl:12:5: error: use of undeclared identifier 'tex'
    tex.Sample(s, uv);
    ^
shaders/blur.hlsl:3:10: note: did you mean 'Tex'?
Texture2D Tex : register(t0);
          ^
shaders/blur.hlsl:20:1: warning: implicit truncation of vector type [-Wconversion]
shaders/blur.hlsl:12:5: error: use of undeclared identifier 'tex'
shaders/blur.hlsl:30:9: error: unused variable 'k' [-Werror,-Wunused-variable]
1 warning and 3 errors generated.
`

func TestParseDxcOutput(t *testing.T) {
	bag := Parse(dxcOutput, 10)
	require.Equal(t, 3, bag.Len())
	items := bag.Items()

	first := items[0]
	assert.Equal(t, SevError, first.Severity)
	assert.Equal(t, DxcError, first.Code)
	assert.Equal(t, Location{File: "shaders/blur.hlsl", Line: 12, Column: 5}, first.Primary)
	assert.Equal(t, "use of undeclared identifier 'tex'", first.Message)
	require.Len(t, first.Notes, 1)
	assert.Equal(t, "did you mean 'Tex'?", first.Notes[0].Msg)
	assert.Equal(t, uint32(3), first.Notes[0].Loc.Line)
	assert.Len(t, first.Notes[0].Context, 2)
	src, caret, ok := first.Caret()
	require.True(t, ok)
	assert.Equal(t, "    tex.Sample(s, uv);", src)
	assert.Equal(t, "    ^", caret)

	assert.Equal(t, SevWarning, items[1].Severity)
	assert.Equal(t, "-Wconversion", items[1].Option)
	assert.Equal(t, "implicit truncation of vector type", items[1].Message)

	assert.Equal(t, DxcWarningAsErr, items[2].Code)
	assert.Equal(t, "-Wunused-variable", items[2].Option)

	errs, warns := bag.Counts()
	assert.Equal(t, 2, errs)
	assert.Equal(t, 1, warns)
	assert.True(t, bag.HasErrors())
}

func TestParseUnstructuredText(t *testing.T) {
	bag := Parse("syntax error", 4)
	require.Equal(t, 1, bag.Len())
	d := bag.Items()[0]
	assert.Equal(t, DxcUnparsedBlock, d.Code)
	assert.Equal(t, SevError, d.Severity)
	assert.Equal(t, "syntax error", d.Message)
	assert.False(t, d.Primary.Known())
}

func TestParseBareAndValidation(t *testing.T) {
	bag := Parse("error: validation errors\nFunction: main: error: Entry function not found\nfatal error: cannot open file 'x.hlsl'\n", 4)
	require.Equal(t, 2, bag.Len())
	assert.Equal(t, DxcValidation, bag.Items()[0].Code)
	assert.Equal(t, []string{"Function: main: error: Entry function not found"}, bag.Items()[0].Context)
	assert.Equal(t, DxcFatal, bag.Items()[1].Code)
}

func TestParseRespectsCapacity(t *testing.T) {
	bag := Parse("a.hlsl:1:1: error: one\na.hlsl:2:1: error: two\na.hlsl:3:1: error: three\n", 2)
	assert.Equal(t, 2, bag.Len())
	assert.Equal(t, 1, bag.Dropped())
}

func TestFormatShort(t *testing.T) {
	bag := Parse(dxcOutput, 10)
	expected := "error DXC1001 shaders/blur.hlsl:12:5 use of undeclared identifier 'tex'\n" +
		"warning DXC1003 shaders/blur.hlsl:20:1 implicit truncation of vector type\n" +
		"error DXC1004 shaders/blur.hlsl:30:9 unused variable 'k'"
	assert.Equal(t, expected, FormatShort(bag.Items(), false))

	withNotes := FormatShort(bag.Items()[:1], true)
	assert.Equal(t, "error DXC1001 shaders/blur.hlsl:12:5 use of undeclared identifier 'tex'\n"+
		"note DXC1001 shaders/blur.hlsl:3:10 did you mean 'Tex'?", withNotes)
}

func TestBagSortAndMerge(t *testing.T) {
	a := NewBag(1)
	a.Add(NewError(DxcError, Location{File: "b.hlsl", Line: 1}, "late file"))
	b := NewBag(4)
	b.Add(New(SevWarning, DxcWarning, Location{File: "a.hlsl", Line: 2}, "w"))
	b.Add(NewError(DxcError, Location{File: "a.hlsl", Line: 2}, "e"))
	a.Merge(b)
	a.Sort()

	require.Equal(t, 3, a.Len())
	assert.Equal(t, "e", a.Items()[0].Message)
	assert.Equal(t, "w", a.Items()[1].Message)
	assert.Equal(t, "late file", a.Items()[2].Message)
	assert.Equal(t, "[DXC1001]: Compiler error", DxcError.String())
	assert.Equal(t, "E0000", Code(9999).ID())
}
