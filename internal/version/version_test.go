package version

import (
	"testing"

	"github.com/fatih/color"
)

func withVersion(t *testing.T, v, commit string) {
	t.Helper()
	origVersion, origCommit := Version, GitCommit
	Version, GitCommit = v, commit
	t.Cleanup(func() {
		Version, GitCommit = origVersion, origCommit
	})
}

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestColoredWithoutColor(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })

	cases := map[string]string{
		"1.2.3":                "1.2.3",
		"0.1.0-dev":            "0.1.0-dev",
		"1.2.3-rc.1+build.123": "1.2.3-rc.1+build.123",
		"nightly":              "nightly",
		"":                     "dev",
	}
	for in, want := range cases {
		withVersion(t, in, "")
		if got := Colored(); got != want {
			t.Errorf("Colored() with %q = %q, want %q", in, got, want)
		}
	}
}

func TestColoredWithColor(t *testing.T) {
	orig := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = orig })

	withVersion(t, "1.2.3", "")
	if got := Colored(); got == "1.2.3" {
		t.Errorf("Colored() = %q, want escape sequences", got)
	}
}

func TestShort(t *testing.T) {
	withVersion(t, "1.2.3", "")
	if got := Short(); got != "1.2.3" {
		t.Errorf("Short() = %q", got)
	}
	withVersion(t, "1.2.3", "1234567890abcdef1234567890abcdef12345678")
	if got := Short(); got != "1.2.3 (1234567890ab)" {
		t.Errorf("Short() = %q", got)
	}
}
