package request

import (
	"fmt"
	"strings"
)

// Flag is a single compiler flag.
type Flag uint8

const (
	// WarningsAsErrors promotes warnings to errors (-WX).
	WarningsAsErrors Flag = 1 << iota
	// EmbedDebug emits and embeds debug information (-Zi -Qembed_debug).
	EmbedDebug
	// StripDebug emits debug information into a separate debug-data channel
	// and keeps it out of the object (-Zi -Qstrip_debug).
	StripDebug
	// StripReflection removes reflection data from the object (-Qstrip_reflect).
	StripReflection
	// SkipOptimizations disables optimizations (-Od).
	SkipOptimizations
)

// canonicalFlags fixes the rendering order of flags.
var canonicalFlags = []Flag{
	StripDebug,
	StripReflection,
	WarningsAsErrors,
	EmbedDebug,
	SkipOptimizations,
}

var flagNames = map[Flag]string{
	WarningsAsErrors:  "warnings-as-errors",
	EmbedDebug:        "embed-debug",
	StripDebug:        "strip-debug",
	StripReflection:   "strip-reflection",
	SkipOptimizations: "skip-optimizations",
}

var flagArgs = map[Flag][]string{
	WarningsAsErrors:  {"-WX"},
	EmbedDebug:        {"-Zi", "-Qembed_debug"},
	StripDebug:        {"-Zi", "-Qstrip_debug"},
	StripReflection:   {"-Qstrip_reflect"},
	SkipOptimizations: {"-Od"},
}

func (f Flag) String() string {
	if name, ok := flagNames[f]; ok {
		return name
	}
	return fmt.Sprintf("flag(%d)", uint8(f))
}

// ParseFlag converts a flag name to a Flag.
func ParseFlag(s string) (Flag, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for flag, name := range flagNames {
		if name == want {
			return flag, nil
		}
	}
	return 0, fmt.Errorf("unknown compiler flag %q", s)
}

// FlagSet is a set of flags.
type FlagSet uint8

// NewFlagSet builds a set from flags.
func NewFlagSet(flags ...Flag) FlagSet {
	var s FlagSet
	for _, f := range flags {
		s = s.With(f)
	}
	return s
}

// With returns the set including f.
func (s FlagSet) With(f Flag) FlagSet { return s | FlagSet(f) }

// Without returns the set excluding f.
func (s FlagSet) Without(f Flag) FlagSet { return s &^ FlagSet(f) }

// Has reports whether f is in the set.
func (s FlagSet) Has(f Flag) bool { return s&FlagSet(f) != 0 }

// Union merges two sets.
func (s FlagSet) Union(o FlagSet) FlagSet { return s | o }

// conflicts reports a pair of members that cannot be requested together.
func (s FlagSet) conflicts() (Flag, Flag, bool) {
	if s.Has(EmbedDebug) && s.Has(StripDebug) {
		return EmbedDebug, StripDebug, true
	}
	return 0, 0, false
}

// Flags lists members in canonical order.
func (s FlagSet) Flags() []Flag {
	out := make([]Flag, 0, len(canonicalFlags))
	for _, f := range canonicalFlags {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s FlagSet) String() string {
	flags := s.Flags()
	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = f.String()
	}
	return strings.Join(names, ",")
}
