package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Reported by the compiler.
	DxcInfo          Code = 1000
	DxcError         Code = 1001
	DxcFatal         Code = 1002
	DxcWarning       Code = 1003
	DxcWarningAsErr  Code = 1004
	DxcValidation    Code = 1005
	DxcUnparsedBlock Code = 1006

	// Reported by the driver about the call itself.
	DrvInfo               Code = 2000
	DrvInvalidArgument    Code = 2001
	DrvBackendUnavailable Code = 2002
	DrvInvocationFailed   Code = 2003
	DrvMissingArtifact    Code = 2004

	IOInfo          Code = 3000
	IOLoadFileError Code = 3001
	IOWriteArtifact Code = 3002

	ProjInfo            Code = 4000
	ProjInvalidManifest Code = 4001
	ProjDuplicateShader Code = 4002
	ProjMissingSource   Code = 4003

	ObsInfo    Code = 5000
	ObsTimings Code = 5001
)

var (
	codeDescription = map[Code]string{
		UnknownCode:           "Unknown error",
		DxcInfo:               "Compiler information",
		DxcError:              "Compiler error",
		DxcFatal:              "Fatal compiler error",
		DxcWarning:            "Compiler warning",
		DxcWarningAsErr:       "Warning treated as error",
		DxcValidation:         "Validation failed",
		DxcUnparsedBlock:      "Unrecognised compiler output",
		DrvInfo:               "Driver information",
		DrvInvalidArgument:    "Invalid compilation request",
		DrvBackendUnavailable: "Compiler backend unavailable",
		DrvInvocationFailed:   "Compiler invocation failed",
		DrvMissingArtifact:    "Compiler produced no object code",
		IOInfo:                "I/O information",
		IOLoadFileError:       "I/O load file error",
		IOWriteArtifact:       "I/O write artifact error",
		ProjInfo:              "Project information",
		ProjInvalidManifest:   "Invalid project manifest",
		ProjDuplicateShader:   "Duplicate shader definition",
		ProjMissingSource:     "Missing shader source",
		ObsInfo:               "Observability information",
		ObsTimings:            "Pipeline timings",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("DXC%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("DRV%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("PRJ%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
