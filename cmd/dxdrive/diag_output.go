package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"dxdrive/internal/diag"
	"dxdrive/internal/diagfmt"
	"dxdrive/internal/version"
)

type diagOutput struct {
	format  string
	color   bool
	baseDir string
	width   int
}

func readDiagFormat(value string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(value))
	switch format {
	case "", "pretty":
		return "pretty", nil
	case "json", "sarif", "short":
		return format, nil
	default:
		return "", fmt.Errorf("unknown diagnostics format %q (expected pretty|json|sarif|short)", value)
	}
}

func newDiagOutput(format string, color bool, baseDir string) diagOutput {
	width := 0
	if isTerminal(os.Stderr) {
		if w, _, err := term.GetSize(int(os.Stderr.Fd())); err == nil {
			width = w
		}
	}
	return diagOutput{format: format, color: color, baseDir: baseDir, width: width}
}

// machineReadable formats go to stdout; the others go to stderr.
func (o diagOutput) machineReadable() bool {
	return o.format == "json" || o.format == "sarif"
}

func (o diagOutput) print(stdout, stderr io.Writer, bag *diag.Bag) error {
	if bag == nil {
		bag = diag.NewBag(1)
	}
	switch o.format {
	case "json":
		return diagfmt.JSON(stdout, bag, diagfmt.JSONOpts{
			BaseDir:        o.baseDir,
			IncludeNotes:   true,
			IncludeContext: true,
		})
	case "sarif":
		return diagfmt.Sarif(stdout, bag, diagfmt.SarifRunMeta{
			ToolName:       "dxdrive",
			ToolVersion:    version.Version,
			InvocationArgs: os.Args[1:],
		})
	case "short":
		if bag.Len() == 0 {
			return nil
		}
		_, err := io.WriteString(stderr, diag.FormatShort(bag.Items(), true)+"\n")
		return err
	default:
		if bag.Len() == 0 {
			return nil
		}
		return diagfmt.Pretty(stderr, bag, diagfmt.PrettyOpts{
			Color:       o.color,
			BaseDir:     o.baseDir,
			Width:       o.width,
			ShowNotes:   true,
			ShowContext: true,
			Summary:     true,
		})
	}
}
