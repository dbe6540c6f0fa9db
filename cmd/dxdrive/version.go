package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dxdrive/internal/version"
)

type versionPayload struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the dxdrive version",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
	cmd.Flags().String("format", "pretty", "output format (pretty|json)")
	cmd.Flags().Bool("full", false, "include commit, build date and platform")
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	full, err := cmd.Flags().GetBool("full")
	if err != nil {
		return err
	}
	payload := collectVersion()
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	case "pretty", "":
		colorFlag, err := cmd.Flags().GetString("color")
		if err != nil {
			return err
		}
		useColor, err := readColorMode(colorFlag, os.Stdout)
		if err != nil {
			return err
		}
		prev := color.NoColor
		color.NoColor = !useColor
		defer func() { color.NoColor = prev }()
		return renderVersionPretty(cmd.OutOrStdout(), payload, full)
	default:
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
}

func collectVersion() versionPayload {
	v := strings.TrimSpace(version.Version)
	if v == "" {
		v = "dev"
	}
	return versionPayload{
		Tool:      "dxdrive",
		Version:   v,
		GitCommit: strings.TrimSpace(version.GitCommit),
		BuildDate: strings.TrimSpace(version.BuildDate),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func renderVersionPretty(out io.Writer, p versionPayload, full bool) error {
	if _, err := fmt.Fprintf(out, "dxdrive %s\n", version.Colored()); err != nil {
		return err
	}
	if !full {
		return nil
	}
	_, err := fmt.Fprintf(out, "commit:   %s\nbuilt:    %s\ngo:       %s\nplatform: %s\n",
		valueOrUnknown(p.GitCommit), valueOrUnknown(p.BuildDate), p.GoVersion, p.Platform)
	return err
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
