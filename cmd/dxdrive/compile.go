package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"dxdrive/internal/backend"
	"dxdrive/internal/backend/dxcli"
	"dxdrive/internal/buildpipeline"
	"dxdrive/internal/diag"
	"dxdrive/internal/driver"
	"dxdrive/internal/project"
	"dxdrive/internal/request"
)

// appFs is the file system commands read sources from and write artifacts to.
var appFs = afero.NewOsFs()

func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <file.hlsl>",
		Short: "Compile a single HLSL source",
		Long: `Compile a single HLSL source with one driver call and write the object
code. Additional channels (root signature, disassembly, reflection, ...) are
written with --root-signature and --emit kind=path.`,
		Args: cobra.ExactArgs(1),
		RunE: runCompile,
	}
	flags := cmd.Flags()
	flags.StringP("entry", "E", "main", "entry point")
	flags.StringP("profile", "T", "", "target profile (e.g. ps_6_0, cs_6_6)")
	flags.StringArrayP("define", "D", nil, "preprocessor define NAME[=VALUE] (repeatable)")
	flags.StringArray("flag", nil, "compile flag (warnings-as-errors|embed-debug|strip-debug|strip-reflection|skip-optimizations) (repeatable)")
	flags.String("encoding", "utf-8", "source encoding (utf-8|utf-16|utf-32|acp)")
	flags.StringP("output", "o", "", "object output path (- for stdout, default <file>.cso)")
	flags.String("root-signature", "", "write the root signature to this path")
	flags.StringArray("emit", nil, "write an extra channel as kind=path (repeatable)")
	flags.String("diag-format", "pretty", "diagnostics format (pretty|json|sarif|short)")
	return cmd
}

type compileFlags struct {
	entry, profile, encoding string
	defines, flags, emits    []string
	output, rootSignature    string
	diagFormat               string
}

func readCompileFlags(cmd *cobra.Command) (compileFlags, error) {
	var (
		cf   compileFlags
		errs []error
	)
	get := func(name string, dst *string) {
		v, err := cmd.Flags().GetString(name)
		errs = append(errs, err)
		*dst = v
	}
	getArray := func(name string, dst *[]string) {
		v, err := cmd.Flags().GetStringArray(name)
		errs = append(errs, err)
		*dst = v
	}
	get("entry", &cf.entry)
	get("profile", &cf.profile)
	get("encoding", &cf.encoding)
	get("output", &cf.output)
	get("root-signature", &cf.rootSignature)
	get("diag-format", &cf.diagFormat)
	getArray("define", &cf.defines)
	getArray("flag", &cf.flags)
	getArray("emit", &cf.emits)
	for _, err := range errs {
		if err != nil {
			return cf, err
		}
	}
	return cf, nil
}

// parseEmits splits kind=path pairs. Object code and diagnostics have their
// own flags.
func parseEmits(values []string) (map[backend.OutputKind]string, error) {
	out := make(map[backend.OutputKind]string, len(values))
	for _, v := range values {
		name, dst, ok := strings.Cut(v, "=")
		if !ok || strings.TrimSpace(dst) == "" {
			return nil, fmt.Errorf("invalid --emit %q (expected kind=path)", v)
		}
		kind, err := backend.ParseKind(name)
		if err != nil {
			return nil, err
		}
		switch kind {
		case backend.KindObject, backend.KindErrors:
			return nil, fmt.Errorf("--emit: %s has its own flag", kind)
		case backend.KindRootSignature:
			return nil, errors.New("--emit: use --root-signature")
		}
		out[kind] = dst
	}
	return out, nil
}

func compileRequest(src []byte, cf compileFlags, extras map[backend.OutputKind]string) (*request.CompilationRequest, error) {
	enc, err := backend.ParseEncoding(cf.encoding)
	if err != nil {
		return nil, err
	}
	req := &request.CompilationRequest{
		Source:     src,
		Encoding:   enc,
		EntryPoint: cf.entry,
		Profile:    cf.profile,
	}
	for _, d := range cf.defines {
		req.Defines = append(req.Defines, project.ParseDefine(d))
	}
	for _, name := range cf.flags {
		f, err := request.ParseFlag(name)
		if err != nil {
			return nil, err
		}
		req.Flags = req.Flags.With(f)
	}
	for kind := range extras {
		req.Extras = append(req.Extras, kind)
	}
	sort.Slice(req.Extras, func(i, j int) bool { return req.Extras[i] < req.Extras[j] })
	return req, nil
}

func defaultObjectPath(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".cso"
}

func runCompile(cmd *cobra.Command, args []string) error {
	file := args[0]
	cf, err := readCompileFlags(cmd)
	if err != nil {
		return err
	}
	format, err := readDiagFormat(cf.diagFormat)
	if err != nil {
		return err
	}
	colorFlag, err := cmd.Flags().GetString("color")
	if err != nil {
		return err
	}
	useColor, err := readColorMode(colorFlag, os.Stderr)
	if err != nil {
		return err
	}
	showTimings, err := cmd.Flags().GetBool("timings")
	if err != nil {
		return err
	}
	extras, err := parseEmits(cf.emits)
	if err != nil {
		return err
	}
	printer := newDiagOutput(format, useColor, filepath.Dir(file))
	if cf.output == "-" && printer.machineReadable() {
		return fmt.Errorf("--output - and --diag-format %s both write to stdout", format)
	}

	cfg, err := resolveConfig(cmd, nil)
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	drv, cleanup, err := newDriver(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	src, err := afero.ReadFile(appFs, file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}
	req, err := compileRequest(src, cf, extras)
	if err != nil {
		return err
	}

	out := drv.Compile(cmd.Context(), req)
	defer out.Release()

	bag := diag.NewBag(cfg.DiagnosticLimit())
	if out.Diagnostics != nil {
		bag = diag.Parse(out.Diagnostics.String(), cfg.DiagnosticLimit())
		bag.MapFiles(func(name string) string {
			if name == "" || path.Base(filepath.ToSlash(name)) == dxcli.SourceFile {
				return file
			}
			return name
		})
	}
	if !out.OK() && !bag.HasErrors() {
		bag.Add(buildpipeline.DiagnosticFor(out.Status, out.Err(), file))
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if out.OK() {
		if err := writeCompileOutputs(stdout, &out, file, cf, extras); err != nil {
			return err
		}
	}
	if err := printer.print(stdout, stderr, bag); err != nil {
		return err
	}
	if showTimings {
		if err := printCallTimings(stderr, out.Timings); err != nil {
			return err
		}
	}
	return out.Err()
}

// writeCompileOutputs writes the object, root signature and extras of a
// successful call.
func writeCompileOutputs(stdout io.Writer, out *driver.Outcome, file string, cf compileFlags, extras map[backend.OutputKind]string) error {
	objPath := cf.output
	if objPath == "" {
		objPath = defaultObjectPath(file)
	}
	if objPath == "-" {
		if _, err := stdout.Write(out.Object.Bytes()); err != nil {
			return err
		}
	} else if err := writeArtifact(objPath, out.Object.Bytes()); err != nil {
		return err
	}
	if cf.rootSignature != "" {
		if out.RootSignature == nil {
			return fmt.Errorf("%s: the shader declares no root signature", file)
		}
		if err := writeArtifact(cf.rootSignature, out.RootSignature.Bytes()); err != nil {
			return err
		}
	}
	for kind, dst := range extras {
		buf := out.Extra(kind)
		if buf == nil {
			continue
		}
		if err := writeArtifact(dst, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func writeArtifact(dst string, data []byte) error {
	if dir := filepath.Dir(dst); dir != "." {
		if err := appFs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(appFs, dst, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}
