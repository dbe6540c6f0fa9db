package project

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"dxdrive/internal/backend"
	"dxdrive/internal/request"
)

// Shader is one [[shader]] entry.
type Shader struct {
	Name     string   `toml:"name"`
	Source   string   `toml:"source"`
	Entry    string   `toml:"entry"`
	Profile  string   `toml:"profile"`
	Encoding string   `toml:"encoding"`
	Defines  []string `toml:"defines"`
	Flags    []string `toml:"flags"`
	// Outputs maps an output kind name to a path under out_dir. The object
	// goes to "<name>.cso" unless mapped explicitly.
	Outputs map[string]string `toml:"outputs"`
}

func (s *Shader) normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Source = strings.TrimSpace(s.Source)
	s.Entry = strings.TrimSpace(s.Entry)
	s.Profile = strings.TrimSpace(s.Profile)
	if s.Name == "" && s.Source != "" {
		base := filepath.Base(filepath.FromSlash(s.Source))
		s.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if s.Entry == "" {
		s.Entry = "main"
	}
}

func (s *Shader) validate() error {
	if s.Source == "" {
		return fmt.Errorf("%w: missing source", ErrShaderField)
	}
	if s.Profile == "" {
		return fmt.Errorf("%w: %s: missing profile", ErrShaderField, s.Name)
	}
	if _, err := backend.ParseEncoding(s.Encoding); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrShaderField, s.Name, err)
	}
	if _, err := s.flagSet(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrShaderField, s.Name, err)
	}
	for name := range s.Outputs {
		kind, err := backend.ParseKind(name)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrShaderField, s.Name, err)
		}
		if kind == backend.KindErrors {
			return fmt.Errorf("%w: %s: diagnostics are not an output file", ErrShaderField, s.Name)
		}
	}
	return nil
}

func (s *Shader) flagSet() (request.FlagSet, error) {
	var fs request.FlagSet
	for _, name := range s.Flags {
		f, err := request.ParseFlag(strings.TrimSpace(name))
		if err != nil {
			return 0, err
		}
		fs = fs.With(f)
	}
	return fs, nil
}

// ParseDefine splits "NAME" or "NAME=VALUE".
func ParseDefine(s string) request.Define {
	name, value, _ := strings.Cut(strings.TrimSpace(s), "=")
	return request.Define{Name: strings.TrimSpace(name), Value: value}
}

// Request builds the compilation request for the shader's source bytes.
func (s *Shader) Request(src []byte) (*request.CompilationRequest, error) {
	enc, err := backend.ParseEncoding(s.Encoding)
	if err != nil {
		return nil, err
	}
	flags, err := s.flagSet()
	if err != nil {
		return nil, err
	}
	req := &request.CompilationRequest{
		Source:     src,
		Encoding:   enc,
		EntryPoint: s.Entry,
		Profile:    s.Profile,
		Flags:      flags,
	}
	for _, d := range s.Defines {
		req.Defines = append(req.Defines, ParseDefine(d))
	}
	for _, out := range s.OutputKinds() {
		if out != backend.KindObject && out != backend.KindRootSignature {
			req.Extras = append(req.Extras, out)
		}
	}
	return req, nil
}

// OutputKinds lists the kinds the shader writes, object first.
func (s *Shader) OutputKinds() []backend.OutputKind {
	kinds := []backend.OutputKind{backend.KindObject}
	for name := range s.Outputs {
		kind, err := backend.ParseKind(name)
		if err != nil || kind == backend.KindObject {
			continue
		}
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds[1:], func(i, j int) bool { return kinds[1+i] < kinds[1+j] })
	return kinds
}

// OutputPath returns where kind is written, relative to out_dir.
func (s *Shader) OutputPath(kind backend.OutputKind) (string, bool) {
	for name, path := range s.Outputs {
		if k, err := backend.ParseKind(name); err == nil && k == kind {
			return filepath.FromSlash(path), true
		}
	}
	if kind == backend.KindObject {
		return s.Name + ".cso", true
	}
	return "", false
}
