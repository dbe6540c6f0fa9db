package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"

	"dxdrive/internal/config"
)

var (
	ErrNoShaders       = errors.New("manifest declares no [[shader]] entries")
	ErrDuplicateShader = errors.New("duplicate shader name")
	ErrShaderField     = errors.New("invalid shader entry")
)

// Manifest is a parsed dxdrive.toml.
type Manifest struct {
	Path     string
	Root     string
	Project  ProjectSection
	Settings config.Config
	Shaders  []Shader
}

// ProjectSection is the [project] table.
type ProjectSection struct {
	Name   string `toml:"name"`
	OutDir string `toml:"out_dir"`
}

type manifestFile struct {
	Project  ProjectSection `toml:"project"`
	Settings config.Config  `toml:"settings"`
	Shaders  []Shader       `toml:"shader"`
}

// OutDir returns the absolute output directory ("build" by default).
func (m *Manifest) OutDir() string {
	out := strings.TrimSpace(m.Project.OutDir)
	if out == "" {
		out = "build"
	}
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(m.Root, filepath.FromSlash(out))
}

// SourcePath resolves a shader's source against the project root.
func (m *Manifest) SourcePath(s *Shader) string {
	return filepath.Join(m.Root, filepath.FromSlash(s.Source))
}

// Shader returns the entry named name.
func (m *Manifest) Shader(name string) (*Shader, bool) {
	for i := range m.Shaders {
		if m.Shaders[i].Name == name {
			return &m.Shaders[i], true
		}
	}
	return nil, false
}

// Load reads and validates the manifest at path.
func Load(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var cfg manifestFile
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	if !meta.IsDefined("shader") || len(cfg.Shaders) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoShaders)
	}
	if err := config.NewConfig().Apply(cfg.Settings).Validate(); err != nil {
		return nil, fmt.Errorf("%s: [settings]: %w", path, err)
	}

	m := &Manifest{
		Path:     path,
		Root:     filepath.Dir(path),
		Project:  cfg.Project,
		Settings: cfg.Settings,
		Shaders:  cfg.Shaders,
	}
	if strings.TrimSpace(m.Project.Name) == "" {
		m.Project.Name = filepath.Base(m.Root)
	}
	seen := make(map[string]struct{}, len(m.Shaders))
	for i := range m.Shaders {
		s := &m.Shaders[i]
		s.normalize()
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("%s: shader #%d: %w", path, i+1, err)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%s: %w %q", path, ErrDuplicateShader, s.Name)
		}
		seen[s.Name] = struct{}{}
		if !pathWithin(m.Root, m.SourcePath(s)) {
			return nil, fmt.Errorf("%s: shader %q: source %q escapes the project root", path, s.Name, s.Source)
		}
		for kind, out := range s.Outputs {
			if filepath.IsAbs(out) || !pathWithin(m.OutDir(), filepath.Join(m.OutDir(), filepath.FromSlash(out))) {
				return nil, fmt.Errorf("%s: shader %q: %s output %q escapes out_dir", path, s.Name, kind, out)
			}
		}
	}
	return m, nil
}

// LoadFrom finds and loads the manifest above startDir.
func LoadFrom(fs afero.Fs, startDir string) (*Manifest, error) {
	path, ok, err := FindManifest(fs, startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no %s found in %s or its parents", ManifestName, startDir)
	}
	return Load(fs, path)
}
