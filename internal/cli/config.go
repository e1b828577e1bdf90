package cli

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	tgerrors "github.com/toyz/tracegen/internal/errors"
	"github.com/toyz/tracegen/internal/synth"
)

// DefaultConfigFile is read from the working directory when no -config is given
const DefaultConfigFile = ".tracegen.yaml"

// Config holds the configuration for the CLI generator
type Config struct {
	// Dir is the working directory packages are loaded from
	Dir string

	// Patterns are the package patterns to generate for, ./... when empty
	Patterns []string

	// ModuleName overrides the module path read from go.mod
	ModuleName string

	// Version is the module version baked into DefaultTracer
	Version string

	// Intercept enables call-site interceptors for concrete methods
	Intercept bool

	// OverlayDir receives the go build -overlay manifest and its files
	OverlayDir string

	// CacheDir holds the persistent memo store, memory only when empty
	CacheDir string

	// Exclude lists package patterns that are never generated for
	Exclude []string

	// Hooks replace the statements inserted around traced calls
	Hooks synth.Hooks

	// Check reports differences without writing
	Check bool

	// Verbose enables detailed logging and error reporting
	Verbose bool
}

// FileConfig is the content of a .tracegen.yaml file. Relative paths are
// resolved against the file's directory.
type FileConfig struct {
	Module    string      `yaml:"module"`
	Version   string      `yaml:"version"`
	Intercept *bool       `yaml:"intercept"`
	Overlay   string      `yaml:"overlay"`
	CacheDir  string      `yaml:"cache_dir"`
	Exclude   []string    `yaml:"exclude"`
	Hooks     synth.Hooks `yaml:"hooks"`
}

// LoadFileConfig parses the config file at path. Unknown keys are rejected.
func LoadFileConfig(path string) (*FileConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, tgerrors.WrapConfigurationError(path, "read", err)
	}

	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, tgerrors.WrapConfigurationError(path, "parse", err).
			WithSuggestions("Valid keys are module, version, intercept, overlay, cache_dir, exclude and hooks")
	}

	base := filepath.Dir(path)
	fc.Overlay = resolveRelative(base, fc.Overlay)
	fc.CacheDir = resolveRelative(base, fc.CacheDir)
	return &fc, nil
}

// FindFileConfig loads explicit when set, otherwise DefaultConfigFile in dir
// if it exists. It returns nil when there is nothing to load.
func FindFileConfig(explicit, dir string) (*FileConfig, string, error) {
	if explicit != "" {
		fc, err := LoadFileConfig(explicit)
		return fc, explicit, err
	}
	candidate := filepath.Join(dir, DefaultConfigFile)
	if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
		return nil, "", nil
	}
	fc, err := LoadFileConfig(candidate)
	return fc, candidate, err
}

// Apply fills c from the file for every setting the command line left alone.
// isSet reports whether the flag of the same name was given explicitly.
func (c Config) Apply(fc *FileConfig, isSet func(flag string) bool) Config {
	if fc == nil {
		return c
	}
	if isSet == nil {
		isSet = func(string) bool { return false }
	}

	if !isSet("module") && fc.Module != "" {
		c.ModuleName = fc.Module
	}
	if !isSet("version") && fc.Version != "" {
		c.Version = fc.Version
	}
	if !isSet("intercept") && fc.Intercept != nil {
		c.Intercept = *fc.Intercept
	}
	if !isSet("overlay") && fc.Overlay != "" {
		c.OverlayDir = fc.Overlay
	}
	if !isSet("cache-dir") && fc.CacheDir != "" {
		c.CacheDir = fc.CacheDir
	}
	c.Exclude = append(append([]string(nil), fc.Exclude...), c.Exclude...)

	hooks := c.Hooks
	if hooks.Before == "" {
		hooks.Before = fc.Hooks.Before
	}
	if hooks.BeforeDetached == "" {
		hooks.BeforeDetached = fc.Hooks.BeforeDetached
	}
	if hooks.OnError == "" {
		hooks.OnError = fc.Hooks.OnError
	}
	if hooks.After == "" {
		hooks.After = fc.Hooks.After
	}
	c.Hooks = hooks
	return c
}

func resolveRelative(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
