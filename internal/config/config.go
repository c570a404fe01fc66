// Package config loads the component declarations of an installation run.
//
// A declaration file has the shape
//
//	{"tools": {"base-path": "/opt/tools", "components": {"gcc1": {...}}}}
//
// and may be written in JSON, YAML or TOML, selected by file extension.
// Components keep the order in which a JSON or YAML document declares them;
// TOML tables are unordered, so TOML components are sorted by key.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks fatal declaration problems: a missing mandatory
// field, an unknown installer type or a malformed file.
var ErrConfiguration = errors.New("configuration error")

// Installer types.
const (
	TypeGeneric              = "generic-build"
	TypeGCC                  = "gcc-build"
	TypeCMake                = "cmake-build"
	TypeClang                = "clang-build"
	TypeCppcheck             = "cppcheck-build"
	TypeValgrind             = "valgrind-build"
	TypeDownloadOnly         = "download-only"
	TypeDownloadOnlyCompiler = "download-only-compiler"
)

// Types lists every known installer type.
var Types = []string{
	TypeGeneric,
	TypeGCC,
	TypeCMake,
	TypeClang,
	TypeCppcheck,
	TypeValgrind,
	TypeDownloadOnly,
	TypeDownloadOnlyCompiler,
}

// GroupCompilers is the group whose members carry a triplet in their variable names.
const GroupCompilers = "compilers"

// InstallationConfig holds per-component installation preferences.
type InstallationConfig struct {
	Default bool `json:"default,omitempty" yaml:"default,omitempty" toml:"default,omitempty"`
}

// Declaration describes one component to install.
type Declaration struct {
	Key string `json:"-" yaml:"-" toml:"-"`

	Type    string `json:"type" yaml:"type" toml:"type"`
	URL     string `json:"url" yaml:"url" toml:"url"`
	Name    string `json:"name" yaml:"name" toml:"name"`
	Group   string `json:"group,omitempty" yaml:"group,omitempty" toml:"group,omitempty"`
	Version string `json:"version,omitempty" yaml:"version,omitempty" toml:"version,omitempty"`

	ConfigOpts []string `json:"config-opts,omitempty" yaml:"config-opts,omitempty" toml:"config-opts,omitempty"`
	Languages  []string `json:"languages,omitempty" yaml:"languages,omitempty" toml:"languages,omitempty"`
	Modules    []string `json:"modules,omitempty" yaml:"modules,omitempty" toml:"modules,omitempty"`
	Runtimes   []string `json:"runtimes,omitempty" yaml:"runtimes,omitempty" toml:"runtimes,omitempty"`

	CompileRules     *bool    `json:"compile-rules,omitempty" yaml:"compile-rules,omitempty" toml:"compile-rules,omitempty"`
	SuffixVersion    bool     `json:"suffix-version,omitempty" yaml:"suffix-version,omitempty" toml:"suffix-version,omitempty"`
	RequiredPackages []string `json:"required-packages,omitempty" yaml:"required-packages,omitempty" toml:"required-packages,omitempty"`
	ConanProfile     bool     `json:"conan-profile,omitempty" yaml:"conan-profile,omitempty" toml:"conan-profile,omitempty"`

	InstallationConfig InstallationConfig `json:"installation-config,omitempty" yaml:"installation-config,omitempty" toml:"installation-config,omitempty"`
}

// CompileRulesEnabled reports the compile-rules flag, true when unset.
func (d *Declaration) CompileRulesEnabled() bool {
	return d.CompileRules == nil || *d.CompileRules
}

// IsDefault reports whether d is the declared default of its family.
func (d *Declaration) IsDefault() bool {
	return d.InstallationConfig.Default
}

// Validate checks the mandatory fields and the installer type.
func (d *Declaration) Validate() error {
	if d.URL == "" {
		return fmt.Errorf("%w: component %q: missing mandatory field \"url\"", ErrConfiguration, d.Key)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: component %q: missing mandatory field \"name\"", ErrConfiguration, d.Key)
	}
	if !slices.Contains(Types, d.Type) {
		return fmt.Errorf("%w: component %q: unknown installer type %q", ErrConfiguration, d.Key, d.Type)
	}
	return nil
}

// Config is a loaded declaration file.
type Config struct {
	BasePath   string
	Components []Declaration
}

// Validate checks the base path and every component.
func (c *Config) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("%w: missing mandatory field \"base-path\"", ErrConfiguration)
	}
	for i := range c.Components {
		if err := c.Components[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TargetDir returns the install prefix of d: base[/group]/key.
func TargetDir(base string, d *Declaration) string {
	if d.Group == "" {
		return filepath.Join(base, d.Key)
	}
	return filepath.Join(base, d.Group, d.Key)
}

// Format is a declaration file encoding.
type Format int

const (
	JSON Format = iota
	YAML
	TOML
)

// FormatOf picks the format from a file extension. Anything unknown is JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	case ".toml":
		return TOML
	default:
		return JSON
	}
}

// Load reads and validates the declaration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a declaration document.
func Parse(data []byte, format Format) (*Config, error) {
	var (
		base       string
		components componentList
		err        error
	)
	switch format {
	case YAML:
		var doc document
		if err = yaml.Unmarshal(data, &doc); err == nil {
			base, components = doc.Tools.BasePath, doc.Tools.Components
		}
	case TOML:
		var doc tomlDocument
		if err = toml.Unmarshal(data, &doc); err == nil {
			base, components = doc.Tools.BasePath, fromMap(doc.Tools.Components)
		}
	default:
		var doc document
		if err = json.Unmarshal(data, &doc); err == nil {
			base, components = doc.Tools.BasePath, doc.Tools.Components
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if base != "" {
		if expanded, err := homedir.Expand(base); err == nil {
			base = expanded
		}
	}
	cfg := &Config{BasePath: base, Components: components}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type document struct {
	Tools struct {
		BasePath   string        `json:"base-path" yaml:"base-path"`
		Components componentList `json:"components" yaml:"components"`
	} `json:"tools" yaml:"tools"`
}

type tomlDocument struct {
	Tools struct {
		BasePath   string                 `toml:"base-path"`
		Components map[string]Declaration `toml:"components"`
	} `toml:"tools"`
}

// componentList decodes a key -> declaration mapping keeping document order.
// A key declared twice keeps its first position and its last value.
type componentList []Declaration

func (l *componentList) add(key string, d Declaration) {
	d.Key = key
	for i := range *l {
		if (*l)[i].Key == key {
			(*l)[i] = d
			return
		}
	}
	*l = append(*l, d)
}

func (l *componentList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("components: expected an object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var d Declaration
		if err := dec.Decode(&d); err != nil {
			return fmt.Errorf("component %q: %w", key, err)
		}
		l.add(key, d)
	}
	_, err = dec.Token()
	return err
}

func (l *componentList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("components: line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var d Declaration
		if err := node.Content[i+1].Decode(&d); err != nil {
			return fmt.Errorf("component %q: %w", key, err)
		}
		l.add(key, d)
	}
	return nil
}

func fromMap(m map[string]Declaration) componentList {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	l := make(componentList, 0, len(keys))
	for _, k := range keys {
		l.add(k, m[k])
	}
	return l
}
