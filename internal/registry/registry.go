// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry records the components installed by a run.
//
// The persisted record has the shape
//
//	{
//	  "tools": {
//	    "components": {
//	      "gcc1": {"name": "gcc", "version": "12.2.0", "path": "/opt/tools/compilers/gcc1", ...}
//	    },
//	    "variables": {"BUILDER_CONAN_PROFILE_GCC1_RELEASE": "..."}
//	  }
//	}
//
// and is what later processes read to recover the environment of a run
// without installing anything.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog/log"
)

// Descriptor describes one installed component.
type Descriptor struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Path    string `json:"path"`
	Group   string `json:"group,omitempty"`
	Triplet string `json:"triplet,omitempty"`

	// Default marks the declared default of its family.
	Default bool `json:"default,omitempty"`
}

// Registry maps declaration keys to installed components. It is not safe
// for concurrent use; installs run one at a time.
type Registry struct {
	components map[string]Descriptor
	variables  map[string]string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		components: map[string]Descriptor{},
		variables:  map[string]string{},
	}
}

// Reset clears every component and variable.
func (r *Registry) Reset() {
	clear(r.components)
	clear(r.variables)
}

// Record stores d under key. A second record for the same key replaces the first.
func (r *Registry) Record(key string, d Descriptor) {
	r.components[key] = d
}

// Get returns the component recorded under key.
func (r *Registry) Get(key string) (Descriptor, bool) {
	d, ok := r.components[key]
	return d, ok
}

// All returns a copy of the recorded components.
func (r *Registry) All() map[string]Descriptor {
	return maps.Clone(r.components)
}

// Keys returns the recorded keys in sorted order.
func (r *Registry) Keys() []string {
	return slices.Sorted(maps.Keys(r.components))
}

// Len returns the number of recorded components.
func (r *Registry) Len() int { return len(r.components) }

// SetVariable records an extra fixed environment variable.
func (r *Registry) SetVariable(name, value string) {
	r.variables[name] = value
}

// Variables returns a copy of the extra variables.
func (r *Registry) Variables() map[string]string {
	return maps.Clone(r.variables)
}

type record struct {
	Tools tools `json:"tools"`
}

type tools struct {
	Components map[string]Descriptor `json:"components"`
	Variables  map[string]string     `json:"variables,omitempty"`
}

// Marshal encodes r in its persisted form: two-space indentation, keys sorted
// and a trailing newline.
func (r *Registry) Marshal() ([]byte, error) {
	rec := record{Tools: tools{Components: r.components, Variables: r.variables}}
	if rec.Tools.Components == nil {
		rec.Tools.Components = map[string]Descriptor{}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes a persisted record.
func Unmarshal(data []byte) (*Registry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty registry record")
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	r := New()
	maps.Copy(r.components, rec.Tools.Components)
	maps.Copy(r.variables, rec.Tools.Variables)
	return r, nil
}

// Load reads the registry stored at path. A missing, empty or corrupt file
// yields an empty registry; corruption is logged, never returned.
func Load(path string) *Registry {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("path", path).Err(err).Msg("cannot read registry, starting empty")
		}
		return New()
	}
	r, err := Unmarshal(data)
	if err != nil {
		log.Warn().Str("path", path).Err(err).Msg("corrupt registry, starting empty")
		return New()
	}
	return r
}

// Save writes r to path atomically.
func (r *Registry) Save(path string) error {
	data, err := r.Marshal()
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prepare registry dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".registry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close registry: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("finalize registry: %w", err)
	}
	return nil
}
