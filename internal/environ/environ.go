// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package environ derives the BUILDER_*_DIR variables that expose installed
// components to later build steps.
//
// Every component gets a qualified name built from its declaration key.
// Components whose logical name is unambiguous also get a simplified name
// built from the logical name, and a compiler that is alone with its name, or
// a component declared as the default of its family, gets the bare
// BUILDER_<NAME>_DIR form:
//
//	BUILDER_GCC1_X86_64_PC_LINUX_GNU_DIR   qualified
//	BUILDER_GCC_X86_64_PC_LINUX_GNU_DIR    simplified
//	BUILDER_GCC_DIR                        bare
//
// Derivation is a pure function of the registry snapshot.
package environ

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/goplus/cppbuilder/internal/config"
	"github.com/goplus/cppbuilder/internal/registry"
)

// ErrNameCollision reports two distinct sources deriving the same variable.
var ErrNameCollision = errors.New("environment variable name collision")

// Tier is the form of a derived name.
type Tier int

const (
	Qualified Tier = iota
	Simplified
	Bare
	Default
	Extra
)

func (t Tier) String() string {
	switch t {
	case Qualified:
		return "qualified"
	case Simplified:
		return "simplified"
	case Bare:
		return "bare"
	case Default:
		return "default"
	case Extra:
		return "extra"
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// Variable is one derived variable. Key is the declaration key it points at,
// empty for extra variables.
type Variable struct {
	Name  string
	Value string
	Key   string
	Tier  Tier
}

var (
	nonAlnum    = regexp.MustCompile(`[^A-Za-z0-9]+`)
	underscores = regexp.MustCompile(`_{2,}`)
)

func token(s string) string {
	return strings.ToUpper(nonAlnum.ReplaceAllString(s, "_"))
}

func varName(tokens ...string) string {
	parts := make([]string, 0, len(tokens)+2)
	parts = append(parts, "BUILDER")
	for _, t := range tokens {
		parts = append(parts, token(t))
	}
	parts = append(parts, "DIR")
	return underscores.ReplaceAllString(strings.Join(parts, "_"), "_")
}

// ambiguous reports whether a and b, which share a logical name, cannot be
// told apart without a version qualifier.
func ambiguous(a, b registry.Descriptor) bool {
	hasA, hasB := a.Triplet != "", b.Triplet != ""
	switch {
	case hasA && hasB:
		return a.Triplet == b.Triplet && a.Version != b.Version
	case hasA != hasB:
		return true
	default:
		return a.Version != b.Version
	}
}

// tripletToken returns the triplet used in names: only compilers carry one.
func tripletToken(d registry.Descriptor) string {
	if d.Group == config.GroupCompilers {
		return d.Triplet
	}
	return ""
}

// names returns the candidate names of the component stored under key, in
// tier order. components must contain key.
func names(key string, components map[string]registry.Descriptor, keys []string) []Variable {
	d := components[key]
	isAmbiguous := false
	sole := true
	for _, other := range keys {
		if other == key || components[other].Name != d.Name {
			continue
		}
		sole = false
		if ambiguous(d, components[other]) {
			isAmbiguous = true
		}
	}

	triplet := tripletToken(d)
	var out []Variable
	add := func(name string, tier Tier) {
		out = append(out, Variable{Name: name, Value: d.Path, Key: key, Tier: tier})
	}
	if isAmbiguous {
		add(varName(key, triplet, d.Version), Qualified)
	} else {
		add(varName(key, triplet), Qualified)
		add(varName(d.Name, triplet), Simplified)
	}
	if sole && d.Group == config.GroupCompilers && d.Triplet != "" {
		add(varName(d.Name), Bare)
	}
	if d.Default {
		add(varName(d.Name), Default)
	}
	return out
}

// DeriveVariables derives the variables of components plus the extra fixed
// variables, sorted by name.
//
// Two components deriving the same qualified name, or an extra variable
// colliding with a derived one, is an error wrapping ErrNameCollision. A
// simplified, bare or default name contested by different components is
// dropped for all of them.
func DeriveVariables(components map[string]registry.Descriptor, extra map[string]string) ([]Variable, error) {
	keys := slices.Sorted(maps.Keys(components))

	qualified := map[string]Variable{}
	convenience := map[string][]Variable{}
	for _, key := range keys {
		if components[key].Path == "" {
			log.Debug().Str("key", key).Msg("component without path, no variable derived")
			continue
		}
		for _, v := range names(key, components, keys) {
			if v.Tier != Qualified {
				convenience[v.Name] = append(convenience[v.Name], v)
				continue
			}
			if prev, ok := qualified[v.Name]; ok {
				return nil, fmt.Errorf("%w: %s derived from both %q and %q", ErrNameCollision, v.Name, prev.Key, key)
			}
			qualified[v.Name] = v
		}
	}

	result := maps.Clone(qualified)
	for name, claims := range convenience {
		if prev, ok := qualified[name]; ok {
			if owners(claims, prev.Key) {
				continue
			}
			log.Warn().Str("var", name).Str("owner", prev.Key).Msg("convenience name shadowed by a qualified name, dropped")
			continue
		}
		if !owners(claims, claims[0].Key) {
			log.Warn().Str("var", name).Strs("keys", claimKeys(claims)).Msg("convenience name contested, dropped")
			continue
		}
		result[name] = claims[0]
	}

	for name, value := range extra {
		if prev, ok := result[name]; ok {
			return nil, fmt.Errorf("%w: extra variable %s shadows the variable of %q", ErrNameCollision, name, prev.Key)
		}
		result[name] = Variable{Name: name, Value: value, Tier: Extra}
	}

	out := make([]Variable, 0, len(result))
	for _, name := range slices.Sorted(maps.Keys(result)) {
		out = append(out, result[name])
	}
	return out, nil
}

// owners reports whether every claim belongs to key.
func owners(claims []Variable, key string) bool {
	for _, c := range claims {
		if c.Key != key {
			return false
		}
	}
	return true
}

func claimKeys(claims []Variable) []string {
	var keys []string
	for _, c := range claims {
		if !slices.Contains(keys, c.Key) {
			keys = append(keys, c.Key)
		}
	}
	slices.Sort(keys)
	return keys
}

// Derive returns the variable set of components and extra as a name -> path map.
func Derive(components map[string]registry.Descriptor, extra map[string]string) (map[string]string, error) {
	vars, err := DeriveVariables(components, extra)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(vars))
	for _, v := range vars {
		out[v.Name] = v.Value
	}
	return out, nil
}

// FromRegistry derives the variable set of r.
func FromRegistry(r *registry.Registry) (map[string]string, error) {
	return Derive(r.All(), r.Variables())
}
