// Package conan writes Conan profiles for installed compilers.
package conan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/ini.v1"

	"github.com/goplus/cppbuilder/internal/registry"
	"github.com/goplus/cppbuilder/internal/versions"
)

// BuildTypes are the build types a profile is written for.
var BuildTypes = []string{"Debug", "Release"}

// Compilers locates and queries the reference compiler of a prefix.
type Compilers interface {
	Find(ctx context.Context, prefix string) (string, error)
	Query(ctx context.Context, prefix string, args ...string) (string, error)
}

// Generator writes profiles into Dir.
type Generator struct {
	Dir       string
	Compilers Compilers
}

// Supported reports whether profiles can be written for a component name.
func Supported(name string) bool {
	return name == "gcc" || name == "clang"
}

// Generate writes one profile per build type for the component key and
// returns the variables pointing at them.
func (g *Generator) Generate(ctx context.Context, key string, desc registry.Descriptor) (map[string]string, error) {
	if !Supported(desc.Name) {
		return nil, fmt.Errorf("conan profiles are not supported for %q", desc.Name)
	}
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return nil, err
	}
	vars := make(map[string]string, len(BuildTypes))
	for _, bt := range BuildTypes {
		f, err := g.Profile(ctx, desc, bt)
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", key, err)
		}
		path := filepath.Join(g.Dir, FileName(key, bt))
		if err := f.SaveTo(path); err != nil {
			return nil, fmt.Errorf("write profile: %w", err)
		}
		log.Info().Str("key", key).Str("profile", path).Msg("conan profile written")
		vars[VariableName(key, bt)] = path
	}
	return vars, nil
}

// Profile builds the profile of desc for one build type.
func (g *Generator) Profile(ctx context.Context, desc registry.Descriptor, buildType string) (*ini.File, error) {
	arch, osName, err := splitTriplet(desc.Triplet)
	if err != nil {
		return nil, err
	}
	cc, err := g.Compilers.Find(ctx, desc.Path)
	if err != nil {
		return nil, err
	}

	libcxx, cxx := "libc++", "clang++"
	if desc.Name == "gcc" {
		out, err := g.Compilers.Query(ctx, desc.Path, "-v")
		if err != nil {
			return nil, err
		}
		libcxx, cxx = "libstdc++", "g++"
		if strings.Contains(out, "--with-default-libstdcxx-abi=new") {
			libcxx = "libstdc++11"
		}
	}
	cxxPath := filepath.Join(filepath.Dir(cc), strings.ReplaceAll(filepath.Base(cc), desc.Name, cxx))

	f := ini.Empty()
	sections := []struct {
		name string
		keys [][2]string
	}{
		{"env", [][2]string{{"CC", cc}, {"CXX", cxxPath}}},
		{"build_requires", nil},
		{"options", nil},
		{"settings", [][2]string{
			{"arch", arch},
			{"os", osName},
			{"compiler", desc.Name},
			{"compiler.version", versions.Major(desc.Version)},
			{"build_type", buildType},
			{"compiler.libcxx", libcxx},
		}},
	}
	for _, s := range sections {
		sec, err := f.NewSection(s.name)
		if err != nil {
			return nil, err
		}
		for _, kv := range s.keys {
			if _, err := sec.NewKey(kv[0], kv[1]); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// splitTriplet returns the architecture and the capitalized OS of a
// 3- or 4-part target triplet.
func splitTriplet(triplet string) (arch, osName string, err error) {
	parts := strings.Split(triplet, "-")
	switch {
	case triplet == "":
		return "", "", fmt.Errorf("compiler triplet is empty")
	case len(parts) == 3:
		osName = parts[1]
	case len(parts) == 4:
		osName = parts[2]
	default:
		return "", "", fmt.Errorf("compiler triplet %q not recognised", triplet)
	}
	return parts[0], capitalize(osName), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

var nonAlnum = regexp.MustCompile(`[^0-9a-zA-Z]+`)

// FileName returns the profile file name of key for a build type.
func FileName(key, buildType string) string {
	return fmt.Sprintf("cpp-builder-%s-%s.profile", nonAlnum.ReplaceAllString(key, "-"), strings.ToLower(buildType))
}

// VariableName returns the variable pointing at the profile of key.
func VariableName(key, buildType string) string {
	return strings.ToUpper("BUILDER_CONAN_PROFILE_" + nonAlnum.ReplaceAllString(key, "_") + "_" + buildType)
}
