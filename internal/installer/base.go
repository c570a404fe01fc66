package installer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/goplus/cppbuilder/internal/registry"
)

// sourceStep implements the acquisition and description shared by variants.
type sourceStep struct {
	// extraPackages returns packages installed on top of the declared ones.
	extraPackages func(j *Job) []string
}

func (s sourceStep) AcquireSources(ctx context.Context, j *Job) error {
	root, err := j.Sources.Fetch(ctx, j.Decl.URL, j.Scratch)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", j.Decl.URL, err)
	}
	j.Source = root
	log.Debug().Str("key", j.Decl.Key).Str("dir", root).Msg("sources unpacked")

	packages := append([]string(nil), j.Decl.RequiredPackages...)
	if s.extraPackages != nil {
		packages = append(packages, s.extraPackages(j)...)
	}
	if len(packages) == 0 {
		return nil
	}
	return j.Sources.InstallPackages(ctx, packages)
}

func (sourceStep) Describe(ctx context.Context, j *Job) (registry.Descriptor, error) {
	return describe(j), nil
}

func describe(j *Job) registry.Descriptor {
	return registry.Descriptor{
		Name:    j.Decl.Name,
		Version: j.Version,
		Path:    j.Target,
		Group:   j.Decl.Group,
		Triplet: j.Triplet,
		Default: j.Decl.IsDefault(),
	}
}

// noBuild is embedded by variants without configure or build steps.
type noBuild struct{}

func (noBuild) Configure(context.Context, *Job) error { return nil }

func (noBuild) Build(context.Context, *Job) error { return nil }
