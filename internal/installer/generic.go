package installer

import (
	"context"
	"path/filepath"

	"github.com/goplus/cppbuilder/internal/buildsys"
)

// Generic builds autotools packages in their source tree.
type Generic struct {
	sourceStep
}

func (Generic) tool(j *Job) *buildsys.AutoTools {
	return &buildsys.AutoTools{
		SourceDir: j.Source,
		Prefix:    j.Target,
		Args:      j.Decl.ConfigOpts,
	}
}

func (g Generic) Configure(ctx context.Context, j *Job) error {
	return j.Run(ctx, g.tool(j).ConfigureCmd(), ConfigureTimeout)
}

func (g Generic) Build(ctx context.Context, j *Job) error {
	return j.Run(ctx, g.tool(j).BuildCmd(), BuildTimeout)
}

func (g Generic) Install(ctx context.Context, j *Job) error {
	return j.Run(ctx, g.tool(j).InstallCmd(), InstallTimeout)
}

func (Generic) ResolveVersion(_ context.Context, j *Job) (string, error) {
	return declaredVersion(j)
}

func (Generic) VersionPoint() VersionPoint { return AfterConfigure }

// Valgrind is a Generic build whose version comes from valgrind.spec.
type Valgrind struct {
	Generic
}

func (Valgrind) ResolveVersion(_ context.Context, j *Job) (string, error) {
	if v := specFileVersion(filepath.Join(j.Source, "valgrind.spec")); v != "" {
		return v, nil
	}
	return declaredVersion(j)
}
