package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goplus/cppbuilder/internal/buildsys"
	"github.com/goplus/cppbuilder/internal/process"
	"github.com/goplus/cppbuilder/internal/registry"
	"github.com/goplus/cppbuilder/internal/versions"
)

const (
	gccPrerequisitesTimeout = 1800 * time.Second
	gccBuildTimeout         = 2000 * time.Second
)

var gccReserved = []string{"--target", "--host", "--build", "--enable-languages", "--prefix"}

// GCC bootstraps GCC out of tree, for the build machine as host and target.
type GCC struct {
	sourceStep
}

func (GCC) tool(j *Job, args []string) *buildsys.AutoTools {
	return &buildsys.AutoTools{
		SourceDir:     j.Source,
		Prefix:        j.Target,
		Args:          args,
		Jobs:          j.Settings.Parallelism(),
		InstallTarget: "install-strip",
	}
}

func (g GCC) Configure(ctx context.Context, j *Job) error {
	if err := j.Run(ctx, process.Exec("./contrib/download_prerequisites"), gccPrerequisitesTimeout); err != nil {
		return fmt.Errorf("download prerequisites: %w", err)
	}
	j.BuildDir = filepath.Join(j.Scratch, "build")
	if err := os.MkdirAll(j.BuildDir, 0o755); err != nil {
		return err
	}
	guess, err := j.Capture(ctx, process.Exec("./config.guess"), QueryTimeout)
	if err != nil {
		return fmt.Errorf("guess build triplet: %w", err)
	}
	guess = strings.TrimSpace(guess)

	var args []string
	if j.Decl.SuffixVersion {
		if suffix := versions.ProgramSuffix(j.Version); suffix != "" {
			args = append(args, "--program-suffix="+suffix)
		}
	}
	languages := j.Decl.Languages
	if len(languages) == 0 {
		languages = []string{"c", "c++"}
	}
	args = append(args,
		"--build="+guess,
		"--host="+guess,
		"--target="+guess,
		"--enable-languages="+strings.Join(languages, ","),
	)
	args = append(args, buildsys.Filter(j.Decl.ConfigOpts, gccReserved...)...)
	return j.Run(ctx, g.tool(j, args).ConfigureCmd().In(j.BuildDir), ConfigureTimeout)
}

func (g GCC) Build(ctx context.Context, j *Job) error {
	err := j.Run(ctx, g.tool(j, nil).BuildCmd().In(j.BuildDir), gccBuildTimeout)
	if err != nil {
		process.DumpFile(filepath.Join(j.BuildDir, "Makefile"))
	}
	return err
}

func (g GCC) Install(ctx context.Context, j *Job) error {
	err := j.Run(ctx, g.tool(j, nil).InstallCmd().In(j.BuildDir), InstallTimeout)
	if err != nil {
		process.DumpFile(filepath.Join(j.BuildDir, "Makefile"))
	}
	return err
}

func (GCC) ResolveVersion(_ context.Context, j *Job) (string, error) {
	if v := firstLine(filepath.Join(j.Source, "gcc", "BASE-VER")); v != "" {
		return v, nil
	}
	return declaredVersion(j)
}

func (GCC) VersionPoint() VersionPoint { return BeforeConfigure }

func (GCC) Describe(ctx context.Context, j *Job) (registry.Descriptor, error) {
	triplet, err := j.Compilers.Query(ctx, j.Target, "-dumpmachine")
	if err != nil {
		return registry.Descriptor{}, fmt.Errorf("query triplet: %w", err)
	}
	j.Triplet = triplet
	return describe(j), nil
}
