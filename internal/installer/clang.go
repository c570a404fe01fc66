package installer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/goplus/cppbuilder/internal/buildsys"
	"github.com/goplus/cppbuilder/internal/process"
	"github.com/goplus/cppbuilder/internal/registry"
)

const clangBuildTimeout = 3400 * time.Second

var clangReserved = []string{
	"-DCMAKE_BUILD_TYPE",
	"-DCMAKE_INSTALL_PREFIX",
	"-DLLVM_ENABLE_PROJECTS",
	"-DLLVM_ENABLE_RUNTIMES",
}

// Clang builds the LLVM monorepo with CMake and Ninja out of tree.
type Clang struct {
	sourceStep
}

func (Clang) tool(j *Job) *buildsys.CMake {
	modules := j.Decl.Modules
	if len(modules) == 0 {
		modules = []string{"clang", "clang-tools-extra"}
	}
	c := &buildsys.CMake{
		SourceDir: filepath.Join(j.Source, "llvm"),
		Args:      buildsys.Filter(j.Decl.ConfigOpts, clangReserved...),
		Jobs:      j.Settings.Parallelism(),
	}
	c.Define("CMAKE_BUILD_TYPE", "Release").
		Define("CMAKE_INSTALL_PREFIX", j.Target).
		Define("LLVM_ENABLE_PROJECTS", strings.Join(modules, ";"))
	if len(j.Decl.Runtimes) > 0 {
		c.Define("LLVM_ENABLE_RUNTIMES", strings.Join(j.Decl.Runtimes, ";"))
	}
	return c
}

func (c Clang) Configure(ctx context.Context, j *Job) error {
	j.BuildDir = filepath.Join(j.Scratch, "build")
	if err := os.MkdirAll(j.BuildDir, 0o755); err != nil {
		return err
	}
	return j.Run(ctx, c.tool(j).ConfigureCmd().In(j.BuildDir), ConfigureTimeout)
}

func (c Clang) Build(ctx context.Context, j *Job) error {
	err := j.Run(ctx, c.tool(j).BuildCmd().In(j.BuildDir), clangBuildTimeout)
	if err != nil {
		process.DumpFile(filepath.Join(j.BuildDir, "CMakeCache.txt"))
	}
	return err
}

func (c Clang) Install(ctx context.Context, j *Job) error {
	err := j.Run(ctx, c.tool(j).InstallCmd().In(j.BuildDir), InstallTimeout)
	if err != nil {
		process.DumpFile(filepath.Join(j.BuildDir, "CMakeCache.txt"))
	}
	return err
}

func (Clang) ResolveVersion(_ context.Context, j *Job) (string, error) {
	if v := cmakeCacheVersion(filepath.Join(j.BuildDir, "CMakeCache.txt"), ""); v != "" {
		return v, nil
	}
	return declaredVersion(j)
}

func (Clang) VersionPoint() VersionPoint { return AfterConfigure }

// Describe records the triplet when the installed clang reports one.
func (Clang) Describe(ctx context.Context, j *Job) (registry.Descriptor, error) {
	triplet, err := j.Compilers.Query(ctx, j.Target, "-dumpmachine")
	if err != nil {
		log.Warn().Err(err).Str("key", j.Decl.Key).Msg("triplet unavailable")
	} else {
		j.Triplet = triplet
	}
	return describe(j), nil
}
