package installer

import (
	"context"
	"path/filepath"
	"time"

	"github.com/goplus/cppbuilder/internal/buildsys"
)

// CMake builds CMake itself through its bootstrap script.
type CMake struct {
	sourceStep
}

func (CMake) tool(j *Job) *buildsys.Bootstrap {
	return &buildsys.Bootstrap{
		SourceDir: j.Source,
		Prefix:    j.Target,
		Jobs:      j.Settings.Parallelism(),
	}
}

func (c CMake) Configure(ctx context.Context, j *Job) error {
	return j.Run(ctx, c.tool(j).ConfigureCmd(), ConfigureTimeout)
}

func (c CMake) Build(ctx context.Context, j *Job) error {
	return j.Run(ctx, c.tool(j).BuildCmd(), BuildTimeout)
}

func (c CMake) Install(ctx context.Context, j *Job) error {
	return j.Run(ctx, c.tool(j).InstallCmd(), InstallTimeout)
}

func (CMake) ResolveVersion(_ context.Context, j *Job) (string, error) {
	if v := cmakeSourceVersion(j.Source); v != "" {
		return v, nil
	}
	return declaredVersion(j)
}

func (CMake) VersionPoint() VersionPoint { return AfterConfigure }

// Cppcheck builds cppcheck with CMake and Ninja in its source tree.
type Cppcheck struct {
	sourceStep
}

const (
	cppcheckConfigureTimeout = 120 * time.Second
	cppcheckBuildTimeout     = 300 * time.Second
	cppcheckInstallTimeout   = 120 * time.Second
)

func newCppcheck() Cppcheck {
	return Cppcheck{sourceStep{extraPackages: func(j *Job) []string {
		if j.Decl.CompileRulesEnabled() {
			return []string{"libpcre3", "libpcre3-dev"}
		}
		return nil
	}}}
}

func (Cppcheck) tool(j *Job) *buildsys.CMake {
	c := &buildsys.CMake{
		SourceDir: j.Source,
		Args: buildsys.Filter(j.Decl.ConfigOpts,
			"-DCMAKE_BUILD_TYPE", "-DCMAKE_INSTALL_PREFIX", "-DHAVE_RULES"),
		Jobs: j.Settings.Parallelism(),
	}
	c.Define("CMAKE_BUILD_TYPE", "Release").Define("CMAKE_INSTALL_PREFIX", j.Target)
	if j.Decl.CompileRulesEnabled() {
		c.Define("HAVE_RULES", "True")
	}
	return c
}

func (c Cppcheck) Configure(ctx context.Context, j *Job) error {
	return j.Run(ctx, c.tool(j).ConfigureCmd(), cppcheckConfigureTimeout)
}

func (c Cppcheck) Build(ctx context.Context, j *Job) error {
	return j.Run(ctx, c.tool(j).BuildCmd(), cppcheckBuildTimeout)
}

func (c Cppcheck) Install(ctx context.Context, j *Job) error {
	return j.Run(ctx, c.tool(j).InstallCmd(), cppcheckInstallTimeout)
}

func (Cppcheck) ResolveVersion(_ context.Context, j *Job) (string, error) {
	if v := cmakeSetVersion(filepath.Join(j.Source, "cmake", "versions.cmake"), "VERSION"); v != "" {
		return v, nil
	}
	if v := cmakeCacheVersion(filepath.Join(j.Source, "CMakeCache.txt"), ""); v != "" {
		return v, nil
	}
	return declaredVersion(j)
}

func (Cppcheck) VersionPoint() VersionPoint { return AfterConfigure }
