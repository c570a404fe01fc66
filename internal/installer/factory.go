package installer

import (
	"fmt"

	"github.com/goplus/cppbuilder/internal/config"
	"github.com/goplus/cppbuilder/internal/env"
	"github.com/goplus/cppbuilder/internal/process"
)

// Deps are the collaborators shared by every lifecycle of a run.
type Deps struct {
	Runner    process.Runner
	Sources   SourceProvider
	Settings  env.Settings
	Compilers *CompilerFinder

	// ScratchRoot holds the scratch directories, os.TempDir when empty.
	ScratchRoot string
}

// VariantFor returns the variant implementing an installer type.
func VariantFor(typ string) (Variant, error) {
	switch typ {
	case config.TypeGeneric:
		return Generic{}, nil
	case config.TypeValgrind:
		return Valgrind{}, nil
	case config.TypeCMake:
		return CMake{}, nil
	case config.TypeCppcheck:
		return newCppcheck(), nil
	case config.TypeGCC:
		return GCC{}, nil
	case config.TypeClang:
		return Clang{}, nil
	case config.TypeDownloadOnly:
		return DownloadOnly{}, nil
	case config.TypeDownloadOnlyCompiler:
		return DownloadOnlyCompiler{}, nil
	}
	return nil, fmt.Errorf("%w: unknown installer type %q", config.ErrConfiguration, typ)
}

// New returns a lifecycle installing decl under basePath.
func New(decl *config.Declaration, basePath string, deps Deps) (*Lifecycle, error) {
	if err := decl.Validate(); err != nil {
		return nil, err
	}
	v, err := VariantFor(decl.Type)
	if err != nil {
		return nil, err
	}
	compilers := deps.Compilers
	if compilers == nil {
		compilers = NewCompilerFinder(deps.Runner, deps.Settings)
	}
	_, copyOnly := v.(DownloadOnly)
	if _, ok := v.(DownloadOnlyCompiler); ok {
		copyOnly = true
	}
	return &Lifecycle{
		variant: v,
		job: &Job{
			Decl:      decl,
			Target:    config.TargetDir(basePath, decl),
			Settings:  deps.Settings,
			Runner:    deps.Runner,
			Sources:   deps.Sources,
			Compilers: compilers,
		},
		state:        Created,
		createTarget: !copyOnly,
		scratchRoot:  deps.ScratchRoot,
	}, nil
}
