package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goplus/cppbuilder/internal/config"
	"github.com/goplus/cppbuilder/internal/env"
	"github.com/goplus/cppbuilder/internal/environ"
	"github.com/goplus/cppbuilder/internal/installer"
	"github.com/goplus/cppbuilder/internal/process"
	"github.com/goplus/cppbuilder/internal/registry"
)

// scriptedRunner answers commands by suffix; "make" times out.
type scriptedRunner struct {
	replies map[string]string
	calls   []string
}

func (r *scriptedRunner) Run(ctx context.Context, c process.Command) error {
	_, err := r.Capture(ctx, c)
	return err
}

func (r *scriptedRunner) Capture(_ context.Context, c process.Command) (string, error) {
	s := c.String()
	r.calls = append(r.calls, s)
	if s == "make" {
		return "", &process.TimeoutError{Command: s, Timeout: c.Timeout, Elapsed: c.Timeout}
	}
	for suffix, out := range r.replies {
		if strings.HasSuffix(s, suffix) {
			return out, nil
		}
	}
	return "", nil
}

// treeSources unpacks the files registered under a URL.
type treeSources map[string]map[string]string

func (s treeSources) Fetch(_ context.Context, url, scratch string) (string, error) {
	root := filepath.Join(scratch, "src")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	for name, body := range s[url] {
		p := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(p, []byte(body), 0o755); err != nil {
			return "", err
		}
	}
	return root, nil
}

func (treeSources) InstallPackages(context.Context, []string) error { return nil }

type harness struct {
	dir    string
	base   string
	opts   Options
	runner *scriptedRunner
	orch   *Orchestrator
}

func newHarness(t *testing.T, sources treeSources, continueOnError bool) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		dir:    dir,
		base:   filepath.Join(dir, "tools"),
		runner: &scriptedRunner{replies: map[string]string{}},
		opts: Options{
			RegistryPath:    filepath.Join(dir, "scripts", ".installation.json"),
			EnvFilePath:     filepath.Join(dir, "scripts", ".environment"),
			ConanDir:        filepath.Join(dir, "conan", "profiles"),
			ContinueOnError: continueOnError,
		},
	}
	scratch := filepath.Join(dir, "scratch")
	require.NoError(t, os.MkdirAll(scratch, 0o755))
	h.orch = New(installer.Deps{
		Runner:      h.runner,
		Sources:     sources,
		Settings:    env.Settings{CPUs: 2},
		ScratchRoot: scratch,
	}, h.opts)
	return h
}

func (h *harness) config(decls ...config.Declaration) *config.Config {
	return &config.Config{BasePath: h.base, Components: decls}
}

func prebuilt(key, name, version string) config.Declaration {
	return config.Declaration{Key: key, Type: config.TypeDownloadOnly, URL: "file:///" + key, Name: name, Version: version}
}

var trees = treeSources{
	"file:///cmake": {"bin/cmake": "#!/bin/sh\n"},
	"file:///ninja": {"ninja": "#!/bin/sh\n"},
}

func TestRunInstallsAndWritesEnvironment(t *testing.T) {
	h := newHarness(t, trees, false)
	res, err := h.orch.Run(context.Background(), h.config(
		prebuilt("cmake", "cmake", "3.28.1"),
		prebuilt("ninja", "ninja", "1.11.1"),
	))
	require.NoError(t, err)
	assert.Empty(t, res.Failed)

	cmakeDir := filepath.Join(h.base, "cmake")
	assert.FileExists(t, filepath.Join(cmakeDir, "bin", "cmake"))
	assert.Equal(t, map[string]string{
		"BUILDER_CMAKE_DIR": cmakeDir,
		"BUILDER_NINJA_DIR": filepath.Join(h.base, "ninja"),
	}, res.Variables)

	saved := registry.Load(h.opts.RegistryPath)
	assert.Equal(t, []string{"cmake", "ninja"}, saved.Keys())
	d, _ := saved.Get("cmake")
	assert.Equal(t, registry.Descriptor{Name: "cmake", Version: "3.28.1", Path: cmakeDir}, d)

	written, err := environ.ReadFile(h.opts.EnvFilePath)
	require.NoError(t, err)
	assert.Equal(t, res.Variables, written)
}

func TestMissingURLWritesNothing(t *testing.T) {
	h := newHarness(t, trees, false)
	bad := prebuilt("ninja", "ninja", "1")
	bad.URL = ""
	_, err := h.orch.Run(context.Background(), h.config(prebuilt("cmake", "cmake", "1"), bad))
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrConfiguration))
	assert.NoFileExists(t, h.opts.RegistryPath)
	assert.NoFileExists(t, h.opts.EnvFilePath)
	assert.NoDirExists(t, h.base)
}

func TestUnknownTypeAbortsRun(t *testing.T) {
	h := newHarness(t, trees, false)
	bad := prebuilt("ninja", "ninja", "1")
	bad.Type = "meson-build"
	_, err := h.orch.Run(context.Background(), h.config(bad))
	assert.True(t, errors.Is(err, config.ErrConfiguration))
	assert.NoFileExists(t, h.opts.RegistryPath)
}

func timingOut(key string) config.Declaration {
	return config.Declaration{Key: key, Type: config.TypeGeneric, URL: "file:///" + key, Name: key, Version: "1.0"}
}

func TestFirstFailureStopsRun(t *testing.T) {
	h := newHarness(t, trees, false)
	require.NoError(t, os.MkdirAll(filepath.Dir(h.opts.RegistryPath), 0o755))
	stale := registry.New()
	stale.Record("old", registry.Descriptor{Name: "old", Version: "1", Path: "/gone"})
	require.NoError(t, stale.Save(h.opts.RegistryPath))
	require.NoError(t, environ.WriteFile(h.opts.EnvFilePath, map[string]string{
		"BUILDER_M4_DIR": filepath.Join(h.base, "m4"),
	}))

	res, err := h.orch.Run(context.Background(), h.config(timingOut("m4"), prebuilt("cmake", "cmake", "1")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, process.ErrTimeout))
	var se *installer.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "m4", se.Key)
	assert.Equal(t, installer.StageBuild, se.Stage)
	assert.Equal(t, []string{"m4"}, res.Failed)

	assert.NoDirExists(t, filepath.Join(h.base, "m4"))
	assert.NoDirExists(t, filepath.Join(h.base, "cmake"))
	assert.Zero(t, registry.Load(h.opts.RegistryPath).Len())

	written, err := environ.ReadFile(h.opts.EnvFilePath)
	require.NoError(t, err)
	assert.Empty(t, written)
	assert.Empty(t, res.Variables)
}

func TestContinueOnError(t *testing.T) {
	h := newHarness(t, trees, true)
	res, err := h.orch.Run(context.Background(), h.config(timingOut("m4"), prebuilt("cmake", "cmake", "1")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, process.ErrTimeout))
	assert.Equal(t, []string{"m4"}, res.Failed)

	saved := registry.Load(h.opts.RegistryPath)
	assert.Equal(t, []string{"cmake"}, saved.Keys())
	_, ok := saved.Get("m4")
	assert.False(t, ok)
	assert.Equal(t, map[string]string{"BUILDER_CMAKE_DIR": filepath.Join(h.base, "cmake")}, res.Variables)
	assert.FileExists(t, h.opts.EnvFilePath)
}

func TestConanProfilesBecomeVariables(t *testing.T) {
	sources := treeSources{"file:///gcc12": {"bin/gcc": "#!/bin/sh\n"}}
	h := newHarness(t, sources, false)
	h.runner.replies["/bin/gcc -v"] = "gcc version 12.2.0 (GCC)\nConfigured with: --with-default-libstdcxx-abi=new"
	h.runner.replies["/bin/gcc -dumpmachine"] = "x86_64-pc-linux-gnu\n"
	h.runner.replies["/bin/gcc -dumpversion"] = "12.2.0\n"

	res, err := h.orch.Run(context.Background(), h.config(config.Declaration{
		Key: "gcc12", Type: config.TypeDownloadOnlyCompiler, URL: "file:///gcc12", Name: "gcc",
		Group: config.GroupCompilers, ConanProfile: true,
	}))
	require.NoError(t, err)

	release := filepath.Join(h.opts.ConanDir, "cpp-builder-gcc12-release.profile")
	assert.FileExists(t, release)
	assert.Equal(t, release, res.Variables["BUILDER_CONAN_PROFILE_GCC12_RELEASE"])
	assert.Contains(t, res.Variables, "BUILDER_CONAN_PROFILE_GCC12_DEBUG")
	assert.Equal(t, filepath.Join(h.base, "compilers", "gcc12"), res.Variables["BUILDER_GCC_DIR"])

	saved := registry.Load(h.opts.RegistryPath)
	assert.Equal(t, release, saved.Variables()["BUILDER_CONAN_PROFILE_GCC12_RELEASE"])
	again, err := environ.FromRegistry(saved)
	require.NoError(t, err)
	assert.Equal(t, res.Variables, again)
}
