package conan

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"

	"github.com/goplus/cppbuilder/internal/registry"
)

type fakeCompilers struct {
	bin     string
	verbose string
	err     error
}

func (f fakeCompilers) Find(context.Context, string) (string, error) {
	return f.bin, f.err
}

func (f fakeCompilers) Query(_ context.Context, _ string, args ...string) (string, error) {
	if len(args) == 1 && args[0] == "-v" {
		return f.verbose, f.err
	}
	return "", errors.New("unexpected query")
}

func TestGenerateGCCProfiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")
	g := &Generator{Dir: dir, Compilers: fakeCompilers{
		bin:     "/opt/tools/compilers/gcc12/bin/x86_64-linux-gnu-gcc-12",
		verbose: "Configured with: ../configure --with-default-libstdcxx-abi=new\ngcc version 12.2.0",
	}}
	vars, err := g.Generate(context.Background(), "gcc.12", registry.Descriptor{
		Name: "gcc", Version: "12.2.0", Path: "/opt/tools/compilers/gcc12", Triplet: "x86_64-pc-linux-gnu",
	})
	require.NoError(t, err)

	release := filepath.Join(dir, "cpp-builder-gcc-12-release.profile")
	assert.Equal(t, map[string]string{
		"BUILDER_CONAN_PROFILE_GCC_12_DEBUG":   filepath.Join(dir, "cpp-builder-gcc-12-debug.profile"),
		"BUILDER_CONAN_PROFILE_GCC_12_RELEASE": release,
	}, vars)

	f, err := ini.Load(release)
	require.NoError(t, err)
	assert.Equal(t, []string{ini.DefaultSection, "env", "build_requires", "options", "settings"}, f.SectionStrings())
	settings := f.Section("settings")
	assert.Equal(t, "x86_64", settings.Key("arch").String())
	assert.Equal(t, "Linux", settings.Key("os").String())
	assert.Equal(t, "gcc", settings.Key("compiler").String())
	assert.Equal(t, "12", settings.Key("compiler.version").String())
	assert.Equal(t, "Release", settings.Key("build_type").String())
	assert.Equal(t, "libstdc++11", settings.Key("compiler.libcxx").String())
	assert.Equal(t, "/opt/tools/compilers/gcc12/bin/x86_64-linux-gnu-g++-12", f.Section("env").Key("CXX").String())
}

func TestClangProfile(t *testing.T) {
	g := &Generator{Compilers: fakeCompilers{bin: "/p/bin/clang"}}
	f, err := g.Profile(context.Background(), registry.Descriptor{
		Name: "clang", Version: "17.0.6", Path: "/p", Triplet: "aarch64-unknown-linux-gnu",
	}, "Debug")
	require.NoError(t, err)
	assert.Equal(t, "libc++", f.Section("settings").Key("compiler.libcxx").String())
	assert.Equal(t, "Linux", f.Section("settings").Key("os").String())
	assert.Equal(t, "aarch64", f.Section("settings").Key("arch").String())
	assert.Equal(t, "/p/bin/clang++", f.Section("env").Key("CXX").String())
}

func TestOldABI(t *testing.T) {
	g := &Generator{Compilers: fakeCompilers{bin: "/p/bin/gcc", verbose: "gcc version 4.9.4"}}
	f, err := g.Profile(context.Background(), registry.Descriptor{
		Name: "gcc", Version: "4.9.4", Path: "/p", Triplet: "x86_64-linux-gnu",
	}, "Debug")
	require.NoError(t, err)
	assert.Equal(t, "libstdc++", f.Section("settings").Key("compiler.libcxx").String())
	assert.Equal(t, "4", f.Section("settings").Key("compiler.version").String())
}

func TestBadTriplet(t *testing.T) {
	g := &Generator{Dir: t.TempDir(), Compilers: fakeCompilers{bin: "/p/bin/gcc"}}
	for _, triplet := range []string{"", "x86_64", "a-b-c-d-e"} {
		_, err := g.Generate(context.Background(), "gcc", registry.Descriptor{
			Name: "gcc", Version: "12", Path: "/p", Triplet: triplet,
		})
		assert.Error(t, err, triplet)
	}
}

func TestUnsupportedCompiler(t *testing.T) {
	assert.False(t, Supported("cmake"))
	g := &Generator{Dir: t.TempDir(), Compilers: fakeCompilers{}}
	_, err := g.Generate(context.Background(), "icc", registry.Descriptor{Name: "icc"})
	assert.Error(t, err)
}
