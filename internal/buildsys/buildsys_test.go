package buildsys

import (
	"reflect"
	"testing"
)

func TestAutoToolsCommands(t *testing.T) {
	a := &AutoTools{SourceDir: "/tmp/src", Prefix: "/opt/tools/zlib", Args: []string{"--static"}}

	got := a.ConfigureCmd().Args
	want := []string{"/tmp/src/configure", "--prefix=/opt/tools/zlib", "--static"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ConfigureCmd() = %q, want %q", got, want)
	}
	if got := a.BuildCmd().String(); got != "make" {
		t.Errorf("BuildCmd() = %q, want %q", got, "make")
	}
	if got := a.InstallCmd().String(); got != "make install" {
		t.Errorf("InstallCmd() = %q, want %q", got, "make install")
	}

	a.Jobs = 8
	a.InstallTarget = "install-strip"
	if got := a.BuildCmd().String(); got != "make -j 8" {
		t.Errorf("BuildCmd() = %q, want %q", got, "make -j 8")
	}
	if got := a.InstallCmd().String(); got != "make install-strip" {
		t.Errorf("InstallCmd() = %q, want %q", got, "make install-strip")
	}
}

func TestBootstrapCommands(t *testing.T) {
	b := &Bootstrap{SourceDir: "/tmp/cmake-3.28.1", Prefix: "/opt/tools/cmake", Jobs: 4}
	want := "/tmp/cmake-3.28.1/bootstrap --parallel=4 --prefix=/opt/tools/cmake"
	if got := b.ConfigureCmd().String(); got != want {
		t.Errorf("ConfigureCmd() = %q, want %q", got, want)
	}
	b.Jobs = 0
	if got := b.ConfigureCmd().Args[1]; got != "--parallel=1" {
		t.Errorf("parallel flag = %q, want %q", got, "--parallel=1")
	}
}

func TestCMakeConfigureLine(t *testing.T) {
	c := &CMake{SourceDir: "/tmp/llvm-project/llvm", Jobs: 16, Args: []string{"-DLLVM_TARGETS_TO_BUILD=X86"}}
	c.Define("LLVM_ENABLE_PROJECTS", "clang;clang-tools-extra").
		Define("CMAKE_INSTALL_PREFIX", "/opt/tools/compilers/clang").
		Define("CMAKE_BUILD_TYPE", "Release")

	cmd := c.ConfigureCmd()
	if !cmd.IsShell() {
		t.Fatal("ConfigureCmd() is not a shell command")
	}
	want := "cmake /tmp/llvm-project/llvm -G Ninja -DCMAKE_BUILD_TYPE=Release " +
		"-DCMAKE_INSTALL_PREFIX=/opt/tools/compilers/clang " +
		"-DLLVM_ENABLE_PROJECTS='clang;clang-tools-extra' -DLLVM_TARGETS_TO_BUILD=X86"
	if cmd.Line != want {
		t.Errorf("ConfigureLine() =\n%s\nwant\n%s", cmd.Line, want)
	}
	if got := c.BuildCmd().String(); got != "ninja -j 16" {
		t.Errorf("BuildCmd() = %q", got)
	}
	if got := c.InstallCmd().String(); got != "ninja install" {
		t.Errorf("InstallCmd() = %q", got)
	}
}

func TestFilter(t *testing.T) {
	opts := []string{"--prefix=/x", "--disable-multilib", "--target=arm", "--enable-languages=go", "--with-system-zlib"}
	got := Filter(opts, "--target", "--host", "--build", "--enable-languages", "--prefix")
	want := []string{"--disable-multilib", "--with-system-zlib"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Filter() = %q, want %q", got, want)
	}
	if got := Filter(nil, "--prefix"); got != nil {
		t.Errorf("Filter(nil) = %q, want nil", got)
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "''"},
		{"/opt/tools/gcc", "/opt/tools/gcc"},
		{"clang;lld", "'clang;lld'"},
		{"with space", "'with space'"},
		{"it's", `'it'\''s'`},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
