package internal

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/goplus/cppbuilder/internal/env"
	"github.com/goplus/cppbuilder/internal/registry"
)

func testRegistry(t *testing.T) string {
	t.Helper()
	r := registry.New()
	r.Record("gcc13", registry.Descriptor{Name: "gcc", Version: "13.1.0", Path: "/t/gcc13", Group: "compilers", Triplet: "x86_64-pc-linux-gnu"})
	r.Record("gcc9", registry.Descriptor{Name: "gcc", Version: "9.5.0", Path: "/t/gcc9", Group: "compilers", Triplet: "x86_64-pc-linux-gnu", Default: true})
	r.Record("cmake", registry.Descriptor{Name: "cmake", Version: "3.28.1", Path: "/t/cmake"})
	path := filepath.Join(t.TempDir(), ".installation.json")
	if err := r.Save(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		registryPath = ""
		envWrite = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSortedRows(t *testing.T) {
	r := registry.Load(testRegistry(t))
	var keys []string
	for _, row := range sortedRows(r) {
		keys = append(keys, row.key)
	}
	want := []string{"cmake", "gcc9", "gcc13"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("sortedRows = %v, want %v", keys, want)
	}
}

func TestListCommand(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })

	out, err := run(t, "list", "--registry", testRegistry(t))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("list printed %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.HasPrefix(lines[2], "gcc*") {
		t.Errorf("unexpected listing:\n%s", out)
	}

	out, err = run(t, "list", "--registry", filepath.Join(t.TempDir(), "missing.json"))
	if err != nil || !strings.Contains(out, "no components installed") {
		t.Errorf("empty list = %q, %v", out, err)
	}
}

func TestEnvCommand(t *testing.T) {
	reg := testRegistry(t)
	out, err := run(t, "env", "--registry", reg)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"BUILDER_CMAKE_DIR=/t/cmake\n",
		"BUILDER_GCC_DIR=/t/gcc9\n",
		"BUILDER_GCC13_X86_64_PC_LINUX_GNU_13_1_0_DIR=/t/gcc13\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("env output misses %q:\n%s", want, out)
		}
	}

	file := filepath.Join(t.TempDir(), ".environment")
	if _, err := run(t, "env", "--registry", reg, "--write", file); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != out {
		t.Errorf("written file differs from printed output")
	}
}

func TestExecRefusesNesting(t *testing.T) {
	t.Setenv(env.InsideShell, "true")
	_, err := run(t, "exec", "--registry", testRegistry(t), "--", "true")
	if !errors.Is(err, errNestedSession) {
		t.Errorf("exec inside a session = %v, want %v", err, errNestedSession)
	}
}

func TestShellArgs(t *testing.T) {
	if got := shellArgs(nil); len(got) != 1 || got[0] != bash {
		t.Errorf("shellArgs(nil) = %v", got)
	}
	got := shellArgs([]string{"cmake", "--version"})
	want := []string{bash, "-l", "-c", "cmake --version"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("shellArgs = %v, want %v", got, want)
	}
}

func TestSessionEnv(t *testing.T) {
	got := sessionEnv([]string{"PATH=/bin"}, map[string]string{"BUILDER_GCC_DIR": "/t/gcc"})
	want := []string{"PATH=/bin", "BUILDER_GCC_DIR=/t/gcc", env.InsideShell + "=True"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("sessionEnv = %v, want %v", got, want)
	}
}

func TestExitCode(t *testing.T) {
	var err error = exitCode(3)
	var code exitCode
	if !errors.As(err, &code) || code != 3 || err.Error() != "exit status 3" {
		t.Errorf("exitCode(3) = %v", err)
	}
}
