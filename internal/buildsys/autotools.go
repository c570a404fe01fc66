package buildsys

import (
	"path/filepath"
	"strconv"

	"github.com/goplus/cppbuilder/internal/process"
)

// AutoTools builds configure/make commands.
type AutoTools struct {
	SourceDir string
	Prefix    string
	Args      []string // extra configure arguments, after --prefix
	Jobs      int      // make -j; serial when zero

	// InstallTarget is the make target of the install step, "install" when empty.
	InstallTarget string
}

var _ BuildSystem = (*AutoTools)(nil)

// ConfigureCmd returns <src>/configure --prefix=<prefix> [args...].
func (a *AutoTools) ConfigureCmd() process.Command {
	args := []string{filepath.Join(a.SourceDir, "configure"), "--prefix=" + a.Prefix}
	args = append(args, a.Args...)
	return process.Exec(args...)
}

func (a *AutoTools) BuildCmd() process.Command {
	if a.Jobs > 0 {
		return process.Exec("make", "-j", strconv.Itoa(a.Jobs))
	}
	return process.Exec("make")
}

func (a *AutoTools) InstallCmd() process.Command {
	target := a.InstallTarget
	if target == "" {
		target = "install"
	}
	return process.Exec("make", target)
}

// Bootstrap builds the commands of a self-hosting source tree such as CMake's,
// configured by a bootstrap script and then built with make.
type Bootstrap struct {
	SourceDir string
	Prefix    string
	Jobs      int
}

var _ BuildSystem = (*Bootstrap)(nil)

// ConfigureCmd returns <src>/bootstrap --parallel=<jobs> --prefix=<prefix>.
func (b *Bootstrap) ConfigureCmd() process.Command {
	jobs := max(b.Jobs, 1)
	return process.Exec(
		filepath.Join(b.SourceDir, "bootstrap"),
		"--parallel="+strconv.Itoa(jobs),
		"--prefix="+b.Prefix,
	)
}

func (b *Bootstrap) BuildCmd() process.Command {
	return process.Exec("make")
}

func (b *Bootstrap) InstallCmd() process.Command {
	return process.Exec("make", "install")
}
