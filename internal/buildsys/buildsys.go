// Package buildsys constructs the configure, build and install commands of
// the build systems used by toolchain sources.
package buildsys

import (
	"strings"

	"github.com/goplus/cppbuilder/internal/process"
)

// BuildSystem captures the command lifecycle shared by build helpers.
// Implementations only construct commands; running them is up to the caller.
type BuildSystem interface {
	ConfigureCmd() process.Command
	BuildCmd() process.Command
	InstallCmd() process.Command
}

// Filter drops the options that start with any of the reserved prefixes.
// Reserved flags are always set by the build helper and never overridden.
func Filter(opts []string, reserved ...string) []string {
	var out []string
	for _, opt := range opts {
		keep := true
		for _, prefix := range reserved {
			if strings.HasPrefix(opt, prefix) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, opt)
		}
	}
	return out
}

// Quote quotes s for /bin/sh when it holds characters the shell would interpret.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !isShellSafe(r) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func isShellSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("@%+=:,./-_", r)
}
