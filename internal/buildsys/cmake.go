package buildsys

import (
	"sort"
	"strconv"
	"strings"

	"github.com/goplus/cppbuilder/internal/process"
)

// CMake builds a Ninja-generated CMake configuration.
//
// The configure step is a single shell line: when -D flags travel through an
// argument vector some CMake front ends drop them.
type CMake struct {
	SourceDir string
	Generator string // "Ninja" when empty
	Defines   map[string]string
	Args      []string // caller options, appended verbatim
	Jobs      int
}

var _ BuildSystem = (*CMake)(nil)

// Define sets -D<key>=<value>.
func (c *CMake) Define(key, value string) *CMake {
	if c.Defines == nil {
		c.Defines = map[string]string{}
	}
	c.Defines[key] = value
	return c
}

// ConfigureCmd returns the shell-mode configure command.
func (c *CMake) ConfigureCmd() process.Command {
	return process.Shell(c.ConfigureLine())
}

// ConfigureLine returns cmake <src> -G <generator> -D<k>=<v>... [args...],
// defines sorted by key.
func (c *CMake) ConfigureLine() string {
	gen := c.Generator
	if gen == "" {
		gen = "Ninja"
	}
	parts := []string{"cmake", Quote(c.SourceDir), "-G", Quote(gen)}
	parts = append(parts, c.definesArgs()...)
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

func (c *CMake) BuildCmd() process.Command {
	return process.Exec("ninja", "-j", strconv.Itoa(max(c.Jobs, 1)))
}

func (c *CMake) InstallCmd() process.Command {
	return process.Exec("ninja", "install")
}

func (c *CMake) definesArgs() []string {
	if len(c.Defines) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.Defines))
	for k := range c.Defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, "-D"+k+"="+Quote(c.Defines[k]))
	}
	return args
}
