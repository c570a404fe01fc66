package internal

import (
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goplus/cppbuilder/internal/env"
	"github.com/goplus/cppbuilder/internal/environ"
	"github.com/goplus/cppbuilder/internal/registry"
)

const bash = "/bin/bash"

var errNestedSession = errors.New("cannot nest cppbuilder sessions")

var execCmd = &cobra.Command{
	Use:   "exec [-- command args...]",
	Short: "Run a command, or a shell, with the toolchain variables set",
	Long: `Exec exports the variables derived from the installation record and runs
the given command through a bash login shell. Without a command it starts an
interactive shell.`,
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func shellArgs(args []string) []string {
	if len(args) == 0 {
		return []string{bash}
	}
	return []string{bash, "-l", "-c", strings.Join(args, " ")}
}

func sessionEnv(base []string, vars map[string]string) []string {
	out := append([]string(nil), base...)
	for name, value := range vars {
		out = append(out, name+"="+value)
	}
	return append(out, env.InsideShell+"=True")
}

func runExec(cmd *cobra.Command, args []string) error {
	if env.IsInsideShell() {
		return errNestedSession
	}
	vars, err := environ.FromRegistry(registry.Load(registryFile()))
	if err != nil {
		return err
	}
	argv := shellArgs(args)
	c := exec.CommandContext(cmd.Context(), argv[0], argv[1:]...)
	c.Env = sessionEnv(os.Environ(), vars)
	c.Stdin = cmd.InOrStdin()
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()
	err = c.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitCode(exitErr.ExitCode())
	}
	return err
}
