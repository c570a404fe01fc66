// Package process runs external commands with a bounded wait.
//
// A Command is either an argument vector or, in shell mode, a single line
// handed to /bin/sh. Shell mode exists for tools whose -D style flags are lost
// when quoted values travel through an argument vector.
//
// Both failure causes are reported as typed errors: *ExitError for a non-zero
// exit status and *TimeoutError when the bound is exceeded. They match
// ErrNonZeroExit and ErrTimeout through errors.Is.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrNonZeroExit = errors.New("process: non-zero exit")
	ErrTimeout     = errors.New("process: timeout exceeded")
)

// DefaultTimeout bounds commands that do not carry their own timeout.
const DefaultTimeout = 180 * time.Second

// waitDelay bounds how long Wait blocks on open pipes once the process is gone.
const waitDelay = 5 * time.Second

const shell = "/bin/sh"

// Command describes one invocation.
type Command struct {
	Args    []string      // argument vector, used unless Line is set
	Line    string        // shell line, run through /bin/sh -c
	Dir     string        // working directory, current directory when empty
	Timeout time.Duration // DefaultTimeout when zero
}

// Exec returns an argument-vector command.
func Exec(args ...string) Command {
	return Command{Args: args}
}

// Shell returns a shell-line command.
func Shell(line string) Command {
	return Command{Line: line}
}

// In returns a copy of c running in dir.
func (c Command) In(dir string) Command {
	c.Dir = dir
	return c
}

// WithTimeout returns a copy of c bounded by d.
func (c Command) WithTimeout(d time.Duration) Command {
	c.Timeout = d
	return c
}

// IsShell reports whether c runs in shell mode.
func (c Command) IsShell() bool { return c.Line != "" }

func (c Command) String() string {
	if c.IsShell() {
		return c.Line
	}
	return strings.Join(c.Args, " ")
}

func (c Command) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c Command) argv() ([]string, error) {
	if c.IsShell() {
		return []string{shell, "-c", c.Line}, nil
	}
	if len(c.Args) == 0 || c.Args[0] == "" {
		return nil, errors.New("process: empty command")
	}
	return c.Args, nil
}

// ExitError reports a command that terminated with a non-zero status.
type ExitError struct {
	Command string
	Code    int
	Elapsed time.Duration
	Output  string // combined output, only for captured commands
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command [%s] exited with code %d after %s", e.Command, e.Code, e.Elapsed.Round(time.Millisecond))
}

func (e *ExitError) Is(target error) bool { return target == ErrNonZeroExit }

func (e *ExitError) Unwrap() error { return e.Err }

// TimeoutError reports a command killed after exceeding its bound.
type TimeoutError struct {
	Command string
	Timeout time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command [%s] timed out after %s (limit %s)", e.Command, e.Elapsed.Round(time.Millisecond), e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Runner executes commands.
type Runner interface {
	// Run executes c streaming its output.
	Run(ctx context.Context, c Command) error
	// Capture executes c and returns its combined stdout and stderr.
	Capture(ctx context.Context, c Command) (string, error)
}

// ExecRunner runs commands on the local host. Nil writers default to the
// process's own stdout and stderr.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

var _ Runner = ExecRunner{}

func (r ExecRunner) Run(ctx context.Context, c Command) error {
	_, err := r.exec(ctx, c, false)
	return err
}

func (r ExecRunner) Capture(ctx context.Context, c Command) (string, error) {
	return r.exec(ctx, c, true)
}

func (r ExecRunner) exec(ctx context.Context, c Command, capture bool) (string, error) {
	argv, err := c.argv()
	if err != nil {
		return "", err
	}
	text := c.String()
	limit := c.timeout()

	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	var out bytes.Buffer
	if capture {
		cmd.Stdout = &out
		cmd.Stderr = &out
	} else {
		cmd.Stdout = writerOr(r.Stdout, os.Stdout)
		cmd.Stderr = writerOr(r.Stderr, os.Stderr)
	}

	log.Debug().Str("cmd", text).Str("dir", c.Dir).Bool("shell", c.IsShell()).Msg("exec")
	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)
	log.Debug().Str("cmd", text).Dur("elapsed", elapsed).Msgf("command '%s' took %.3f seconds", text, elapsed.Seconds())

	if err == nil {
		return out.String(), nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		log.Error().Str("cmd", text).Dur("timeout", limit).Dur("elapsed", elapsed).Msgf("failed to execute [%s]. Timeout (%s)", text, limit)
		return out.String(), &TimeoutError{Command: text, Timeout: limit, Elapsed: elapsed}
	}
	if ctx.Err() != nil {
		return out.String(), fmt.Errorf("command [%s]: %w", text, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		log.Error().Str("cmd", text).Int("code", exitErr.ExitCode()).Dur("elapsed", elapsed).Msgf("failed to execute [%s]. Exit code non-zero", text)
		return out.String(), &ExitError{
			Command: text,
			Code:    exitErr.ExitCode(),
			Elapsed: elapsed,
			Output:  out.String(),
			Err:     err,
		}
	}
	log.Error().Str("cmd", text).Err(err).Msg("failed to start command")
	return out.String(), fmt.Errorf("command [%s]: %w", text, err)
}

func writerOr(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}

// DumpFile writes the content of path to the log for post-mortem inspection.
// It never fails; problems reading the file are logged instead.
func DumpFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Str("path", path).Err(err).Msg("cannot dump file")
		return
	}
	log.Error().Msg("##################### START OF FILE OUTPUT #####################")
	log.Error().Msgf("####### Path %s\n%s", path, data)
	log.Error().Msg("##################### END OF FILE OUTPUT #####################")
}
