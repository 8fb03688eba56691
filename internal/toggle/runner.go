package toggle

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Runner runs a user-supplied command string.
type Runner interface {
	Run(command string) error
}

// CommandError reports a command that could not be started or exited
// unsuccessfully. ExitCode is -1 when the command did not start or was
// terminated by a signal.
type CommandError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q returned code %d: %v", e.Command, e.ExitCode, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ShellRunner runs commands through a POSIX shell, like system(3).
type ShellRunner struct {
	// Shell defaults to /bin/sh.
	Shell  string
	Stdout io.Writer
	Stderr io.Writer
}

// NewShellRunner returns a runner that passes command output through to
// the process's own stdout and stderr.
func NewShellRunner() *ShellRunner {
	return &ShellRunner{Shell: "/bin/sh", Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes command and waits for it. There is no timeout.
func (r *ShellRunner) Run(command string) error {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell, "-c", command)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &CommandError{Command: command, ExitCode: code, Err: err}
	}
	return nil
}
