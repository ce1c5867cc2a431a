package installer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// RunOptions tunes a single command execution.
type RunOptions struct {
	Dir    string
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// RunResult captures command output.
type RunResult struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, command string, args []string, opts RunOptions) (RunResult, error)
}

// CmdRunner runs commands with os/exec.
type CmdRunner struct{}

func (CmdRunner) Run(ctx context.Context, command string, args []string, opts RunOptions) (RunResult, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	cmd.Stdin = opts.Stdin

	var stdoutBuf, stderrBuf bytes.Buffer

	stdoutWriter := io.Writer(&stdoutBuf)
	if opts.Stdout != nil {
		stdoutWriter = io.MultiWriter(&stdoutBuf, opts.Stdout)
	}
	stderrWriter := io.Writer(&stderrBuf)
	if opts.Stderr != nil {
		stderrWriter = io.MultiWriter(&stderrBuf, opts.Stderr)
	}

	cmd.Stdout = stdoutWriter
	cmd.Stderr = stderrWriter

	err := cmd.Run()
	return RunResult{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes()}, err
}

// Command is a command line with optional environment.
type Command struct {
	Name string
	Args []string
	Env  []string
	Dir  string
	// Privileged commands run through sudo when Env.Sudo is set.
	Privileged bool
}

// Cmd builds an unprivileged command.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Sudo builds a privileged command.
func Sudo(name string, args ...string) Command {
	return Command{Name: name, Args: args, Privileged: true}
}

func (c Command) String() string {
	parts := append([]string{c.Name}, c.Args...)
	return strings.Join(parts, " ")
}

// Exec runs c, routing privileged commands through sudo. sudo resets the
// environment, so variables are passed through `env` in that case. In
// dry-run mode the command is only logged.
func (e *Env) Exec(ctx context.Context, c Command) (RunResult, error) {
	if e.DryRun {
		e.Logger.Infof("[dry-run] would run: %s", c)
		return RunResult{}, nil
	}

	name, args, env := c.Name, c.Args, c.Env
	if c.Privileged && e.Sudo {
		prefix := []string{}
		if len(env) > 0 {
			prefix = append([]string{"env"}, env...)
			env = nil
		}
		args = append(append(prefix, name), args...)
		name = "sudo"
	}

	e.Logger.Debugf("run: %s %s", name, strings.Join(args, " "))
	res, err := e.Runner.Run(ctx, name, args, RunOptions{Dir: c.Dir, Env: env})
	if err != nil {
		return res, fmt.Errorf("%s: %w%s", c, err, stderrTail(res.Stderr))
	}
	return res, nil
}

func stderrTail(stderr []byte) string {
	text := strings.TrimSpace(string(stderr))
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	return ": " + strings.Join(lines, " | ")
}
