package converter

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
)

// ExitStatus describes how a tool process ended.
type ExitStatus struct {
	Code int
	// Signaled is set when the process was terminated by a signal.
	Signaled bool
	Stdout   string
	Stderr   string
}

// Process is a running tool invocation.
type Process interface {
	// Wait blocks until the process exits.
	Wait() ExitStatus
	// Kill forcibly terminates the process.
	Kill() error
}

// Launcher starts tool processes.
type Launcher interface {
	Start(ctx context.Context, name string, args []string) (Process, error)
}

// ExecLauncher starts real operating-system processes.
type ExecLauncher struct{}

// Start launches name with args, capturing stdout and stderr.
func (ExecLauncher) Start(ctx context.Context, name string, args []string) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	p := &execProcess{cmd: cmd}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (p *execProcess) Wait() ExitStatus {
	err := p.cmd.Wait()
	st := ExitStatus{
		Stdout: p.stdout.String(),
		Stderr: p.stderr.String(),
	}
	if state := p.cmd.ProcessState; state != nil {
		st.Code = state.ExitCode()
		// ExitCode is -1 when the process was killed by a signal.
		st.Signaled = st.Code == -1
	} else if err != nil {
		st.Code = -1
		st.Signaled = true
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && st.Stderr == "" {
		st.Stderr = err.Error()
	}
	return st
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// FileSystem is the slice of filesystem access the converter needs.
type FileSystem interface {
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
}

// OSFileSystem reads the real filesystem.
type OSFileSystem struct{}

// Stat calls os.Stat.
func (OSFileSystem) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

// ReadDir calls os.ReadDir.
func (OSFileSystem) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }
