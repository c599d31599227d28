package tools

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

var ErrLaunchFailed = errors.New("tools: launch failed")

// LaunchSpec describes a long-running child process.
type LaunchSpec struct {
	Path   string
	Args   []string
	Dir    string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// Handle controls a launched process.
type Handle interface {
	PID() int
	Kill() error
	// Wait blocks until the process exits and returns its exit code. It may be
	// called any number of times.
	Wait() (int32, error)
	// Exited is closed once the process has been reaped.
	Exited() <-chan struct{}
}

// Launcher starts processes. Tests replace ExecLauncher with a fake.
type Launcher interface {
	Launch(spec LaunchSpec) (Handle, error)
}

// ExecLauncher launches local processes with os/exec.
type ExecLauncher struct{}

func (ExecLauncher) Launch(spec LaunchSpec) (Handle, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLaunchFailed, spec.Path, err)
	}
	h := &execHandle{cmd: cmd, done: make(chan struct{})}
	go h.reap()
	return h, nil
}

type execHandle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu   sync.Mutex
	code int32
	err  error
}

func (h *execHandle) reap() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.code = ExitCode(err)
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

func (h *execHandle) PID() int {
	return h.cmd.Process.Pid
}

func (h *execHandle) Kill() error {
	err := h.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (h *execHandle) Wait() (int32, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.code, h.err
}

func (h *execHandle) Exited() <-chan struct{} {
	return h.done
}
