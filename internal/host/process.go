package host

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// Process is the host instance a manager started or adopted.
type Process struct {
	Host string
	Port int
	// PID is zero when the pid is unknown, e.g. for remote hosts.
	PID int32
	// Owned is false for adopted listeners; only owned processes may be killed.
	Owned     bool
	PrefsPath string
}

// ProcessTable looks up operating system processes by executable.
type ProcessTable interface {
	// FindByName returns the pid of a running process whose executable
	// matches exe, or zero.
	FindByName(ctx context.Context, exe string) (int32, error)
	// IsRunning reports whether pid is alive and still maps to exe.
	IsRunning(ctx context.Context, pid int32, exe string) (bool, error)
	// MemoryUsage returns the resident set size of pid in bytes.
	MemoryUsage(ctx context.Context, pid int32, exe string) (uint64, error)
	Kill(ctx context.Context, pid int32) error
}

// SystemProcesses implements ProcessTable with gopsutil.
type SystemProcesses struct{}

func (SystemProcesses) FindByName(ctx context.Context, exe string) (int32, error) {
	if exe == "" {
		return 0, nil
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		// Unreadable exe paths only match bare names.
		path, _ := p.ExeWithContext(ctx)
		if matchesExecutable(exe, name, path) {
			return p.Pid, nil
		}
	}
	return 0, nil
}

func (s SystemProcesses) IsRunning(ctx context.Context, pid int32, exe string) (bool, error) {
	p, err := s.lookup(ctx, pid, exe)
	if err != nil || p == nil {
		return false, err
	}
	return p.IsRunningWithContext(ctx)
}

func (s SystemProcesses) MemoryUsage(ctx context.Context, pid int32, exe string) (uint64, error) {
	p, err := s.lookup(ctx, pid, exe)
	if err != nil || p == nil {
		return 0, err
	}
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return mem.RSS, nil
}

func (SystemProcesses) Kill(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if errors.Is(err, process.ErrorProcessNotRunning) {
		return nil
	}
	if err != nil {
		return err
	}
	return p.KillWithContext(ctx)
}

// lookup returns nil without error when pid is gone or now belongs to a
// different executable.
func (SystemProcesses) lookup(ctx context.Context, pid int32, exe string) (*process.Process, error) {
	if pid <= 0 {
		return nil, nil
	}
	p, err := process.NewProcessWithContext(ctx, pid)
	if errors.Is(err, process.ErrorProcessNotRunning) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if exe == "" {
		return p, nil
	}
	path, err := p.ExeWithContext(ctx)
	if err != nil {
		return nil, nil
	}
	if !matchesExecutable(exe, "", path) {
		return nil, nil
	}
	return p, nil
}

// matchesExecutable compares a process against the configured executable. A
// configured path must equal the process's exe path; a bare name matches the
// process name or the base of its exe path.
func matchesExecutable(want, name, path string) bool {
	if filepath.Base(want) == want {
		if name != "" && strings.EqualFold(name, want) {
			return true
		}
		return path != "" && strings.EqualFold(filepath.Base(path), want)
	}
	return path != "" && strings.EqualFold(filepath.Clean(path), filepath.Clean(want))
}
