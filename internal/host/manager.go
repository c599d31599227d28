package host

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"sync"
	"time"

	"github.com/danmuck/lvctl/internal/client"
	"github.com/danmuck/lvctl/internal/observability"
	"github.com/danmuck/lvctl/internal/protocol/session"
	"github.com/danmuck/lvctl/internal/tools"
	"github.com/rs/zerolog/log"
)

// Start results reported to metrics.
const (
	resultListening = "listening"
	resultAdopted   = "adopted"
	resultTimeout   = "timeout"
	resultFailed    = "failed"
)

type Option func(*Manager)

func WithLauncher(l tools.Launcher) Option {
	return func(m *Manager) { m.launcher = l }
}

func WithProcessTable(p ProcessTable) Option {
	return func(m *Manager) { m.procs = p }
}

func WithPreferences(p *Preferences) Option {
	return func(m *Manager) { m.prefs = p }
}

// WithRand sets the source used for backoff jitter.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rng = r }
}

// Manager drives one host through its lifecycle.
type Manager struct {
	cfg      Config
	launcher tools.Launcher
	procs    ProcessTable
	prefs    *Preferences
	rng      *rand.Rand

	mu      sync.Mutex
	state   State
	proc    *Process
	handle  tools.Handle
	changed chan struct{}
}

func New(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg.WithDefaults(),
		launcher: tools.ExecLauncher{},
		procs:    SystemProcesses{},
		prefs:    DefaultPreferences(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		state:    StateNotStarted,
		changed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Config() Config {
	return m.cfg
}

// Preferences returns the token set written on the next launch.
func (m *Manager) Preferences() *Preferences {
	return m.prefs
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Process returns a copy of the current process, or nil when none is known.
func (m *Manager) Process() *Process {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proc == nil {
		return nil
	}
	cp := *m.proc
	return &cp
}

func (m *Manager) transitionLocked(to State) error {
	if !canTransition(m.state, to) {
		return transitionError(m.state, to)
	}
	log.Debug().Str("addr", m.cfg.Address()).Str("from", string(m.state)).Str("to", string(to)).Msg("host.Manager state")
	m.state = to
	close(m.changed)
	m.changed = make(chan struct{})
	return nil
}

// Start brings the listener up. An endpoint that already accepts connections
// is adopted instead of launched.
func (m *Manager) Start(ctx context.Context) (*Process, error) {
	began := time.Now()
	m.mu.Lock()
	if err := m.transitionLocked(StateStarting); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	proc, handle, result, err := m.start(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	observability.RecordHostStart(result, time.Since(began))
	if err != nil {
		_ = m.transitionLocked(StateNotStarted)
		log.Error().Str("addr", m.cfg.Address()).Err(err).Msg("host.Manager start failed")
		return nil, err
	}
	m.proc = proc
	m.handle = handle
	_ = m.transitionLocked(StateListening)
	log.Info().
		Str("addr", m.cfg.Address()).
		Int32("pid", proc.PID).
		Bool("owned", proc.Owned).
		Dur("elapsed", time.Since(began)).
		Msg("host.Manager listening")
	cp := *proc
	return &cp, nil
}

func (m *Manager) start(ctx context.Context) (*Process, tools.Handle, string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.StartupTimeout)
	defer cancel()

	if err := m.probe(ctx); err == nil {
		log.Warn().Str("addr", m.cfg.Address()).Msg("host already launched, adopting listener")
		proc := &Process{Host: m.cfg.Host, Port: m.cfg.Port}
		if m.cfg.IsLocal() {
			proc.PID = m.findExisting(ctx)
		}
		return proc, nil, resultAdopted, nil
	}

	if !m.cfg.IsLocal() {
		log.Info().Str("addr", m.cfg.Address()).Msg("host is remote, waiting for listener")
		if err := m.poll(ctx, nil); err != nil {
			return nil, nil, failureResult(err), err
		}
		return &Process{Host: m.cfg.Host, Port: m.cfg.Port}, nil, resultAdopted, nil
	}

	if m.cfg.ExecutablePath == "" {
		return nil, nil, resultFailed, ErrExecutableRequired
	}
	prefsPath, err := m.prefs.WriteTemp(m.cfg.PrefsDir)
	if err != nil {
		return nil, nil, resultFailed, fmt.Errorf("host: write preferences: %w", err)
	}
	existing := m.findExisting(ctx)
	handle, err := m.launcher.Launch(tools.LaunchSpec{
		Path: m.cfg.ExecutablePath,
		Args: m.cfg.LaunchArgs(prefsPath),
	})
	if err != nil {
		removePrefs(prefsPath)
		return nil, nil, resultFailed, err
	}
	pid := int32(handle.PID())
	// A second launch of a running host hands off to the first instance and
	// exits, so its exit only means failure for a fresh process.
	var exited <-chan struct{}
	if existing != 0 {
		pid = existing
	} else {
		exited = handle.Exited()
	}
	log.Info().
		Str("exe", m.cfg.ExecutablePath).
		Str("vi", m.cfg.ListenerVI).
		Int32("pid", pid).
		Str("prefs", prefsPath).
		Msg("host.Manager launched")

	if err := m.poll(ctx, exited); err != nil {
		killCtx, killCancel := context.WithTimeout(context.Background(), m.cfg.KillTimeout)
		if kerr := m.terminate(killCtx, handle, pid); kerr != nil {
			log.Warn().Int32("pid", pid).Err(kerr).Msg("host.Manager cleanup kill failed")
		}
		killCancel()
		removePrefs(prefsPath)
		return nil, nil, failureResult(err), err
	}
	proc := &Process{
		Host:      m.cfg.Host,
		Port:      m.cfg.Port,
		PID:       pid,
		Owned:     true,
		PrefsPath: prefsPath,
	}
	return proc, handle, resultListening, nil
}

func failureResult(err error) string {
	if errors.Is(err, ErrStartupTimeout) {
		return resultTimeout
	}
	return resultFailed
}

func (m *Manager) findExisting(ctx context.Context) int32 {
	pid, err := m.procs.FindByName(ctx, m.cfg.ExecutablePath)
	if err != nil {
		log.Debug().Str("exe", m.cfg.ExecutablePath).Err(err).Msg("host.Manager process lookup failed")
		return 0
	}
	return pid
}

// probe opens and closes one TCP connection to the listener.
func (m *Manager) probe(ctx context.Context) error {
	dialer := net.Dialer{Timeout: m.cfg.ProbeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", m.cfg.Address())
	if err != nil {
		return err
	}
	return conn.Close()
}

// poll probes once, then up to ConnectRetries more times with backoff. ctx
// carries the startup deadline.
func (m *Manager) poll(ctx context.Context, exited <-chan struct{}) error {
	addr := m.cfg.Address()
	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if m.cfg.ConnectRetries >= 0 && attempt > m.cfg.ConnectRetries {
				return fmt.Errorf("%w: %s after %d probes: %v", ErrStartupTimeout, addr, attempt, lastErr)
			}
			timer := time.NewTimer(session.NextBackoffDelay(m.cfg.Backoff, attempt, m.rng))
			select {
			case <-ctx.Done():
				timer.Stop()
				return pollAborted(ctx, addr, lastErr)
			case <-exited:
				timer.Stop()
				return fmt.Errorf("%w: %s", ErrHostExited, m.cfg.ExecutablePath)
			case <-timer.C:
			}
		}
		err := m.probe(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Debug().Str("addr", addr).Int("attempt", attempt).Err(err).Msg("host.Manager probe")
		if ctx.Err() != nil {
			return pollAborted(ctx, addr, lastErr)
		}
	}
}

func pollAborted(ctx context.Context, addr string, lastErr error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrStartupTimeout, addr, lastErr)
	}
	return ctx.Err()
}

// Kill terminates an owned process and waits up to KillTimeout for it to
// exit. Connections to the host see their peer close.
func (m *Manager) Kill(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !canTransition(m.state, StateKilled) {
		return transitionError(m.state, StateKilled)
	}
	if m.proc == nil || !m.proc.Owned {
		return ErrNotOwned
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.KillTimeout)
	defer cancel()
	if err := m.terminate(ctx, m.handle, m.proc.PID); err != nil {
		log.Error().Int32("pid", m.proc.PID).Err(err).Msg("host.Manager kill failed")
		return err
	}
	removePrefs(m.proc.PrefsPath)
	log.Info().Int32("pid", m.proc.PID).Str("addr", m.cfg.Address()).Msg("host.Manager killed")
	m.proc = nil
	m.handle = nil
	return m.transitionLocked(StateKilled)
}

func (m *Manager) terminate(ctx context.Context, handle tools.Handle, pid int32) error {
	if handle != nil {
		select {
		case <-handle.Exited():
		default:
			if err := handle.Kill(); err != nil {
				return err
			}
		}
		select {
		case <-handle.Exited():
		case <-ctx.Done():
			return fmt.Errorf("%w: pid %d", ErrKillTimeout, handle.PID())
		}
		if pid == int32(handle.PID()) {
			return nil
		}
	}
	if pid > 0 {
		return m.procs.Kill(ctx, pid)
	}
	return nil
}

// Restart kills a listening host and starts it again.
func (m *Manager) Restart(ctx context.Context) (*Process, error) {
	if m.State() == StateListening {
		if err := m.Kill(ctx); err != nil {
			return nil, err
		}
	}
	return m.Start(ctx)
}

// Client dials the listener. Only legal while listening.
func (m *Manager) Client(ctx context.Context) (*client.Client, error) {
	m.mu.Lock()
	state := m.state
	cfg := m.cfg.Client
	m.mu.Unlock()
	if state != StateListening {
		return nil, fmt.Errorf("%w: state %s", ErrNotListening, state)
	}
	return client.Dial(ctx, cfg)
}

// WaitUntilListening blocks until the manager reaches listening or ctx ends.
func (m *Manager) WaitUntilListening(ctx context.Context) (*Process, error) {
	for {
		m.mu.Lock()
		if m.state == StateListening {
			cp := *m.proc
			m.mu.Unlock()
			return &cp, nil
		}
		changed := m.changed
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}

// IsRunning reports whether the known pid is alive and still runs the
// configured executable.
func (m *Manager) IsRunning(ctx context.Context) (bool, error) {
	proc := m.Process()
	if proc == nil || proc.PID == 0 {
		return false, nil
	}
	return m.procs.IsRunning(ctx, proc.PID, m.cfg.ExecutablePath)
}

// MemoryUsage returns the host's resident memory in bytes, zero when no
// process is known.
func (m *Manager) MemoryUsage(ctx context.Context) (uint64, error) {
	proc := m.Process()
	if proc == nil || proc.PID == 0 {
		return 0, nil
	}
	return m.procs.MemoryUsage(ctx, proc.PID, m.cfg.ExecutablePath)
}

func removePrefs(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("prefs", path).Err(err).Msg("host.Manager remove preferences")
	}
}
