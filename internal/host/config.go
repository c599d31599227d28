package host

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/lvctl/internal/client"
	"github.com/danmuck/lvctl/internal/protocol/session"
)

// Config describes one VI host endpoint and how to launch it.
type Config struct {
	// ExecutablePath is launched for local hosts. A running process with the
	// same exe path is treated as this host and killed with it; a bare name
	// matches any process of that name.
	ExecutablePath string
	ListenerVI     string
	Host           string
	Port           int
	// ConnectRetries bounds probes after the first one. Negative means no
	// bound other than StartupTimeout.
	ConnectRetries     int
	Backoff            session.BackoffConfig
	StartupTimeout     time.Duration
	ProbeTimeout       time.Duration
	ListenerTCPTimeout time.Duration
	KillTimeout        time.Duration
	ReportFile         string
	ErrorFile          string
	// PrefsDir holds generated preference files; empty uses the OS temp dir.
	PrefsDir string
	Client   client.Config
}

func DefaultConfig() Config {
	return Config{
		Host:               "localhost",
		Port:               client.DefaultPort,
		ConnectRetries:     -1,
		Backoff:            session.DefaultBackoff(),
		StartupTimeout:     15 * time.Minute,
		ProbeTimeout:       2 * time.Second,
		ListenerTCPTimeout: 60 * time.Second,
		KillTimeout:        10 * time.Second,
		Client:             client.DefaultConfig(),
	}
}

// WithDefaults fills zero fields. ConnectRetries is kept as given since zero
// is meaningful.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	c.Host = strings.TrimSpace(c.Host)
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.Port <= 0 {
		c.Port = def.Port
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = def.StartupTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	if c.ListenerTCPTimeout <= 0 {
		c.ListenerTCPTimeout = def.ListenerTCPTimeout
	}
	if c.KillTimeout <= 0 {
		c.KillTimeout = def.KillTimeout
	}
	c.Client = c.Client.WithDefaults()
	c.Client.Address = c.Address()
	return c
}

// Address is the listener's host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsLocal reports whether the host runs on this machine.
func (c Config) IsLocal() bool {
	switch strings.ToLower(c.Host) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	ip := net.ParseIP(c.Host)
	return ip != nil && ip.IsLoopback()
}

// LaunchArgs builds the executable's argument list for the listener VI.
func (c Config) LaunchArgs(prefsPath string) []string {
	args := []string{
		c.ListenerVI,
		"-pref", prefsPath,
		"--",
		"--port", strconv.Itoa(c.Port),
		"--timeout", strconv.FormatInt(c.ListenerTCPTimeout.Milliseconds(), 10),
	}
	if c.ReportFile != "" {
		args = append(args, "--reportfile", c.ReportFile)
	}
	if c.ErrorFile != "" {
		args = append(args, "--errorfile", c.ErrorFile)
	}
	return args
}
