package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/lvctl/internal/host"
	"github.com/danmuck/lvctl/internal/logging"
	"github.com/danmuck/lvctl/internal/protocol/frame"
	"github.com/danmuck/lvctl/internal/protocol/session"
	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Duration reads TOML strings such as "250ms" or "15m".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the lvctl configuration file.
type Config struct {
	Host    HostConfig    `toml:"host"`
	Client  ClientConfig  `toml:"client"`
	Backoff BackoffConfig `toml:"backoff"`
	Log     LogConfig     `toml:"log"`
}

type HostConfig struct {
	Executable            string   `toml:"executable"`
	ListenerVI            string   `toml:"listener_vi"`
	Host                  string   `toml:"host"`
	Port                  int      `toml:"port"`
	ConnectRetries        int      `toml:"connect_retries"`
	StartupTimeout        Duration `toml:"startup_timeout"`
	ProbeTimeout          Duration `toml:"probe_timeout"`
	ListenerTCPTimeout    Duration `toml:"listener_tcp_timeout"`
	KillTimeout           Duration `toml:"kill_timeout"`
	ReportFile            string   `toml:"report_file"`
	ErrorFile             string   `toml:"error_file"`
	PrefsDir              string   `toml:"prefs_dir"`
	SearchPaths           []string `toml:"search_paths"`
	DisableDialogs        bool     `toml:"disable_dialogs"`
	DisableErrorReporting bool     `toml:"disable_error_reporting"`
}

type ClientConfig struct {
	ConnectTimeout  Duration `toml:"connect_timeout"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	MaxPayloadBytes uint32   `toml:"max_payload_bytes"`
	// RateLimit is calls per second; zero disables limiting.
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
}

type BackoffConfig struct {
	InitialDelay Duration `toml:"initial_delay"`
	Multiplier   float64  `toml:"multiplier"`
	MaxDelay     Duration `toml:"max_delay"`
	Jitter       bool     `toml:"jitter"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default mirrors host.DefaultConfig and client.DefaultConfig.
func Default() Config {
	h := host.DefaultConfig()
	s := session.DefaultConfig()
	return Config{
		Host: HostConfig{
			Host:               h.Host,
			Port:               h.Port,
			ConnectRetries:     h.ConnectRetries,
			StartupTimeout:     Duration(h.StartupTimeout),
			ProbeTimeout:       Duration(h.ProbeTimeout),
			ListenerTCPTimeout: Duration(h.ListenerTCPTimeout),
			KillTimeout:        Duration(h.KillTimeout),
			DisableDialogs:     true,
		},
		Client: ClientConfig{
			ConnectTimeout:  Duration(s.ConnectTimeout),
			ReadTimeout:     Duration(s.ReadTimeout),
			WriteTimeout:    Duration(s.WriteTimeout),
			MaxPayloadBytes: frame.DefaultLimits().MaxPayloadBytes,
			RateBurst:       1,
		},
		Backoff: BackoffConfig{
			InitialDelay: Duration(s.Backoff.InitialDelay),
			Multiplier:   s.Backoff.Multiplier,
			MaxDelay:     Duration(s.Backoff.MaxDelay),
			Jitter:       s.Backoff.Jitter,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func Validate(cfg Config) error {
	h := cfg.Host
	if strings.TrimSpace(h.Host) == "" {
		return fmt.Errorf("%w: host.host is required", ErrInvalidConfig)
	}
	if h.Port <= 0 || h.Port > 65535 {
		return fmt.Errorf("%w: host.port %d out of range", ErrInvalidConfig, h.Port)
	}
	if h.ConnectRetries < -1 {
		return fmt.Errorf("%w: host.connect_retries must be -1 or more", ErrInvalidConfig)
	}
	if h.Executable != "" && strings.TrimSpace(h.ListenerVI) == "" {
		return fmt.Errorf("%w: host.listener_vi required with host.executable", ErrInvalidConfig)
	}
	for name, d := range map[string]Duration{
		"host.startup_timeout":      h.StartupTimeout,
		"host.probe_timeout":        h.ProbeTimeout,
		"host.listener_tcp_timeout": h.ListenerTCPTimeout,
		"host.kill_timeout":         h.KillTimeout,
		"client.connect_timeout":    cfg.Client.ConnectTimeout,
		"client.read_timeout":       cfg.Client.ReadTimeout,
		"client.write_timeout":      cfg.Client.WriteTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s is negative", ErrInvalidConfig, name)
		}
	}
	if cfg.Client.RateLimit < 0 {
		return fmt.Errorf("%w: client.rate_limit is negative", ErrInvalidConfig)
	}
	if cfg.Client.RateLimit > 0 && cfg.Client.RateBurst < 1 {
		return fmt.Errorf("%w: client.rate_burst must be at least 1", ErrInvalidConfig)
	}
	if cfg.Backoff.Multiplier != 0 && cfg.Backoff.Multiplier < 1 {
		return fmt.Errorf("%w: backoff.multiplier must be at least 1", ErrInvalidConfig)
	}
	if cfg.Log.Level != "" {
		if _, ok := logging.ParseLevel(cfg.Log.Level); !ok {
			return fmt.Errorf("%w: log.level %q unknown", ErrInvalidConfig, cfg.Log.Level)
		}
	}
	return nil
}
