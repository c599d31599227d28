package config

import (
	"github.com/danmuck/lvctl/internal/client"
	"github.com/danmuck/lvctl/internal/host"
	"github.com/danmuck/lvctl/internal/protocol/frame"
	"github.com/danmuck/lvctl/internal/protocol/session"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func (c Config) sessionConfig() session.Config {
	return session.Config{
		ConnectTimeout: c.Client.ConnectTimeout.Std(),
		ReadTimeout:    c.Client.ReadTimeout.Std(),
		WriteTimeout:   c.Client.WriteTimeout.Std(),
		Backoff: session.BackoffConfig{
			InitialDelay: c.Backoff.InitialDelay.Std(),
			Multiplier:   c.Backoff.Multiplier,
			MaxDelay:     c.Backoff.MaxDelay.Std(),
			Jitter:       c.Backoff.Jitter,
		},
	}.WithDefaults()
}

// ClientConfig builds the RPC client settings with logging, metrics and the
// optional rate limit installed, outermost first.
func (c Config) ClientConfig() client.Config {
	mw := []client.Middleware{
		client.LoggingMiddleware(log.Logger),
		client.MetricsMiddleware(),
	}
	if c.Client.RateLimit > 0 {
		mw = append(mw, client.RateLimitMiddleware(rate.NewLimiter(rate.Limit(c.Client.RateLimit), c.Client.RateBurst)))
	}
	h := c.HostConfigBase()
	return client.Config{
		Address:    h.Address(),
		Session:    c.sessionConfig(),
		Limits:     frame.Limits{MaxPayloadBytes: c.Client.MaxPayloadBytes},
		Middleware: mw,
	}.WithDefaults()
}

// HostConfigBase maps the [host] table without client settings.
func (c Config) HostConfigBase() host.Config {
	h := c.Host
	return host.Config{
		ExecutablePath:     h.Executable,
		ListenerVI:         h.ListenerVI,
		Host:               h.Host,
		Port:               h.Port,
		ConnectRetries:     h.ConnectRetries,
		Backoff:            c.sessionConfig().Backoff,
		StartupTimeout:     h.StartupTimeout.Std(),
		ProbeTimeout:       h.ProbeTimeout.Std(),
		ListenerTCPTimeout: h.ListenerTCPTimeout.Std(),
		KillTimeout:        h.KillTimeout.Std(),
		ReportFile:         h.ReportFile,
		ErrorFile:          h.ErrorFile,
		PrefsDir:           h.PrefsDir,
	}
}

// HostConfig builds the manager settings including its client.
func (c Config) HostConfig() host.Config {
	h := c.HostConfigBase()
	h.Client = c.ClientConfig()
	return h.WithDefaults()
}

// ApplyPreferences applies the [host] preference switches to p.
func (c Config) ApplyPreferences(p *host.Preferences) {
	if c.Host.DisableDialogs {
		p.DisableDialogs()
	}
	if c.Host.DisableErrorReporting {
		p.DisableErrorReporting()
	}
	for _, path := range c.Host.SearchPaths {
		p.AddToSearchPath(path, true)
	}
}
