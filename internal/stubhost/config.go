package stubhost

import (
	"time"

	"github.com/danmuck/lvctl/internal/protocol/frame"
)

// Config configures the stub listener and its admin surface.
type Config struct {
	ListenAddr      string
	AdminListenAddr string
	CorsOrigins     []string
	// AdminToken guards /handlers and /panels when set.
	AdminToken string
	// IdleTimeout closes connections that send nothing for this long. Zero
	// keeps idle connections open.
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
	Limits       frame.Limits
	// EchoRenames maps control names onto indicator names for the built-in
	// echo run handler.
	EchoRenames map[string]string
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:      "127.0.0.1:2552",
		AdminListenAddr: "",
		CorsOrigins:     []string{"http://localhost:3000"},
		IdleTimeout:     0,
		WriteTimeout:    60 * time.Second,
		Limits:          frame.DefaultLimits(),
		EchoRenames:     DefaultEchoRenames(),
	}
}

// DefaultEchoRenames turns the conventional numeric input and error-in
// controls into their output counterparts.
func DefaultEchoRenames() map[string]string {
	return map[string]string{
		"DBL Control": "Result",
		"Error In":    "Error Out",
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if len(c.CorsOrigins) == 0 {
		c.CorsOrigins = def.CorsOrigins
	}
	if c.EchoRenames == nil {
		c.EchoRenames = def.EchoRenames
	}
	c.Limits = c.Limits.WithDefaults()
	return c
}
