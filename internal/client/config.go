package client

import (
	"net"
	"strconv"
	"strings"

	"github.com/danmuck/lvctl/internal/protocol/frame"
	"github.com/danmuck/lvctl/internal/protocol/session"
)

// DefaultPort is the listener's default TCP port.
const DefaultPort = 2552

type Config struct {
	Address    string
	Session    session.Config
	Limits     frame.Limits
	Middleware []Middleware
}

func DefaultConfig() Config {
	return Config{
		Address: net.JoinHostPort("localhost", strconv.Itoa(DefaultPort)),
		Session: session.DefaultConfig(),
		Limits:  frame.DefaultLimits(),
	}
}

// WithDefaults fills zero timeouts and limits. Address is left as given.
func (c Config) WithDefaults() Config {
	c.Address = strings.TrimSpace(c.Address)
	c.Session = c.Session.WithDefaults()
	c.Limits = c.Limits.WithDefaults()
	return c
}
