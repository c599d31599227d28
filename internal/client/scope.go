package client

import (
	"context"

	"github.com/rs/zerolog/log"
)

// WithClient dials cfg.Address, runs fn and closes the connection however fn
// returns, panics included.
func WithClient(ctx context.Context, cfg Config, fn func(*Client) error) error {
	c, err := Dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			log.Debug().Str("addr", c.Addr()).Err(cerr).Msg("client.WithClient close")
		}
	}()
	return fn(c)
}
