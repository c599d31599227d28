package testlog

import (
	"testing"

	"github.com/danmuck/lvctl/internal/logging"
	"github.com/rs/zerolog/log"
)

// Start applies the test logging profile and marks the beginning of t.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("start")
}
