package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"

	"github.com/danmuck/lvctl/internal/protocol/value"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"
)

func controlsFromFlags(c *cli.Context) (value.Record, error) {
	inline, file := c.String("controls"), c.String("controls-file")
	switch {
	case inline != "" && file != "":
		return value.Record{}, errors.New("use either --controls or --controls-file")
	case inline != "":
		return parseJSONControls([]byte(inline))
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return value.Record{}, err
		}
		return parseTOMLControls(data)
	default:
		return value.Record{}, nil
	}
}

// parseJSONControls maps JSON numbers to f64, the host's default numeric
// control type. Fields are sorted by name.
func parseJSONControls(data []byte) (value.Record, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return value.Record{}, fmt.Errorf("controls json: %w", err)
	}
	return value.RecordFrom(raw)
}

// parseTOMLControls keeps TOML's integer and float distinction: integers map
// to i64 and floats to f64.
func parseTOMLControls(data []byte) (value.Record, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return value.Record{}, fmt.Errorf("controls toml: %w", err)
	}
	return value.RecordFrom(raw)
}

func splitAddr(addr string) (string, int, error) {
	hostName, rawPort, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return "", 0, fmt.Errorf("addr %q: bad port: %w", addr, err)
	}
	return hostName, port, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
