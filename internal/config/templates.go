package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a starter file for kind.
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "lvctl":
		return lvctlTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const lvctlTemplate = `[host]
executable = 'C:\Program Files\National Instruments\LabVIEW 2020\LabVIEW.exe'
listener_vi = 'C:\lvctl\Listener.vi'
host = "localhost"
port = 2552
connect_retries = -1
startup_timeout = "15m"
probe_timeout = "2s"
listener_tcp_timeout = "60s"
kill_timeout = "10s"
report_file = ""
error_file = ""
prefs_dir = ""
search_paths = []
disable_dialogs = true
disable_error_reporting = false

[client]
connect_timeout = "5s"
read_timeout = "60s"
write_timeout = "60s"
max_payload_bytes = 16777216
rate_limit = 0.0
rate_burst = 1

[backoff]
initial_delay = "250ms"
multiplier = 2.0
max_delay = "5s"
jitter = false

[log]
level = "info"
`
