package host

import "errors"

var (
	ErrLifecycleOrder     = errors.New("host: invalid lifecycle transition")
	ErrStartupTimeout     = errors.New("host: listener did not come up before startup timeout")
	ErrNotOwned           = errors.New("host: process not owned by this manager")
	ErrNotListening       = errors.New("host: listener not available")
	ErrHostExited         = errors.New("host: process exited during startup")
	ErrKillTimeout        = errors.New("host: process did not exit before kill timeout")
	ErrExecutableRequired = errors.New("host: executable path required")
)
