package client

import (
	"errors"
	"fmt"

	"github.com/danmuck/lvctl/internal/protocol/schema"
)

var (
	ErrAddressRequired = errors.New("client: address required")
	ErrCallFailed      = errors.New("client: call failed")
	ErrCallTimedOut    = errors.New("client: call timed out")
	ErrConnectionBusy  = errors.New("client: connection busy")
	ErrRequestMismatch = errors.New("client: response request_id mismatch")
	ErrRemoteFault     = errors.New("client: remote fault")
)

// RemoteFault is an error cluster the host reported with status=true. The
// exchange itself succeeded.
type RemoteFault struct {
	Command     schema.Command
	VIPath      string
	Cluster     schema.ErrorCluster
	Description string
}

func (f *RemoteFault) Error() string {
	msg := fmt.Sprintf("client: remote fault command=%s code=%d source=%q", f.Command, f.Cluster.Code, f.Cluster.Source)
	if f.VIPath != "" {
		msg += fmt.Sprintf(" vi=%q", f.VIPath)
	}
	if f.Description != "" {
		msg += ": " + f.Description
	}
	return msg
}

func (f *RemoteFault) Is(target error) bool {
	return target == ErrRemoteFault
}

func callFailed(cause error) error {
	return fmt.Errorf("%w: %w", ErrCallFailed, cause)
}
