package schema

import (
	"fmt"

	"github.com/danmuck/lvctl/internal/protocol/value"
)

// Error cluster field names.
const (
	ClusterStatus = "status"
	ClusterCode   = "code"
	ClusterSource = "source"
)

// ErrorCluster is the host's error triple. Status=true marks an error, a
// non-zero Code with Status=false is a warning.
type ErrorCluster struct {
	Status bool
	Code   int32
	Source string
}

// NoError is the cluster callers wire into "Error In" controls.
func NoError() ErrorCluster {
	return ErrorCluster{}
}

func (e ErrorCluster) Record() value.Record {
	return value.NewRecord(
		value.F(ClusterStatus, value.Bool(e.Status)),
		value.F(ClusterCode, value.Int32(e.Code)),
		value.F(ClusterSource, value.Text(e.Source)),
	)
}

func (e ErrorCluster) String() string {
	return fmt.Sprintf("status=%t code=%d source=%q", e.Status, e.Code, e.Source)
}

// ErrorClusterFromRecord accepts any integer kind for code as long as it fits
// in 32 bits.
func ErrorClusterFromRecord(rec value.Record) (ErrorCluster, error) {
	status, err := rec.Bool(ClusterStatus)
	if err != nil {
		return ErrorCluster{}, clusterError(ClusterStatus, err)
	}
	code, err := rec.Int64(ClusterCode)
	if err != nil {
		return ErrorCluster{}, clusterError(ClusterCode, err)
	}
	if code < -1<<31 || code > 1<<31-1 {
		return ErrorCluster{}, ValidationError{Document: "error", Field: ClusterCode, Reason: fmt.Sprintf("code %d overflows int32", code)}
	}
	source, err := rec.Text(ClusterSource)
	if err != nil {
		return ErrorCluster{}, clusterError(ClusterSource, err)
	}
	return ErrorCluster{Status: status, Code: int32(code), Source: source}, nil
}

func clusterError(field string, err error) error {
	return ValidationError{Document: "error", Field: field, Reason: err.Error()}
}
