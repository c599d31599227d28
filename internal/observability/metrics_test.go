package observability

import (
	"testing"
	"time"

	"github.com/danmuck/lvctl/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(callsTotal.WithLabelValues("describe_error", OutcomeOK))
	RecordCall("describe_error", OutcomeOK, 3*time.Millisecond)
	RecordHostStart("listening", 2*time.Second)
	RecordHostStart("timeout", 0)
	RecordStubRequest("run_vi_synchronous", false)
	RecordHTTPRequest("lvstub", "GET", "/health", 200, 12*time.Millisecond)

	after := testutil.ToFloat64(callsTotal.WithLabelValues("describe_error", OutcomeOK))
	if after != before+1 {
		t.Fatalf("calls_total not incremented: before=%v after=%v", before, after)
	}
}
