package stubhost

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/lvctl/internal/protocol/frame"
	"github.com/danmuck/lvctl/internal/protocol/schema"
	"github.com/danmuck/lvctl/internal/protocol/value"
	"github.com/danmuck/lvctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

func startServer(t *testing.T, cfg Config) (*Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := New(cfg)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("serve exit: %v", err)
		}
	})
	return srv, ln.Addr().String()
}

func roundTrip(t *testing.T, conn net.Conn, req schema.Request) schema.Response {
	t.Helper()
	payload, err := schema.EncodeRequest(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return rawRoundTrip(t, conn, payload)
}

func rawRoundTrip(t *testing.T, conn net.Conn, payload []byte) schema.Response {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if err := frame.WriteFrame(conn, payload, frame.DefaultLimits()); err != nil {
		t.Fatalf("write: %v", err)
	}
	body, err := frame.ReadFrame(conn, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	resp, err := schema.DecodeResponse(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestDispatchUnknownCommandFaults(t *testing.T) {
	testlog.Start(t)
	h := NewHandlers()
	resp := h.Dispatch(context.Background(), schema.Request{Command: "reboot_host"})
	if !resp.Faulted() || resp.Fault.Code != CodeUnknownCommand {
		t.Fatalf("expected unknown command fault, got %+v", resp.Fault)
	}
	if resp.Fault.Source != `stubhost: unknown command "reboot_host"` {
		t.Fatalf("unexpected source %q", resp.Fault.Source)
	}
}

func TestHandlersRegistration(t *testing.T) {
	testlog.Start(t)
	h := NewHandlers()
	noop := func(context.Context, schema.Request) schema.Response { return Indicators(value.Record{}) }
	if err := h.Handle(schema.CommandRunVI, noop); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := h.Handle(schema.CommandRunVI, noop); !errors.Is(err, ErrHandlerExists) {
		t.Fatalf("expected ErrHandlerExists, got %v", err)
	}
	if err := h.Handle("x", nil); !errors.Is(err, ErrHandlerNil) {
		t.Fatalf("expected ErrHandlerNil, got %v", err)
	}
	if err := h.HandleVI(`C:\b.vi`, noop); err != nil {
		t.Fatalf("handle vi: %v", err)
	}
	if err := h.HandleVI(`C:\a.vi`, noop); err != nil {
		t.Fatalf("handle vi: %v", err)
	}
	list := h.List()
	if len(list.Commands) != 1 || list.Commands[0] != string(schema.CommandRunVI) {
		t.Fatalf("commands=%v", list.Commands)
	}
	if len(list.VIs) != 2 || list.VIs[0] != `C:\a.vi` {
		t.Fatalf("vis not sorted: %v", list.VIs)
	}
}

func TestDispatchPrefersVIHandlerAndRecoversPanics(t *testing.T) {
	testlog.Start(t)
	h := NewHandlers()
	_ = h.Handle(schema.CommandRunVI, EchoRun(nil))
	_ = h.HandleVI("panics.vi", func(context.Context, schema.Request) schema.Response {
		panic("boom")
	})
	resp := h.Dispatch(context.Background(), schema.Request{Command: schema.CommandRunVI, VIPath: "panics.vi"})
	if !resp.Faulted() || resp.Fault.Code != CodeHandlerPanic {
		t.Fatalf("expected panic fault, got %+v", resp.Fault)
	}
	resp = h.Dispatch(context.Background(), schema.Request{
		Command:  schema.CommandRunVI,
		VIPath:   "other.vi",
		Controls: value.NewRecord(value.F("x", value.Int8(1))),
	})
	if resp.Faulted() || resp.Indicators.Len() != 1 {
		t.Fatalf("expected echo, got %+v", resp)
	}
}

func TestEchoRunRenamesAndFilters(t *testing.T) {
	testlog.Start(t)
	req := schema.Request{
		Command: schema.CommandRunVI,
		Controls: value.NewRecord(
			value.F("DBL Control", value.Float64(5)),
			value.F("String Control", value.Text("Hello World!")),
			value.F("Error In", schema.NoError().Record()),
		),
		Params: []value.Field{value.F(schema.FieldIndicatorNames, value.TextArray("Result", "Error Out"))},
	}
	resp := EchoRun(DefaultEchoRenames())(context.Background(), req)
	want := value.NewRecord(
		value.F("Result", value.Float64(5)),
		value.F("Error Out", schema.NoError().Record()),
	)
	if !value.Equal(resp.Indicators, want) {
		t.Fatalf("got %s", value.Format(resp.Indicators))
	}

	req.Params = nil
	resp = EchoRun(DefaultEchoRenames())(context.Background(), req)
	if resp.Indicators.Len() != 3 {
		t.Fatalf("without names all indicators are returned: %s", value.Format(resp.Indicators))
	}
}

func TestPanelStoreSetAndGet(t *testing.T) {
	testlog.Start(t)
	store := NewPanelStore()
	set := SetControlsHandler(store)
	get := GetIndicatorsHandler(store)
	params := []value.Field{
		value.F(schema.FieldProjectPath, value.Text("proj.lvproj")),
		value.F(schema.FieldTargetName, value.Text("My Computer")),
	}
	set(context.Background(), schema.Request{
		Command:  schema.CommandSetControls,
		VIPath:   "panel.vi",
		Controls: value.NewRecord(value.F("Gain", value.Float64(2)), value.F("Name", value.Text("a"))),
		Params:   params,
	})
	set(context.Background(), schema.Request{
		Command:  schema.CommandSetControls,
		VIPath:   "panel.vi",
		Controls: value.NewRecord(value.F("Name", value.Text("b"))),
		Params:   params,
	})

	resp := get(context.Background(), schema.Request{
		Command: schema.CommandGetIndicators,
		VIPath:  "panel.vi",
		Params:  append(params, value.F(schema.FieldIndicatorNames, value.TextArray("Name"))),
	})
	if resp.Faulted() {
		t.Fatalf("unexpected fault: %+v", resp.Fault)
	}
	if name, _ := resp.Indicators.Text("Name"); name != "b" || resp.Indicators.Len() != 1 {
		t.Fatalf("got %s", value.Format(resp.Indicators))
	}

	resp = get(context.Background(), schema.Request{
		Command: schema.CommandGetIndicators,
		VIPath:  "panel.vi",
		Params:  append(params, value.F(schema.FieldIndicatorNames, value.TextArray("Missing"))),
	})
	if !resp.Faulted() || resp.Fault.Code != CodeMalformedRequest {
		t.Fatalf("expected fault for unknown indicator, got %+v", resp.Fault)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one panel, got %d", store.Len())
	}
}

func TestServerAnswersRequestsInOrder(t *testing.T) {
	testlog.Start(t)
	srv, addr := startServer(t, DefaultConfig())
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for _, id := range []string{"c1", "c2"} {
		resp := roundTrip(t, conn, schema.Request{
			Command:   schema.CommandDescribeError,
			RequestID: id,
			Controls:  schema.ErrorCluster{Status: true, Code: 42, Source: "stage1"}.Record(),
		})
		if resp.RequestID != id {
			t.Fatalf("request id got=%q want=%q", resp.RequestID, id)
		}
		if msg, _ := resp.Indicators.Text(schema.FieldMessage); msg != "Error 42 at stage1" {
			t.Fatalf("msg=%q", msg)
		}
	}
	if srv.Served() != 2 {
		t.Fatalf("served=%d", srv.Served())
	}
}

func TestServerMalformedRequestKeepsConnection(t *testing.T) {
	testlog.Start(t)
	_, addr := startServer(t, DefaultConfig())
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	resp := rawRoundTrip(t, conn, []byte{0x7f, 0x00})
	if !resp.Faulted() || resp.Fault.Code != CodeMalformedRequest {
		t.Fatalf("expected malformed fault, got %+v", resp.Fault)
	}
	resp = roundTrip(t, conn, schema.Request{Command: "unknown_cmd"})
	if !resp.Faulted() || resp.Fault.Code != CodeUnknownCommand {
		t.Fatalf("expected unknown command fault, got %+v", resp.Fault)
	}
}

func TestServerShutdownClosesConnections(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	srv := New(DefaultConfig())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = roundTrip(t, conn, schema.Request{Command: schema.CommandRunVI})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := frame.ReadFrame(conn, frame.DefaultLimits()); !errors.Is(err, frame.ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed after shutdown, got %v", err)
	}
}

func TestAdminRoutes(t *testing.T) {
	testlog.Start(t)
	srv, _ := startServer(t, DefaultConfig())
	deadline := time.Now().Add(2 * time.Second)
	for !srv.listening.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/handlers", nil))
	var list Listing
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode handlers: %v", err)
	}
	if len(list.Commands) != 4 {
		t.Fatalf("expected 4 built-in commands, got %v", list.Commands)
	}
}

func TestAdminTokenGuardsPanels(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	cfg := DefaultConfig()
	cfg.AdminToken = "s3cret"
	srv := New(cfg)
	srv.Panels().Set("", "", "a.vi", value.NewRecord(value.F("x", value.Bool(true))))

	do := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		return rec
	}

	if rec := do(http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health should stay open, status=%d", rec.Code)
	}
	if rec := do(http.MethodGet, "/handlers", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("handlers without token status=%d", rec.Code)
	}
	if rec := do(http.MethodDelete, "/panels", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("reset with wrong token status=%d", rec.Code)
	}
	if srv.Panels().Len() != 1 {
		t.Fatalf("rejected reset cleared panels")
	}
	rec := do(http.MethodDelete, "/panels", "s3cret")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Cleared int `json:"cleared"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Cleared != 1 {
		t.Fatalf("reset body=%s err=%v", rec.Body.String(), err)
	}
	if srv.Panels().Len() != 0 {
		t.Fatalf("panels not cleared")
	}
}

func TestReadyReportsUnavailableBeforeServe(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	srv := New(DefaultConfig())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}
