package stubhost

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/lvctl/internal/protocol/schema"
	"github.com/danmuck/lvctl/internal/protocol/value"
	"github.com/samber/lo"
)

// Fault codes the stub reports on its own behalf.
const (
	CodeMalformedRequest int32 = 1002
	CodeUnknownCommand   int32 = 1003
	CodeHandlerPanic     int32 = 1004
)

var (
	ErrHandlerExists = errors.New("stubhost: handler already registered")
	ErrHandlerNil    = errors.New("stubhost: handler is nil")
)

// HandlerFunc answers one decoded request. The server fills in RequestID.
type HandlerFunc func(ctx context.Context, req schema.Request) schema.Response

// Indicators builds a clean response.
func Indicators(rec value.Record) schema.Response {
	return schema.Response{Indicators: rec}
}

// Fault builds a faulted response with empty indicators.
func Fault(code int32, source string) schema.Response {
	return schema.Response{Fault: &schema.ErrorCluster{Status: true, Code: code, Source: source}}
}

// Handlers is the dispatch table: commands first, then per-VI overrides for
// run_vi_synchronous.
type Handlers struct {
	mu       sync.RWMutex
	commands map[schema.Command]HandlerFunc
	vis      map[string]HandlerFunc
}

func NewHandlers() *Handlers {
	return &Handlers{
		commands: make(map[schema.Command]HandlerFunc),
		vis:      make(map[string]HandlerFunc),
	}
}

// Handle registers fn for cmd, replacing nothing.
func (h *Handlers) Handle(cmd schema.Command, fn HandlerFunc) error {
	if fn == nil {
		return ErrHandlerNil
	}
	key := schema.Command(strings.TrimSpace(string(cmd)))
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.commands[key]; ok {
		return fmt.Errorf("%w: command %q", ErrHandlerExists, key)
	}
	h.commands[key] = fn
	return nil
}

// HandleVI registers fn for run_vi_synchronous requests addressed to viPath.
func (h *Handlers) HandleVI(viPath string, fn HandlerFunc) error {
	if fn == nil {
		return ErrHandlerNil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.vis[viPath]; ok {
		return fmt.Errorf("%w: vi %q", ErrHandlerExists, viPath)
	}
	h.vis[viPath] = fn
	return nil
}

// Lookup resolves the handler for req.
func (h *Handlers) Lookup(req schema.Request) (HandlerFunc, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if req.Command == schema.CommandRunVI {
		if fn, ok := h.vis[req.VIPath]; ok {
			return fn, true
		}
	}
	fn, ok := h.commands[req.Command]
	return fn, ok
}

// Dispatch runs the matching handler. Unknown commands and handler panics
// become faults.
func (h *Handlers) Dispatch(ctx context.Context, req schema.Request) (resp schema.Response) {
	fn, ok := h.Lookup(req)
	if !ok {
		return Fault(CodeUnknownCommand, fmt.Sprintf("stubhost: unknown command %q", req.Command))
	}
	defer func() {
		if r := recover(); r != nil {
			resp = Fault(CodeHandlerPanic, fmt.Sprintf("stubhost: handler %q panicked: %v", req.Command, r))
		}
	}()
	return fn(ctx, req)
}

// Listing is a snapshot of registered handlers, sorted.
type Listing struct {
	Commands []string `json:"commands"`
	VIs      []string `json:"vis"`
}

func (h *Handlers) List() Listing {
	h.mu.RLock()
	defer h.mu.RUnlock()
	commands := lo.Map(lo.Keys(h.commands), func(c schema.Command, _ int) string { return string(c) })
	vis := lo.Keys(h.vis)
	sort.Strings(commands)
	sort.Strings(vis)
	return Listing{Commands: commands, VIs: vis}
}

// requestedNames returns the indicator_names parameter, or nil when absent.
func requestedNames(req schema.Request) []string {
	raw, ok := req.Param(schema.FieldIndicatorNames)
	if !ok {
		return nil
	}
	arr, ok := raw.(value.Array)
	if !ok {
		return nil
	}
	return lo.FilterMap(arr.Items, func(item value.Value, _ int) (string, bool) {
		text, ok := item.(value.Text)
		return string(text), ok
	})
}

// filterIndicators keeps the named fields in record order. No names keeps
// everything.
func filterIndicators(rec value.Record, names []string) value.Record {
	if len(names) == 0 {
		return rec
	}
	return value.Record{Fields: lo.Filter(rec.Fields, func(f value.Field, _ int) bool {
		return lo.Contains(names, f.Name)
	})}
}

// EchoRun copies controls to indicators, renaming through renames and
// honoring indicator_names.
func EchoRun(renames map[string]string) HandlerFunc {
	return func(_ context.Context, req schema.Request) schema.Response {
		out := value.Record{Fields: lo.Map(req.Controls.Fields, func(f value.Field, _ int) value.Field {
			if name, ok := renames[f.Name]; ok {
				return value.F(name, f.Value)
			}
			return f
		})}
		return Indicators(filterIndicators(out, requestedNames(req)))
	}
}

// DescribeErrorText is the stub's error description format.
func DescribeErrorText(ec schema.ErrorCluster) string {
	if ec.Source == "" {
		return fmt.Sprintf("Error %d", ec.Code)
	}
	return fmt.Sprintf("Error %d at %s", ec.Code, ec.Source)
}

// DescribeError answers describe_error requests with describe(cluster).
func DescribeError(describe func(schema.ErrorCluster) string) HandlerFunc {
	if describe == nil {
		describe = DescribeErrorText
	}
	return func(_ context.Context, req schema.Request) schema.Response {
		ec, err := schema.ErrorClusterFromRecord(req.Controls)
		if err != nil {
			return Fault(CodeMalformedRequest, "stubhost: describe_error: "+err.Error())
		}
		return Indicators(value.NewRecord(value.F(schema.FieldMessage, value.Text(describe(ec)))))
	}
}
