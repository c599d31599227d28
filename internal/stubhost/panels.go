package stubhost

import (
	"context"
	"strings"
	"sync"

	"github.com/danmuck/lvctl/internal/protocol/schema"
	"github.com/danmuck/lvctl/internal/protocol/value"
	"github.com/samber/lo"
)

// PanelStore keeps front-panel values per project target and VI so that
// set_controls and get_indicators can be exercised without a real host.
type PanelStore struct {
	mu     sync.RWMutex
	panels map[string]value.Record
}

func NewPanelStore() *PanelStore {
	return &PanelStore{panels: make(map[string]value.Record)}
}

func panelKey(project, target, vi string) string {
	return strings.Join([]string{project, target, vi}, "\x00")
}

// Set merges controls into the stored panel.
func (p *PanelStore) Set(project, target, vi string, controls value.Record) {
	key := panelKey(project, target, vi)
	p.mu.Lock()
	defer p.mu.Unlock()
	panel := p.panels[key]
	merged := value.Record{Fields: append([]value.Field(nil), panel.Fields...)}
	for _, f := range controls.Fields {
		merged.Set(f.Name, f.Value)
	}
	p.panels[key] = merged
}

// Get returns the stored panel filtered by names; missing names are reported
// separately.
func (p *PanelStore) Get(project, target, vi string, names []string) (value.Record, []string) {
	p.mu.RLock()
	panel := p.panels[panelKey(project, target, vi)]
	p.mu.RUnlock()
	out := filterIndicators(panel, names)
	missing := lo.Filter(names, func(name string, _ int) bool { return !out.Has(name) })
	return out, missing
}

// Reset drops every stored panel and returns how many there were.
func (p *PanelStore) Reset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.panels)
	p.panels = make(map[string]value.Record)
	return n
}

func (p *PanelStore) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.panels)
}

func textParam(req schema.Request, name string) string {
	raw, ok := req.Param(name)
	if !ok {
		return ""
	}
	text, _ := raw.(value.Text)
	return string(text)
}

// SetControlsHandler stores controls in store.
func SetControlsHandler(store *PanelStore) HandlerFunc {
	return func(_ context.Context, req schema.Request) schema.Response {
		store.Set(textParam(req, schema.FieldProjectPath), textParam(req, schema.FieldTargetName), req.VIPath, req.Controls)
		return Indicators(value.Record{})
	}
}

// GetIndicatorsHandler reads back stored values. Unknown names are a fault.
func GetIndicatorsHandler(store *PanelStore) HandlerFunc {
	return func(_ context.Context, req schema.Request) schema.Response {
		out, missing := store.Get(textParam(req, schema.FieldProjectPath), textParam(req, schema.FieldTargetName), req.VIPath, requestedNames(req))
		if len(missing) > 0 {
			resp := Fault(CodeMalformedRequest, "stubhost: unknown indicators: "+strings.Join(missing, ", "))
			resp.Indicators = out
			return resp
		}
		return Indicators(out)
	}
}
