package tools

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/tracker"
)

// Dispatcher routes tool calls requested by a model through the registry,
// records each completed call in the tracker, and renders failures as
// "Error: ..." result strings so the conversation continues instead of
// aborting. The underlying error is still logged and traced.
type Dispatcher struct {
	Registry *framework.ToolRegistry
	Tracker  *tracker.Tracker
	Log      *zap.Logger
}

// NewDispatcher wires a dispatcher over a registry. Tracker may be nil for
// untracked contexts (planning-time tool use).
func NewDispatcher(registry *framework.ToolRegistry, tr *tracker.Tracker, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{Registry: registry, Tracker: tr, Log: log}
}

// Dispatch invokes the named tool and always returns a result string the
// model can read. Unknown tools and invocation errors both surface as
// "Error: ..." text; the boolean reports success for callers that care.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]interface{}) (string, bool) {
	start := time.Now()
	tool, ok := d.Registry.Get(name)
	if !ok {
		result := "Error: unknown tool " + name
		d.record(name, args, result, false, "unknown tool", time.Since(start))
		return result, false
	}
	result, err := tool.Invoke(ctx, args)
	if err != nil {
		d.Log.Warn("tool call failed",
			zap.String("tool", name),
			zap.String("kind", string(framework.KindOf(err))),
			zap.Error(err))
		rendered := "Error: " + err.Error()
		d.record(name, args, rendered, false, err.Error(), time.Since(start))
		return rendered, false
	}
	d.record(name, args, result, true, "", time.Since(start))
	return result, true
}

func (d *Dispatcher) record(name string, args map[string]interface{}, result string, success bool, errMsg string, elapsed time.Duration) {
	if d.Tracker == nil {
		return
	}
	d.Tracker.LogToolCall(name, args, result, success, errMsg, elapsed)
}
