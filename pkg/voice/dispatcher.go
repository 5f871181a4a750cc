package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Dispatcher routes tool calls to registered handlers by name.
type Dispatcher struct {
	logger *slog.Logger

	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewDispatcher creates an empty registry.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger, tools: make(map[string]Tool)}
}

// Register adds t, replacing any tool with the same name.
func (d *Dispatcher) Register(t Tool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tools[t.Name]; !ok {
		d.order = append(d.order, t.Name)
	}
	d.tools[t.Name] = t
}

// Unregister removes the named tool.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tools[name]; !ok {
		return
	}
	delete(d.tools, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Lookup returns the named tool.
func (d *Dispatcher) Lookup(name string) (Tool, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tools[name]
	return t, ok
}

// Declarations returns tool declarations in registration order.
func (d *Dispatcher) Declarations() []ToolDeclaration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	decls := make([]ToolDeclaration, 0, len(d.order))
	for _, name := range d.order {
		decls = append(decls, d.tools[name].Declaration())
	}
	return decls
}

// Run executes call synchronously. It always returns a response for
// call.ID; err is non-nil when the response describes a failure.
func (d *Dispatcher) Run(ctx context.Context, call ToolCall) (resp ToolResponse, err error) {
	resp = ToolResponse{ID: call.ID, Name: call.Name}

	t, ok := d.Lookup(call.Name)
	if !ok || t.Handler == nil {
		resp.Result = "error: unknown tool " + call.Name
		resp.Failed = true
		return resp, &HandlerError{Tool: call.Name, CallID: call.ID, Cause: ErrUnknownTool}
	}

	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("panic: %v", r)
			resp.Result = "error: " + cause.Error()
			resp.Failed = true
			err = &HandlerError{Tool: call.Name, CallID: call.ID, Cause: cause}
		}
	}()

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	result, herr := t.Handler(ctx, args)
	if herr != nil {
		resp.Result = "error: " + herr.Error()
		resp.Failed = true
		return resp, &HandlerError{Tool: call.Name, CallID: call.ID, Cause: herr}
	}
	resp.Result = result
	return resp, nil
}

// Dispatch runs call on its own goroutine and passes the response to
// respond exactly once. It returns immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, call ToolCall, respond func(ToolResponse, error)) {
	go func() {
		resp, err := d.Run(ctx, call)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, context.Canceled) {
				level = slog.LevelDebug
			}
			d.logger.Log(ctx, level, "tool call failed", "tool", call.Name, "call_id", call.ID, "error", err)
		}
		respond(resp, err)
	}()
}
