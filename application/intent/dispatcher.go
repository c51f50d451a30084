package intent

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"factoryops/domain/intent"
	apperrors "factoryops/pkg/errors"
	"factoryops/pkg/logger"

	"go.uber.org/zap"
)

// CategoryInfo Discovery view of one registered category
type CategoryInfo struct {
	Category intent.Category     `json:"category"`
	Intents  []intent.IntentInfo `json:"intents"`
}

// Dispatcher Routes intent requests to the handler of their category. Every
// call returns an outcome: handler errors and panics become FAILED (or the
// more specific status their error calls for) and never reach the caller.
type Dispatcher struct {
	engine   *Engine
	handlers map[intent.Category]intent.Handler
	names    map[string]string
	metrics  Metrics
	now      func() time.Time
}

// NewDispatcher Create dispatcher over the given handlers. A later handler
// for the same category replaces an earlier one.
func NewDispatcher(engine *Engine, handlers ...intent.Handler) *Dispatcher {
	d := &Dispatcher{
		engine:   engine,
		handlers: make(map[intent.Category]intent.Handler, len(handlers)),
		names:    make(map[string]string),
		metrics:  engine.metrics,
		now:      engine.now,
	}
	for _, h := range handlers {
		d.handlers[h.Category()] = h
		if desc, ok := h.(intent.IntentDescriber); ok {
			for _, info := range desc.Intents() {
				d.names[strings.ToUpper(info.Code)] = info.Name
			}
		}
	}
	return d
}

// Execute runs the commit path of the request's handler.
func (d *Dispatcher) Execute(ctx context.Context, req intent.Request) intent.Outcome {
	return d.dispatch(ctx, req, "handle", func(ctx context.Context, h intent.Handler, req intent.Request) (intent.Outcome, error) {
		return h.Handle(ctx, req)
	})
}

// Preview runs the dry-run path of the request's handler.
func (d *Dispatcher) Preview(ctx context.Context, req intent.Request) intent.Outcome {
	return d.dispatch(ctx, req, "preview", func(ctx context.Context, h intent.Handler, req intent.Request) (intent.Outcome, error) {
		return h.Preview(ctx, req)
	})
}

// Confirm commits the change parked behind token on behalf of actor.
func (d *Dispatcher) Confirm(ctx context.Context, token string, actor intent.Actor) (out intent.Outcome) {
	req := intent.Request{Actor: actor}
	defer d.finish(&req, &out, "confirm")

	if strings.TrimSpace(token) == "" {
		out = intent.NeedMoreInfo(req, "a confirmation token is required", "token")
		return out
	}
	res, err := d.engine.Confirm(ctx, token, actor)
	if res.Token != nil {
		req.IntentCode = res.Token.IntentCode
		req.Category = res.Token.Category
		req.Context = res.Token.Payload
	}
	if err != nil {
		out = ErrorOutcome(req, err)
		return out
	}
	out = CompletedOutcome(req, res.Result)
	return out
}

// Categories lists registered categories with their intents, sorted.
func (d *Dispatcher) Categories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(d.handlers))
	for c, h := range d.handlers {
		info := CategoryInfo{Category: c}
		if desc, ok := h.(intent.IntentDescriber); ok {
			info.Intents = desc.Intents()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

type handlerCall func(ctx context.Context, h intent.Handler, req intent.Request) (intent.Outcome, error)

func (d *Dispatcher) dispatch(ctx context.Context, req intent.Request, phase string, call handlerCall) (out intent.Outcome) {
	req.Category = intent.ParseCategory(string(req.Category))
	req.IntentCode = strings.ToUpper(strings.TrimSpace(req.IntentCode))
	defer d.finish(&req, &out, phase)

	h, ok := d.handlers[req.Category]
	if !ok {
		out = intent.NewOutcome(req, intent.StatusFailed, fmt.Sprintf("no handler for intent category %q", req.Category))
		out.IntentRecognized = false
		out.ErrorCode = "UNSUPPORTED_CATEGORY"
		return out
	}

	o, err := call(ctx, h, req)
	if err != nil {
		out = ErrorOutcome(req, err)
		d.logFailure(req, phase, err)
		return out
	}
	return o
}

// finish recovers a handler panic into a FAILED outcome and stamps the
// fields every outcome carries.
func (d *Dispatcher) finish(req *intent.Request, out *intent.Outcome, phase string) {
	if r := recover(); r != nil {
		logger.Error("Handler panicked",
			zap.String("phase", phase),
			zap.String("category", string(req.Category)),
			zap.String("intent_code", req.IntentCode),
			zap.Any("panic", r),
			zap.ByteString("stack", debug.Stack()))
		*out = intent.NewOutcome(*req, intent.StatusFailed, genericFailure)
		out.ErrorCode = "INTERNAL_ERROR"
	}

	if out.IntentCode == "" {
		out.IntentCode = req.IntentCode
	}
	if out.IntentCategory == "" {
		out.IntentCategory = req.Category
	}
	if out.IntentName == "" {
		out.IntentName = d.names[strings.ToUpper(out.IntentCode)]
	}
	if out.ExecutedAt.IsZero() {
		out.ExecutedAt = d.now().UTC()
	}
	d.metrics.ObserveOutcome(out.IntentCategory, out.Status)
}

func (d *Dispatcher) logFailure(req intent.Request, phase string, err error) {
	fields := []zap.Field{
		zap.String("phase", phase),
		zap.String("category", string(req.Category)),
		zap.String("intent_code", req.IntentCode),
		zap.String("actor", req.Actor.ID),
		zap.Error(err),
	}
	if code := apperrors.Code(err); code != apperrors.CodeInternal && code != apperrors.CodeUnavailable {
		logger.Info("Intent not applied", fields...)
		return
	}
	logger.Error("Intent failed", fields...)
}
