package audit

import (
	"context"
	"errors"
	"strings"

	"accounter.org/internal/obs"
)

type ctxKey string

const (
	requestIDKey ctxKey = "audit_request_id"
	actorKey     ctxKey = "audit_actor"
)

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithActor records who triggered the operation (an operator name or a job id).
func WithActor(ctx context.Context, actor string) context.Context {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, actor)
}

// RequestID returns the request id attached to ctx, if any.
func RequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// Actor returns the actor attached to ctx, if any.
func Actor(ctx context.Context) string {
	return stringValue(ctx, actorKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and actor context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	e := obs.Logger().Info().Str("type", "audit").Str("event", event)
	if rid := RequestID(ctx); rid != "" {
		e = e.Str("request_id", rid)
	}
	if actor := Actor(ctx); actor != "" {
		e = e.Str("actor", actor)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	e.Interface("fields", fields).Send()
	return nil
}
