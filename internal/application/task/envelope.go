package task

import (
	"context"
	"strings"
)

// TaskCreatedPayload is the wire body published on both the best-effort
// direct path and the durable outbox path: a flat {"task_id","priority"}
// object, nothing else. Consumers route on the queue, not on an envelope.
type TaskCreatedPayload struct {
	TaskID   string `json:"task_id"`
	Priority string `json:"priority"`
}

type ctxKey string

const ctxRequestID ctxKey = "request_id"

// WithRequestID attaches the inbound request id for log correlation only;
// it never appears on the wire.
func WithRequestID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxRequestID, id)
}

func TraceIDFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxRequestID); v != nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
