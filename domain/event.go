package domain

import (
	"context"

	"github.com/bytedance/sonic"
)

// Task event types written to the task event queue.
const (
	TaskMoved   = "task-moved"
	TaskUpdated = "task-updated"
)

// TaskEvent records a change applied through the task API.
type TaskEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	TaskID    int                    `json:"taskId"`
	ProjectID int                    `json:"projectId"`
	UserID    string                 `json:"userId"`
	Origin    string                 `json:"origin,omitempty"`
	From      int                    `json:"fromStatusId"`
	To        int                    `json:"toStatusId"`
	Data      sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// BoardUpdate is published on the board updates channel after a project's
// tasks changed. Origin names the board session that caused the change.
type BoardUpdate struct {
	ProjectID int    `json:"projectId"`
	TaskID    int    `json:"taskId,omitempty"`
	Origin    string `json:"origin,omitempty"`
}

type originKey struct{}

// WithOrigin tags ctx with the id of the board session issuing a request.
func WithOrigin(ctx context.Context, origin string) context.Context {
	if origin == "" {
		return ctx
	}
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the board session id stored by WithOrigin.
func OriginFrom(ctx context.Context) string {
	v, _ := ctx.Value(originKey{}).(string)
	return v
}

// AuditEntry is one row of a task's audit log.
type AuditEntry struct {
	ID        string `json:"id"`
	TaskID    int    `json:"taskId"`
	ProjectID int    `json:"projectId"`
	UserID    string `json:"userId"`
	Action    string `json:"action"`
	From      int    `json:"fromStatusId"`
	To        int    `json:"toStatusId"`
	Timestamp int64  `json:"timestamp"`
}
