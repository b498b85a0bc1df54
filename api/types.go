package api

import (
	"context"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	FetchBoard(ctx context.Context, projectID int) (domain.Board, error)
	UpdateTask(ctx context.Context, taskID int, patch domain.TaskPatch) (domain.TaskChange, error)
	EnqueueTaskEvent(ctx context.Context, ev domain.TaskEvent) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents processing of duplicate task updates.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, userID, key string) error
}
