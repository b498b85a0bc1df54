package domain

import "errors"

// ErrConcurrencyConflict indicates that the underlying storage rejected an
// update because a newer version of the entity is already persisted.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ErrTaskNotFound is returned when a task id does not exist in its project.
var ErrTaskNotFound = errors.New("task not found")
