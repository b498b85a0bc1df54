package api

const patchTaskMaxSize = 64 * 1024 // 64 KiB

// HeaderIdempotencyKey lets clients retry a PATCH without applying it twice.
const HeaderIdempotencyKey = "Idempotency-Key"

// PATCH /api/tasks/:taskID response body when the request was a replay.
type duplicateResponse struct {
	Duplicate bool `json:"duplicate"`
}

// drag-start, drag-over and drag-end request body. OverID is a task id or a
// status id; it is absent when a drag ends outside any drop target.
type dragRequest struct {
	ActiveID int  `json:"activeId"`
	OverID   *int `json:"overId,omitempty"`
}
