package api

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
)

// ErrDuplicate is returned when an idempotency key was already used.
var ErrDuplicate = errors.New("duplicate request")

// TaskService is the task API behind both the HTTP routes and in-process
// board sessions: reads come from storage, updates are written through and
// announced on the task event queue.
type TaskService struct {
	store   Storage
	deduper Deduper
	events  *EventSender
	log     *log.Logger
}

// NewTaskService wires the service. deduper and events may be nil.
func NewTaskService(store Storage, deduper Deduper, events *EventSender, logger *log.Logger) *TaskService {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &TaskService{store: store, deduper: deduper, events: events, log: logger}
}

// Board returns the board of projectID.
func (s *TaskService) Board(ctx context.Context, projectID int) (domain.Board, error) {
	return s.store.FetchBoard(ctx, projectID)
}

// Update applies patch to taskID on behalf of userID. A non-empty key that
// was seen before yields ErrDuplicate without touching storage. The board
// session in ctx, if any, is recorded as the event origin.
func (s *TaskService) Update(ctx context.Context, userID string, taskID int, patch domain.TaskPatch, key string) (domain.TaskChange, error) {
	if key != "" && s.deduper != nil {
		added, err := s.deduper.Add(ctx, userID, key)
		if err != nil {
			return domain.TaskChange{}, err
		}
		if !added {
			return domain.TaskChange{}, ErrDuplicate
		}
	}

	change, err := s.store.UpdateTask(ctx, taskID, patch)
	if err != nil {
		if key != "" && s.deduper != nil {
			if rerr := s.deduper.Remove(context.WithoutCancel(ctx), userID, key); rerr != nil {
				s.log.Errorf("dedupe rollback failed, err: %v, key: %s, user: %s", rerr, key, userID)
			}
		}
		return domain.TaskChange{}, err
	}

	if s.events != nil {
		ev, err := newTaskEvent(ctx, userID, change, patch)
		if err == nil {
			err = s.events.Send(ctx, ev)
		}
		if err != nil {
			s.log.WithFields(log.Fields{"task": taskID, "project": change.After.ProjectID}).WithError(err).Error("task event not queued")
		}
	}
	return change, nil
}

func newTaskEvent(ctx context.Context, userID string, change domain.TaskChange, patch domain.TaskPatch) (domain.TaskEvent, error) {
	data, err := sonic.Marshal(patch)
	if err != nil {
		return domain.TaskEvent{}, err
	}
	typ := domain.TaskUpdated
	if change.Moved() {
		typ = domain.TaskMoved
	}
	return domain.TaskEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		TaskID:    change.After.ID,
		ProjectID: change.After.ProjectID,
		UserID:    userID,
		Origin:    domain.OriginFrom(ctx),
		From:      change.Before.StatusID,
		To:        change.After.StatusID,
		Data:      data,
		Timestamp: nextTimestamp(),
	}, nil
}

// LocalTaskAPI lets a board session call the TaskService in process.
type LocalTaskAPI struct {
	Service *TaskService
	UserID  string
}

func (l LocalTaskAPI) Update(ctx context.Context, taskID int, patch domain.TaskPatch) (domain.Task, error) {
	change, err := l.Service.Update(ctx, l.UserID, taskID, patch, "")
	if err != nil {
		return domain.Task{}, err
	}
	return change.After, nil
}

func (l LocalTaskAPI) FetchAll(ctx context.Context, projectID int) (domain.Board, error) {
	return l.Service.Board(ctx, projectID)
}

var lastTimestamp int64

// nextTimestamp returns strictly increasing unix nanoseconds so events from
// one process keep their order.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}
