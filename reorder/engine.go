package reorder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
)

const (
	defaultPersistTimeout = 30 * time.Second
	defaultSuccessMessage = "Task moved"
	defaultFailureMessage = "Failed to move task"
)

// TaskAPI is the remote task service the engine reads boards from and
// persists moves to.
type TaskAPI interface {
	Update(ctx context.Context, taskID int, patch domain.TaskPatch) (domain.Task, error)
	FetchAll(ctx context.Context, projectID int) (domain.Board, error)
}

// Options tunes an Engine. Zero values fall back to defaults.
type Options struct {
	SessionID      string
	Order          domain.WeightOrder
	PersistTimeout time.Duration
	SuccessMessage string
	FailureMessage string
	Notifier       Notifier
	Logger         *log.Entry
}

// Snapshot is a read-only view of the engine state handed to renderers.
type Snapshot struct {
	ProjectID int             `json:"projectId"`
	SessionID string          `json:"sessionId"`
	Version   uint64          `json:"version"`
	Tasks     []domain.Task   `json:"tasks"`
	Columns   []domain.Column `json:"columns"`
	Dragged   *domain.Task    `json:"dragged,omitempty"`
}

// Engine owns the ordered task list of one board view. Calls are serialised
// by a mutex; each one runs to completion before the next is handled.
// Persisting a move happens in the background, so OnDragEnd never blocks on
// the task API.
type Engine struct {
	api       TaskAPI
	projectID int
	id        string
	order     domain.WeightOrder
	timeout   time.Duration
	okMsg     string
	failMsg   string
	notifier  Notifier
	log       *log.Entry

	mu       sync.Mutex
	tasks    []domain.Task
	statuses []domain.Status
	dragged  *domain.Task
	version  uint64

	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObs   int

	inflight sync.WaitGroup
	pending  atomic.Int64
}

// New creates an engine for projectID. The board is empty until Load.
func New(api TaskAPI, projectID int, opts Options) *Engine {
	e := &Engine{
		api:       api,
		projectID: projectID,
		id:        opts.SessionID,
		order:     opts.Order,
		timeout:   opts.PersistTimeout,
		okMsg:     opts.SuccessMessage,
		failMsg:   opts.FailureMessage,
		notifier:  opts.Notifier,
		observers: make(map[int]func(Snapshot)),
	}
	if e.id == "" {
		e.id = uuid.NewString()
	}
	if e.order == "" {
		e.order = domain.WeightDescending
	}
	if e.timeout <= 0 {
		e.timeout = defaultPersistTimeout
	}
	if e.okMsg == "" {
		e.okMsg = defaultSuccessMessage
	}
	if e.failMsg == "" {
		e.failMsg = defaultFailureMessage
	}
	if e.notifier == nil {
		e.notifier = noopNotifier{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	e.log = logger.WithFields(log.Fields{"project": projectID, "session": e.id})
	return e
}

// ID returns the session id the engine tags its API calls with.
func (e *Engine) ID() string { return e.id }

// ProjectID returns the project the engine renders.
func (e *Engine) ProjectID() int { return e.projectID }

// Load populates the board from the task API.
func (e *Engine) Load(ctx context.Context) error {
	return e.Reload(ctx)
}

// Reload replaces the whole board with a fresh copy from the task API,
// discarding any local ordering and optimistic moves.
func (e *Engine) Reload(ctx context.Context) error {
	board, err := e.api.FetchAll(domain.WithOrigin(ctx, e.id), e.projectID)
	if err != nil {
		return err
	}
	tasks := make([]domain.Task, len(board.Tasks))
	for i, t := range board.Tasks {
		tasks[i] = t.Clone()
	}
	if len(board.Priorities) > 0 {
		domain.ApplyWeights(tasks, board.Priorities)
	}
	statuses := append([]domain.Status(nil), board.Statuses...)
	domain.SortStatuses(statuses)

	e.mu.Lock()
	e.tasks = tasks
	e.statuses = statuses
	snap := e.changedLocked()
	e.mu.Unlock()

	e.log.WithField("tasks", len(tasks)).Debug("board loaded")
	e.publish(snap)
	return nil
}

// OnDragStart records the task under the pointer as the dragged task. An
// unknown id clears it.
func (e *Engine) OnDragStart(draggedID int) {
	e.mu.Lock()
	if i := e.indexLocked(draggedID); i >= 0 {
		t := e.tasks[i].Clone()
		e.dragged = &t
	} else {
		e.dragged = nil
	}
	snap := e.changedLocked()
	e.mu.Unlock()

	e.publish(snap)
}

// OnDragOver reorders the board while draggedID hovers targetID. Only moves
// inside one column reorder; self hover, unknown ids and cross-column hover
// leave the board untouched.
func (e *Engine) OnDragOver(draggedID, targetID int) {
	if draggedID == targetID {
		return
	}

	e.mu.Lock()
	activeIndex := e.indexLocked(draggedID)
	overIndex := e.indexLocked(targetID)
	if activeIndex < 0 || overIndex < 0 || e.tasks[activeIndex].StatusID != e.tasks[overIndex].StatusID {
		e.mu.Unlock()
		return
	}
	e.tasks, _ = Reorder(e.tasks, activeIndex, overIndex, e.order)
	snap := e.changedLocked()
	e.mu.Unlock()

	e.publish(snap)
}

// OnDragEnd finishes a gesture. droppedOn is a status id or a task id, nil
// when the task was released outside any drop target. A move to another
// column is applied locally straight away and persisted in the background;
// if the task API rejects it the board is reloaded.
func (e *Engine) OnDragEnd(ctx context.Context, draggedID int, droppedOn *int) {
	e.mu.Lock()
	e.dragged = nil
	if droppedOn == nil {
		snap := e.changedLocked()
		e.mu.Unlock()
		e.publish(snap)
		return
	}

	i := e.indexLocked(draggedID)
	target, ok := e.resolveStatusLocked(*droppedOn)
	if i < 0 || !ok || target == e.tasks[i].StatusID {
		snap := e.changedLocked()
		e.mu.Unlock()
		e.publish(snap)
		return
	}

	from := e.tasks[i].StatusID
	e.tasks[i].StatusID = target
	task := e.tasks[i].Clone()
	patch := task.MoveTo(target)
	snap := e.changedLocked()
	e.inflight.Add(1)
	e.pending.Add(1)
	e.mu.Unlock()

	e.publish(snap)
	go e.persist(context.WithoutCancel(ctx), task.ID, from, patch)
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state change. The
// returned function removes the subscription.
func (e *Engine) Subscribe(fn func(Snapshot)) func() {
	e.obsMu.Lock()
	id := e.nextObs
	e.nextObs++
	e.observers[id] = fn
	e.obsMu.Unlock()

	return func() {
		e.obsMu.Lock()
		delete(e.observers, id)
		e.obsMu.Unlock()
	}
}

// Pending reports how many moves are still being persisted.
func (e *Engine) Pending() int {
	return int(e.pending.Load())
}

// Wait blocks until every background persistence call has completed.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

func (e *Engine) persist(ctx context.Context, taskID, from int, patch domain.TaskPatch) {
	defer e.inflight.Done()
	defer e.pending.Add(-1)

	logger := e.log.WithFields(log.Fields{"task": taskID, "from": from, "to": patch.StatusID})
	updateCtx, cancel := context.WithTimeout(domain.WithOrigin(ctx, e.id), e.timeout)
	_, err := e.api.Update(updateCtx, taskID, patch)
	cancel()
	if err == nil {
		logger.Debug("task moved")
		e.notifier.NotifySuccess(ctx, e.okMsg)
		return
	}

	logger.WithError(err).Warn("move rejected, reloading board")
	reloadCtx, cancel := context.WithTimeout(ctx, e.timeout)
	if rerr := e.Reload(reloadCtx); rerr != nil {
		logger.WithError(rerr).Error("reload after failed move")
	}
	cancel()
	e.notifier.NotifyFailure(ctx, e.failMsg, err)
}

func (e *Engine) indexLocked(id int) int {
	for i := range e.tasks {
		if e.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// resolveStatusLocked maps a drop target onto a status id. Status ids win
// over task ids.
func (e *Engine) resolveStatusLocked(id int) (int, bool) {
	for _, s := range e.statuses {
		if s.ID == id {
			return s.ID, true
		}
	}
	if i := e.indexLocked(id); i >= 0 {
		return e.tasks[i].StatusID, true
	}
	return 0, false
}

func (e *Engine) changedLocked() Snapshot {
	e.version++
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	tasks := make([]domain.Task, len(e.tasks))
	for i, t := range e.tasks {
		tasks[i] = t.Clone()
	}
	snap := Snapshot{
		ProjectID: e.projectID,
		SessionID: e.id,
		Version:   e.version,
		Tasks:     tasks,
		Columns:   domain.GroupByStatus(e.statuses, tasks),
	}
	if e.dragged != nil {
		d := e.dragged.Clone()
		snap.Dragged = &d
	}
	return snap
}

func (e *Engine) publish(snap Snapshot) {
	e.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(e.observers))
	for _, fn := range e.observers {
		fns = append(fns, fn)
	}
	e.obsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
