// Package audit turns queued task events into audit rows and board update
// notifications.
package audit

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/storage"
)

const (
	defaultBatch       = 16
	defaultIdle        = time.Second
	defaultMaxDequeues = 5
)

// Store is the queue and audit table the processor works against.
type Store interface {
	DequeueTaskEvents(ctx context.Context, max int32) ([]storage.QueuedEvent, error)
	DeleteTaskEvent(ctx context.Context, ev storage.QueuedEvent) error
	InsertAuditEntry(ctx context.Context, entry domain.AuditEntry) error
}

// PublishFunc announces a board change to listening board sessions.
type PublishFunc func(ctx context.Context, update domain.BoardUpdate) error

// Options tunes a Processor. Zero values fall back to defaults.
type Options struct {
	Batch int32
	// Idle is how long Run sleeps after an empty or failed poll.
	Idle time.Duration
	// MaxDequeues drops a message that failed this many times.
	MaxDequeues int64
	Logger      *log.Entry
}

// Processor consumes the task event queue.
type Processor struct {
	store       Store
	publish     PublishFunc
	batch       int32
	idle        time.Duration
	maxDequeues int64
	log         *log.Entry
}

// NewProcessor creates a processor. publish may be nil.
func NewProcessor(store Store, publish PublishFunc, opts Options) *Processor {
	p := &Processor{
		store:       store,
		publish:     publish,
		batch:       opts.Batch,
		idle:        opts.Idle,
		maxDequeues: opts.MaxDequeues,
		log:         opts.Logger,
	}
	if p.batch <= 0 {
		p.batch = defaultBatch
	}
	if p.idle <= 0 {
		p.idle = defaultIdle
	}
	if p.maxDequeues <= 0 {
		p.maxDequeues = defaultMaxDequeues
	}
	if p.log == nil {
		p.log = log.NewEntry(log.StandardLogger())
	}
	return p
}

// Process records ev in the audit table and publishes a board update. A
// failed publish is logged; the audit row is what must not be lost.
func (p *Processor) Process(ctx context.Context, ev domain.TaskEvent) error {
	entry := domain.AuditEntry{
		ID:        ev.ID,
		TaskID:    ev.TaskID,
		ProjectID: ev.ProjectID,
		UserID:    ev.UserID,
		Action:    ev.Type,
		From:      ev.From,
		To:        ev.To,
		Timestamp: ev.Timestamp,
	}
	if err := p.store.InsertAuditEntry(ctx, entry); err != nil {
		return err
	}
	if p.publish != nil {
		update := domain.BoardUpdate{ProjectID: ev.ProjectID, TaskID: ev.TaskID, Origin: ev.Origin}
		if err := p.publish(ctx, update); err != nil {
			p.log.WithFields(log.Fields{"project": ev.ProjectID, "task": ev.TaskID}).WithError(err).Error("unable to publish board update")
		}
	}
	return nil
}

// Drain handles one batch from the queue and returns how many messages it
// took off. Messages that fail stay queued and reappear after their
// visibility timeout, up to MaxDequeues attempts.
func (p *Processor) Drain(ctx context.Context) (int, error) {
	msgs, err := p.store.DequeueTaskEvents(ctx, p.batch)
	if err != nil {
		return 0, err
	}
	handled := 0
	for _, msg := range msgs {
		logger := p.log.WithFields(log.Fields{"message": msg.MessageID, "event": msg.Event.ID, "task": msg.Event.TaskID})
		switch {
		case msg.Event.ID == "":
			logger.Warn("dropping undecodable task event")
		case msg.Dequeues > p.maxDequeues:
			logger.WithField("dequeues", msg.Dequeues).Error("dropping task event after repeated failures")
		default:
			if err := p.Process(ctx, msg.Event); err != nil {
				logger.WithError(err).Warn("task event failed, leaving it queued")
				continue
			}
		}
		if err := p.store.DeleteTaskEvent(ctx, msg); err != nil {
			logger.WithError(err).Error("delete task event")
			continue
		}
		handled++
	}
	return handled, nil
}

// Run drains the queue until ctx is done.
func (p *Processor) Run(ctx context.Context) {
	for {
		n, err := p.Drain(ctx)
		if err != nil && ctx.Err() == nil {
			p.log.WithError(err).Error("receive task events")
		}
		if n > 0 && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.idle):
		}
	}
}
