package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
)

type eventQueue interface {
	EnqueueTaskEvent(ctx context.Context, ev domain.TaskEvent) error
}

// PoolOptions sizes an EventSender.
type PoolOptions struct {
	Workers        int
	Buffer         int
	Timeout        time.Duration
	HandoffTimeout time.Duration
}

// EventSender ships task events to the queue from a fixed set of workers so
// request handlers do not wait on the queue round trip.
type EventSender struct {
	queue   eventQueue
	log     *log.Logger
	jobs    chan domain.TaskEvent
	timeout time.Duration
	handoff time.Duration

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewEventSender starts the workers.
func NewEventSender(queue eventQueue, logger *log.Logger, opts PoolOptions) *EventSender {
	if logger == nil {
		panic("Logger is not initialized")
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Buffer < 0 {
		opts.Buffer = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	s := &EventSender{
		queue:   queue,
		log:     logger,
		jobs:    make(chan domain.TaskEvent, opts.Buffer),
		timeout: opts.Timeout,
		handoff: opts.HandoffTimeout,
	}
	for i := 0; i < opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	logger.Infof("event sender started, workers: %d, buffer: %d, timeout: %v, handoff: %v", opts.Workers, opts.Buffer, opts.Timeout, opts.HandoffTimeout)
	return s
}

// Send hands ev to a worker, falling back to an inline enqueue when the
// buffer stays full past the handoff timeout.
func (s *EventSender) Send(ctx context.Context, ev domain.TaskEvent) error {
	if s.tryHandoff(ev) {
		return nil
	}
	s.log.Warn("event buffer saturated; enqueueing inline")
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	return s.queue.EnqueueTaskEvent(enqueueCtx, ev)
}

// Close stops accepting events and waits for the workers to drain.
func (s *EventSender) Close() {
	s.closeOnce.Do(func() { close(s.jobs) })
	s.wg.Wait()
}

func (s *EventSender) worker(id int) {
	defer s.wg.Done()
	for ev := range s.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.queue.EnqueueTaskEvent(ctx, ev)
		cancel()
		if err != nil {
			s.log.WithFields(log.Fields{"task": ev.TaskID, "project": ev.ProjectID, "worker": id}).WithError(err).Error("enqueue task event failed")
		}
	}
}

func (s *EventSender) tryHandoff(ev domain.TaskEvent) bool {
	if ok, closed := trySendNonBlocking(s.jobs, ev); closed {
		return false
	} else if ok {
		return true
	}
	if s.handoff <= 0 {
		return false
	}

	timer := time.NewTimer(s.handoff)
	defer timer.Stop()
	ok, _ := sendWithTimer(s.jobs, ev, timer.C)
	return ok
}

func trySendNonBlocking(ch chan domain.TaskEvent, ev domain.TaskEvent) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- ev:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan domain.TaskEvent, ev domain.TaskEvent, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- ev:
		return true, false
	case <-timer:
		return false, false
	}
}
