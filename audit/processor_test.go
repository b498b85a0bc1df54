package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/storage"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/subscription"
)

type fakeStore struct {
	mu         sync.Mutex
	queued     []storage.QueuedEvent
	dequeueErr error
	insertErr  error
	entries    []domain.AuditEntry
	deleted    []string
}

func (f *fakeStore) DequeueTaskEvents(_ context.Context, max int32) ([]storage.QueuedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dequeueErr != nil {
		return nil, f.dequeueErr
	}
	n := int(max)
	if n > len(f.queued) {
		n = len(f.queued)
	}
	out := f.queued[:n]
	f.queued = f.queued[n:]
	return out, nil
}

func (f *fakeStore) DeleteTaskEvent(_ context.Context, ev storage.QueuedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ev.MessageID)
	return nil
}

func (f *fakeStore) InsertAuditEntry(_ context.Context, entry domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func movedEvent(id string) domain.TaskEvent {
	return domain.TaskEvent{ID: id, Type: domain.TaskMoved, TaskID: 3, ProjectID: 7, UserID: "u1", Origin: "session-1", From: 100, To: 200, Timestamp: 42}
}

func TestProcessWritesAuditAndPublishes(t *testing.T) {
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer m.Close()
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer rc.Close()
	ctx := context.Background()

	pubsub := rc.Subscribe(ctx, "board-updates")
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	done := make(chan string, 1)
	go func() {
		msg := <-pubsub.Channel()
		done <- msg.Payload
	}()

	store := &fakeStore{}
	p := NewProcessor(store, func(ctx context.Context, u domain.BoardUpdate) error {
		return subscription.Publish(ctx, rc, "board-updates", u)
	}, Options{})

	if err := p.Process(ctx, movedEvent("e1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(store.entries))
	}
	entry := store.entries[0]
	if entry.ID != "e1" || entry.Action != domain.TaskMoved || entry.From != 100 || entry.To != 200 || entry.Timestamp != 42 {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}

	select {
	case payload := <-done:
		var update domain.BoardUpdate
		if err := sonic.UnmarshalString(payload, &update); err != nil {
			t.Fatalf("invalid update payload: %v", err)
		}
		if update.ProjectID != 7 || update.TaskID != 3 || update.Origin != "session-1" {
			t.Fatalf("unexpected update: %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatalf("no board update published")
	}
}

func TestProcessPublishFailureIsNotFatal(t *testing.T) {
	logger, hook := test.NewNullLogger()
	store := &fakeStore{}
	p := NewProcessor(store, func(context.Context, domain.BoardUpdate) error {
		return errors.New("redis down")
	}, Options{Logger: log.NewEntry(logger)})

	if err := p.Process(context.Background(), movedEvent("e1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != log.ErrorLevel {
		t.Fatalf("expected publish failure to be logged")
	}
}

func TestDrain(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := &fakeStore{
		queued: []storage.QueuedEvent{
			{MessageID: "m1", Event: movedEvent("e1"), Dequeues: 1},
			{MessageID: "m2", Dequeues: 1},
			{MessageID: "m3", Event: movedEvent("e3"), Dequeues: 9},
		},
	}
	var published int
	p := NewProcessor(store, func(context.Context, domain.BoardUpdate) error {
		published++
		return nil
	}, Options{Logger: log.NewEntry(logger)})

	n, err := p.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 messages handled, got %d", n)
	}
	if len(store.entries) != 1 || published != 1 {
		t.Fatalf("only the valid fresh event is applied: entries=%d published=%d", len(store.entries), published)
	}
	if len(store.deleted) != 3 {
		t.Fatalf("expected all messages deleted, got %v", store.deleted)
	}
}

func TestDrainLeavesFailedEventQueued(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := &fakeStore{
		queued:    []storage.QueuedEvent{{MessageID: "m1", Event: movedEvent("e1"), Dequeues: 1}},
		insertErr: errors.New("table down"),
	}
	p := NewProcessor(store, nil, Options{Logger: log.NewEntry(logger)})

	n, err := p.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if n != 0 || len(store.deleted) != 0 {
		t.Fatalf("failed event must stay queued: handled=%d deleted=%v", n, store.deleted)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := &fakeStore{dequeueErr: errors.New("queue down")}
	p := NewProcessor(store, nil, Options{Idle: 5 * time.Millisecond, Logger: log.NewEntry(logger)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit")
	}
}
