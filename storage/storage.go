// Package storage persists boards in Azure Tables and ships task events
// through an Azure queue.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
)

const maxUpdateAttempts = 3

// Tables names the tables and queue backing a Storage.
type Tables struct {
	Tasks      string
	Statuses   string
	Priorities string
	Audit      string
	Events     string
}

// Storage provides access to underlying persistence mechanisms.
type Storage struct {
	taskTable     *aztables.Client
	statusTable   *aztables.Client
	priorityTable *aztables.Client
	auditTable    *aztables.Client
	eventQueue    *azqueue.QueueClient
}

// QueuedEvent is a task event read from the queue together with the handles
// needed to delete it.
type QueuedEvent struct {
	Event      domain.TaskEvent
	MessageID  string
	PopReceipt string
	Dequeues   int64
}

// New creates a Storage instance from the given connection string.
func New(connStr string, names Tables) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, names.Events, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		taskTable:     svc.NewClient(names.Tasks),
		statusTable:   svc.NewClient(names.Statuses),
		priorityTable: svc.NewClient(names.Priorities),
		auditTable:    svc.NewClient(names.Audit),
		eventQueue:    eq,
	}, nil
}

// FetchBoard retrieves the tasks and statuses of a project together with the
// shared priority table. Tasks come back in board order with their priority
// weight filled in.
func (s *Storage) FetchBoard(ctx context.Context, projectID int) (domain.Board, error) {
	pk := partitionKey(projectID)

	var items []positioned
	err := listPartition(ctx, s.taskTable, pk, func(data []byte) error {
		t, pos, err := decodeTaskEntity(data)
		if err != nil {
			return err
		}
		items = append(items, positioned{task: t, position: pos})
		return nil
	})
	if err != nil {
		return domain.Board{}, fmt.Errorf("list tasks: %w", err)
	}

	statuses := []domain.Status{}
	err = listPartition(ctx, s.statusTable, pk, func(data []byte) error {
		st, err := decodeStatusEntity(data)
		if err != nil {
			return err
		}
		statuses = append(statuses, st)
		return nil
	})
	if err != nil {
		return domain.Board{}, fmt.Errorf("list statuses: %w", err)
	}
	domain.SortStatuses(statuses)

	priorities := []domain.Priority{}
	err = listPartition(ctx, s.priorityTable, priorityPartition, func(data []byte) error {
		p, err := decodePriorityEntity(data)
		if err != nil {
			return err
		}
		priorities = append(priorities, p)
		return nil
	})
	if err != nil {
		return domain.Board{}, fmt.Errorf("list priorities: %w", err)
	}

	tasks := sortBoard(items)
	domain.ApplyWeights(tasks, priorities)
	return domain.Board{ProjectID: projectID, Tasks: tasks, Statuses: statuses, Priorities: priorities}, nil
}

// UpdateTask applies patch to a stored task. The write is conditional on the
// entity's ETag and is retried when another writer got there first.
func (s *Storage) UpdateTask(ctx context.Context, taskID int, patch domain.TaskPatch) (domain.TaskChange, error) {
	if patch.ProjectID == 0 {
		return domain.TaskChange{}, errors.New("patch has no project id")
	}
	pk := partitionKey(patch.ProjectID)
	rk := rowKey(taskID)

	for attempt := 1; ; attempt++ {
		resp, err := s.taskTable.GetEntity(ctx, pk, rk, nil)
		if err != nil {
			if isStatus(err, http.StatusNotFound) {
				return domain.TaskChange{}, domain.ErrTaskNotFound
			}
			return domain.TaskChange{}, err
		}
		current, pos, err := decodeTaskEntity(resp.Value)
		if err != nil {
			return domain.TaskChange{}, err
		}
		updated := current.Apply(patch)
		payload, err := encodeTaskEntity(updated, pos)
		if err != nil {
			return domain.TaskChange{}, err
		}
		etag := resp.ETag
		_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeReplace})
		if err == nil {
			return domain.TaskChange{Before: current, After: updated}, nil
		}
		if !isStatus(err, http.StatusPreconditionFailed) {
			return domain.TaskChange{}, err
		}
		if attempt >= maxUpdateAttempts {
			return domain.TaskChange{}, domain.ErrConcurrencyConflict
		}
	}
}

// EnqueueTaskEvent sends ev to the task event queue.
func (s *Storage) EnqueueTaskEvent(ctx context.Context, ev domain.TaskEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.eventQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// DequeueTaskEvents receives up to max events. Messages that do not decode
// are returned with a zero Event so the caller can delete them.
func (s *Storage) DequeueTaskEvents(ctx context.Context, max int32) ([]QueuedEvent, error) {
	resp, err := s.eventQueue.DequeueMessages(ctx, &azqueue.DequeueMessagesOptions{NumberOfMessages: &max})
	if err != nil {
		return nil, err
	}
	out := make([]QueuedEvent, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		if msg == nil || msg.MessageID == nil || msg.PopReceipt == nil {
			continue
		}
		q := QueuedEvent{MessageID: *msg.MessageID, PopReceipt: *msg.PopReceipt}
		if msg.DequeueCount != nil {
			q.Dequeues = *msg.DequeueCount
		}
		if msg.MessageText != nil {
			_ = json.Unmarshal([]byte(*msg.MessageText), &q.Event)
		}
		out = append(out, q)
	}
	return out, nil
}

// DeleteTaskEvent removes a processed message from the queue.
func (s *Storage) DeleteTaskEvent(ctx context.Context, ev QueuedEvent) error {
	_, err := s.eventQueue.DeleteMessage(ctx, ev.MessageID, ev.PopReceipt, nil)
	return err
}

// InsertAuditEntry records one audit row. Replaying the same entry is not an
// error.
func (s *Storage) InsertAuditEntry(ctx context.Context, entry domain.AuditEntry) error {
	payload, err := encodeAuditEntity(entry)
	if err != nil {
		return err
	}
	_, err = s.auditTable.AddEntity(ctx, payload, nil)
	if err != nil && isStatus(err, http.StatusConflict) {
		return nil
	}
	return err
}

func listPartition(ctx context.Context, table *aztables.Client, pk string, fn func([]byte) error) error {
	filter := "PartitionKey eq '" + pk + "'"
	pager := table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, e := range resp.Entities {
			if err := fn(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}
