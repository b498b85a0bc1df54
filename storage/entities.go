package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
)

const (
	edmInt64          = "Edm.Int64"
	priorityPartition = "priority"
)

// entity carries the table keys. The service-managed Timestamp is left out so
// it is never written back.
type entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

type taskEntity struct {
	entity
	StatusID       int        `json:"StatusId"`
	PriorityID     int        `json:"PriorityId"`
	Position       int        `json:"Position"`
	Name           string     `json:"Name"`
	Description    string     `json:"Description,omitempty"`
	StartDate      *time.Time `json:"StartDate,omitempty"`
	EndDate        *time.Time `json:"EndDate,omitempty"`
	CompletedAt    *time.Time `json:"CompletedAt,omitempty"`
	ManagerID      *int       `json:"ManagerId,omitempty"`
	AssigneeIDs    string     `json:"AssigneeIds,omitempty"`
	GroupIDs       string     `json:"GroupIds,omitempty"`
	AssigneeFrozen bool       `json:"AssigneeFrozen"`
}

type statusEntity struct {
	entity
	Name  string `json:"Name"`
	Color string `json:"Color,omitempty"`
	Order int    `json:"Order"`
}

type priorityEntity struct {
	entity
	Label  string `json:"Label"`
	Weight int    `json:"Weight"`
	Color  string `json:"Color,omitempty"`
}

type auditEntity struct {
	entity
	TaskID        int    `json:"TaskId"`
	ProjectID     int    `json:"ProjectId"`
	UserID        string `json:"UserId"`
	Action        string `json:"Action"`
	From          int    `json:"FromStatusId"`
	To            int    `json:"ToStatusId"`
	Timestamp     int64  `json:"EventTimestamp,string"`
	TimestampType string `json:"EventTimestamp@odata.type"`
}

// rowKey pads ids so that table scans return them in numeric order.
func rowKey(id int) string {
	return fmt.Sprintf("%010d", id)
}

func partitionKey(projectID int) string {
	return strconv.Itoa(projectID)
}

func parseRowKey(rk string) (int, error) {
	id, err := strconv.Atoi(rk)
	if err != nil {
		return 0, fmt.Errorf("invalid row key %q: %w", rk, err)
	}
	return id, nil
}

func decodeTaskEntity(data []byte) (domain.Task, int, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, 0, err
	}
	id, err := parseRowKey(ent.RowKey)
	if err != nil {
		return domain.Task{}, 0, err
	}
	projectID, err := strconv.Atoi(ent.PartitionKey)
	if err != nil {
		return domain.Task{}, 0, fmt.Errorf("invalid partition key %q: %w", ent.PartitionKey, err)
	}
	t := domain.Task{
		ID:             id,
		ProjectID:      projectID,
		StatusID:       ent.StatusID,
		PriorityID:     ent.PriorityID,
		Name:           ent.Name,
		Description:    ent.Description,
		StartDate:      ent.StartDate,
		EndDate:        ent.EndDate,
		CompletedAt:    ent.CompletedAt,
		ManagerID:      ent.ManagerID,
		AssigneeFrozen: ent.AssigneeFrozen,
	}
	if t.AssigneeIDs, err = decodeIDs(ent.AssigneeIDs); err != nil {
		return domain.Task{}, 0, err
	}
	if t.GroupIDs, err = decodeIDs(ent.GroupIDs); err != nil {
		return domain.Task{}, 0, err
	}
	return t, ent.Position, nil
}

func encodeTaskEntity(t domain.Task, position int) ([]byte, error) {
	assignees, err := encodeIDs(t.AssigneeIDs)
	if err != nil {
		return nil, err
	}
	groups, err := encodeIDs(t.GroupIDs)
	if err != nil {
		return nil, err
	}
	ent := taskEntity{
		entity:         entity{PartitionKey: partitionKey(t.ProjectID), RowKey: rowKey(t.ID)},
		StatusID:       t.StatusID,
		PriorityID:     t.PriorityID,
		Position:       position,
		Name:           t.Name,
		Description:    t.Description,
		StartDate:      t.StartDate,
		EndDate:        t.EndDate,
		CompletedAt:    t.CompletedAt,
		ManagerID:      t.ManagerID,
		AssigneeIDs:    assignees,
		GroupIDs:       groups,
		AssigneeFrozen: t.AssigneeFrozen,
	}
	return json.Marshal(ent)
}

func decodeStatusEntity(data []byte) (domain.Status, error) {
	var ent statusEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Status{}, err
	}
	id, err := parseRowKey(ent.RowKey)
	if err != nil {
		return domain.Status{}, err
	}
	projectID, _ := strconv.Atoi(ent.PartitionKey)
	return domain.Status{ID: id, ProjectID: projectID, Name: ent.Name, Color: ent.Color, Order: ent.Order}, nil
}

func decodePriorityEntity(data []byte) (domain.Priority, error) {
	var ent priorityEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Priority{}, err
	}
	id, err := parseRowKey(ent.RowKey)
	if err != nil {
		return domain.Priority{}, err
	}
	return domain.Priority{ID: id, Label: ent.Label, Weight: ent.Weight, Color: ent.Color}, nil
}

func encodeAuditEntity(e domain.AuditEntry) ([]byte, error) {
	ent := auditEntity{
		entity:        entity{PartitionKey: rowKey(e.TaskID), RowKey: e.ID},
		TaskID:        e.TaskID,
		ProjectID:     e.ProjectID,
		UserID:        e.UserID,
		Action:        e.Action,
		From:          e.From,
		To:            e.To,
		Timestamp:     e.Timestamp,
		TimestampType: edmInt64,
	}
	return json.Marshal(ent)
}

func decodeIDs(raw string) ([]int, error) {
	if raw == "" {
		return []int{}, nil
	}
	var ids []int
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode id list: %w", err)
	}
	return ids, nil
}

func encodeIDs(ids []int) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type positioned struct {
	task     domain.Task
	position int
}

// sortBoard orders tasks by stored position, then id.
func sortBoard(items []positioned) []domain.Task {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].position != items[j].position {
			return items[i].position < items[j].position
		}
		return items[i].task.ID < items[j].task.ID
	})
	out := make([]domain.Task, len(items))
	for i, it := range items {
		out[i] = it.task
	}
	return out
}
