package domain

import "sort"

// Status is a board column.
type Status struct {
	ID        int    `json:"id"`
	ProjectID int    `json:"projectId"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	Order     int    `json:"order"`
}

// Priority is a lookup entry giving tasks their ordering weight.
type Priority struct {
	ID     int    `json:"id"`
	Label  string `json:"label"`
	Weight int    `json:"weight"`
	Color  string `json:"color,omitempty"`
}

// Board is everything needed to render one project: its tasks in board
// order plus the status and priority lookup tables.
type Board struct {
	ProjectID  int        `json:"projectId"`
	Tasks      []Task     `json:"tasks"`
	Statuses   []Status   `json:"statuses"`
	Priorities []Priority `json:"priorities"`
}

// Column is the slice of a board sharing one status.
type Column struct {
	Status Status `json:"status"`
	Tasks  []Task `json:"tasks"`
}

// SortStatuses orders statuses by their Order field, then by id.
func SortStatuses(statuses []Status) {
	sort.SliceStable(statuses, func(i, j int) bool {
		if statuses[i].Order != statuses[j].Order {
			return statuses[i].Order < statuses[j].Order
		}
		return statuses[i].ID < statuses[j].ID
	})
}

// GroupByStatus splits an ordered task list into columns. Columns follow the
// order of statuses; tasks keep their relative order. Tasks whose status is
// unknown are dropped.
func GroupByStatus(statuses []Status, tasks []Task) []Column {
	cols := make([]Column, len(statuses))
	idx := make(map[int]int, len(statuses))
	for i, s := range statuses {
		cols[i] = Column{Status: s, Tasks: []Task{}}
		idx[s.ID] = i
	}
	for _, t := range tasks {
		i, ok := idx[t.StatusID]
		if !ok {
			continue
		}
		cols[i].Tasks = append(cols[i].Tasks, t)
	}
	return cols
}

// ApplyWeights fills PriorityWeight on every task from the priority table.
func ApplyWeights(tasks []Task, priorities []Priority) {
	weights := make(map[int]int, len(priorities))
	for _, p := range priorities {
		weights[p.ID] = p.Weight
	}
	for i := range tasks {
		if w, ok := weights[tasks[i].PriorityID]; ok {
			tasks[i].PriorityWeight = w
		}
	}
}
