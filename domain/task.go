package domain

import "time"

// Task represents a single card on a project board.
type Task struct {
	ID             int        `json:"id"`
	ProjectID      int        `json:"projectId"`
	StatusID       int        `json:"statusId"`
	PriorityID     int        `json:"priorityId"`
	PriorityWeight int        `json:"priorityWeight"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	ManagerID      *int       `json:"managerId,omitempty"`
	AssigneeIDs    []int      `json:"assigneeIds"`
	GroupIDs       []int      `json:"groupIds"`
	AssigneeFrozen bool       `json:"assigneeFrozen,omitempty"`
}

// Clone returns a copy of t that shares no slices or pointers with it.
func (t Task) Clone() Task {
	c := t
	c.StartDate = cloneTime(t.StartDate)
	c.EndDate = cloneTime(t.EndDate)
	c.CompletedAt = cloneTime(t.CompletedAt)
	if t.ManagerID != nil {
		id := *t.ManagerID
		c.ManagerID = &id
	}
	c.AssigneeIDs = cloneInts(t.AssigneeIDs)
	c.GroupIDs = cloneInts(t.GroupIDs)
	return c
}

// TaskPatch is the partial update sent to the task API when a task changes
// column. Ownership fields are nil when they must not be touched.
type TaskPatch struct {
	StatusID    int        `json:"statusId"`
	ProjectID   int        `json:"projectId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	CompletedAt *time.Time `json:"completedAt"`
	PriorityID  int        `json:"priorityId"`
	ManagerID   *int       `json:"managerId,omitempty"`
	AssigneeIDs *[]int     `json:"assigneeIds,omitempty"`
	GroupIDs    *[]int     `json:"groupIds,omitempty"`
}

// HasOwnership reports whether the patch carries manager, assignee and group fields.
func (p TaskPatch) HasOwnership() bool {
	return p.ManagerID != nil || p.AssigneeIDs != nil || p.GroupIDs != nil
}

// MoveTo builds the patch that moves t into statusID. Ownership fields are
// included only when the task is not assignee-frozen.
func (t Task) MoveTo(statusID int) TaskPatch {
	p := TaskPatch{
		StatusID:    statusID,
		ProjectID:   t.ProjectID,
		Name:        t.Name,
		Description: t.Description,
		StartDate:   cloneTime(t.StartDate),
		EndDate:     cloneTime(t.EndDate),
		CompletedAt: cloneTime(t.CompletedAt),
		PriorityID:  t.PriorityID,
	}
	if t.AssigneeFrozen {
		return p
	}
	manager := 0
	if t.ManagerID != nil {
		manager = *t.ManagerID
	}
	assignees := cloneInts(t.AssigneeIDs)
	if assignees == nil {
		assignees = []int{}
	}
	groups := cloneInts(t.GroupIDs)
	if groups == nil {
		groups = []int{}
	}
	p.ManagerID = &manager
	p.AssigneeIDs = &assignees
	p.GroupIDs = &groups
	return p
}

// Apply merges p into t and returns the updated task.
func (t Task) Apply(p TaskPatch) Task {
	out := t.Clone()
	out.StatusID = p.StatusID
	if p.ProjectID != 0 {
		out.ProjectID = p.ProjectID
	}
	out.Name = p.Name
	out.Description = p.Description
	out.StartDate = cloneTime(p.StartDate)
	out.EndDate = cloneTime(p.EndDate)
	out.CompletedAt = cloneTime(p.CompletedAt)
	if p.PriorityID != 0 {
		out.PriorityID = p.PriorityID
	}
	if p.ManagerID != nil {
		if *p.ManagerID == 0 {
			out.ManagerID = nil
		} else {
			id := *p.ManagerID
			out.ManagerID = &id
		}
	}
	if p.AssigneeIDs != nil {
		out.AssigneeIDs = cloneInts(*p.AssigneeIDs)
	}
	if p.GroupIDs != nil {
		out.GroupIDs = cloneInts(*p.GroupIDs)
	}
	return out
}

// TaskChange is the stored state of a task on both sides of an update.
type TaskChange struct {
	Before Task
	After  Task
}

// Moved reports whether the update changed the task's column.
func (c TaskChange) Moved() bool {
	return c.Before.StatusID != c.After.StatusID
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInts(in []int) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	copy(out, in)
	return out
}
