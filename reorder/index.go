// Package reorder keeps a board's task order consistent with priority
// weights while tasks are dragged around, and commits column moves to the
// task API.
package reorder

import "github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"

// InsertionIndex returns where a dragged task is re-inserted into the working
// slice, i.e. the board with the dragged task already removed. weights holds
// the ranks of that working slice, normalised so that a larger rank sorts
// first. activeIndex and overIndex are positions before removal.
//
// Equal ranks impose no constraint. Dragging a lower ranked task up past a
// higher ranked one scans forward from overIndex for the first rank not above
// the dragged one. Dragging a higher ranked task down past a lower ranked one
// scans backward for the first rank not below it. Every other move lands on
// overIndex.
func InsertionIndex(weights []int, activeIndex, overIndex, activeWeight, overWeight int) int {
	n := len(weights)
	switch {
	case activeWeight == overWeight:
		return clamp(overIndex, n)
	case activeWeight < overWeight && overIndex < activeIndex:
		for i := max(overIndex, 0); i < n; i++ {
			if weights[i] <= activeWeight {
				return i
			}
		}
		return n
	case activeWeight > overWeight && overIndex > activeIndex:
		for i := min(overIndex, n-1); i >= 0; i-- {
			if weights[i] >= activeWeight {
				return i
			}
		}
		return 0
	default:
		return clamp(overIndex, n)
	}
}

// Reorder moves the task at activeIndex towards overIndex, honouring the
// priority constraint of InsertionIndex. It returns a new slice and the index
// the task landed on; tasks is left untouched. Out of range indexes return a
// copy of tasks and -1.
func Reorder(tasks []domain.Task, activeIndex, overIndex int, order domain.WeightOrder) ([]domain.Task, int) {
	if activeIndex < 0 || activeIndex >= len(tasks) || overIndex < 0 || overIndex >= len(tasks) {
		return append([]domain.Task(nil), tasks...), -1
	}
	active := tasks[activeIndex]
	over := tasks[overIndex]

	working := make([]domain.Task, 0, len(tasks))
	working = append(working, tasks[:activeIndex]...)
	working = append(working, tasks[activeIndex+1:]...)

	weights := make([]int, len(working))
	for i, t := range working {
		weights[i] = order.Rank(t.PriorityWeight)
	}
	idx := InsertionIndex(weights, activeIndex, overIndex, order.Rank(active.PriorityWeight), order.Rank(over.PriorityWeight))

	out := make([]domain.Task, 0, len(tasks))
	out = append(out, working[:idx]...)
	out = append(out, active)
	out = append(out, working[idx:]...)
	return out, idx
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
