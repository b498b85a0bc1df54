package reorder

import (
	"testing"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
)

func board(tasks ...domain.Task) []domain.Task { return tasks }

func task(id, status, weight int) domain.Task {
	return domain.Task{ID: id, StatusID: status, PriorityWeight: weight}
}

func ids(tasks []domain.Task) []int {
	out := make([]int, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func equalIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInsertionIndex(t *testing.T) {
	tests := []struct {
		name    string
		weights []int
		active  int
		over    int
		activeW int
		overW   int
		want    int
	}{
		{name: "equal weights go to target", weights: []int{5, 5}, active: 0, over: 2, activeW: 5, overW: 5, want: 2},
		{name: "higher moving up is free", weights: []int{1, 1}, active: 2, over: 0, activeW: 5, overW: 1, want: 0},
		{name: "lower moving down is free", weights: []int{5, 5}, active: 0, over: 2, activeW: 1, overW: 5, want: 2},
		{name: "lower moving up stops at first not higher", weights: []int{5, 1}, active: 2, over: 0, activeW: 1, overW: 5, want: 1},
		{name: "lower moving up falls to end", weights: []int{1, 5}, active: 2, over: 1, activeW: 1, overW: 5, want: 2},
		{name: "lower moving up skips higher run", weights: []int{9, 9, 7, 3}, active: 4, over: 0, activeW: 3, overW: 9, want: 3},
		{name: "higher moving down stops at first not lower", weights: []int{5, 1}, active: 0, over: 2, activeW: 5, overW: 1, want: 0},
		{name: "higher moving down falls to start", weights: []int{1, 1}, active: 0, over: 2, activeW: 5, overW: 1, want: 0},
		{name: "higher moving down lands on equal", weights: []int{9, 5, 1, 1}, active: 2, over: 4, activeW: 5, overW: 1, want: 1},
		{name: "empty working slice", weights: nil, active: 0, over: 1, activeW: 5, overW: 1, want: 0},
		{name: "target clamped", weights: []int{5}, active: 0, over: 3, activeW: 5, overW: 5, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InsertionIndex(tt.weights, tt.active, tt.over, tt.activeW, tt.overW)
			if got != tt.want {
				t.Fatalf("InsertionIndex(%v, %d, %d, %d, %d) = %d, want %d", tt.weights, tt.active, tt.over, tt.activeW, tt.overW, got, tt.want)
			}
		})
	}
}

func TestReorderEqualPriorityInsertsAtTarget(t *testing.T) {
	tasks := board(task(1, 1, 5), task(2, 1, 5), task(3, 1, 5))

	out, idx := Reorder(tasks, 0, 2, domain.WeightDescending)
	if idx != 2 {
		t.Fatalf("expected index 2, got %d", idx)
	}
	if got := ids(out); !equalIDs(got, []int{2, 3, 1}) {
		t.Fatalf("unexpected order %v", got)
	}
	if got := ids(tasks); !equalIDs(got, []int{1, 2, 3}) {
		t.Fatalf("input mutated: %v", got)
	}
}

func TestReorderLowerPriorityUpPastHigher(t *testing.T) {
	// A(1) B(5) C(1): C dragged over B scans forward from B and finds nothing
	// with weight <= 1, so C stays at the end.
	tasks := board(task(1, 1, 1), task(2, 1, 5), task(3, 1, 1))

	out, idx := Reorder(tasks, 2, 1, domain.WeightDescending)
	if idx != len(tasks)-1 {
		t.Fatalf("expected index %d, got %d", len(tasks)-1, idx)
	}
	if got := ids(out); !equalIDs(got, []int{1, 2, 3}) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestReorderLowerPriorityUpStopsBelowHigherRun(t *testing.T) {
	tasks := board(task(1, 1, 5), task(2, 1, 1), task(3, 1, 1))

	out, _ := Reorder(tasks, 2, 0, domain.WeightDescending)
	if got := ids(out); !equalIDs(got, []int{1, 3, 2}) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestReorderHigherPriorityDown(t *testing.T) {
	tasks := board(task(1, 1, 5), task(2, 1, 1), task(3, 1, 1))

	out, idx := Reorder(tasks, 0, 2, domain.WeightDescending)
	if idx != 0 {
		t.Fatalf("expected index 0, got %d", idx)
	}
	if got := ids(out); !equalIDs(got, []int{1, 2, 3}) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestReorderAscendingFlipsConstraint(t *testing.T) {
	// Ascending boards show weight 1 first, so dragging the weight 5 task up
	// past a weight 1 task is the constrained direction.
	tasks := board(task(1, 1, 1), task(2, 1, 5), task(3, 1, 5))

	out, _ := Reorder(tasks, 2, 0, domain.WeightAscending)
	if got := ids(out); !equalIDs(got, []int{1, 3, 2}) {
		t.Fatalf("unexpected ascending order %v", got)
	}

	out, _ = Reorder(tasks, 2, 0, domain.WeightDescending)
	if got := ids(out); !equalIDs(got, []int{3, 1, 2}) {
		t.Fatalf("unexpected descending order %v", got)
	}
}

func TestReorderOutOfRange(t *testing.T) {
	tasks := board(task(1, 1, 1))
	out, idx := Reorder(tasks, 0, 4, domain.WeightDescending)
	if idx != -1 || !equalIDs(ids(out), []int{1}) {
		t.Fatalf("expected untouched copy, got %v at %d", ids(out), idx)
	}
}
