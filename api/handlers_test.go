package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/taskapi"
)

type mockStore struct {
	mu        sync.Mutex
	board     domain.Board
	fetchErr  error
	updateErr error
	updates   []domain.TaskPatch
	fetches   int
}

func (m *mockStore) FetchBoard(ctx context.Context, projectID int) (domain.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.fetchErr != nil {
		return domain.Board{}, m.fetchErr
	}
	b := m.board
	b.Tasks = make([]domain.Task, len(m.board.Tasks))
	for i, t := range m.board.Tasks {
		b.Tasks[i] = t.Clone()
	}
	return b, nil
}

func (m *mockStore) UpdateTask(ctx context.Context, taskID int, patch domain.TaskPatch) (domain.TaskChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, patch)
	if m.updateErr != nil {
		return domain.TaskChange{}, m.updateErr
	}
	for i, t := range m.board.Tasks {
		if t.ID == taskID {
			after := t.Apply(patch)
			m.board.Tasks[i] = after
			return domain.TaskChange{Before: t, After: after}, nil
		}
	}
	return domain.TaskChange{}, domain.ErrTaskNotFound
}

func (m *mockStore) EnqueueTaskEvent(ctx context.Context, ev domain.TaskEvent) error {
	return nil
}

func (m *mockStore) Updates() []domain.TaskPatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TaskPatch(nil), m.updates...)
}

type mockAuth struct{}

func (mockAuth) UserIDFromAuthHeader(h string) (string, error) {
	if h == "" {
		return "", errMissingAuthorization
	}
	return "user", nil
}

// Statuses 100 and 200; tasks 1..3 in 100, task 4 in 200.
func testBoard() domain.Board {
	return domain.Board{
		ProjectID: 7,
		Statuses: []domain.Status{
			{ID: 100, ProjectID: 7, Name: "Todo", Order: 1},
			{ID: 200, ProjectID: 7, Name: "Done", Order: 2},
		},
		Priorities: []domain.Priority{{ID: 1, Label: "Low", Weight: 1}, {ID: 2, Label: "High", Weight: 5}},
		Tasks: []domain.Task{
			{ID: 1, ProjectID: 7, StatusID: 100, PriorityID: 2, Name: "a", AssigneeIDs: []int{}, GroupIDs: []int{}},
			{ID: 2, ProjectID: 7, StatusID: 100, PriorityID: 2, Name: "b", AssigneeIDs: []int{}, GroupIDs: []int{}},
			{ID: 3, ProjectID: 7, StatusID: 100, PriorityID: 1, Name: "c", AssigneeIDs: []int{}, GroupIDs: []int{}},
			{ID: 4, ProjectID: 7, StatusID: 200, PriorityID: 2, Name: "d", AssigneeIDs: []int{}, GroupIDs: []int{}},
		},
	}
}

func newTestService(t *testing.T, store *mockStore, deduper Deduper) (*TaskService, *recordingQueue, *EventSender) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	q := &recordingQueue{}
	events := NewEventSender(q, logger, PoolOptions{Workers: 1, Buffer: 8, HandoffTimeout: 10 * time.Millisecond})
	t.Cleanup(events.Close)
	return NewTaskService(store, deduper, events, logger), q, events
}

func TestGetBoardData(t *testing.T) {
	store := &mockStore{board: testBoard()}
	svc, _, _ := newTestService(t, store, nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/projects/7/board-data", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("projectID")
	c.SetParamValues("7")

	if err := getBoardData(svc, mockAuth{}, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var board domain.Board
	if err := sonic.Unmarshal(rec.Body.Bytes(), &board); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(board.Tasks) != 4 || len(board.Statuses) != 2 {
		t.Fatalf("unexpected board: %+v", board)
	}
}

func TestGetBoardDataErrors(t *testing.T) {
	tests := []struct {
		name     string
		auth     string
		param    string
		fetchErr error
		want     int
	}{
		{name: "unauthorized", auth: "", param: "7", want: http.StatusUnauthorized},
		{name: "bad project id", auth: "Bearer token", param: "x", want: http.StatusBadRequest},
		{name: "storage failure", auth: "Bearer token", param: "7", fetchErr: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{board: testBoard(), fetchErr: tt.fetchErr}
			svc, _, _ := newTestService(t, store, nil)

			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.auth != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.auth)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("projectID")
			c.SetParamValues(tt.param)

			if err := getBoardData(svc, mockAuth{}, log.New())(c); err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("expected status %d got %d", tt.want, rec.Code)
			}
		})
	}
}

func patchRequest(t *testing.T, body string, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/tasks/1", strings.NewReader(body))
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("taskID")
	c.SetParamValues("1")
	return c, rec
}

func TestPatchTaskAppliesAndQueuesEvent(t *testing.T) {
	store := &mockStore{board: testBoard()}
	svc, q, events := newTestService(t, store, nil)

	c, rec := patchRequest(t, `{"statusId":200,"projectId":7,"name":"a","priorityId":2}`, map[string]string{taskapi.HeaderSession: "session-1"})
	if err := patchTask(svc, mockAuth{}, log.New())(c); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var task domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if task.ID != 1 || task.StatusID != 200 {
		t.Fatalf("unexpected task: %+v", task)
	}

	events.Close()
	got := q.Events()
	if len(got) != 1 {
		t.Fatalf("expected 1 queued event, got %d", len(got))
	}
	ev := got[0]
	if ev.Type != domain.TaskMoved || ev.From != 100 || ev.To != 200 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Origin != "session-1" || ev.UserID != "user" || ev.ProjectID != 7 {
		t.Fatalf("unexpected event identity: %+v", ev)
	}
	if ev.ID == "" || ev.Timestamp == 0 {
		t.Fatalf("expected event id and timestamp: %+v", ev)
	}
}

func TestPatchTaskSameColumnIsUpdateEvent(t *testing.T) {
	store := &mockStore{board: testBoard()}
	svc, q, events := newTestService(t, store, nil)

	c, _ := patchRequest(t, `{"statusId":100,"projectId":7,"name":"renamed"}`, nil)
	if err := patchTask(svc, mockAuth{}, log.New())(c); err != nil {
		t.Fatalf("patch: %v", err)
	}
	events.Close()
	got := q.Events()
	if len(got) != 1 || got[0].Type != domain.TaskUpdated {
		t.Fatalf("expected one task-updated event, got %+v", got)
	}
}

func TestPatchTaskIdempotencyKey(t *testing.T) {
	_, client := newTestRedis(t)
	store := &mockStore{board: testBoard()}
	svc, _, _ := newTestService(t, store, NewRedisDeduper(client, time.Minute))
	body := `{"statusId":200,"projectId":7,"name":"a"}`
	headers := map[string]string{HeaderIdempotencyKey: "k1"}

	c, rec := patchRequest(t, body, headers)
	if err := patchTask(svc, mockAuth{}, log.New())(c); err != nil {
		t.Fatalf("first patch: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	c, rec = patchRequest(t, body, headers)
	if err := patchTask(svc, mockAuth{}, log.New())(c); err != nil {
		t.Fatalf("second patch: %v", err)
	}
	var resp duplicateResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil || !resp.Duplicate {
		t.Fatalf("expected duplicate response, got %s", rec.Body.String())
	}
	if n := len(store.Updates()); n != 1 {
		t.Fatalf("expected storage to be hit once, got %d", n)
	}
}

func TestPatchTaskFailureReleasesKey(t *testing.T) {
	m, client := newTestRedis(t)
	store := &mockStore{board: testBoard(), updateErr: domain.ErrTaskNotFound}
	svc, q, events := newTestService(t, store, NewRedisDeduper(client, time.Minute))

	c, rec := patchRequest(t, `{"statusId":200,"projectId":7}`, map[string]string{HeaderIdempotencyKey: "k2"})
	if err := patchTask(svc, mockAuth{}, log.New())(c); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
	if m.Exists("idem:user:k2") {
		t.Fatalf("expected idempotency key to be released")
	}
	events.Close()
	if n := len(q.Events()); n != 0 {
		t.Fatalf("failed update must not queue events, got %d", n)
	}
}

func TestPatchTaskErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		updateErr error
		want      int
	}{
		{name: "invalid json", body: `{`, want: http.StatusBadRequest},
		{name: "unknown field", body: `{"statusId":1,"projectId":7,"bogus":1}`, want: http.StatusBadRequest},
		{name: "missing project", body: `{"statusId":200}`, want: http.StatusBadRequest},
		{name: "conflict", body: `{"statusId":200,"projectId":7}`, updateErr: domain.ErrConcurrencyConflict, want: http.StatusConflict},
		{name: "storage", body: `{"statusId":200,"projectId":7}`, updateErr: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{board: testBoard(), updateErr: tt.updateErr}
			svc, _, _ := newTestService(t, store, nil)
			c, rec := patchRequest(t, tt.body, nil)
			if err := patchTask(svc, mockAuth{}, log.New())(c); err != nil {
				t.Fatalf("patch: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("expected %d got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
	if err := healthz()(c); err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}
