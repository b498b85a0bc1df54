// Package taskapi is a thin client for the task REST API used by board
// sessions running outside the API process.
package taskapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
)

// HeaderSession carries the id of the board session issuing a request.
const HeaderSession = "X-Board-Session"

const maxErrorBody = 4 * 1024

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client wraps http.Client with the task API routes.
type Client struct {
	BaseURL string
	Bearer  string
	HTTP    *http.Client
}

// New creates a new Client.
func New(baseURL, bearer string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Bearer:  bearer,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchAll loads the tasks, statuses and priorities of a project.
func (c *Client) FetchAll(ctx context.Context, projectID int) (domain.Board, error) {
	var board domain.Board
	path := "/api/projects/" + strconv.Itoa(projectID) + "/board-data"
	if err := c.do(ctx, http.MethodGet, path, nil, &board); err != nil {
		return domain.Board{}, err
	}
	if board.ProjectID == 0 {
		board.ProjectID = projectID
	}
	return board, nil
}

// Update applies a partial update to a task and returns the stored task.
func (c *Client) Update(ctx context.Context, taskID int, patch domain.TaskPatch) (domain.Task, error) {
	var task domain.Task
	path := "/api/tasks/" + strconv.Itoa(taskID)
	if err := c.do(ctx, http.MethodPatch, path, patch, &task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	if origin := domain.OriginFrom(ctx); origin != "" {
		req.Header.Set(HeaderSession, origin)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	return sonic.ConfigStd.NewDecoder(resp.Body).Decode(out)
}
