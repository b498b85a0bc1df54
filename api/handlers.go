package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/domain"
	"github.com/DanielKasi/TASK-MGMT-INTEGRATION-sub000/taskapi"
)

const (
	routeBoardData = "/api/projects/:projectID/board-data"
	routeTask      = "/api/tasks/:taskID"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc *TaskService, sessions *Sessions, auth Authenticator, logger *log.Logger) {
	e.GET(routeBoardData, getBoardData(svc, auth, logger))
	e.PATCH(routeTask, patchTask(svc, auth, logger))

	e.GET("/api/projects/:projectID/board", getBoard(sessions, auth))
	e.POST("/api/projects/:projectID/board/drag-start", dragStart(sessions, auth))
	e.POST("/api/projects/:projectID/board/drag-over", dragOver(sessions, auth))
	e.POST("/api/projects/:projectID/board/drag-end", dragEnd(sessions, auth))
	e.GET("/api/projects/:projectID/board/stream", streamBoard(sessions, auth))

	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getBoardData(svc *TaskService, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newRequestMetrics(c.Request().Context(), logger, routeBoardData, "board.data.request")
		c.SetRequest(c.Request().WithContext(ctx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		_, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			return c.String(http.StatusUnauthorized, authErr.Error())
		}
		projectID, perr := intParam(c, "projectID")
		if perr != nil {
			metrics.SetErrorStage("invalid_project_id")
			return c.String(http.StatusBadRequest, "invalid project id")
		}

		fetchStart := time.Now()
		board, fetchErr := svc.Board(ctx, projectID)
		metrics.ObserveStore(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			return c.String(http.StatusInternalServerError, fetchErr.Error())
		}
		metrics.SetTasksReturned(len(board.Tasks))
		return c.JSON(http.StatusOK, board)
	}
}

func patchTask(svc *TaskService, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newRequestMetrics(c.Request().Context(), logger, routeTask, "task.patch.request")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			return c.String(http.StatusUnauthorized, authErr.Error())
		}
		taskID, perr := intParam(c, "taskID")
		if perr != nil {
			metrics.SetErrorStage("invalid_task_id")
			return c.String(http.StatusBadRequest, "invalid task id")
		}
		metrics.SetTaskID(taskID)

		var patch domain.TaskPatch
		if derr := decodeBody(c, &patch); derr != nil || patch.ProjectID == 0 || patch.StatusID == 0 {
			metrics.SetErrorStage("invalid_body")
			return c.String(http.StatusBadRequest, "invalid body")
		}

		ctx = domain.WithOrigin(ctx, c.Request().Header.Get(taskapi.HeaderSession))
		storeStart := time.Now()
		change, uerr := svc.Update(ctx, userID, taskID, patch, c.Request().Header.Get(HeaderIdempotencyKey))
		metrics.ObserveStore(time.Since(storeStart))
		switch {
		case uerr == nil:
			return c.JSON(http.StatusOK, change.After)
		case errors.Is(uerr, ErrDuplicate):
			return c.JSON(http.StatusOK, duplicateResponse{Duplicate: true})
		case errors.Is(uerr, domain.ErrTaskNotFound):
			metrics.SetErrorStage("not_found")
			return c.String(http.StatusNotFound, uerr.Error())
		case errors.Is(uerr, domain.ErrConcurrencyConflict):
			metrics.SetErrorStage("conflict")
			return c.String(http.StatusConflict, uerr.Error())
		default:
			metrics.SetErrorStage("storage")
			c.Logger().Error(uerr)
			return c.String(http.StatusInternalServerError, "failed to update task")
		}
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, patchTaskMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func intParam(c echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}
