package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// sessionFor authenticates the request and returns the caller's session on
// the project in the path. On failure the response has been written and the
// returned session is nil.
func sessionFor(c echo.Context, sessions *Sessions, auth Authenticator) (*Session, error) {
	userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return nil, c.String(http.StatusUnauthorized, err.Error())
	}
	projectID, err := intParam(c, "projectID")
	if err != nil {
		return nil, c.String(http.StatusBadRequest, "invalid project id")
	}
	sess, err := sessions.Get(c.Request().Context(), userID, projectID)
	if err != nil {
		c.Logger().Error(err)
		return nil, c.String(http.StatusInternalServerError, "failed to load board")
	}
	return sess, nil
}

func getBoard(sessions *Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := sessionFor(c, sessions, auth)
		if sess == nil {
			return err
		}
		return c.JSON(http.StatusOK, sess.Engine.Snapshot())
	}
}

func dragStart(sessions *Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := sessionFor(c, sessions, auth)
		if sess == nil {
			return err
		}
		var req dragRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		sess.Engine.OnDragStart(req.ActiveID)
		return c.JSON(http.StatusOK, sess.Engine.Snapshot())
	}
}

func dragOver(sessions *Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := sessionFor(c, sessions, auth)
		if sess == nil {
			return err
		}
		var req dragRequest
		if err := decodeBody(c, &req); err != nil || req.OverID == nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		sess.Engine.OnDragOver(req.ActiveID, *req.OverID)
		return c.JSON(http.StatusOK, sess.Engine.Snapshot())
	}
}

// dragEnd answers 202: the move is applied to the board straight away and
// persisted in the background. The outcome arrives on the stream.
func dragEnd(sessions *Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := sessionFor(c, sessions, auth)
		if sess == nil {
			return err
		}
		var req dragRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		sess.Engine.OnDragEnd(c.Request().Context(), req.ActiveID, req.OverID)
		return c.JSON(http.StatusAccepted, sess.Engine.Snapshot())
	}
}
