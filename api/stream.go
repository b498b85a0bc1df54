package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

const (
	eventSnapshot  = "snapshot"
	eventNotice    = "notice"
	streamBuffer   = 16
	heartbeatEvery = 30 * time.Second
)

type streamEvent struct {
	name string
	data []byte
}

// notice is the payload of a notice event.
type notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// streamBroker fans events of one board session out to its SSE clients.
// Slow clients lose events rather than stall the session.
type streamBroker struct {
	mu   sync.Mutex
	subs map[chan streamEvent]struct{}
}

func newStreamBroker() *streamBroker {
	return &streamBroker{subs: make(map[chan streamEvent]struct{})}
}

func (b *streamBroker) subscribe() chan streamEvent {
	ch := make(chan streamEvent, streamBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *streamBroker) unsubscribe(ch chan streamEvent) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

func (b *streamBroker) publish(name string, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	ev := streamEvent{name: name, data: data}
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	b.mu.Unlock()
}

func (b *streamBroker) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func streamBoard(sessions *Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := streamAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization), c.QueryParam("token"))
		userID, err := auth.UserIDFromAuthHeader(header)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		projectID, err := intParam(c, "projectID")
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid project id")
		}
		ctx := c.Request().Context()
		sess, err := sessions.Get(ctx, userID, projectID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to load board")
		}

		res := c.Response()
		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.Header().Set(echo.HeaderCacheControl, "no-cache")
		res.Header().Set(echo.HeaderConnection, "keep-alive")
		res.Header().Set("X-Accel-Buffering", "no")
		flusher, ok := res.Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		res.WriteHeader(http.StatusOK)

		ch := sess.broker.subscribe()
		defer sess.broker.unsubscribe(ch)

		snap, err := sonic.Marshal(sess.Engine.Snapshot())
		if err != nil {
			return err
		}
		if err := writeEvent(res, streamEvent{name: eventSnapshot, data: snap}); err != nil {
			return nil
		}
		flusher.Flush()

		ticker := time.NewTicker(heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-ch:
				sess.touch()
				if err := writeEvent(res, ev); err != nil {
					return nil
				}
				flusher.Flush()
			case <-ticker.C:
				sess.touch()
				if _, err := res.Write([]byte(":keepalive\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, ev streamEvent) error {
	if _, err := w.Write([]byte("event: " + ev.name + "\ndata: ")); err != nil {
		return err
	}
	if _, err := w.Write(ev.data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n\n"))
	return err
}
