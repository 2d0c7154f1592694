package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sk3-portal/internal/http/middleware"
	"sk3-portal/internal/service"
	"sk3-portal/internal/views"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type (
	snapshotFunc  func(actor service.Actor, view views.ViewID) (interface{}, error)
	subscribeFunc func(actor service.Actor, view views.ViewID) (<-chan struct{}, func(), error)
)

type streamFrame struct {
	View  views.ViewID `json:"view"`
	Data  interface{}  `json:"data,omitempty"`
	Error string       `json:"error,omitempty"`
}

// stream pushes a fresh snapshot of the view every time its list changes.
// The connection ends when the client goes away or the workspace is closed.
func (h *Handler) stream(snapshot snapshotFunc, subscribe subscribeFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := middleware.MustActor(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, errorResponse("session missing"))
			return
		}
		view, err := views.ParseViewID(c.Param("view"))
		if err != nil {
			c.JSON(http.StatusNotFound, errorResponse(err.Error()))
			return
		}
		changes, cancel, err := subscribe(actor, view)
		if err != nil {
			h.handleError(c, err)
			return
		}
		defer cancel()

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Warn().Err(err).Str("view", string(view)).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		closed := make(chan struct{})
		go readPump(conn, closed)

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		if !h.writeSnapshot(conn, actor, view, snapshot) {
			return
		}
		for {
			select {
			case <-closed:
				return
			case _, ok := <-changes:
				if !ok {
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "workspace closed"))
					return
				}
				if !h.writeSnapshot(conn, actor, view, snapshot) {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

func (h *Handler) writeSnapshot(conn *websocket.Conn, actor service.Actor, view views.ViewID, snapshot snapshotFunc) bool {
	frame := streamFrame{View: view}
	data, err := snapshot(actor, view)
	if err != nil {
		frame.Error = err.Error()
	} else {
		frame.Data = data
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			h.log.Debug().Err(err).Str("view", string(view)).Msg("stream write failed")
		}
		return false
	}
	return true
}

// readPump drains client frames so pongs and close messages are processed.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
