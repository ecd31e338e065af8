package grid

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/gridview/internal/grid"
	"github.com/leapstack-labs/gridview/pkg/core"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
}

// Updates streams the window to the page as datastar signal patches: once
// on connect and again after every controller change.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	gs, notify, err := h.current(w, r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		_ = sse.ConsoleError(err)
		return
	}

	updates := notify.Subscribe()
	defer notify.Unsubscribe(updates)

	send := func() {
		if err := sse.MarshalAndPatchSignals(map[string]any{"window": gs.Frame()}); err != nil {
			_ = sse.ConsoleError(err)
		}
	}
	send()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			send()
		}
	}
}

// Stream serves the window over a websocket. The server writes a JSON frame
// on connect and after every controller change; the client may write
// ViewportSignals to move the window.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	gs, notify, err := h.current(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has replied already
		h.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = conn.Close() }()

	updates := notify.Subscribe()
	defer notify.Unsubscribe(updates)

	done := make(chan struct{})
	go h.readViewports(conn, gs, done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(msg func() error) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := msg(); err != nil {
			h.logger.Debug("websocket write failed", slog.String("error", err.Error()))
			return false
		}
		return true
	}
	sendFrame := func() error { return conn.WriteJSON(gs.Frame()) }
	sendPing := func() error { return conn.WriteMessage(websocket.PingMessage, nil) }

	if !write(sendFrame) {
		return
	}
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case _, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "grid closed"),
					time.Now().Add(writeWait))
				return
			}
			if !write(sendFrame) {
				return
			}
		case <-ticker.C:
			if !write(sendPing) {
				return
			}
		}
	}
}

// readViewports applies viewport requests from the client until the
// connection fails, then closes done.
func (h *Handlers) readViewports(conn *websocket.Conn, gs *grid.Session, done chan<- struct{}) {
	defer close(done)
	for {
		var req ViewportSignals
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}
		if err := gs.Scroll(req.Top, req.Bottom, core.VisualIndex(req.Left), core.VisualIndex(req.Right)); err != nil {
			h.logger.Debug("websocket viewport rejected", slog.String("error", err.Error()))
		}
	}
}
