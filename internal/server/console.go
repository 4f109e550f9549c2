package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/gamewarden/gamewarden/internal/logbuf"
	"github.com/gamewarden/gamewarden/internal/supervisor"
)

const (
	consoleWriteWait = 10 * time.Second
	consolePingEvery = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The daemon binds to loopback by default; remote deployments put a
	// reverse proxy in front, so origin checks happen there.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type consoleLine struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// handleConsole upgrades the connection and streams output lines as JSON
// messages. The recent tail is replayed first so a client joining
// mid-session has context.
func (r *Router) handleConsole(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := r.ctl.Subscribe()
	defer r.ctl.Unsubscribe(ch)

	for _, l := range r.ctl.Tail(supervisor.DefaultSummaryLines) {
		if err := writeConsoleLine(conn, l); err != nil {
			return
		}
	}

	// Reader goroutine: we never expect client messages, but reading is
	// required to notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(consolePingEvery)
	defer ping.Stop()
	for {
		select {
		case l, ok := <-ch:
			if !ok {
				return
			}
			if err := writeConsoleLine(conn, l); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(consoleWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func writeConsoleLine(conn *websocket.Conn, l logbuf.Line) error {
	_ = conn.SetWriteDeadline(time.Now().Add(consoleWriteWait))
	return conn.WriteJSON(consoleLine{Time: l.Time, Text: l.Text})
}
