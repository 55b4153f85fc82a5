package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/run365/dashboard-go/internal/logging"
	"github.com/run365/dashboard-go/internal/tracking"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Message types on the dashboard stream
const (
	MessageSnapshot    = "snapshot"
	MessageOutcome     = "outcome"
	MessageError       = "error"
	MessagePing        = "ping"
	MessagePong        = "pong"
	MessageSelect      = "select"
	MessageVisible     = "visible"
	MessageRefresh     = "refresh"
	MessageAutoRefresh = "autoRefresh"
	MessageReload      = "reload"
)

// Message is one frame on the stream, in either direction
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`

	// client requests
	GroupID  int64   `json:"groupId,omitempty"`
	RunnerID int64   `json:"runnerId,omitempty"`
	Runners  []int64 `json:"runners,omitempty"`
	Enabled  bool    `json:"enabled,omitempty"`

	Message string `json:"message,omitempty"`
}

// Stream serves one websocket connection on a view. Snapshots published
// for the view are written out; client messages drive the view. It returns
// when the connection closes.
func Stream(ctx context.Context, conn *websocket.Conn, hub *Hub, m *Manager, sid string, view *View) {
	client := hub.Register(ViewKey(sid, view.EventID()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		writePump(conn, client)
	}()

	m.Publish(sid, view)
	readPump(ctx, conn, hub, client, m, sid, view)

	hub.Unregister(client)
	<-done
}

func readPump(ctx context.Context, conn *websocket.Conn, hub *Hub, client *Client, m *Manager, sid string, view *View) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Ctx(ctx).Debug().Err(err).Msg("[Stream] unexpected close")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			reply(hub, client, Message{Type: MessageError, Message: "invalid message"})
			continue
		}
		if resp, ok := handleMessage(ctx, view, msg); ok {
			reply(hub, client, resp)
		}
		if msg.Type == MessageSelect || msg.Type == MessageVisible {
			m.Publish(sid, view)
		}
	}
}

// handleMessage applies one client request. The bool is false when there
// is nothing to answer besides the next snapshot.
func handleMessage(ctx context.Context, view *View, msg Message) (Message, bool) {
	switch msg.Type {
	case MessagePing:
		return Message{Type: MessagePong}, true

	case MessageSelect:
		if err := view.SelectTab(msg.GroupID); err != nil {
			return Message{Type: MessageError, Message: err.Error()}, true
		}
		return Message{}, false

	case MessageVisible:
		var visible tracking.Visibility
		if msg.Runners != nil {
			visible = make(tracking.Visibility, len(msg.Runners))
			for _, id := range msg.Runners {
				visible[id] = true
			}
		}
		view.SetVisible(visible)
		return Message{}, false

	case MessageRefresh:
		outcome, err := view.Refresh(ctx, msg.RunnerID)
		if err != nil {
			return Message{Type: MessageError, Message: refreshErrorText(err)}, true
		}
		return Message{Type: MessageOutcome, Data: outcome}, true

	case MessageAutoRefresh:
		if err := view.ToggleAutoRefresh(ctx, msg.RunnerID, msg.Enabled); err != nil {
			return Message{Type: MessageError, Message: err.Error()}, true
		}
		return Message{}, false

	case MessageReload:
		if err := view.Reload(ctx); err != nil {
			return Message{Type: MessageError, Message: err.Error()}, true
		}
		return Message{}, false
	}
	return Message{Type: MessageError, Message: "unknown message type"}, true
}

func refreshErrorText(err error) string {
	switch {
	case errors.Is(err, tracking.ErrRefreshInFlight):
		return "刷新中"
	case errors.Is(err, tracking.ErrUnknownRunner):
		return "选手不存在"
	}
	return err.Error()
}

func reply(hub *Hub, client *Client, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	hub.Send(client, payload)
}

func writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
