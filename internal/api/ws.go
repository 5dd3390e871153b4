package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket protocol for run events: client sends connection_init, then
// subscribe messages with an optional runId (missing or "*" means all runs).
// Events arrive as next messages; complete stops a subscription.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsSubscribePayload struct {
	RunID  string   `json:"runId"`
	Events []string `json:"events"`
}

// RunEventsWSHandler handles /v1/runs/events/ws
func (s *Server) RunEventsWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	type sub struct {
		runID string
		ch    chan SSEEvent
	}
	subs := map[string]sub{}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for range ticker.C {
					if err := write(wsMessage{Type: "ping"}); err != nil {
						return
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl wsSubscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			rid := pl.RunID
			if rid == "" {
				rid = "*"
			}
			if _, dup := subs[msg.ID]; dup {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"duplicate subscription id"}`)})
				continue
			}
			ch := s.Broker.Subscribe(rid)
			subs[msg.ID] = sub{runID: rid, ch: ch}
			go func(id string, c chan SSEEvent, filter []string) {
				for evt := range c {
					if len(filter) > 0 && !contains(filter, evt.Type) {
						continue
					}
					data, _ := json.Marshal(map[string]any{"type": evt.Type, "data": evt.Data})
					if err := write(wsMessage{Type: "next", ID: id, Payload: data}); err != nil {
						return
					}
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch, pl.Events)
		case "complete", "unsubscribe":
			if sb, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(sb.runID, sb.ch)
				delete(subs, msg.ID)
			}
		}
	}
	for _, sb := range subs {
		s.Broker.Unsubscribe(sb.runID, sb.ch)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
