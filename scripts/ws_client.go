// Package main runs a demo WebSocket client for optimization run events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Connect WS first so the run events are not missed
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/events/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	// subscribe to all runs
	pl, _ := json.Marshal(map[string]any{"runId": "*"})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Kick off an optimization with inline fleet data
	body := []byte(`{
		"vessels": [
			{"vessel_id": "V1", "speed": 20, "cost_per_day": 5000},
			{"vessel_id": "V2", "speed": 10, "cost_per_day": 3000}
		],
		"cargos": [
			{"cargo_id": "C1", "origin": "Ras Laffan", "destination": "Yokohama", "window_end": "2026-12-31 00:00", "volume": 50000},
			{"cargo_id": "C2", "origin": "Bintulu", "destination": "Rotterdam", "window_end": "2026-12-31 00:00", "volume": 30000}
		]
	}`)
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/optimize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var run struct {
		ID       string `json:"id"`
		Schedule []any  `json:"schedule"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		log.Fatal(err)
	}
	log.Printf("Run ID: %s (%d assignments)", run.ID, len(run.Schedule))

	// Wait briefly to receive the run events
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
