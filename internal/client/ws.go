package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/event"
)

// WebSocketDialer returns a DialFunc that connects to the hub's
// stream endpoint.
func WebSocketDialer(url string) DialFunc {
	return func(ctx context.Context) (Stream, error) {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return &wsStream{conn: conn}, nil
	}
}

// wsStream adapts a gorilla connection to the Stream interface.
// gorilla allows one concurrent writer, so writes are serialized; its
// default ping handler answers transport pings automatically.
type wsStream struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *wsStream) Read() (event.Envelope, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return event.Envelope{}, err
		}
		var env event.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			// Malformed frames are skipped, not fatal.
			continue
		}
		return env, nil
	}
}

func (s *wsStream) WriteHeartbeat() error {
	env, err := event.New(event.TypeHeartbeat, nil)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}

// HTTPSnapshot returns a SnapshotFunc that performs the bulk read
// against the record store's state endpoint.
func HTTPSnapshot(url string, httpClient *http.Client) SnapshotFunc {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return func(ctx context.Context) (*Snapshot, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("snapshot fetch: unexpected status %d", resp.StatusCode)
		}
		var snap Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return nil, fmt.Errorf("snapshot decode: %w", err)
		}
		return &snap, nil
	}
}
