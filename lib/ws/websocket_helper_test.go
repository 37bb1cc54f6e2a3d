package ws

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/ether/easysync/lib/db"
	"github.com/ether/easysync/lib/pad"
	"github.com/ether/easysync/lib/settings"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Mock WebSocket connection implementing WebSocketConn interface
type mockWebSocketConn struct {
	closed bool
	mu     sync.Mutex
}

func (m *mockWebSocketConn) SetReadLimit(size int64) {}

func (m *mockWebSocketConn) ReadMessage() (messageType int, p []byte, err error) {
	time.Sleep(1 * time.Second)
	return websocket.TextMessage, []byte("{}"), nil
}

func (m *mockWebSocketConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return websocket.ErrCloseSent
	}
	return nil
}

func (m *mockWebSocketConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *mockWebSocketConn) SetWriteDeadline(t time.Time) error {
	return nil
}

func (m *mockWebSocketConn) SetReadDeadline(t time.Time) error {
	return nil
}

func (m *mockWebSocketConn) SetPongHandler(h func(appData string) error) {}

func (m *mockWebSocketConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return nil
}

func (m *mockWebSocketConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080}
}

func NewMockWebSocketConn() WebSocketConn {
	return &mockWebSocketConn{}
}

// testPadText is the text of a new pad.
const testPadText = "hello\n"

func testSettings() *settings.Settings {
	return &settings.Settings{
		DefaultPadText:     "hello",
		PadTextMaxLength:   100000,
		SocketIo:           settings.SocketIoSettings{MaxHttpBufferSize: 50000},
		CommitRateLimiting: settings.CommitRateLimiting{Duration: 1, Points: 1000},
	}
}

type testEnv struct {
	hub     *Hub
	manager *pad.Manager
	handler *PadMessageHandler
}

// newTestEnv starts a hub and a handler on an in-memory store. Both stop when
// the test ends.
func newTestEnv(t *testing.T, retrievedSettings *settings.Settings) *testEnv {
	t.Helper()
	logger := zap.NewNop().Sugar()
	manager := pad.NewManager(db.NewMemoryDataStore(), retrievedSettings, logger)
	hub := NewHub()
	handler := NewPadMessageHandler(manager, hub, NewSessionStore(), retrievedSettings, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &testEnv{hub: hub, manager: manager, handler: handler}
}

// connect registers a mock client the way ServeWs does.
func (e *testEnv) connect() *Client {
	client := NewClient(e.hub, NewMockWebSocketConn(), "127.0.0.1", e.handler)
	e.handler.SessionStore.initSession(client.SessionId)
	e.hub.register(client)
	return client
}

func (e *testEnv) send(client *Client, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		panic(err)
	}
	e.handler.HandleMessage(client, payload)
}

func randomToken() string {
	return "t." + gofakeit.LetterN(20)
}

func clientReadyMessage(padId, token string) map[string]any {
	return map[string]any{
		"event": "message",
		"data": map[string]any{
			"component": "pad",
			"type":      "CLIENT_READY",
			"padId":     padId,
			"token":     token,
			"userInfo":  map[string]any{},
		},
	}
}

func userChangesMessage(baseRev int, cs string, pool map[string]any) map[string]any {
	if pool == nil {
		pool = map[string]any{"numToAttrib": map[string]any{}, "nextNum": 0}
	}
	return map[string]any{
		"event": "message",
		"data": map[string]any{
			"component": "pad",
			"type":      "COLLABROOM",
			"data": map[string]any{
				"type":      "USER_CHANGES",
				"baseRev":   baseRev,
				"changeset": cs,
				"apool":     pool,
			},
		},
	}
}

// received is a decoded outgoing message.
type received struct {
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data"`
	Disconnect string          `json:"disconnect"`
}

type receivedData struct {
	Type        string `json:"type"`
	NewRev      int    `json:"newRev"`
	Changeset   string `json:"changeset"`
	Author      string `json:"author"`
	PadId       string `json:"padId"`
	UserId      string `json:"userId"`
	Rev         int    `json:"rev"`
	TimeDelta   int64  `json:"timeDelta"`
	CurrentTime int64  `json:"currentTime"`
	Text        struct {
		Text    string `json:"text"`
		Attribs string `json:"attribs"`
	} `json:"initialAttributedText"`
}

// next waits for the next message queued for client.
func next(t *testing.T, client *Client) (received, receivedData) {
	t.Helper()
	select {
	case payload, ok := <-client.Send:
		if !ok {
			t.Fatalf("send channel of session %s was closed", client.SessionId)
		}
		var message received
		if err := json.Unmarshal(payload, &message); err != nil {
			t.Fatalf("invalid message %s: %v", payload, err)
		}
		var data receivedData
		if len(message.Data) > 0 {
			if err := json.Unmarshal(message.Data, &data); err != nil {
				t.Fatalf("invalid message data %s: %v", message.Data, err)
			}
		}
		return message, data
	case <-time.After(2 * time.Second):
		t.Fatalf("no message for session %s", client.SessionId)
	}
	return received{}, receivedData{}
}

// expectSilence asserts that nothing is queued for client for a short while.
func expectSilence(t *testing.T, client *Client) {
	t.Helper()
	select {
	case payload := <-client.Send:
		t.Fatalf("unexpected message for session %s: %s", client.SessionId, payload)
	case <-time.After(50 * time.Millisecond):
	}
}
