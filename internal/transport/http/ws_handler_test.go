package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

type outboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// dialWS connects to the test server's realtime endpoint and consumes the
// connection_established welcome.
func dialWS(t *testing.T, ctx context.Context, ts string, userID string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts, "http", "ws", 1) + "/ws"
	if userID != "" {
		wsURL += "?userId=" + userID
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", userID, err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	var welcome outboundFrame
	if err := wsjson.Read(ctx, conn, &welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if welcome.Type != "connection_established" {
		t.Fatalf("expected connection_established, got %s", welcome.Type)
	}
	return conn
}

// readUntil reads frames until one of the wanted type arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, eventType string) outboundFrame {
	t.Helper()

	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read while waiting for %s: %v", eventType, err)
		}
		if frame.Type == eventType {
			return frame
		}
	}
}

// readPresence reads frames until a presence event of the given type names
// the wanted user.
func readPresence(t *testing.T, ctx context.Context, conn *websocket.Conn, eventType, userID string) {
	t.Helper()

	for {
		frame := readUntil(t, ctx, conn, eventType)
		var presence struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(frame.Data, &presence); err != nil {
			t.Fatalf("unmarshal presence: %v", err)
		}
		if presence.UserID == userID {
			return
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketWelcomeAndPresence(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, alice := env.registerTestUser(t, "alice@example.com", "Alice")
	_, bob := env.registerTestUser(t, "bob@example.com", "Bob")

	connA := dialWS(t, ctx, env.ts.URL, alice.ID)

	if !env.registry.IsOnline(alice.ID) {
		t.Fatal("alice should be online after connecting")
	}

	connB := dialWS(t, ctx, env.ts.URL, bob.ID)

	// connA also hears its own user_online announcement; wait for bob's.
	readPresence(t, ctx, connA, "user_online", bob.ID)

	if err := connB.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("close bob: %v", err)
	}

	readPresence(t, ctx, connA, "user_offline", bob.ID)
}

func TestWebSocketAnonymousConnection(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dialWS(t, ctx, env.ts.URL, "")

	if got := env.registry.Count(); got != 1 {
		t.Fatalf("expected 1 connection, got %d", got)
	}
}

func TestSendMessageDeliveredOverWebSocket(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tokenA, alice := env.registerTestUser(t, "alice@example.com", "Alice")
	_, bob := env.registerTestUser(t, "bob@example.com", "Bob")
	_, carol := env.registerTestUser(t, "carol@example.com", "Carol")

	connB := dialWS(t, ctx, env.ts.URL, bob.ID)
	connC := dialWS(t, ctx, env.ts.URL, carol.ID)

	// Open the conversation between alice and bob.
	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/api/chat/with/"+bob.ID, nil)
	req.Header.Set("Authorization", "Bearer "+tokenA)
	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("open conversation: %v", err)
	}
	var opened struct {
		ChatID   int64             `json:"chat_id"`
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&opened); err != nil {
		t.Fatalf("decode open response: %v", err)
	}
	resp.Body.Close()
	if len(opened.Messages) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(opened.Messages))
	}

	// Send a message from alice.
	body := bytes.NewBufferString(`{"content":"hello"}`)
	req, _ = http.NewRequest(http.MethodPost, env.ts.URL+"/api/chat/"+strconv.FormatInt(opened.ChatID, 10)+"/messages", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tokenA)
	resp, err = env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	// Bob's socket receives the new_message event.
	frame := readUntil(t, ctx, connB, "new_message")
	var delivered struct {
		ChatID  int64 `json:"chatId"`
		Message struct {
			SenderID string `json:"senderId"`
			Content  string `json:"content"`
			Read     bool   `json:"read"`
		} `json:"message"`
		SenderName string `json:"senderName"`
	}
	if err := json.Unmarshal(frame.Data, &delivered); err != nil {
		t.Fatalf("unmarshal new_message: %v", err)
	}
	if delivered.ChatID != opened.ChatID {
		t.Fatalf("expected chat %d, got %d", opened.ChatID, delivered.ChatID)
	}
	if delivered.Message.Content != "hello" || delivered.Message.SenderID != alice.ID {
		t.Fatalf("unexpected message payload: %+v", delivered.Message)
	}
	if delivered.Message.Read {
		t.Fatal("broadcast message should start unread")
	}
	if delivered.SenderName != "Alice" {
		t.Fatalf("expected sender name Alice, got %s", delivered.SenderName)
	}

	// Carol is not a participant and must not receive it. Her socket only
	// carries presence traffic, which drains on a short deadline.
	shortCtx, shortCancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer shortCancel()
	for {
		var frame outboundFrame
		if err := wsjson.Read(shortCtx, connC, &frame); err != nil {
			break
		}
		if frame.Type == "new_message" {
			t.Fatal("carol received a message she is not a participant of")
		}
	}
}

func TestWebSocketReplacementConnection(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, alice := env.registerTestUser(t, "alice@example.com", "Alice")

	first := dialWS(t, ctx, env.ts.URL, alice.ID)
	dialWS(t, ctx, env.ts.URL, alice.ID)

	// Closing the stale first connection must not take alice offline.
	_ = first.Close(websocket.StatusNormalClosure, "replaced")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if env.registry.Count() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !env.registry.IsOnline(alice.ID) {
		t.Fatal("alice should still be online through the replacement connection")
	}
}

