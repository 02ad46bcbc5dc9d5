package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"basedfrenzy.com/internal/hub"
	"basedfrenzy.com/internal/persistence/store"
	"basedfrenzy.com/internal/protocol"
)

const (
	wsAddrA = "0x1111111111111111111111111111111111111111"
	wsAddrB = "0x2222222222222222222222222222222222222222"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "frenzy.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := log.New(io.Discard, "", 0)
	h := hub.New(hub.NewHistory(1000), hub.NewRateLimiter(60*time.Second, 30), logger)
	srv := httptest.NewServer(NewServer(h, st, logger).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func authenticate(t *testing.T, conn *websocket.Conn, address, username string) {
	t.Helper()
	msg := protocol.AuthenticateMsg{Type: protocol.TypeAuthenticate, Address: address, Username: username}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write authenticate: %v", err)
	}
}

// readTyped reads frames until one of the wanted type arrives, failing on
// anything unexpected.
func readTyped(t *testing.T, conn *websocket.Conn, want string) []byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %q: %v", want, err)
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil {
			t.Fatalf("malformed frame: %v", err)
		}
		if base.Type == want {
			return raw
		}
		if base.Type == protocol.TypeError {
			t.Fatalf("error frame while waiting for %q: %s", want, raw)
		}
	}
}

func TestAuthenticate_DeliversHistoryThenRoster(t *testing.T) {
	srv, st := newTestServer(t)

	conn := dial(t, srv)
	authenticate(t, conn, wsAddrA, "Alice")

	// History comes first, then the roster.
	var hist protocol.ChatHistoryMsg
	if err := json.Unmarshal(readTyped(t, conn, protocol.TypeChatHistory), &hist); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(hist.Messages) != 0 {
		t.Fatalf("fresh room has history: %d", len(hist.Messages))
	}

	var roster protocol.OnlineUsersMsg
	if err := json.Unmarshal(readTyped(t, conn, protocol.TypeOnlineUsers), &roster); err != nil {
		t.Fatalf("unmarshal roster: %v", err)
	}
	if len(roster.Users) != 1 || roster.Users[0].Address != wsAddrA || roster.Users[0].Username != "Alice" {
		t.Fatalf("roster: %+v", roster.Users)
	}

	// Authenticate also records the player durably.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := st.GetPlayer(context.Background(), wsAddrA); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("player never persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSendMessage_BroadcastsToEveryoneIncludingSender(t *testing.T) {
	srv, _ := newTestServer(t)

	a := dial(t, srv)
	authenticate(t, a, wsAddrA, "Alice")
	readTyped(t, a, protocol.TypeOnlineUsers)

	b := dial(t, srv)
	authenticate(t, b, wsAddrB, "Bob")
	readTyped(t, b, protocol.TypeOnlineUsers)
	readTyped(t, a, protocol.TypeUserJoined)

	if err := a.WriteJSON(protocol.SendMessageMsg{Type: protocol.TypeSendMessage, Message: "  ahoy  "}); err != nil {
		t.Fatalf("write: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"sender": a, "peer": b} {
		var msg protocol.ChatMessage
		if err := json.Unmarshal(readTyped(t, conn, protocol.TypeMessage), &msg); err != nil {
			t.Fatalf("%s unmarshal: %v", name, err)
		}
		if msg.Message != "ahoy" || msg.Address != wsAddrA || msg.Username != "Alice" || msg.ID == "" {
			t.Fatalf("%s got %+v", name, msg)
		}
	}
}

func TestAuthenticate_DuplicateAddressRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	a := dial(t, srv)
	authenticate(t, a, wsAddrA, "Alice")
	readTyped(t, a, protocol.TypeOnlineUsers)

	dup := dial(t, srv)
	authenticate(t, dup, wsAddrA, "Mallory")

	var errMsg protocol.ErrorMsg
	_ = dup.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := dup.ReadJSON(&errMsg); err != nil {
		t.Fatalf("read rejection: %v", err)
	}
	if errMsg.Type != protocol.TypeError || errMsg.Code != protocol.ErrConflict {
		t.Fatalf("rejection: %+v", errMsg)
	}

	// The original session stays live.
	if err := a.WriteJSON(protocol.SendMessageMsg{Type: protocol.TypeSendMessage, Message: "still here"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readTyped(t, a, protocol.TypeMessage)
}

func TestAuthenticate_RejectsBadIdentity(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name, address, username string
	}{
		{"bad address", "0x123", "Alice"},
		{"short username", wsAddrA, "ab"},
		{"bad characters", wsAddrA, "al ice"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := dial(t, srv)
			authenticate(t, conn, tc.address, tc.username)

			var errMsg protocol.ErrorMsg
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			if err := conn.ReadJSON(&errMsg); err != nil {
				t.Fatalf("read rejection: %v", err)
			}
			if errMsg.Code != protocol.ErrBadRequest {
				t.Fatalf("code %q", errMsg.Code)
			}
		})
	}
}

func TestDisconnect_BroadcastsUserLeft(t *testing.T) {
	srv, _ := newTestServer(t)

	a := dial(t, srv)
	authenticate(t, a, wsAddrA, "Alice")
	readTyped(t, a, protocol.TypeOnlineUsers)

	b := dial(t, srv)
	authenticate(t, b, wsAddrB, "Bob")
	readTyped(t, b, protocol.TypeOnlineUsers)
	readTyped(t, a, protocol.TypeUserJoined)

	_ = b.Close()

	var left protocol.UserLeftMsg
	if err := json.Unmarshal(readTyped(t, a, protocol.TypeUserLeft), &left); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if left.Address != wsAddrB {
		t.Fatalf("left: %+v", left)
	}
}

func TestAuthenticate_StoreFailureDoesNotBroadcastLeave(t *testing.T) {
	srv, st := newTestServer(t)

	a := dial(t, srv)
	authenticate(t, a, wsAddrA, "Alice")
	readTyped(t, a, protocol.TypeOnlineUsers)

	// A closed store fails the player upsert during the handshake.
	_ = st.Close()

	b := dial(t, srv)
	authenticate(t, b, wsAddrB, "Bob")

	var errMsg protocol.ErrorMsg
	_ = b.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := b.ReadJSON(&errMsg); err != nil {
		t.Fatalf("read rejection: %v", err)
	}
	if errMsg.Code != protocol.ErrInternal {
		t.Fatalf("code %q", errMsg.Code)
	}

	// The room never saw the failed session join, so it must not see it
	// leave either. Post on the chat path (no store involved); the very
	// next frame must be the broadcast message, not a userLeft.
	if err := a.WriteJSON(protocol.SendMessageMsg{Type: protocol.TypeSendMessage, Message: "anyone there"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := a.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if base.Type != protocol.TypeMessage {
		t.Fatalf("frame %q, want %q", base.Type, protocol.TypeMessage)
	}
}

func TestRateLimit_UnicastsErrorWithoutBroadcast(t *testing.T) {
	srv, _ := newTestServer(t)

	a := dial(t, srv)
	authenticate(t, a, wsAddrA, "Alice")
	readTyped(t, a, protocol.TypeOnlineUsers)

	for i := 0; i < 30; i++ {
		if err := a.WriteJSON(protocol.SendMessageMsg{Type: protocol.TypeSendMessage, Message: "spam"}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		readTyped(t, a, protocol.TypeMessage)
	}

	if err := a.WriteJSON(protocol.SendMessageMsg{Type: protocol.TypeSendMessage, Message: "one too many"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var errMsg protocol.ErrorMsg
	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := a.ReadJSON(&errMsg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if errMsg.Code != protocol.ErrRateLimit {
		t.Fatalf("code %q", errMsg.Code)
	}
}
