package hub

import (
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"basedfrenzy.com/internal/protocol"
)

func testHub() *Hub {
	return New(
		NewHistory(1000),
		NewRateLimiter(60*time.Second, 30),
		log.New(io.Discard, "", 0),
	)
}

func drain(t *testing.T, out chan []byte) []protocol.BaseMessage {
	t.Helper()
	var got []protocol.BaseMessage
	for {
		select {
		case b := <-out:
			base, err := protocol.DecodeBase(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			got = append(got, base)
		default:
			return got
		}
	}
}

func TestHub_DuplicateAuthRejectedWithoutEviction(t *testing.T) {
	h := testHub()
	out1 := make(chan []byte, 16)
	s1, err := h.Register(testAddr, "Alice", out1)
	if err != nil {
		t.Fatalf("first register: %v", err)
	}

	out2 := make(chan []byte, 16)
	if _, err := h.Register(testAddr, "Alice2", out2); err != ErrAlreadyConnected {
		t.Fatalf("second register: got %v, want ErrAlreadyConnected", err)
	}

	// The original session still works.
	if !h.Online(testAddr) {
		t.Fatalf("original session evicted")
	}
	if _, err := h.Post(s1, "still here", nil); err != nil {
		t.Fatalf("original session cannot post: %v", err)
	}
}

func TestHub_DropRemovesWithoutLeaveBroadcast(t *testing.T) {
	h := testHub()

	outA := make(chan []byte, 16)
	sa, _ := h.Register("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "Alice", outA)
	h.Announce(sa)
	drain(t, outA)

	// A session that registers but is never announced.
	outB := make(chan []byte, 16)
	sb, _ := h.Register("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "Bob", outB)
	if !h.Drop(sb) {
		t.Fatalf("drop failed")
	}
	if h.Online(sb.Address) {
		t.Fatalf("session still registered after drop")
	}

	// Nobody in the room hears a leave for someone who never joined.
	for _, m := range drain(t, outA) {
		if m.Type == protocol.TypeUserLeft {
			t.Fatalf("userLeft broadcast for never-announced session")
		}
	}

	// The address is free again.
	if _, err := h.Register(sb.Address, "Bob", make(chan []byte, 16)); err != nil {
		t.Fatalf("re-register after drop: %v", err)
	}

	// Drop is a no-op for a session that is no longer current.
	if h.Drop(sb) {
		t.Fatalf("stale drop removed a newer session")
	}
}

func TestHub_AnnounceDeliversHistoryAndRoster(t *testing.T) {
	h := testHub()

	outA := make(chan []byte, 64)
	sa, _ := h.Register("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "Alice", outA)
	h.Announce(sa)
	if _, err := h.Post(sa, "hello", nil); err != nil {
		t.Fatalf("post: %v", err)
	}
	drain(t, outA)

	outB := make(chan []byte, 64)
	sb, _ := h.Register("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "Bob", outB)
	h.Announce(sb)

	// Joiner gets chatHistory then onlineUsers; existing session gets the
	// join broadcast only.
	gotB := drain(t, outB)
	if len(gotB) != 2 || gotB[0].Type != protocol.TypeChatHistory || gotB[1].Type != protocol.TypeOnlineUsers {
		t.Fatalf("joiner messages: %+v", gotB)
	}
	gotA := drain(t, outA)
	if len(gotA) != 1 || gotA[0].Type != protocol.TypeUserJoined {
		t.Fatalf("existing session messages: %+v", gotA)
	}

	roster := h.Roster()
	if len(roster) != 2 || roster[0].Username != "Alice" || roster[1].Username != "Bob" {
		t.Fatalf("roster: %+v", roster)
	}
}

func TestHub_PostBroadcastsToSenderToo(t *testing.T) {
	h := testHub()
	outA := make(chan []byte, 16)
	outB := make(chan []byte, 16)
	sa, _ := h.Register("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "Alice", outA)
	h.Register("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "Bob", outB)

	msg, err := h.Post(sa, "  gm  ", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if msg.Message != "gm" {
		t.Fatalf("body not trimmed: %q", msg.Message)
	}

	for name, out := range map[string]chan []byte{"sender": outA, "other": outB} {
		select {
		case b := <-out:
			var got protocol.ChatMessage
			if err := json.Unmarshal(b, &got); err != nil {
				t.Fatalf("%s unmarshal: %v", name, err)
			}
			if got.ID != msg.ID || got.Type != protocol.TypeMessage {
				t.Fatalf("%s got %+v", name, got)
			}
		default:
			t.Fatalf("%s received nothing", name)
		}
	}
}

func TestHub_PostFailuresAreSilent(t *testing.T) {
	h := testHub()
	out := make(chan []byte, 16)
	s, _ := h.Register(testAddr, "Alice", out)

	if _, err := h.Post(s, "   ", nil); err != ErrEmptyMessage {
		t.Fatalf("blank body: got %v", err)
	}

	stranger := &Session{Address: "0xcccccccccccccccccccccccccccccccccccccccc", Username: "Eve", out: make(chan []byte, 1)}
	if _, err := h.Post(stranger, "hi", nil); err != ErrNotRegistered {
		t.Fatalf("unregistered post: got %v", err)
	}

	if got := drain(t, out); len(got) != 0 {
		t.Fatalf("failed posts broadcast %d messages", len(got))
	}
}

func TestHub_PostRateLimited(t *testing.T) {
	h := New(NewHistory(100), NewRateLimiter(time.Minute, 2), log.New(io.Discard, "", 0))
	out := make(chan []byte, 16)
	s, _ := h.Register(testAddr, "Alice", out)

	for i := 0; i < 2; i++ {
		if _, err := h.Post(s, "ok", nil); err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
	}
	if _, err := h.Post(s, "too much", nil); err != ErrRateLimited {
		t.Fatalf("over budget: got %v", err)
	}
	if h.history.Len() != 2 {
		t.Fatalf("rate-limited message stored")
	}
}

func TestHub_UnregisterBroadcastsLeft(t *testing.T) {
	h := testHub()
	outA := make(chan []byte, 16)
	outB := make(chan []byte, 16)
	sa, _ := h.Register("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "Alice", outA)
	h.Register("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "Bob", outB)

	if !h.Unregister(sa) {
		t.Fatalf("unregister reported no-op")
	}
	if h.Online(sa.Address) {
		t.Fatalf("session still online")
	}
	got := drain(t, outB)
	if len(got) != 1 || got[0].Type != protocol.TypeUserLeft {
		t.Fatalf("left broadcast: %+v", got)
	}

	// Double-unregister is a no-op and must not broadcast again.
	if h.Unregister(sa) {
		t.Fatalf("second unregister removed something")
	}
	if got := drain(t, outB); len(got) != 0 {
		t.Fatalf("duplicate left broadcast")
	}
}
