// Chat smoke client: authenticates against a running server and echoes
// every room event, optionally chatting on an interval. Useful for
// eyeballing presence and rate-limit behavior against a live instance.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"basedfrenzy.com/internal/protocol"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/ws", "ws url")
		name    = flag.String("name", "bot", "username")
		address = flag.String("address", "", "wallet address (default: random)")
		say     = flag.String("say", "", "message to send on an interval (empty: listen only)")
		every   = flag.Duration("every", 5*time.Second, "send interval")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	addr := *address
	if addr == "" {
		addr = randomAddress()
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	auth := protocol.AuthenticateMsg{
		Type:     protocol.TypeAuthenticate,
		Address:  addr,
		Username: *name,
	}
	if err := conn.WriteJSON(auth); err != nil {
		logger.Fatalf("send authenticate: %v", err)
	}
	logger.Printf("joined as %s (%s)", *name, addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	if *say != "" {
		go func() {
			t := time.NewTicker(*every)
			defer t.Stop()
			for range t.C {
				msg := protocol.SendMessageMsg{Type: protocol.TypeSendMessage, Message: *say}
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			}
		}()
	}

	go func() {
		<-stop
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeChatHistory:
			var h protocol.ChatHistoryMsg
			if err := json.Unmarshal(msg, &h); err == nil {
				logger.Printf("history: %d messages", len(h.Messages))
			}
		case protocol.TypeOnlineUsers:
			var o protocol.OnlineUsersMsg
			if err := json.Unmarshal(msg, &o); err == nil {
				logger.Printf("online: %d users", len(o.Users))
			}
		case protocol.TypeMessage:
			var m protocol.ChatMessage
			if err := json.Unmarshal(msg, &m); err == nil {
				logger.Printf("<%s> %s", m.Username, m.Message)
			}
		case protocol.TypeUserJoined:
			var j protocol.UserJoinedMsg
			if err := json.Unmarshal(msg, &j); err == nil {
				logger.Printf("+ %s", j.User.Username)
			}
		case protocol.TypeUserLeft:
			var l protocol.UserLeftMsg
			if err := json.Unmarshal(msg, &l); err == nil {
				logger.Printf("- %s", l.Address)
			}
		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				logger.Printf("error [%s]: %s", e.Code, e.Message)
			}
		}
	}
}

func randomAddress() string {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	const hex = "0123456789abcdef"
	b := make([]byte, 40)
	for i := range b {
		b[i] = hex[rng.Intn(len(hex))]
	}
	return "0x" + string(b)
}
