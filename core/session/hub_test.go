package session

import (
	"encoding/json"
	"testing"
	"time"
)

func TestHubNotifyFansOut(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	a := &Client{Hub: hub, Send: make(chan []byte, 8), User: "a"}
	b := &Client{Hub: hub, Send: make(chan []byte, 8), User: "b"}
	hub.Register(a)
	hub.Register(b)

	waitForClients(t, hub, 2)

	hub.Notify("trackTransition", map[string]string{"uri": "file:///x.mp3"})

	for _, c := range []*Client{a, b} {
		select {
		case raw := <-c.Send:
			var msg WSMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("invalid frame for %s: %v", c.User, err)
			}
			if msg.Type != MsgTypeEvent || msg.Event != "trackTransition" {
				t.Fatalf("client %s got (%s, %s), want event frame", c.User, msg.Type, msg.Event)
			}
		case <-time.After(time.Second):
			t.Fatalf("client %s never received the event", c.User)
		}
	}
}

func TestHubUnregisterClosesSendQueue(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	c := &Client{Hub: hub, Send: make(chan []byte, 8), User: "a"}
	hub.Register(c)
	waitForClients(t, hub, 1)

	hub.Unregister(c)
	waitForClients(t, hub, 0)

	select {
	case _, ok := <-c.Send:
		if ok {
			t.Fatal("expected closed send queue")
		}
	case <-time.After(time.Second):
		t.Fatal("send queue not closed on unregister")
	}
}

func TestHubReapsSlowClientAndKeepsServing(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	slow := &Client{Hub: hub, Send: make(chan []byte, 1), User: "slow"}
	hub.Register(slow)
	waitForClients(t, hub, 1)

	// The first event fills the one-slot queue, the second trips the reap.
	hub.Notify("positionChanged", map[string]int64{"positionMs": 1000})
	hub.Notify("positionChanged", map[string]int64{"positionMs": 2000})
	waitForClients(t, hub, 0)

	fresh := &Client{Hub: hub, Send: make(chan []byte, 8), User: "fresh"}
	hub.Register(fresh)
	waitForClients(t, hub, 1)

	hub.Notify("playStateChanged", map[string]bool{"playing": true})
	select {
	case <-fresh.Send:
	case <-time.After(time.Second):
		t.Fatal("hub stopped delivering events after reaping a slow client")
	}
}

func TestEnqueueAfterDetachIsDropped(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Close()

	c := &Client{Hub: hub, Send: make(chan []byte, 1), User: "a"}
	hub.Register(c)
	waitForClients(t, hub, 1)

	hub.Unregister(c)
	waitForClients(t, hub, 0)

	// The read pump may still answer a command after the hub detached the
	// client; the frame must be dropped, not sent on the closed queue.
	if c.Enqueue([]byte(`{}`)) {
		t.Fatal("enqueue succeeded on a detached client")
	}
	c.sendMessage(&WSMessage{Type: MsgTypePong})
}

func TestHelloAdvertisesCommands(t *testing.T) {
	msg := Hello([]string{"getAudioSessionId", "scheduleSleepTimer"})
	if msg.Type != MsgTypeHello {
		t.Fatalf("type = %s, want hello", msg.Type)
	}

	var payload struct {
		Commands []string `json:"commands"`
	}
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Commands) != 2 {
		t.Fatalf("advertised %d commands, want 2", len(payload.Commands))
	}
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count never reached %d", want)
		}
		time.Sleep(time.Millisecond)
	}
}
