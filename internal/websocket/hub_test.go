package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   nil,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "u1")
	c2 := mockClient(hub, "u2")

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, "u1")
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "u1")
	c2 := mockClient(hub, "u2")
	hub.Register(c1)
	hub.Register(c2)

	msg := NewMessage("invitation", "created", "inv-42", map[string]any{"household_id": "h1"})
	hub.Broadcast(msg)

	// Check both clients received the message
	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "invitation_created" {
				t.Errorf("expected type invitation_created, got %s", got.Type)
			}
			if got.Entity != "invitation" {
				t.Errorf("expected entity invitation, got %s", got.Entity)
			}
			if got.ID != "inv-42" {
				t.Errorf("expected id inv-42, got %s", got.ID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	msg := NewMessage("household_member", "removed", "u1", nil)
	hub.Broadcast(msg)
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, "u1")
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage("event", "created", fmt.Sprintf("e%d", i), nil))
	}

	// This should drop the message, not panic or block
	hub.Broadcast(NewMessage("event", "created", "dropped", nil))

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestSendTo(t *testing.T) {
	hub := NewHub(slog.Default())

	alice1 := mockClient(hub, "u1")
	alice2 := mockClient(hub, "u1")
	bob := mockClient(hub, "u2")
	hub.Register(alice1)
	hub.Register(alice2)
	hub.Register(bob)

	hub.SendTo("u1", NewMessage("membership", "revoked", "h1", nil))

	// Every connection the target user holds gets the message
	for _, c := range []*Client{alice1, alice2} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "membership_revoked" {
				t.Errorf("expected type membership_revoked, got %s", got.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for direct message")
		}
	}

	// Other users receive nothing
	select {
	case data := <-bob.send:
		t.Fatalf("unexpected message for other user: %s", data)
	default:
	}

	hub.Unregister(alice1)
	hub.Unregister(alice2)
	hub.Unregister(bob)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("snapshot", "sealed", "s5", nil)
	if msg.Type != "snapshot_sealed" {
		t.Errorf("expected type snapshot_sealed, got %s", msg.Type)
	}
	if msg.Entity != "snapshot" {
		t.Errorf("expected entity snapshot, got %s", msg.Entity)
	}
	if msg.Action != "sealed" {
		t.Errorf("expected action sealed, got %s", msg.Action)
	}
	if msg.ID != "s5" {
		t.Errorf("expected id s5, got %s", msg.ID)
	}
}
