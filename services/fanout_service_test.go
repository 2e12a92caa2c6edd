package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

// fakeRegistry records deliveries instead of holding connections.
type fakeRegistry struct {
	mu     sync.Mutex
	rooms  map[string][][]byte
	direct map[int][][]byte
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		rooms:  make(map[string][][]byte),
		direct: make(map[int][][]byte),
	}
}

func (r *fakeRegistry) Broadcast(room string, message []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[room] = append(r.rooms[room], message)
}

func (r *fakeRegistry) SendToUser(userID int, message []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[userID] = append(r.direct[userID], message)
}

func (r *fakeRegistry) broadcastsTo(room string) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[room]
}

func (r *fakeRegistry) sentTo(userID int) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.direct[userID]
}

func TestPublishRoutesByEventKind(t *testing.T) {
	cases := []struct {
		kind  EventKind
		rooms []string
	}{
		{EventSubmissionCreated, []string{RoomQueue, RoomDashboard}},
		{EventSubmissionUpdated, []string{RoomQueue, RoomDashboard, RoomPublicDisplay}},
		{EventSubmissionDelayed, []string{RoomQueue, RoomDashboard}},
	}

	for _, c := range cases {
		registry := newFakeRegistry()
		fanout := NewFanout(registry, nil)
		fanout.Publish(context.Background(), Event{Kind: c.kind, Payload: map[string]interface{}{"submission_id": 1}})

		for _, room := range c.rooms {
			if got := len(registry.broadcastsTo(room)); got != 1 {
				t.Fatalf("%s: expected 1 message in %s, got %d", c.kind, room, got)
			}
		}
		total := 0
		for _, messages := range registry.rooms {
			total += len(messages)
		}
		if total != len(c.rooms) {
			t.Fatalf("%s: expected %d room deliveries, got %d", c.kind, len(c.rooms), total)
		}
	}
}

func TestPublishTargetedNotificationStaysPrivate(t *testing.T) {
	registry := newFakeRegistry()
	fanout := NewFanout(registry, nil)

	userID := 42
	fanout.Publish(context.Background(), Event{
		Kind:         EventNotification,
		Payload:      map[string]interface{}{"title": "submission approved"},
		TargetUserID: &userID,
	})

	if got := len(registry.sentTo(userID)); got != 1 {
		t.Fatalf("expected 1 private delivery, got %d", got)
	}
	for room, messages := range registry.rooms {
		if len(messages) != 0 {
			t.Fatalf("targeted notification leaked to room %s", room)
		}
	}

	var event Event
	if err := json.Unmarshal(registry.sentTo(userID)[0], &event); err != nil {
		t.Fatalf("delivered message is not valid JSON: %v", err)
	}
	if event.Kind != EventNotification {
		t.Fatalf("unexpected kind %s", event.Kind)
	}
}

func TestPublishUntargetedNotificationReachesDashboard(t *testing.T) {
	registry := newFakeRegistry()
	fanout := NewFanout(registry, nil)

	fanout.Publish(context.Background(), Event{Kind: EventNotification, Payload: "maintenance window"})

	if got := len(registry.broadcastsTo(RoomDashboard)); got != 1 {
		t.Fatalf("expected 1 dashboard delivery, got %d", got)
	}
	if got := len(registry.broadcastsTo(RoomQueue)); got != 0 {
		t.Fatalf("untargeted notification must not reach the queue room, got %d", got)
	}
}

func TestLocalRegistryBroadcastReachesMembersOnly(t *testing.T) {
	registry := NewLocalRegistry(4)

	memberID, memberCh := registry.Connect(nil)
	_, otherCh := registry.Connect(nil)
	if err := registry.Join(memberID, RoomQueue); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	registry.Broadcast(RoomQueue, []byte("hello"))

	select {
	case msg := <-memberCh:
		if string(msg) != "hello" {
			t.Fatalf("unexpected message %q", msg)
		}
	default:
		t.Fatalf("room member received nothing")
	}
	select {
	case msg := <-otherCh:
		t.Fatalf("non-member received %q", msg)
	default:
	}
}

func TestLocalRegistrySendToUserFansOutToAllConnections(t *testing.T) {
	registry := NewLocalRegistry(4)
	userID := 9

	_, first := registry.Connect(&userID)
	_, second := registry.Connect(&userID)

	registry.SendToUser(userID, []byte("ping"))

	for i, ch := range []<-chan []byte{first, second} {
		select {
		case msg := <-ch:
			if string(msg) != "ping" {
				t.Fatalf("connection %d: unexpected message %q", i, msg)
			}
		default:
			t.Fatalf("connection %d received nothing", i)
		}
	}
}

func TestLocalRegistryFullBufferDropsInsteadOfBlocking(t *testing.T) {
	registry := NewLocalRegistry(1)

	connID, ch := registry.Connect(nil)
	if err := registry.Join(connID, RoomQueue); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	registry.Broadcast(RoomQueue, []byte("first"))
	registry.Broadcast(RoomQueue, []byte("second")) // must not block

	if msg := <-ch; string(msg) != "first" {
		t.Fatalf("unexpected buffered message %q", msg)
	}
	select {
	case msg := <-ch:
		t.Fatalf("overflow message %q should have been dropped", msg)
	default:
	}
}

func TestLocalRegistryDisconnect(t *testing.T) {
	registry := NewLocalRegistry(4)
	userID := 3

	connID, ch := registry.Connect(&userID)
	if err := registry.Join(connID, RoomDashboard); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	registry.Disconnect(connID)

	if _, open := <-ch; open {
		t.Fatalf("channel must be closed after disconnect")
	}
	// deliveries after disconnect are no-ops, not panics
	registry.Broadcast(RoomDashboard, []byte("late"))
	registry.SendToUser(userID, []byte("late"))
	registry.Disconnect(connID)
}
