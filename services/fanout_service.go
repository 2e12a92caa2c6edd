package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Event kinds published by the lifecycle.
type EventKind string

const (
	EventSubmissionCreated EventKind = "submission-created"
	EventSubmissionUpdated EventKind = "submission-updated"
	EventSubmissionDelayed EventKind = "submission-delayed"
	EventNotification      EventKind = "generic-notification"
)

// Broadcast rooms. Connected observers join one or more of these.
const (
	RoomQueue         = "queue"
	RoomDashboard     = "dashboard"
	RoomPublicDisplay = "public-display"
)

// Event is an ephemeral fan-out message. It is not persisted; a
// disconnected subscriber resynchronizes via the read API.
type Event struct {
	Kind         EventKind   `json:"kind"`
	Payload      interface{} `json:"payload"`
	TargetUserID *int        `json:"target_user_id,omitempty"`
}

// Registry is the group-membership seam. Injectable so the fan-out can be
// unit-tested against an in-memory fake.
type Registry interface {
	Broadcast(room string, message []byte)
	SendToUser(userID int, message []byte)
}

// Fanout routes lifecycle events to broadcast rooms and per-user private
// channels. Delivery is best-effort and at-most-once per connected
// subscriber; publish failures never fail the calling operation.
type Fanout struct {
	registry Registry
	rdb      *redis.Client
}

// NewFanout builds a fan-out over the given registry. rdb may be nil,
// in which case events stay in-process.
func NewFanout(registry Registry, rdb *redis.Client) *Fanout {
	return &Fanout{registry: registry, rdb: rdb}
}

// roomsFor maps an event kind to the rooms it broadcasts to.
func roomsFor(kind EventKind, hasTarget bool) []string {
	switch kind {
	case EventSubmissionCreated:
		return []string{RoomQueue, RoomDashboard}
	case EventSubmissionUpdated:
		return []string{RoomQueue, RoomDashboard, RoomPublicDisplay}
	case EventSubmissionDelayed:
		return []string{RoomQueue, RoomDashboard}
	case EventNotification:
		if hasTarget {
			return nil // private delivery only
		}
		return []string{RoomDashboard}
	}
	return nil
}

// Publish routes one event. Errors are logged and swallowed: the fan-out
// is a liveness optimization, not a source of truth.
func (f *Fanout) Publish(ctx context.Context, event Event) {
	message, err := json.Marshal(event)
	if err != nil {
		log.Printf("fanout: failed to encode %s event: %v", event.Kind, err)
		return
	}

	for _, room := range roomsFor(event.Kind, event.TargetUserID != nil) {
		f.registry.Broadcast(room, message)
		f.publishRemote(ctx, "room:"+room, message)
	}
	if event.TargetUserID != nil {
		f.registry.SendToUser(*event.TargetUserID, message)
		f.publishRemote(ctx, "user:"+strconv.Itoa(*event.TargetUserID), message)
	}
}

func (f *Fanout) publishRemote(ctx context.Context, channel string, message []byte) {
	if f.rdb == nil {
		return
	}
	if err := f.rdb.Publish(ctx, channel, message).Err(); err != nil {
		log.Printf("fanout: redis publish to %s failed: %v", channel, err)
	}
}

// LocalRegistry is the in-process Registry. Each connection owns a
// buffered channel; sends are non-blocking so one slow subscriber cannot
// stall a publish (it just misses events, per the at-most-once contract).
type LocalRegistry struct {
	mu      sync.RWMutex
	nextID  int
	conns   map[int]*localConn
	rooms   map[string]map[int]struct{}
	byUser  map[int]map[int]struct{}
	bufSize int
}

type localConn struct {
	id     int
	userID *int
	ch     chan []byte
}

// NewLocalRegistry builds an empty registry. bufSize is the per-connection
// backlog before messages start dropping.
func NewLocalRegistry(bufSize int) *LocalRegistry {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &LocalRegistry{
		conns:   make(map[int]*localConn),
		rooms:   make(map[string]map[int]struct{}),
		byUser:  make(map[int]map[int]struct{}),
		bufSize: bufSize,
	}
}

// Connect registers a connection. userID may be nil for unauthenticated
// observers (public display screens). Returns the connection id and its
// receive channel.
func (r *LocalRegistry) Connect(userID *int) (int, <-chan []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	conn := &localConn{id: r.nextID, userID: userID, ch: make(chan []byte, r.bufSize)}
	r.conns[conn.id] = conn
	if userID != nil {
		if r.byUser[*userID] == nil {
			r.byUser[*userID] = make(map[int]struct{})
		}
		r.byUser[*userID][conn.id] = struct{}{}
	}
	return conn.id, conn.ch
}

// Disconnect removes a connection from every room and closes its channel.
func (r *LocalRegistry) Disconnect(connID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(r.conns, connID)
	for _, members := range r.rooms {
		delete(members, connID)
	}
	if conn.userID != nil {
		delete(r.byUser[*conn.userID], connID)
		if len(r.byUser[*conn.userID]) == 0 {
			delete(r.byUser, *conn.userID)
		}
	}
	close(conn.ch)
}

// Join adds a connection to a room.
func (r *LocalRegistry) Join(connID int, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		return fmt.Errorf("unknown connection %d", connID)
	}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[int]struct{})
	}
	r.rooms[room][connID] = struct{}{}
	return nil
}

// Leave removes a connection from a room.
func (r *LocalRegistry) Leave(connID int, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms[room], connID)
}

// Broadcast delivers a message to every member of a room, at most once
// each. Full buffers drop rather than block.
func (r *LocalRegistry) Broadcast(room string, message []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for connID := range r.rooms[room] {
		if conn, ok := r.conns[connID]; ok {
			select {
			case conn.ch <- message:
			default:
			}
		}
	}
}

// SendToUser delivers a message to every connection of one user.
func (r *LocalRegistry) SendToUser(userID int, message []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for connID := range r.byUser[userID] {
		if conn, ok := r.conns[connID]; ok {
			select {
			case conn.ch <- message:
			default:
			}
		}
	}
}
