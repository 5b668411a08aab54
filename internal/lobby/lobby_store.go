// internal/lobby/lobby_store.go
package lobby

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RoomStore manages active rooms in memory.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*Room
}

// NewRoomStore initializes and returns an empty RoomStore.
func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[uuid.UUID]*Room),
	}
}

// AddRoom stores room. Set OnEmpty before adding it so the room cleans itself up.
func (s *RoomStore) AddRoom(room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[room.ID]; exists {
		logrus.Warnf("RoomStore: room %s already exists", room.ID)
		return
	}
	s.rooms[room.ID] = room
	logrus.Debugf("RoomStore: added room %s", room.ID)
}

// DeleteRoom removes a room by ID.
func (s *RoomStore) DeleteRoom(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[id]; exists {
		delete(s.rooms, id)
		logrus.Debugf("RoomStore: deleted room %s", id)
	}
}

// GetRoom retrieves a room by ID.
func (s *RoomStore) GetRoom(id uuid.UUID) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Lookup is GetRoom with ErrRoomNotFound.
func (s *RoomStore) Lookup(id uuid.UUID) (*Room, error) {
	if r, ok := s.GetRoom(id); ok {
		return r, nil
	}
	return nil, ErrRoomNotFound
}

// Rooms returns the live rooms, oldest first.
func (s *RoomStore) Rooms() []*Room {
	s.mu.Lock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
