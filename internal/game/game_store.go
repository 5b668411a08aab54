package game

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrGameNotFound is returned for an id with no live session.
var ErrGameNotFound = errors.New("game not found")

// GameStore indexes live sessions by game id, which is also their room id.
type GameStore struct {
	mu    sync.RWMutex
	games map[uuid.UUID]*MightyGame
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[uuid.UUID]*MightyGame),
	}
}

func (s *GameStore) AddGame(game *MightyGame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = game
}

func (s *GameStore) GetGame(id uuid.UUID) (*MightyGame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, exists := s.games[id]
	return g, exists
}

// Lookup is GetGame with an error suitable for returning to callers.
func (s *GameStore) Lookup(id uuid.UUID) (*MightyGame, error) {
	if g, ok := s.GetGame(id); ok {
		return g, nil
	}
	return nil, ErrGameNotFound
}

func (s *GameStore) DeleteGame(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}

// Len reports how many sessions are live.
func (s *GameStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}
