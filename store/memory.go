// Package store provides the raw key-value backends the cache is built on.
// Backends log their failures and report them as false/absent results; they
// never return error values through the store contract.
package store

import (
	"sync"
	"sync/atomic"

	"github.com/shorecrew/shorecrew/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// MemoryStore keeps entries in process memory. It is the default backend and
// the one tests run against; contents do not survive a restart.
type MemoryStore struct {
	logger types.Logger
	data   map[string]string
	mu     sync.RWMutex
	state  atomic.Value
}

func NewMemoryStore(logger types.Logger) *MemoryStore {
	s := &MemoryStore{
		logger: logger,
		data:   make(map[string]string),
	}
	s.state.Store(StateStopped)
	return s
}

func (s *MemoryStore) RawGet(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	return value, ok
}

func (s *MemoryStore) RawSet(key string, serialized string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = serialized
	return true
}

func (s *MemoryStore) RawRemove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return true
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *MemoryStore) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}
	s.setState(StateRunning)
	return nil
}

func (s *MemoryStore) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	s.mu.Lock()
	s.data = make(map[string]string)
	s.mu.Unlock()

	s.setState(StateStopped)
	return nil
}

func (s *MemoryStore) IsRunning() bool {
	return s.getState() == StateRunning
}

func (s *MemoryStore) getState() State {
	return s.state.Load().(State)
}

func (s *MemoryStore) setState(newState State) bool {
	currentState := s.getState()
	return s.state.CompareAndSwap(currentState, newState)
}

func (s *MemoryStore) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}
