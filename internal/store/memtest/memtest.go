// Package memtest is an in-memory Store implementation for unit tests and
// local development, grounded in the teacher's
// internal/persistence/databases/chat_store_memory.go (sync.RWMutex-guarded
// maps, sentinel-error returns instead of panics).
package memtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"genworld/internal/apperr"
	"genworld/internal/store"
	"genworld/internal/worldmodel"
)

func New() *store.Store {
	return &store.Store{
		Worlds:        newWorldStore(),
		Agents:        newAgentStore(),
		Memories:      newMemoryStore(),
		Events:        newEventStore(),
		Snapshots:     newSnapshotStore(),
		WorldObjects:  newWorldObjectStore(),
		Conversations: newConversationStore(),
	}
}

type worldStore struct {
	mu   sync.RWMutex
	data map[string]*worldmodel.World
}

func newWorldStore() *worldStore { return &worldStore{data: map[string]*worldmodel.World{}} }

func (s *worldStore) Put(_ context.Context, w *worldmodel.World) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.data[w.ID]; ok && w.Version != 0 && existing.Version != w.Version {
		return fmt.Errorf("world %s: %w", w.ID, apperr.ErrConflict)
	}
	w.Version++
	cp := *w
	s.data[w.ID] = &cp
	return nil
}

func (s *worldStore) Get(_ context.Context, id string) (*worldmodel.World, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("world %s: %w", id, apperr.ErrNotFound)
	}
	cp := *w
	return &cp, nil
}

func (s *worldStore) List(_ context.Context) ([]*worldmodel.World, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*worldmodel.World, 0, len(s.data))
	for _, w := range s.data {
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *worldStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return fmt.Errorf("world %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.data, id)
	return nil
}

type agentStore struct {
	mu   sync.RWMutex
	data map[string]*worldmodel.Agent
}

func newAgentStore() *agentStore { return &agentStore{data: map[string]*worldmodel.Agent{}} }

func (s *agentStore) Put(_ context.Context, a *worldmodel.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.data[a.ID]; ok && a.Version != 0 && existing.Version != a.Version {
		return fmt.Errorf("agent %s: %w", a.ID, apperr.ErrConflict)
	}
	a.Version++
	cp := *a
	s.data[a.ID] = &cp
	return nil
}

func (s *agentStore) Get(_ context.Context, id string) (*worldmodel.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, apperr.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *agentStore) ListByWorld(_ context.Context, worldID string) ([]*worldmodel.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*worldmodel.Agent
	for _, a := range s.data {
		if a.WorldID == worldID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *agentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return fmt.Errorf("agent %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.data, id)
	return nil
}

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]*worldmodel.Memory
}

func newMemoryStore() *memoryStore { return &memoryStore{data: map[string]*worldmodel.Memory{}} }

func (s *memoryStore) Put(_ context.Context, m *worldmodel.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.Version++
	cp := *m
	s.data[m.ID] = &cp
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*worldmodel.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("memory %s: %w", id, apperr.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

// ListByAgent returns the agent's memories most-recent-first, bounded by
// limit (<=0 means unbounded) — the windowed-load bound named in spec §9.
func (s *memoryStore) ListByAgent(_ context.Context, agentID string, limit int) ([]*worldmodel.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*worldmodel.Memory
	for _, m := range s.data {
		if m.AgentID == agentID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type eventStore struct {
	mu   sync.RWMutex
	data []*worldmodel.Event
}

func newEventStore() *eventStore { return &eventStore{} }

func (s *eventStore) Put(_ context.Context, e *worldmodel.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Version++
	cp := *e
	s.data = append(s.data, &cp)
	return nil
}

func (s *eventStore) ListByWorld(_ context.Context, worldID string, since int64, limit int) ([]*worldmodel.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*worldmodel.Event
	for i, e := range s.data {
		if e.WorldID == worldID && int64(i) >= since {
			cp := *e
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type snapshotStore struct {
	mu   sync.RWMutex
	data map[string]*worldmodel.Snapshot
}

func newSnapshotStore() *snapshotStore {
	return &snapshotStore{data: map[string]*worldmodel.Snapshot{}}
}

func (s *snapshotStore) Put(_ context.Context, sn *worldmodel.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sn.Version++
	cp := *sn
	s.data[sn.ID] = &cp
	return nil
}

func (s *snapshotStore) Get(_ context.Context, id string) (*worldmodel.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sn, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", id, apperr.ErrNotFound)
	}
	cp := *sn
	return &cp, nil
}

func (s *snapshotStore) ListByWorld(_ context.Context, worldID string) ([]*worldmodel.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*worldmodel.Snapshot
	for _, sn := range s.data {
		if sn.WorldID == worldID {
			cp := *sn
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.Before(out[j].TakenAt) })
	return out, nil
}

type worldObjectStore struct {
	mu   sync.RWMutex
	data map[string]*worldmodel.WorldObject
}

func newWorldObjectStore() *worldObjectStore {
	return &worldObjectStore{data: map[string]*worldmodel.WorldObject{}}
}

func (s *worldObjectStore) Put(_ context.Context, o *worldmodel.WorldObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.data[o.ID]; ok && o.Version != 0 && existing.Version != o.Version {
		return fmt.Errorf("world object %s: %w", o.ID, apperr.ErrConflict)
	}
	o.Version++
	cp := *o
	s.data[o.ID] = &cp
	return nil
}

func (s *worldObjectStore) Get(_ context.Context, id string) (*worldmodel.WorldObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("world object %s: %w", id, apperr.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (s *worldObjectStore) ListByWorld(_ context.Context, worldID string) ([]*worldmodel.WorldObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*worldmodel.WorldObject
	for _, o := range s.data {
		if o.WorldID == worldID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

type conversationStore struct {
	mu   sync.RWMutex
	data map[string]*worldmodel.Conversation
}

func newConversationStore() *conversationStore {
	return &conversationStore{data: map[string]*worldmodel.Conversation{}}
}

func (s *conversationStore) Put(_ context.Context, c *worldmodel.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Version++
	cp := *c
	s.data[c.ID] = &cp
	return nil
}

func (s *conversationStore) Get(_ context.Context, id string) (*worldmodel.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, apperr.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// FindActive matches either agent ordering, since a conversation between
// two agents is the same record regardless of which one is "A".
func (s *conversationStore) FindActive(_ context.Context, worldID, agentAID, agentBID string) (*worldmodel.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.data {
		if c.WorldID != worldID {
			continue
		}
		if (c.AgentAID == agentAID && c.AgentBID == agentBID) || (c.AgentAID == agentBID && c.AgentBID == agentAID) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("conversation for %s/%s: %w", agentAID, agentBID, apperr.ErrNotFound)
}
