// Package store defines the Store façade (C1): narrow CRUD interfaces per
// entity, backed concretely by internal/store/pg (Postgres) or
// internal/store/memtest (in-memory, for tests) — the teacher's
// persistence/databases.Manager pattern of aggregating pluggable backends
// behind one face.
package store

import (
	"context"

	"genworld/internal/worldmodel"
)

type WorldStore interface {
	Put(ctx context.Context, w *worldmodel.World) error
	Get(ctx context.Context, id string) (*worldmodel.World, error)
	List(ctx context.Context) ([]*worldmodel.World, error)
	Delete(ctx context.Context, id string) error
}

type AgentStore interface {
	Put(ctx context.Context, a *worldmodel.Agent) error
	Get(ctx context.Context, id string) (*worldmodel.Agent, error)
	ListByWorld(ctx context.Context, worldID string) ([]*worldmodel.Agent, error)
	Delete(ctx context.Context, id string) error
}

type MemoryStore interface {
	Put(ctx context.Context, m *worldmodel.Memory) error
	Get(ctx context.Context, id string) (*worldmodel.Memory, error)
	ListByAgent(ctx context.Context, agentID string, limit int) ([]*worldmodel.Memory, error)
}

type EventStore interface {
	Put(ctx context.Context, e *worldmodel.Event) error
	ListByWorld(ctx context.Context, worldID string, since int64, limit int) ([]*worldmodel.Event, error)
}

type SnapshotStore interface {
	Put(ctx context.Context, s *worldmodel.Snapshot) error
	Get(ctx context.Context, id string) (*worldmodel.Snapshot, error)
	ListByWorld(ctx context.Context, worldID string) ([]*worldmodel.Snapshot, error)
}

type WorldObjectStore interface {
	Put(ctx context.Context, o *worldmodel.WorldObject) error
	Get(ctx context.Context, id string) (*worldmodel.WorldObject, error)
	ListByWorld(ctx context.Context, worldID string) ([]*worldmodel.WorldObject, error)
}

type ConversationStore interface {
	Put(ctx context.Context, c *worldmodel.Conversation) error
	Get(ctx context.Context, id string) (*worldmodel.Conversation, error)
	FindActive(ctx context.Context, worldID, agentAID, agentBID string) (*worldmodel.Conversation, error)
}

// Store aggregates every entity-scoped store, mirroring the teacher's
// databases.Manager that bundles pluggable backends behind one handle.
type Store struct {
	Worlds        WorldStore
	Agents        AgentStore
	Memories      MemoryStore
	Events        EventStore
	Snapshots     SnapshotStore
	WorldObjects  WorldObjectStore
	Conversations ConversationStore
}
