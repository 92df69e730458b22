// Package pg is the Postgres-backed Store façade implementation, using
// pgx/v5 directly (no ORM) the way the teacher's deleted database.go did
// for its SQLite/Postgres layer — plain SQL, pgxpool for connection
// pooling, sentinel errors translated from pgx.ErrNoRows.
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"genworld/internal/apperr"
	"genworld/internal/store"
	"genworld/internal/worldmodel"
)

// Open connects to Postgres and returns a fully-wired Store. Callers run
// Migrate once before first use (e.g. from cmd/worldd at startup).
func Open(ctx context.Context, dsn string, maxConns int32) (*store.Store, *pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pg: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &store.Store{
		Worlds:        &worldStore{pool: pool},
		Agents:        &agentStore{pool: pool},
		Memories:      &memoryStore{pool: pool},
		Events:        &eventStore{pool: pool},
		Snapshots:     &snapshotStore{pool: pool},
		WorldObjects:  &worldObjectStore{pool: pool},
		Conversations: &conversationStore{pool: pool},
	}, pool, nil
}

// Migrate creates the schema if absent. Idempotent; safe to call on every
// startup, matching the teacher's lightweight migration-free schema setup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("pg: migrate: %w", err)
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS worlds (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	state TEXT NOT NULL,
	current_time TIMESTAMPTZ NOT NULL,
	tick_seq BIGINT NOT NULL,
	speed_factor DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	version BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	world_id TEXT NOT NULL REFERENCES worlds(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	persona TEXT NOT NULL,
	current_area TEXT NOT NULL,
	location_x DOUBLE PRECISION NOT NULL DEFAULT 0,
	location_y DOUBLE PRECISION NOT NULL DEFAULT 0,
	relationships JSONB NOT NULL DEFAULT '{}',
	status TEXT NOT NULL,
	plan JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	version BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	world_id TEXT NOT NULL,
	agent_id TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	description TEXT NOT NULL,
	embedding JSONB NOT NULL,
	importance DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	last_accessed_at TIMESTAMPTZ NOT NULL,
	evidence_ids JSONB,
	version BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_agent ON memories(agent_id, created_at DESC);
CREATE TABLE IF NOT EXISTS events (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL,
	world_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	source TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	version BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_world ON events(world_id, seq);
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	world_id TEXT NOT NULL,
	taken_at TIMESTAMPTZ NOT NULL,
	label TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	agent_count INT NOT NULL DEFAULT 0,
	version BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS world_objects (
	id TEXT PRIMARY KEY,
	world_id TEXT NOT NULL,
	area TEXT NOT NULL,
	state TEXT NOT NULL,
	tags JSONB,
	version BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	world_id TEXT NOT NULL,
	agent_a_id TEXT NOT NULL,
	agent_b_id TEXT NOT NULL,
	turns JSONB NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	version BIGINT NOT NULL
);
`

func notFound(entity, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, apperr.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", entity, id, err)
}

type worldStore struct{ pool *pgxpool.Pool }

func (s *worldStore) Put(ctx context.Context, w *worldmodel.World) error {
	const q = `
INSERT INTO worlds (id, name, state, current_time, tick_seq, speed_factor, created_at, version)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name=$2, state=$3, current_time=$4, tick_seq=$5, speed_factor=$6, version=worlds.version+1
WHERE worlds.version = $8 OR $8 = 0
RETURNING version`
	return s.pool.QueryRow(ctx, q, w.ID, w.Name, w.State, w.CurrentTime, w.TickSeq, w.SpeedFactor, w.CreatedAt, w.Version).Scan(&w.Version)
}

func (s *worldStore) Get(ctx context.Context, id string) (*worldmodel.World, error) {
	const q = `SELECT id, name, state, current_time, tick_seq, speed_factor, created_at, version FROM worlds WHERE id=$1`
	w := &worldmodel.World{}
	err := s.pool.QueryRow(ctx, q, id).Scan(&w.ID, &w.Name, &w.State, &w.CurrentTime, &w.TickSeq, &w.SpeedFactor, &w.CreatedAt, &w.Version)
	if err != nil {
		return nil, notFound("world", id, err)
	}
	return w, nil
}

func (s *worldStore) List(ctx context.Context) ([]*worldmodel.World, error) {
	const q = `SELECT id, name, state, current_time, tick_seq, speed_factor, created_at, version FROM worlds ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("pg: list worlds: %w", err)
	}
	defer rows.Close()
	var out []*worldmodel.World
	for rows.Next() {
		w := &worldmodel.World{}
		if err := rows.Scan(&w.ID, &w.Name, &w.State, &w.CurrentTime, &w.TickSeq, &w.SpeedFactor, &w.CreatedAt, &w.Version); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *worldStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM worlds WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("pg: delete world %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("world %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

type agentStore struct{ pool *pgxpool.Pool }

func (s *agentStore) Put(ctx context.Context, a *worldmodel.Agent) error {
	rel, err := json.Marshal(a.Relationships)
	if err != nil {
		return fmt.Errorf("pg: marshal relationships: %w", err)
	}
	var plan []byte
	if a.Plan != nil {
		plan, err = json.Marshal(a.Plan)
		if err != nil {
			return fmt.Errorf("pg: marshal plan: %w", err)
		}
	}
	const q = `
INSERT INTO agents (id, world_id, name, persona, current_area, location_x, location_y, relationships, status, plan, created_at, version)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  name=$3, persona=$4, current_area=$5, location_x=$6, location_y=$7, relationships=$8, status=$9, plan=$10, version=agents.version+1
WHERE agents.version = $12 OR $12 = 0
RETURNING version`
	return s.pool.QueryRow(ctx, q, a.ID, a.WorldID, a.Name, a.Persona, a.CurrentArea, a.LocationX, a.LocationY, rel, a.Status, plan, a.CreatedAt, a.Version).Scan(&a.Version)
}

func scanAgent(row interface{ Scan(dest ...any) error }, a *worldmodel.Agent, rel, plan *[]byte) error {
	return row.Scan(&a.ID, &a.WorldID, &a.Name, &a.Persona, &a.CurrentArea, &a.LocationX, &a.LocationY, rel, &a.Status, plan, &a.CreatedAt, &a.Version)
}

func decodeAgentJSON(a *worldmodel.Agent, rel, plan []byte) error {
	if len(rel) > 0 {
		if err := json.Unmarshal(rel, &a.Relationships); err != nil {
			return fmt.Errorf("pg: unmarshal relationships: %w", err)
		}
	}
	if len(plan) > 0 {
		a.Plan = &worldmodel.AgentPlan{}
		if err := json.Unmarshal(plan, a.Plan); err != nil {
			return fmt.Errorf("pg: unmarshal plan: %w", err)
		}
	}
	return nil
}

const agentColumns = `id, world_id, name, persona, current_area, location_x, location_y, relationships, status, plan, created_at, version`

func (s *agentStore) Get(ctx context.Context, id string) (*worldmodel.Agent, error) {
	q := `SELECT ` + agentColumns + ` FROM agents WHERE id=$1`
	a := &worldmodel.Agent{}
	var rel, plan []byte
	err := scanAgent(s.pool.QueryRow(ctx, q, id), a, &rel, &plan)
	if err != nil {
		return nil, notFound("agent", id, err)
	}
	if err := decodeAgentJSON(a, rel, plan); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *agentStore) ListByWorld(ctx context.Context, worldID string) ([]*worldmodel.Agent, error) {
	q := `SELECT ` + agentColumns + ` FROM agents WHERE world_id=$1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q, worldID)
	if err != nil {
		return nil, fmt.Errorf("pg: list agents: %w", err)
	}
	defer rows.Close()
	var out []*worldmodel.Agent
	for rows.Next() {
		a := &worldmodel.Agent{}
		var rel, plan []byte
		if err := scanAgent(rows, a, &rel, &plan); err != nil {
			return nil, err
		}
		if err := decodeAgentJSON(a, rel, plan); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *agentStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agents WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("pg: delete agent %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agent %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

type memoryStore struct{ pool *pgxpool.Pool }

func (s *memoryStore) Put(ctx context.Context, m *worldmodel.Memory) error {
	emb, err := json.Marshal(m.Embedding)
	if err != nil {
		return fmt.Errorf("pg: marshal embedding: %w", err)
	}
	ev, err := json.Marshal(m.EvidenceIDs)
	if err != nil {
		return fmt.Errorf("pg: marshal evidence ids: %w", err)
	}
	const q = `
INSERT INTO memories (id, world_id, agent_id, kind, description, embedding, importance, created_at, last_accessed_at, evidence_ids, version)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  description=$5, embedding=$6, importance=$7, last_accessed_at=$9, evidence_ids=$10, version=memories.version+1
RETURNING version`
	return s.pool.QueryRow(ctx, q, m.ID, m.WorldID, m.AgentID, m.Kind, m.Description, emb, m.Importance, m.CreatedAt, m.LastAccessedAt, ev, m.Version).Scan(&m.Version)
}

func scanMemory(row pgx.Row) (*worldmodel.Memory, error) {
	m := &worldmodel.Memory{}
	var emb, ev []byte
	if err := row.Scan(&m.ID, &m.WorldID, &m.AgentID, &m.Kind, &m.Description, &emb, &m.Importance, &m.CreatedAt, &m.LastAccessedAt, &ev, &m.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(emb, &m.Embedding); err != nil {
		return nil, fmt.Errorf("pg: unmarshal embedding: %w", err)
	}
	if len(ev) > 0 {
		if err := json.Unmarshal(ev, &m.EvidenceIDs); err != nil {
			return nil, fmt.Errorf("pg: unmarshal evidence ids: %w", err)
		}
	}
	return m, nil
}

func (s *memoryStore) Get(ctx context.Context, id string) (*worldmodel.Memory, error) {
	const q = `SELECT id, world_id, agent_id, kind, description, embedding, importance, created_at, last_accessed_at, evidence_ids, version FROM memories WHERE id=$1`
	m, err := scanMemory(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFound("memory", id, err)
	}
	return m, nil
}

func (s *memoryStore) ListByAgent(ctx context.Context, agentID string, limit int) ([]*worldmodel.Memory, error) {
	q := `SELECT id, world_id, agent_id, kind, description, embedding, importance, created_at, last_accessed_at, evidence_ids, version FROM memories WHERE agent_id=$1 ORDER BY created_at DESC`
	args := []any{agentID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("pg: list memories: %w", err)
	}
	defer rows.Close()
	var out []*worldmodel.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type eventStore struct{ pool *pgxpool.Pool }

func (s *eventStore) Put(ctx context.Context, e *worldmodel.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("pg: marshal event payload: %w", err)
	}
	const q = `INSERT INTO events (id, world_id, kind, source, payload, created_at, version) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err = s.pool.Exec(ctx, q, e.ID, e.WorldID, e.Kind, e.Source, payload, e.CreatedAt, e.Version+1)
	if err != nil {
		return fmt.Errorf("pg: insert event: %w", err)
	}
	e.Version++
	return nil
}

func (s *eventStore) ListByWorld(ctx context.Context, worldID string, since int64, limit int) ([]*worldmodel.Event, error) {
	q := `SELECT id, world_id, kind, source, payload, created_at, version FROM events WHERE world_id=$1 AND seq >= $2 ORDER BY seq`
	args := []any{worldID, since}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("pg: list events: %w", err)
	}
	defer rows.Close()
	var out []*worldmodel.Event
	for rows.Next() {
		e := &worldmodel.Event{}
		var payload []byte
		if err := rows.Scan(&e.ID, &e.WorldID, &e.Kind, &e.Source, &payload, &e.CreatedAt, &e.Version); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("pg: unmarshal event payload: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type snapshotStore struct{ pool *pgxpool.Pool }

func (s *snapshotStore) Put(ctx context.Context, sn *worldmodel.Snapshot) error {
	const q = `INSERT INTO snapshots (id, world_id, taken_at, label, description, location, agent_count, version) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := s.pool.Exec(ctx, q, sn.ID, sn.WorldID, sn.TakenAt, sn.Label, sn.Description, sn.Location, sn.AgentCount, sn.Version+1)
	if err != nil {
		return fmt.Errorf("pg: insert snapshot: %w", err)
	}
	sn.Version++
	return nil
}

func (s *snapshotStore) Get(ctx context.Context, id string) (*worldmodel.Snapshot, error) {
	const q = `SELECT id, world_id, taken_at, label, description, location, agent_count, version FROM snapshots WHERE id=$1`
	sn := &worldmodel.Snapshot{}
	err := s.pool.QueryRow(ctx, q, id).Scan(&sn.ID, &sn.WorldID, &sn.TakenAt, &sn.Label, &sn.Description, &sn.Location, &sn.AgentCount, &sn.Version)
	if err != nil {
		return nil, notFound("snapshot", id, err)
	}
	return sn, nil
}

func (s *snapshotStore) ListByWorld(ctx context.Context, worldID string) ([]*worldmodel.Snapshot, error) {
	const q = `SELECT id, world_id, taken_at, label, description, location, agent_count, version FROM snapshots WHERE world_id=$1 ORDER BY taken_at`
	rows, err := s.pool.Query(ctx, q, worldID)
	if err != nil {
		return nil, fmt.Errorf("pg: list snapshots: %w", err)
	}
	defer rows.Close()
	var out []*worldmodel.Snapshot
	for rows.Next() {
		sn := &worldmodel.Snapshot{}
		if err := rows.Scan(&sn.ID, &sn.WorldID, &sn.TakenAt, &sn.Label, &sn.Description, &sn.Location, &sn.AgentCount, &sn.Version); err != nil {
			return nil, err
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

type worldObjectStore struct{ pool *pgxpool.Pool }

func (s *worldObjectStore) Put(ctx context.Context, o *worldmodel.WorldObject) error {
	tags, err := json.Marshal(o.Tags)
	if err != nil {
		return fmt.Errorf("pg: marshal tags: %w", err)
	}
	const q = `
INSERT INTO world_objects (id, world_id, area, state, tags, version)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET area=$3, state=$4, tags=$5, version=world_objects.version+1
WHERE world_objects.version = $6 OR $6 = 0
RETURNING version`
	return s.pool.QueryRow(ctx, q, o.ID, o.WorldID, o.Area, o.State, tags, o.Version).Scan(&o.Version)
}

func (s *worldObjectStore) Get(ctx context.Context, id string) (*worldmodel.WorldObject, error) {
	const q = `SELECT id, world_id, area, state, tags, version FROM world_objects WHERE id=$1`
	o := &worldmodel.WorldObject{}
	var tags []byte
	err := s.pool.QueryRow(ctx, q, id).Scan(&o.ID, &o.WorldID, &o.Area, &o.State, &tags, &o.Version)
	if err != nil {
		return nil, notFound("world object", id, err)
	}
	_ = json.Unmarshal(tags, &o.Tags)
	return o, nil
}

func (s *worldObjectStore) ListByWorld(ctx context.Context, worldID string) ([]*worldmodel.WorldObject, error) {
	const q = `SELECT id, world_id, area, state, tags, version FROM world_objects WHERE world_id=$1`
	rows, err := s.pool.Query(ctx, q, worldID)
	if err != nil {
		return nil, fmt.Errorf("pg: list world objects: %w", err)
	}
	defer rows.Close()
	var out []*worldmodel.WorldObject
	for rows.Next() {
		o := &worldmodel.WorldObject{}
		var tags []byte
		if err := rows.Scan(&o.ID, &o.WorldID, &o.Area, &o.State, &tags, &o.Version); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(tags, &o.Tags)
		out = append(out, o)
	}
	return out, rows.Err()
}

type conversationStore struct{ pool *pgxpool.Pool }

func (s *conversationStore) Put(ctx context.Context, c *worldmodel.Conversation) error {
	turns, err := json.Marshal(c.Turns)
	if err != nil {
		return fmt.Errorf("pg: marshal turns: %w", err)
	}
	const q = `
INSERT INTO conversations (id, world_id, agent_a_id, agent_b_id, turns, started_at, updated_at, version)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET turns=$5, updated_at=$7, version=conversations.version+1
RETURNING version`
	return s.pool.QueryRow(ctx, q, c.ID, c.WorldID, c.AgentAID, c.AgentBID, turns, c.StartedAt, c.UpdatedAt, c.Version).Scan(&c.Version)
}

func (s *conversationStore) Get(ctx context.Context, id string) (*worldmodel.Conversation, error) {
	const q = `SELECT id, world_id, agent_a_id, agent_b_id, turns, started_at, updated_at, version FROM conversations WHERE id=$1`
	c := &worldmodel.Conversation{}
	var turns []byte
	err := s.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.WorldID, &c.AgentAID, &c.AgentBID, &turns, &c.StartedAt, &c.UpdatedAt, &c.Version)
	if err != nil {
		return nil, notFound("conversation", id, err)
	}
	if err := json.Unmarshal(turns, &c.Turns); err != nil {
		return nil, fmt.Errorf("pg: unmarshal turns: %w", err)
	}
	return c, nil
}

func (s *conversationStore) FindActive(ctx context.Context, worldID, agentAID, agentBID string) (*worldmodel.Conversation, error) {
	const q = `
SELECT id, world_id, agent_a_id, agent_b_id, turns, started_at, updated_at, version FROM conversations
WHERE world_id=$1 AND ((agent_a_id=$2 AND agent_b_id=$3) OR (agent_a_id=$3 AND agent_b_id=$2))
ORDER BY updated_at DESC LIMIT 1`
	c := &worldmodel.Conversation{}
	var turns []byte
	err := s.pool.QueryRow(ctx, q, worldID, agentAID, agentBID).Scan(&c.ID, &c.WorldID, &c.AgentAID, &c.AgentBID, &turns, &c.StartedAt, &c.UpdatedAt, &c.Version)
	if err != nil {
		return nil, notFound("conversation", agentAID+"/"+agentBID, err)
	}
	if err := json.Unmarshal(turns, &c.Turns); err != nil {
		return nil, fmt.Errorf("pg: unmarshal turns: %w", err)
	}
	return c, nil
}
