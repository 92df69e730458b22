// Package worldmodel defines the entities shared by every component of the
// world engine: World, Agent, Memory, Event, Snapshot, WorldObject and
// Conversation, plus their invariants.
package worldmodel

import "time"

// RunState is the world tick scheduler's state machine position.
type RunState string

const (
	StateRunning RunState = "running"
	StatePaused  RunState = "paused"
	StateStopped RunState = "stopped"
)

// World is the root aggregate: a simulated place with agents, a clock, and
// a tick cadence.
type World struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	State       RunState  `json:"state"`
	CurrentTime time.Time `json:"current_time"`
	TickSeq     int64     `json:"tick_seq"`
	SpeedFactor float64   `json:"speed_factor"`
	CreatedAt   time.Time `json:"created_at"`
	Version     int64     `json:"version"`
}

// Agent is a single generative resident of a world.
type Agent struct {
	ID          string    `json:"id"`
	WorldID     string    `json:"world_id"`
	Name        string    `json:"name"`
	Persona     string    `json:"persona"`
	CurrentArea string    `json:"current_area"`
	LocationX   float64   `json:"location_x"`
	LocationY   float64   `json:"location_y"`
	// Relationships maps another agent's ID to a short relation label
	// ("friend", "rival", "stranger", ...). The agent loop sets
	// "acquaintance" the first time this agent communicates with another and
	// leaves existing labels alone; interact actions do not change it.
	Relationships map[string]string `json:"relationships,omitempty"`
	Status        string            `json:"status"` // "idle" | "acting" | "conversing"
	// Plan is the agent's persisted hierarchical plan bundle, kept in sync
	// with the in-process agentloop state so a restart or a second replica
	// does not silently lose it (spec §4.5: "Plans are persisted on the
	// agent record").
	Plan      *AgentPlan `json:"plan,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Version   int64      `json:"version"`
}

// PlannedAction is the persisted counterpart of planning.Action — the
// planning package's richer type is translated to/from this shape at the
// agentloop boundary so worldmodel never imports planning (it would create
// an import cycle: planning depends on memorystream, which depends on
// worldmodel for Event/Memory kinds).
type PlannedAction struct {
	Kind        string        `json:"kind"`
	Description string        `json:"description"`
	Target      string        `json:"target,omitempty"`
	StartsAt    time.Time     `json:"starts_at"`
	Duration    time.Duration `json:"duration"`
}

// AgentPlan is the persisted counterpart of planning.Plan.
type AgentPlan struct {
	Day         string          `json:"day"`
	DailyGoal   string          `json:"daily_goal"`
	Hourly      []string        `json:"hourly"`
	Actions     []PlannedAction `json:"actions"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// MemoryKind classifies a Memory for reflection/planning heuristics.
type MemoryKind string

const (
	MemoryObservation MemoryKind = "observation"
	MemoryReflection  MemoryKind = "reflection"
	MemoryPlan        MemoryKind = "plan"
)

// Memory is one entry in an agent's memory stream.
type Memory struct {
	ID              string     `json:"id"`
	WorldID         string     `json:"world_id"`
	AgentID         string     `json:"agent_id"`
	Kind            MemoryKind `json:"kind"`
	Description     string     `json:"description"`
	Embedding       []float32  `json:"-"`
	Importance      float64    `json:"importance"` // 1-10
	CreatedAt       time.Time  `json:"created_at"`
	LastAccessedAt  time.Time  `json:"last_accessed_at"`
	// EvidenceIDs links a reflection memory back to the observations/lower
	// reflections it was synthesized from, forming the memory chain.
	EvidenceIDs []string `json:"evidence_ids,omitempty"`
	Version     int64    `json:"version"`
}

// EventKind classifies an Event for the consequence rule table.
type EventKind string

const (
	EventObservation  EventKind = "observation"
	EventAction       EventKind = "action"
	EventConversation EventKind = "conversation"
	EventWorldChange  EventKind = "world_change"
)

// Event is a fact injected into or arising from the world; the Event
// Processor applies consequence rules and fans it out to subscribers.
type Event struct {
	ID        string         `json:"id"`
	WorldID   string         `json:"world_id"`
	Kind      EventKind      `json:"kind"`
	Source    string         `json:"source"` // agent ID, "world", or external actor
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	Version   int64          `json:"version"`
}

// Snapshot is a point-in-time marker for a world: label, description,
// storage-location key and agent count. It holds no copy of the world's
// agents, memories or events, and restoring one does not bring them back.
// Immutable once created: the Store façade's snapshot Put is called exactly
// once per snapshot, at creation.
type Snapshot struct {
	ID          string    `json:"id"`
	WorldID     string    `json:"world_id"`
	TakenAt     time.Time `json:"taken_at"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location"` // opaque storage location (object-store key, file path, ...)
	AgentCount  int       `json:"agent_count"`
	Version     int64     `json:"version"`
}

// WorldObject is an interactable entity a world owns outside of its agents
// — spec.md §4.6 names `interact` actions mutating "a world object's state"
// without defining the type; this is the minimal first-class shape for it.
type WorldObject struct {
	ID      string            `json:"id"`
	WorldID string            `json:"world_id"`
	Area    string            `json:"area"`
	State   string            `json:"state"`
	Tags    []string          `json:"tags,omitempty"`
	Version int64             `json:"version"`
}

// ConversationTurn is one utterance within a Conversation.
type ConversationTurn struct {
	SpeakerID string    `json:"speaker_id"`
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
}

// Conversation accumulates communicate actions between a pair of agents
// into a durable dialogue record instead of discarding each utterance.
type Conversation struct {
	ID        string             `json:"id"`
	WorldID   string             `json:"world_id"`
	AgentAID  string             `json:"agent_a_id"`
	AgentBID  string             `json:"agent_b_id"`
	Turns     []ConversationTurn `json:"turns"`
	StartedAt time.Time          `json:"started_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Version   int64              `json:"version"`
}
