package memorystream

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"genworld/internal/llmgateway"
	"genworld/internal/observability"
	"genworld/internal/store"
	"genworld/internal/worldmodel"
)

// Callbacks lets callers observe stream activity without coupling the
// stream to a specific logging/metrics backend — grounded in the teacher's
// MemoryCallbacks{OnSearch, OnSynthesized, OnEvolve} pattern.
type Callbacks struct {
	OnAppend   func(worldmodel.Memory)
	OnRetrieve func(agentID string, results []Scored)
}

// Stream is the Memory Stream shared by every world in the process (each
// call names its world and agent), operating through the Store façade and
// an optional ANN index for large agent memory sets.
type Stream struct {
	store         *store.Store
	gateway       *llmgateway.Gateway
	ann           ANNIndex // nil disables ANN; falls back to exhaustive scan
	windowSize    int       // T: retrieval window bound
	annThreshold  int
	recencyHalfLife float64 // simulated hours
	callbacks     Callbacks
}

// ANNIndex is implemented by internal/memorystream/qdrant for large memory
// sets; kept as an interface here so the stream never imports a vector-db
// client directly and stays testable without one.
type ANNIndex interface {
	Upsert(ctx context.Context, agentID string, memory *worldmodel.Memory) error
	Search(ctx context.Context, agentID string, query []float32, topK int) ([]string, error)
	Count(ctx context.Context, agentID string) (int, error)
}

func New(st *store.Store, gw *llmgateway.Gateway, ann ANNIndex, windowSize, annThreshold int, recencyHalfLifeHours float64, cb Callbacks) *Stream {
	if windowSize <= 0 {
		windowSize = 2000
	}
	if recencyHalfLifeHours <= 0 {
		recencyHalfLifeHours = 24
	}
	return &Stream{store: st, gateway: gw, ann: ann, windowSize: windowSize, annThreshold: annThreshold, recencyHalfLife: recencyHalfLifeHours, callbacks: cb}
}

// AddMemory embeds the description, scores its importance via the LM
// Gateway (degrading to a neutral default on LM outage, per spec's
// degraded-mode requirement), persists it, and indexes it in the ANN store
// once the agent crosses annThreshold memories.
func (s *Stream) AddMemory(ctx context.Context, worldID, agentID string, kind worldmodel.MemoryKind, description string, evidenceIDs []string) (*worldmodel.Memory, error) {
	log := observability.LoggerWithTrace(ctx)

	vecs, err := s.gateway.Embed(ctx, worldID, []string{description})
	var embedding []float32
	if err != nil {
		log.Warn().Err(err).Msg("memorystream: embed failed, storing memory without vector")
	} else if len(vecs) > 0 {
		embedding = vecs[0]
	}

	importance, err := s.gateway.ScoreImportance(ctx, worldID, description)
	if err != nil {
		log.Warn().Err(err).Msg("memorystream: importance scoring failed, using neutral default")
		importance = 5
	}

	now := time.Now().UTC()
	m := &worldmodel.Memory{
		ID:             uuid.NewString(),
		WorldID:        worldID,
		AgentID:        agentID,
		Kind:           kind,
		Description:    description,
		Embedding:      embedding,
		Importance:     importance,
		CreatedAt:      now,
		LastAccessedAt: now,
		EvidenceIDs:    evidenceIDs,
	}
	if err := s.store.Memories.Put(ctx, m); err != nil {
		return nil, fmt.Errorf("memorystream: put memory: %w", err)
	}

	if s.ann != nil {
		existing, err := s.store.Memories.ListByAgent(ctx, agentID, s.annThreshold)
		if err == nil && len(existing) >= s.annThreshold {
			if err := s.ann.Upsert(ctx, agentID, m); err != nil {
				log.Warn().Err(err).Msg("memorystream: ANN upsert failed, exact scan remains authoritative")
			}
		}
	}

	if s.callbacks.OnAppend != nil {
		s.callbacks.OnAppend(*m)
	}
	return m, nil
}

// RetrieveRelevant implements retrieveRelevant: embed the query, pull a
// bounded window of candidate memories (via the ANN index once the agent's
// stream is large, otherwise the full window), score each by blended
// relevance x recency x importance, break ties by newer timestamp then
// lexicographic ID, and return the top-k descending — touching each
// returned memory's last-accessed time to the retrieval instant, per spec
// §8's "every returned memory's lastAccessed equals the retrieval time".
func (s *Stream) RetrieveRelevant(ctx context.Context, worldID, agentID, query string, topK int) ([]Scored, error) {
	return s.RetrieveRelevantWeighted(ctx, worldID, agentID, query, topK, DefaultWeights())
}

func (s *Stream) RetrieveRelevantWeighted(ctx context.Context, worldID, agentID, query string, topK int, weights Weights) ([]Scored, error) {
	vecs, err := s.gateway.Embed(ctx, worldID, []string{query})
	if err != nil {
		return nil, fmt.Errorf("memorystream: embed query: %w", err)
	}
	queryVec := vecs[0]

	candidates, err := s.loadCandidates(ctx, agentID, queryVec)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	scored := make([]Scored, 0, len(candidates))
	for _, m := range candidates {
		relevance := cosineSimilarity(queryVec, m.Embedding)
		hours := now.Sub(m.LastAccessedAt).Hours()
		recency := recencyScore(hours, s.recencyHalfLife)
		importance := normalizeImportance(m.Importance)
		scored = append(scored, Scored{Memory: m, Score: blendedScore(relevance, recency, importance, weights)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if !scored[i].Memory.CreatedAt.Equal(scored[j].Memory.CreatedAt) {
			return scored[i].Memory.CreatedAt.After(scored[j].Memory.CreatedAt)
		}
		return scored[i].Memory.ID < scored[j].Memory.ID
	})
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}

	s.touchAccessTimes(ctx, scored, now)

	if s.callbacks.OnRetrieve != nil {
		s.callbacks.OnRetrieve(agentID, scored)
	}
	return scored, nil
}

// loadCandidates returns the retrieval window: ANN-narrowed when an index
// is configured and already holds at least annThreshold of the agent's
// memories, otherwise the agent's most recent windowSize memories from the
// Store façade (§9's "windowed load bounded by T"; older memories beyond
// the window are not scored).
func (s *Stream) loadCandidates(ctx context.Context, agentID string, queryVec []float32) ([]*worldmodel.Memory, error) {
	if s.ann != nil {
		if count, err := s.ann.Count(ctx, agentID); err == nil && count >= s.annThreshold {
			ids, err := s.ann.Search(ctx, agentID, queryVec, s.windowSize)
			if err == nil && len(ids) > 0 {
				out := make([]*worldmodel.Memory, 0, len(ids))
				for _, id := range ids {
					m, err := s.store.Memories.Get(ctx, id)
					if err == nil {
						out = append(out, m)
					}
				}
				return out, nil
			}
		}
	}
	return s.store.Memories.ListByAgent(ctx, agentID, s.windowSize)
}

// touchAccessTimes bumps LastAccessedAt on every returned memory to the
// retrieval instant, mirroring evolving.go's access-metric update after
// Search but performed synchronously so the invariant holds on return.
func (s *Stream) touchAccessTimes(ctx context.Context, scored []Scored, at time.Time) {
	for _, sc := range scored {
		m := sc.Memory
		m.LastAccessedAt = at
		_ = s.store.Memories.Put(ctx, m)
	}
}
