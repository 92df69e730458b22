// Package qdrant implements memorystream.ANNIndex on top of
// github.com/qdrant/go-client, refreshed on append once an agent crosses
// the configured ANN threshold (spec §9 "large-memory indexing").
package qdrant

import (
	"context"
	"fmt"

	qc "github.com/qdrant/go-client/qdrant"

	"genworld/internal/worldmodel"
)

const collection = "genworld_memories"

type Index struct {
	client *qc.Client
	dim    uint64
}

func New(ctx context.Context, addr string, dim uint64) (*Index, error) {
	client, err := qc.NewClient(&qc.Config{Host: addr})
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect: %w", err)
	}
	idx := &Index{client: client, dim: dim}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (i *Index) ensureCollection(ctx context.Context) error {
	exists, err := i.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("qdrant: check collection: %w", err)
	}
	if exists {
		return nil
	}
	return i.client.CreateCollection(ctx, &qc.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
			Size:     i.dim,
			Distance: qc.Distance_Cosine,
		}),
	})
}

func (i *Index) Upsert(ctx context.Context, agentID string, m *worldmodel.Memory) error {
	if len(m.Embedding) == 0 {
		return nil
	}
	_, err := i.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: collection,
		Points: []*qc.PointStruct{{
			Id:      qc.NewID(m.ID),
			Vectors: qc.NewVectors(m.Embedding...),
			Payload: qc.NewValueMap(map[string]any{"agent_id": agentID}),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert: %w", err)
	}
	return nil
}

func (i *Index) Search(ctx context.Context, agentID string, query []float32, topK int) ([]string, error) {
	limit := uint64(topK)
	results, err := i.client.Query(ctx, &qc.QueryPoints{
		CollectionName: collection,
		Query:          qc.NewQuery(query...),
		Filter: &qc.Filter{
			Must: []*qc.Condition{qc.NewMatch("agent_id", agentID)},
		},
		Limit: &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query: %w", err)
	}
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Id.GetUuid())
	}
	return ids, nil
}

func (i *Index) Count(ctx context.Context, agentID string) (int, error) {
	exact := true
	count, err := i.client.Count(ctx, &qc.CountPoints{
		CollectionName: collection,
		Filter: &qc.Filter{
			Must: []*qc.Condition{qc.NewMatch("agent_id", agentID)},
		},
		Exact: &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count: %w", err)
	}
	return int(count), nil
}
