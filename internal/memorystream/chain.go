package memorystream

import (
	"context"
	"fmt"

	"genworld/internal/worldmodel"
)

// GetMemoryChain implements getMemoryChain: walks a reflection memory's
// EvidenceIDs back through the memories it was synthesized from, up to
// maxHops deep, with a visited-set to guard against cycles — the depth =
// hops resolution recorded in spec §9's design notes.
func (s *Stream) GetMemoryChain(ctx context.Context, memoryID string, maxHops int) ([]*worldmodel.Memory, error) {
	visited := map[string]bool{}
	var chain []*worldmodel.Memory

	var walk func(id string, hop int) error
	walk = func(id string, hop int) error {
		if hop > maxHops || visited[id] {
			return nil
		}
		visited[id] = true

		m, err := s.store.Memories.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("memorystream: get memory chain: %w", err)
		}
		chain = append(chain, m)

		for _, evID := range m.EvidenceIDs {
			if err := walk(evID, hop+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(memoryID, 0); err != nil {
		return nil, err
	}
	return chain, nil
}
