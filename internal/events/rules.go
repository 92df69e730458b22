package events

import (
	"context"

	"genworld/internal/store"
	"genworld/internal/worldmodel"
)

// AreaObservationRule is a ConsequenceRule: a world_change event scoped to
// an area produces an observation event for every agent currently in that
// area, so nearby agents perceive the change on their next tick.
func AreaObservationRule(ctx context.Context, st *store.Store, ev *worldmodel.Event) ([]*worldmodel.Event, error) {
	if ev.Kind != worldmodel.EventWorldChange {
		return nil, nil
	}
	area, _ := ev.Payload["area"].(string)
	if area == "" {
		return nil, nil
	}
	agents, err := st.Agents.ListByWorld(ctx, ev.WorldID)
	if err != nil {
		return nil, err
	}

	var out []*worldmodel.Event
	for _, a := range agents {
		if a.CurrentArea != area {
			continue
		}
		out = append(out, &worldmodel.Event{
			WorldID: ev.WorldID,
			Kind:    worldmodel.EventObservation,
			Source:  "world",
			Payload: map[string]any{
				"description": "noticed a change nearby: " + describeChange(ev),
				"agent_id":    a.ID,
			},
		})
	}
	return out, nil
}

func describeChange(ev *worldmodel.Event) string {
	if desc, ok := ev.Payload["description"].(string); ok {
		return desc
	}
	return "something changed"
}
