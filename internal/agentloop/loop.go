// Package agentloop implements the per-agent cognition cycle (C6):
// perceive -> reactive replan -> act -> record, dispatched once per tick by
// the scheduler. Grounded in the teacher's agent/engine.go Run/runLoop step
// structure (call out, apply result, append to history) adapted from a
// chat-completion loop to a simulation tick.
package agentloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"genworld/internal/apperr"
	"genworld/internal/events"
	"genworld/internal/memorystream"
	"genworld/internal/observability"
	"genworld/internal/planning"
	"genworld/internal/reflection"
	"genworld/internal/store"
	"genworld/internal/worldmodel"
)

// Perception is what an agent observes this tick: nearby events plus any
// conversation addressed to it.
type Perception struct {
	Events       []*worldmodel.Event
	AddressedBy  string // non-empty when another agent initiated conversation this tick
	AddressedMsg string
}

// Loop runs one agent's cognition cycle for a world.
type Loop struct {
	store      *store.Store
	stream     *memorystream.Stream
	reflection *reflection.Engine
	planning   *planning.Engine
	events     *events.Processor

	mu     sync.Mutex
	states map[string]*agentState
}

type agentState struct {
	plan               *planning.Plan
	pendingActions     []planning.Action
	activeBlock        string // hourly block the pending minute actions were generated from
	importanceSinceRef float64
}

// currentStep returns the description of the minute-level action the agent
// is presently executing, or "" if none is queued yet.
func (s *agentState) currentStep() string {
	if len(s.pendingActions) == 0 {
		return ""
	}
	return s.pendingActions[0].Description
}

// evaluateObservations folds every event and any addressed conversation
// observed this tick through the replan policy, OR-ing the verdicts of all
// of them together.
func evaluateObservations(perception Perception, currentStep string) planning.ReplanDecision {
	var decision planning.ReplanDecision
	check := func(text string) {
		d := planning.EvaluateReplan(text, currentStep)
		decision.Replan = decision.Replan || d.Replan
		decision.ReplanHourly = decision.ReplanHourly || d.ReplanHourly
	}
	for _, ev := range perception.Events {
		check(describeEvent(ev))
	}
	if perception.AddressedMsg != "" {
		check(perception.AddressedMsg)
	}
	return decision
}

func New(st *store.Store, stream *memorystream.Stream, refl *reflection.Engine, plan *planning.Engine, ev *events.Processor) *Loop {
	return &Loop{store: st, stream: stream, reflection: refl, planning: plan, events: ev, states: map[string]*agentState{}}
}

// CurrentPlan returns the agent's in-memory plan bundle, if one has been
// generated yet, for the debug/introspection HTTP endpoint.
func (l *Loop) CurrentPlan(agentID string) (*planning.Plan, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.states[agentID]
	if !ok || st.plan == nil {
		return nil, false
	}
	return st.plan, true
}

// Step runs perceive -> reactive replan -> act -> record for one agent, for
// the given simulated tick time. Returns the action taken, for callers that
// broadcast it (e.g. httpapi/ws).
func (l *Loop) Step(ctx context.Context, world *worldmodel.World, agent *worldmodel.Agent, perception Perception) (*planning.Action, error) {
	log := observability.LoggerWithTrace(ctx)
	st := l.stateFor(agent.ID)
	l.restorePersistedPlan(st, agent)

	// Perceive: record each observed event as a memory, accumulating the
	// memory's actual scored importance (not a per-event count) toward the
	// reflection trigger, per spec §4.4.
	for _, ev := range perception.Events {
		desc := describeEvent(ev)
		m, err := l.stream.AddMemory(ctx, world.ID, agent.ID, worldmodel.MemoryObservation, desc, nil)
		if err != nil {
			log.Warn().Err(err).Msg("agentloop: failed to record observation")
			continue
		}
		st.importanceSinceRef += m.Importance
	}

	// Reflect when accumulated importance crosses threshold.
	if l.reflection.ShouldTrigger(st.importanceSinceRef) {
		recent, err := l.store.Memories.ListByAgent(ctx, agent.ID, 50)
		if err == nil {
			if _, err := l.reflection.Run(ctx, world.ID, agent.ID, recent); err != nil {
				log.Warn().Err(err).Msg("agentloop: reflection pass failed")
			}
		}
		st.importanceSinceRef = 0
	}

	// Reactive replan: scan this tick's observations against the configured
	// disruption/significant-change markers. A disruption invalidates the
	// current minute queue so nextAction regenerates it from the active
	// hourly block; a significant change additionally regenerates the whole
	// daily plan.
	decision := evaluateObservations(perception, st.currentStep())
	switch {
	case st.plan == nil || decision.ReplanHourly:
		p, err := l.planning.GenerateDaily(ctx, world.ID, agent.ID, agent.Persona, world.CurrentTime)
		if err != nil {
			return nil, fmt.Errorf("agentloop: generate plan: %w", err)
		}
		st.plan = p
		st.pendingActions = nil
		st.activeBlock = ""
	case decision.Replan:
		st.pendingActions = nil
		if st.activeBlock != "" {
			st.plan.Hourly = append([]string{st.activeBlock}, st.plan.Hourly...)
		}
	}

	action := l.nextAction(ctx, world.ID, st, agent, world.CurrentTime, perception)
	l.persistPlan(ctx, agent, st)
	if action == nil {
		return nil, nil
	}

	desc := fmt.Sprintf("%s: %s", agent.Name, action.Description)
	if _, err := l.stream.AddMemory(ctx, world.ID, agent.ID, worldmodel.MemoryObservation, desc, nil); err != nil {
		log.Warn().Err(err).Msg("agentloop: failed to record action")
	}

	if err := l.act(ctx, world, agent, action); err != nil {
		log.Warn().Err(err).Msg("agentloop: act dispatch failed")
	}

	if err := l.events.Process(ctx, &worldmodel.Event{
		WorldID:   world.ID,
		Kind:      worldmodel.EventAction,
		Source:    agent.ID,
		Payload:   map[string]any{"kind": string(action.Kind), "description": action.Description, "target": action.Target},
		CreatedAt: world.CurrentTime,
	}); err != nil {
		log.Warn().Err(err).Msg("agentloop: failed to process resulting event")
	}

	return action, nil
}

// act dispatches the chosen action on its Kind, per spec §4.6: move updates
// the agent's current area; communicate opens or extends a Conversation;
// interact mutates a world object's state; observe records an extra
// observation memory; general performs no world mutation.
func (l *Loop) act(ctx context.Context, world *worldmodel.World, agent *worldmodel.Agent, action *planning.Action) error {
	switch action.Kind {
	case planning.ActionMove:
		return l.actMove(ctx, agent, action)
	case planning.ActionCommunicate:
		return l.actCommunicate(ctx, world, agent, action)
	case planning.ActionInteract:
		return l.actInteract(ctx, world, agent, action)
	case planning.ActionObserve:
		return l.actObserve(ctx, world, agent, action)
	case planning.ActionGeneral:
		return nil
	default:
		return nil
	}
}

func (l *Loop) actMove(ctx context.Context, agent *worldmodel.Agent, action *planning.Action) error {
	if action.Target == "" {
		return nil
	}
	agent.CurrentArea = action.Target
	agent.Status = "acting"
	if err := l.store.Agents.Put(ctx, agent); err != nil {
		return fmt.Errorf("agentloop: move %s: %w", agent.ID, err)
	}
	return nil
}

// actCommunicate opens a new Conversation between the agent and its target
// or extends the active one, and records the target in the acting agent's
// relationship map; the target agent's record is not changed.
func (l *Loop) actCommunicate(ctx context.Context, world *worldmodel.World, agent *worldmodel.Agent, action *planning.Action) error {
	if action.Target == "" {
		return nil
	}
	conv, err := l.store.Conversations.FindActive(ctx, world.ID, agent.ID, action.Target)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("agentloop: find conversation: %w", err)
		}
		conv = &worldmodel.Conversation{
			ID:        newConversationID(),
			WorldID:   world.ID,
			AgentAID:  agent.ID,
			AgentBID:  action.Target,
			StartedAt: world.CurrentTime,
		}
	}
	conv.Turns = append(conv.Turns, worldmodel.ConversationTurn{
		SpeakerID: agent.ID,
		Text:      action.Description,
		At:        world.CurrentTime,
	})
	conv.UpdatedAt = world.CurrentTime
	if err := l.store.Conversations.Put(ctx, conv); err != nil {
		return fmt.Errorf("agentloop: put conversation: %w", err)
	}

	if agent.Relationships == nil {
		agent.Relationships = map[string]string{}
	}
	if _, known := agent.Relationships[action.Target]; !known {
		agent.Relationships[action.Target] = "acquaintance"
	}
	agent.Status = "conversing"
	if err := l.store.Agents.Put(ctx, agent); err != nil {
		return fmt.Errorf("agentloop: update relationship for %s: %w", agent.ID, err)
	}
	return nil
}

// actInteract mutates the state of a world object in the agent's current
// area — the first match by area, since an interact action's Target names
// the activity, not a specific object ID.
func (l *Loop) actInteract(ctx context.Context, world *worldmodel.World, agent *worldmodel.Agent, action *planning.Action) error {
	objects, err := l.store.WorldObjects.ListByWorld(ctx, world.ID)
	if err != nil {
		return fmt.Errorf("agentloop: list world objects: %w", err)
	}
	for _, o := range objects {
		if o.Area != agent.CurrentArea {
			continue
		}
		o.State = action.Description
		if err := l.store.WorldObjects.Put(ctx, o); err != nil {
			return fmt.Errorf("agentloop: update world object %s: %w", o.ID, err)
		}
		return nil
	}
	return nil
}

// actObserve records an additional observation memory beyond the generic
// action memory every Step already appends, since an explicit "observe"
// action is itself a noteworthy perception.
func (l *Loop) actObserve(ctx context.Context, world *worldmodel.World, agent *worldmodel.Agent, action *planning.Action) error {
	desc := fmt.Sprintf("%s observes: %s", agent.Name, action.Description)
	if _, err := l.stream.AddMemory(ctx, world.ID, agent.ID, worldmodel.MemoryObservation, desc, nil); err != nil {
		return fmt.Errorf("agentloop: record observation: %w", err)
	}
	return nil
}

func (l *Loop) stateFor(agentID string) *agentState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.states[agentID]; ok {
		return s
	}
	s := &agentState{}
	l.states[agentID] = s
	return s
}

// restorePersistedPlan loads the agent record's persisted plan into the
// in-process state the first time this process sees the agent — so a
// restart or a second replica resumes the plan instead of regenerating it.
func (l *Loop) restorePersistedPlan(st *agentState, agent *worldmodel.Agent) {
	if st.plan != nil || agent.Plan == nil {
		return
	}
	st.plan = fromPersistedPlan(agent.ID, agent.Plan)
	st.pendingActions = fromPersistedActions(agent.Plan.Actions)
}

// persistPlan writes the in-process plan bundle back onto the agent record,
// per spec §4.5's "plans are persisted on the agent record".
func (l *Loop) persistPlan(ctx context.Context, agent *worldmodel.Agent, st *agentState) {
	if st.plan == nil {
		return
	}
	agent.Plan = toPersistedPlan(st.plan, st.pendingActions)
	if err := l.store.Agents.Put(ctx, agent); err != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(err).Msg("agentloop: failed to persist plan")
	}
}

func toPersistedPlan(p *planning.Plan, pending []planning.Action) *worldmodel.AgentPlan {
	actions := make([]worldmodel.PlannedAction, 0, len(pending))
	for _, a := range pending {
		actions = append(actions, worldmodel.PlannedAction{
			Kind:        string(a.Kind),
			Description: a.Description,
			Target:      a.Target,
			StartsAt:    a.StartsAt,
			Duration:    a.Duration,
		})
	}
	return &worldmodel.AgentPlan{
		Day:         p.Day.Format("2006-01-02"),
		DailyGoal:   p.DailyGoal,
		Hourly:      append([]string(nil), p.Hourly...),
		Actions:     actions,
		GeneratedAt: p.GeneratedAt,
	}
}

func fromPersistedPlan(agentID string, ap *worldmodel.AgentPlan) *planning.Plan {
	day, _ := time.Parse("2006-01-02", ap.Day)
	return &planning.Plan{
		AgentID:     agentID,
		Day:         day,
		DailyGoal:   ap.DailyGoal,
		Hourly:      append([]string(nil), ap.Hourly...),
		GeneratedAt: ap.GeneratedAt,
	}
}

func fromPersistedActions(actions []worldmodel.PlannedAction) []planning.Action {
	if len(actions) == 0 {
		return nil
	}
	out := make([]planning.Action, 0, len(actions))
	for _, a := range actions {
		out = append(out, planning.Action{
			Kind:        planning.ActionKind(a.Kind),
			Description: a.Description,
			Target:      a.Target,
			StartsAt:    a.StartsAt,
			Duration:    a.Duration,
		})
	}
	return out
}

// nextAction pops the next pending minute-level action, generating the
// current hour's decomposition lazily when the queue is empty.
func (l *Loop) nextAction(ctx context.Context, worldID string, st *agentState, agent *worldmodel.Agent, now time.Time, perception Perception) *planning.Action {
	if perception.AddressedBy != "" {
		a := &planning.Action{
			Kind:        planning.ActionCommunicate,
			Description: "respond to " + perception.AddressedBy,
			Target:      perception.AddressedBy,
			StartsAt:    now,
			Duration:    time.Minute,
		}
		return a
	}

	if len(st.pendingActions) == 0 && st.plan != nil && len(st.plan.Hourly) > 0 {
		block := st.plan.Hourly[0]
		actions, err := l.planning.GenerateMinuteActions(ctx, worldID, block, now, time.Hour)
		if err == nil {
			st.pendingActions = actions
		}
		st.activeBlock = block
		st.plan.Hourly = st.plan.Hourly[1:]
	}

	if len(st.pendingActions) == 0 {
		return nil
	}
	a := st.pendingActions[0]
	st.pendingActions = st.pendingActions[1:]
	return &a
}

func newConversationID() string { return uuid.NewString() }

func describeEvent(ev *worldmodel.Event) string {
	if desc, ok := ev.Payload["description"].(string); ok && desc != "" {
		return desc
	}
	return fmt.Sprintf("observed %s event from %s", ev.Kind, ev.Source)
}
