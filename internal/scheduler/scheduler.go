// Package scheduler implements the World Tick Scheduler (C7): the
// running/paused/stopped state machine, per-tick bounded agent fan-out via
// errgroup, a per-tick deadline, and currentTime persistence — grounded in
// the teacher's dispatchTools/augmentWithMemory bounded-parallelism idiom
// (agent/engine.go), generalized from per-request tool fan-out to
// per-tick agent fan-out with golang.org/x/sync/errgroup.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"genworld/internal/agentloop"
	"genworld/internal/apperr"
	"genworld/internal/events"
	"genworld/internal/observability"
	"genworld/internal/store"
	"genworld/internal/worldmodel"
)

// PerceptionBuilder resolves what each agent perceives this tick; supplied
// by the caller (cmd/worldd) so the scheduler stays decoupled from the
// conversation/event-query details.
type PerceptionBuilder func(ctx context.Context, world *worldmodel.World, agent *worldmodel.Agent) (agentloop.Perception, error)

// Scheduler advances the clock of every world it has started, each on its
// own background loop, running every live agent's cognition loop each tick.
type Scheduler struct {
	store      *store.Store
	loop       *agentloop.Loop
	events     *events.Processor
	perceive   PerceptionBuilder
	maxAgents  int
	tickEvery  time.Duration
	tickBudget time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc // worldID -> stop signal for its run loop
}

func New(st *store.Store, loop *agentloop.Loop, ev *events.Processor, perceive PerceptionBuilder, maxAgents int, tickEvery, tickBudget time.Duration) *Scheduler {
	if maxAgents <= 0 {
		maxAgents = 16
	}
	return &Scheduler{
		store: st, loop: loop, events: ev, perceive: perceive,
		maxAgents: maxAgents, tickEvery: tickEvery, tickBudget: tickBudget,
		cancels: map[string]context.CancelFunc{},
	}
}

// Start transitions a world to running and launches its background tick
// loop. Idempotent: starting an already-running world is a no-op.
func (s *Scheduler) Start(ctx context.Context, worldID string) error {
	s.mu.Lock()
	if _, running := s.cancels[worldID]; running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancels[worldID] = cancel
	s.mu.Unlock()

	w, err := s.store.Worlds.Get(ctx, worldID)
	if err != nil {
		cancel()
		return err
	}
	w.State = worldmodel.StateRunning
	if err := s.store.Worlds.Put(ctx, w); err != nil {
		cancel()
		return fmt.Errorf("scheduler: start: %w", err)
	}

	go s.runLoop(runCtx, worldID)
	return nil
}

// Pause transitions a world to paused; its tick loop idles without
// advancing the clock until Resume or Stop.
func (s *Scheduler) Pause(ctx context.Context, worldID string) error {
	return s.setState(ctx, worldID, worldmodel.StatePaused)
}

func (s *Scheduler) Resume(ctx context.Context, worldID string) error {
	return s.setState(ctx, worldID, worldmodel.StateRunning)
}

// Stop transitions a world to stopped and cancels its background loop.
func (s *Scheduler) Stop(ctx context.Context, worldID string) error {
	s.mu.Lock()
	cancel, ok := s.cancels[worldID]
	if ok {
		delete(s.cancels, worldID)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return s.setState(ctx, worldID, worldmodel.StateStopped)
}

func (s *Scheduler) setState(ctx context.Context, worldID string, state worldmodel.RunState) error {
	w, err := s.store.Worlds.Get(ctx, worldID)
	if err != nil {
		return err
	}
	w.State = state
	if err := s.store.Worlds.Put(ctx, w); err != nil {
		return fmt.Errorf("scheduler: set state: %w", err)
	}
	return nil
}

func (s *Scheduler) runLoop(ctx context.Context, worldID string) {
	log := observability.LoggerWithTrace(ctx)
	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w, err := s.store.Worlds.Get(ctx, worldID)
			if err != nil {
				log.Error().Err(err).Str("world_id", worldID).Msg("scheduler: failed to load world, stopping loop")
				return
			}
			if w.State != worldmodel.StateRunning {
				continue
			}
			if err := s.Tick(ctx, w); err != nil {
				log.Error().Err(err).Str("world_id", worldID).Msg("scheduler: tick failed")
			}
		}
	}
}

// Tick advances the world clock by one step and runs every agent's
// cognition cycle concurrently, bounded by maxAgents and a per-tick
// deadline. An agent whose step errors does not fail the tick for others;
// errors are logged and that agent simply carries state into the next tick.
func (s *Scheduler) Tick(ctx context.Context, w *worldmodel.World) error {
	tickCtx := ctx
	var cancel context.CancelFunc
	if s.tickBudget > 0 {
		tickCtx, cancel = context.WithTimeout(ctx, s.tickBudget)
		defer cancel()
	}

	agents, err := s.store.Agents.ListByWorld(ctx, w.ID)
	if err != nil {
		return fmt.Errorf("scheduler: list agents: %w", err)
	}

	g, gctx := errgroup.WithContext(tickCtx)
	g.SetLimit(s.maxAgents)

	for _, a := range agents {
		a := a
		g.Go(func() error {
			perception, err := s.perceive(gctx, w, a)
			if err != nil {
				observability.LoggerWithTrace(gctx).Warn().Err(err).Str("agent_id", a.ID).Msg("scheduler: perception build failed")
				return nil
			}
			if _, err := s.loop.Step(gctx, w, a, perception); err != nil {
				observability.LoggerWithTrace(gctx).Warn().Err(err).Str("agent_id", a.ID).Msg("scheduler: agent step failed")
			}
			return nil
		})
	}
	_ = g.Wait() // per-agent errors are swallowed above, so every goroutine returns nil and Wait reports no error

	w.CurrentTime = w.CurrentTime.Add(time.Duration(float64(s.tickEvery) * w.SpeedFactor))
	w.TickSeq++
	if err := s.store.Worlds.Put(ctx, w); err != nil {
		return fmt.Errorf("%w: persist tick: %v", apperr.ErrTransient, err)
	}
	return nil
}
