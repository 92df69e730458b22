// Package events implements the Event Processor & Broadcast (C8):
// processEvent applies a consequence rule table, persists the event, and
// fans it out to in-process subscribers keyed by (worldID, kind) plus an
// optional durable Kafka transport for remote subscribers — grounded in
// the teacher's a2a/sse and a2a/push packages for the push-style delivery
// idiom, generalized to a pub/sub fan-out.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"genworld/internal/observability"
	"genworld/internal/store"
	"genworld/internal/worldmodel"
)

// ConsequenceRule maps an observed event to zero or more follow-on events
// synthesized by the processor — e.g. a "world_change" to an area implies
// an "observation" event for every agent currently in that area.
type ConsequenceRule func(ctx context.Context, st *store.Store, ev *worldmodel.Event) ([]*worldmodel.Event, error)

// Subscription is returned by Subscribe; call Close to stop receiving and
// release the channel — the disposer-based lifecycle spec §4.8 calls for.
type Subscription struct {
	ch     chan *worldmodel.Event
	cancel func()
}

func (s *Subscription) C() <-chan *worldmodel.Event { return s.ch }
func (s *Subscription) Close()                      { s.cancel() }

type subscriberKey struct {
	worldID string
	kind    worldmodel.EventKind // "" subscribes to all kinds in the world
}

// Processor owns the consequence rule table and subscriber registry for a
// process. One Processor typically serves every world the process hosts.
type Processor struct {
	store   *store.Store
	rules   []ConsequenceRule
	kafka   DurableTransport // nil disables durable fan-out

	mu   sync.RWMutex
	subs map[subscriberKey]map[int64]*Subscription
	next int64
}

// DurableTransport is implemented by internal/events/kafka for remote
// subscribers; kept as an interface so the in-process processor never
// hard-depends on a broker being reachable.
type DurableTransport interface {
	Publish(ctx context.Context, ev *worldmodel.Event) error
}

func New(st *store.Store, kafka DurableTransport, rules ...ConsequenceRule) *Processor {
	return &Processor{
		store: st,
		rules: rules,
		kafka: kafka,
		subs:  map[subscriberKey]map[int64]*Subscription{},
	}
}

// Process implements processEvent: persists the event, applies every
// consequence rule (each may emit further events, processed recursively —
// rules are expected to be non-cyclic; the processor does not itself guard
// against rule authors creating an infinite cascade), and fans the event
// out to subscribers.
func (p *Processor) Process(ctx context.Context, ev *worldmodel.Event) error {
	log := observability.LoggerWithTrace(ctx)

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if err := p.store.Events.Put(ctx, ev); err != nil {
		return fmt.Errorf("events: persist: %w", err)
	}

	p.broadcast(ev)
	if p.kafka != nil {
		if err := p.kafka.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Msg("events: durable publish failed, in-process subscribers still notified")
		}
	}

	for _, rule := range p.rules {
		consequences, err := rule(ctx, p.store, ev)
		if err != nil {
			log.Warn().Err(err).Msg("events: consequence rule failed")
			continue
		}
		for _, c := range consequences {
			if err := p.Process(ctx, c); err != nil {
				log.Warn().Err(err).Msg("events: failed to process consequence event")
			}
		}
	}
	return nil
}

// Subscribe registers a channel that receives every event for worldID of
// the given kind ("" for all kinds), buffered so a slow consumer cannot
// block the processor.
func (p *Processor) Subscribe(worldID string, kind worldmodel.EventKind) *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := subscriberKey{worldID: worldID, kind: kind}
	id := p.next
	p.next++

	sub := &Subscription{ch: make(chan *worldmodel.Event, 64)}
	sub.cancel = func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if m, ok := p.subs[key]; ok {
			delete(m, id)
		}
		close(sub.ch)
	}

	if p.subs[key] == nil {
		p.subs[key] = map[int64]*Subscription{}
	}
	p.subs[key][id] = sub
	return sub
}

func (p *Processor) broadcast(ev *worldmodel.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, key := range []subscriberKey{{worldID: ev.WorldID, kind: ev.Kind}, {worldID: ev.WorldID, kind: ""}} {
		for _, sub := range p.subs[key] {
			select {
			case sub.ch <- ev:
			default:
				// Drop rather than block the processor; subscribers that fall
				// behind lose the tail of the stream, matching at-most-once
				// in-process delivery — durable consumers should use Kafka.
			}
		}
	}
}
