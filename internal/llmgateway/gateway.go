// Package llmgateway implements the LM Gateway (C2): a provider-agnostic
// embed/scoreImportance/complete surface in front of pluggable drivers
// (internal/llmgateway/providers/{openai,anthropic,gemini}), with a
// redis-backed coalescing cache, singleflight in-process request sharing,
// bounded concurrency, and exponential-backoff retries — grounded in the
// teacher's internal/llm.Provider interface and internal/llm/embeddings.go
// concurrency-capped embedding helper.
package llmgateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"

	"genworld/internal/apperr"
)

// CompletionProvider is the narrow contract a concrete LM driver satisfies,
// matching the shape of the teacher's llm.Provider.Chat but trimmed to what
// the cognition components need (no streaming, no tool calls — this domain
// never dispatches tools from the LM).
type CompletionProvider interface {
	Complete(ctx context.Context, systemPrompt, prompt string, model string) (string, error)
	Embed(ctx context.Context, texts []string, model string) ([][]float32, error)
}

// Gateway is the single entrypoint every cognitive component (memory,
// reflection, planning) calls through.
type Gateway struct {
	provider   CompletionProvider
	cache      *Cache // may be nil (no-op) when Redis is not configured
	group      singleflight.Group
	sem        chan struct{}
	embedModel string
	compModel  string
	maxRetries int

	perWorldConcurrency int
	worldMu             sync.Mutex
	worldSems           map[string]chan struct{}
}

type Option func(*Gateway)

func WithCache(c *Cache) Option { return func(g *Gateway) { g.cache = c } }

// WithPerWorldConcurrency bounds how many in-flight LM calls a single world
// may hold at once, in addition to the process-wide cap — spec §4.2/§5's
// "per-world concurrency cap so one busy world cannot starve others."
func WithPerWorldConcurrency(n int) Option {
	return func(g *Gateway) { g.perWorldConcurrency = n }
}

func New(provider CompletionProvider, maxConcurrent int, embedModel, compModel string, maxRetries int, opts ...Option) *Gateway {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	g := &Gateway{
		provider:   provider,
		sem:        make(chan struct{}, maxConcurrent),
		embedModel: embedModel,
		compModel:  compModel,
		maxRetries: maxRetries,
		worldSems:  map[string]chan struct{}{},
	}
	for _, o := range opts {
		o(g)
	}
	if g.perWorldConcurrency <= 0 {
		g.perWorldConcurrency = 4
	}
	return g
}

// worldSem lazily creates the bounded slot channel for worldID, shared by
// every caller naming that world.
func (g *Gateway) worldSem(worldID string) chan struct{} {
	g.worldMu.Lock()
	defer g.worldMu.Unlock()
	ch, ok := g.worldSems[worldID]
	if !ok {
		ch = make(chan struct{}, g.perWorldConcurrency)
		g.worldSems[worldID] = ch
	}
	return ch
}

// acquire takes both the global slot and worldID's slot, so one world
// flooding the gateway with requests cannot starve every other world's
// in-flight budget.
func (g *Gateway) acquire(ctx context.Context, worldID string) error {
	world := g.worldSem(worldID)
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("llmgateway: acquire global slot: %w", ctx.Err())
	}
	select {
	case world <- struct{}{}:
		return nil
	case <-ctx.Done():
		<-g.sem
		return fmt.Errorf("llmgateway: acquire world slot: %w", ctx.Err())
	}
}

func (g *Gateway) release(worldID string) {
	<-g.worldSem(worldID)
	<-g.sem
}

func (g *Gateway) withRetry(ctx context.Context, op func() (string, error)) (string, error) {
	b := backoff.NewExponentialBackOff()
	result, err := backoff.Retry(ctx, func() (string, error) {
		out, err := op()
		if err != nil {
			return "", fmt.Errorf("%w: %v", apperr.ErrTransient, err)
		}
		return out, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(max(1, g.maxRetries))))
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrLMUnavailable, err)
	}
	return result, nil
}

// Complete generates free-form text — used for reflection synthesis, plan
// generation, and action summarization. worldID scopes the per-world
// concurrency cap; pass "" for callers not yet tied to a specific world.
func (g *Gateway) Complete(ctx context.Context, worldID, systemPrompt, prompt string) (string, error) {
	key := cacheKey("complete", g.compModel, systemPrompt, prompt)
	if g.cache != nil {
		if v, ok := g.cache.Get(ctx, key); ok {
			return v, nil
		}
	}

	v, err, _ := g.group.Do(key, func() (any, error) {
		if err := g.acquire(ctx, worldID); err != nil {
			return "", err
		}
		defer g.release(worldID)
		return g.withRetry(ctx, func() (string, error) {
			return g.provider.Complete(ctx, systemPrompt, prompt, g.compModel)
		})
	})
	if err != nil {
		return "", err
	}
	out := v.(string)
	if g.cache != nil {
		g.cache.Set(ctx, key, out)
	}
	return out, nil
}

// Embed returns an embedding vector per input text.
func (g *Gateway) Embed(ctx context.Context, worldID string, texts []string) ([][]float32, error) {
	if err := g.acquire(ctx, worldID); err != nil {
		return nil, err
	}
	defer g.release(worldID)

	var out [][]float32
	b := backoff.NewExponentialBackOff()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		vecs, err := g.provider.Embed(ctx, texts, g.embedModel)
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: %v", apperr.ErrTransient, err)
		}
		out = vecs
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(max(1, g.maxRetries))))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrLMUnavailable, err)
	}
	return out, nil
}

// ScoreImportance asks the LM to rate a memory description 1-10, the
// importance weight used by memorystream's scored retrieval. When the
// gateway is unavailable it returns the neutral default 5 together with the
// error, so callers can log the failure without failing the whole memory
// append; an unparseable reply also scores 5.
func (g *Gateway) ScoreImportance(ctx context.Context, worldID, description string) (float64, error) {
	const system = "You rate the poignancy of a memory for an autonomous agent. Respond with a single integer from 1 (mundane) to 10 (extremely important). No other text."
	out, err := g.Complete(ctx, worldID, system, description)
	if err != nil {
		return 5, err
	}
	score := parseScore(out)
	return score, nil
}
