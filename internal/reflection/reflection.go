// Package reflection implements the Reflection Engine (C4): trigger
// detection on accumulated importance, salient-question generation,
// evidence gathering through the Memory Stream, and insight synthesis —
// fixed at recursion depth 2 per spec §9. Grounded in the teacher's
// synthesis-over-retrieved-memories idiom from
// internal/agent/memory/evolving.go's Synthesize/Evolve pair, adapted from
// chat-history synthesis to reflective insight generation.
package reflection

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"genworld/internal/llmgateway"
	"genworld/internal/memorystream"
	"genworld/internal/observability"
	"genworld/internal/worldmodel"
)

const maxDepth = 2

type Engine struct {
	gateway   *llmgateway.Gateway
	stream    *memorystream.Stream
	threshold float64 // cumulative importance since last reflection that triggers a new pass
}

func New(gw *llmgateway.Gateway, stream *memorystream.Stream, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = 150
	}
	return &Engine{gateway: gw, stream: stream, threshold: threshold}
}

// ShouldTrigger implements the trigger condition: the sum of importance
// scores across memories recorded since the last reflection exceeds the
// configured threshold.
func (e *Engine) ShouldTrigger(recentImportanceSum float64) bool {
	return recentImportanceSum > e.threshold
}

// Run executes one reflection pass for an agent: generate salient
// questions from recent memories, retrieve evidence for each, synthesize
// an insight, and recurse one level deeper on the produced insights (depth
// capped at 2). Returns the newly created reflection memories.
func (e *Engine) Run(ctx context.Context, worldID, agentID string, recent []*worldmodel.Memory) ([]*worldmodel.Memory, error) {
	return e.runDepth(ctx, worldID, agentID, recent, 1)
}

func (e *Engine) runDepth(ctx context.Context, worldID, agentID string, seedMemories []*worldmodel.Memory, depth int) ([]*worldmodel.Memory, error) {
	if depth > maxDepth || len(seedMemories) == 0 {
		return nil, nil
	}
	log := observability.LoggerWithTrace(ctx)

	questions, err := e.generateQuestions(ctx, worldID, seedMemories)
	if err != nil {
		log.Warn().Err(err).Msg("reflection: question generation failed, skipping pass")
		return nil, nil
	}

	var produced []*worldmodel.Memory
	for _, q := range questions {
		evidence, err := e.stream.RetrieveRelevant(ctx, worldID, agentID, q, 10)
		if err != nil {
			log.Warn().Err(err).Str("question", q).Msg("reflection: evidence retrieval failed")
			continue
		}
		if len(evidence) == 0 {
			continue
		}

		insight, evidenceIDs := e.synthesize(ctx, worldID, q, evidence)
		if insight == "" {
			continue
		}

		m, err := e.stream.AddMemory(ctx, worldID, agentID, worldmodel.MemoryReflection, insight, evidenceIDs)
		if err != nil {
			log.Warn().Err(err).Msg("reflection: failed to persist insight")
			continue
		}
		produced = append(produced, m)
	}

	if len(produced) > 0 {
		deeper, err := e.runDepth(ctx, worldID, agentID, produced, depth+1)
		if err == nil {
			produced = append(produced, deeper...)
		}
	}
	return produced, nil
}

// generateQuestions asks the LM for 2-3 salient questions an observer
// could ask about the given memories, the first step of the
// generative-agent reflection procedure.
func (e *Engine) generateQuestions(ctx context.Context, worldID string, memories []*worldmodel.Memory) ([]string, error) {
	const system = "Given a list of statements about a person, what are 2-3 most salient high-level questions we can answer about them? One question per line, no numbering."
	var sb strings.Builder
	for _, m := range memories {
		sb.WriteString("- ")
		sb.WriteString(m.Description)
		sb.WriteString("\n")
	}
	out, err := e.gateway.Complete(ctx, worldID, system, sb.String())
	if err != nil {
		return nil, fmt.Errorf("reflection: generate questions: %w", err)
	}
	return splitLines(out), nil
}

// synthesize asks the LM to produce one high-level insight from the
// retrieved evidence, returning the insight text and the evidence memory
// IDs so GetMemoryChain can later trace the reasoning.
func (e *Engine) synthesize(ctx context.Context, worldID, question string, evidence []memorystream.Scored) (string, []string) {
	const system = "Given the statements below, what high-level insight can you infer? Respond with one sentence of the form: insight (because of statement numbers)."
	var sb strings.Builder
	ids := make([]string, 0, len(evidence))
	for i, sc := range evidence {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, sc.Memory.Description)
		ids = append(ids, sc.Memory.ID)
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)

	out, err := e.gateway.Complete(ctx, worldID, system, sb.String())
	if err != nil {
		return "", nil
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", nil
	}
	return out, ids
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// newReflectionID returns a fresh random UUID; nothing in this module calls
// it.
func newReflectionID() string { return uuid.NewString() }
