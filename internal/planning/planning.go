// Package planning implements the Planning Engine (C5): hierarchical
// daily/hourly/minute plans, a replan policy triggered by disruption or
// significant world change, action-kind classification, and LM-unavailable
// fallbacks — grounded in the teacher's agent/engine.go step-loop idiom
// (LM call -> structured result -> persisted state) adapted from a
// tool-dispatch loop to a planning hierarchy.
package planning

import (
	"context"
	"strings"
	"time"

	"genworld/internal/llmgateway"
	"genworld/internal/memorystream"
	"genworld/internal/observability"
)

// ActionKind classifies a planned action so the agent loop knows how to
// dispatch it (spec §4.6 names move/communicate/interact/observe/general).
type ActionKind string

const (
	ActionMove        ActionKind = "move"
	ActionCommunicate ActionKind = "communicate"
	ActionInteract    ActionKind = "interact"
	ActionObserve     ActionKind = "observe"
	ActionGeneral     ActionKind = "general"
)

// disruptionMarkers trigger a minute-plan replan when present in an
// observation (spec §4.5's configured disruption-marker set).
var disruptionMarkers = []string{"unexpected", "blocked", "interrupted", "emergency", "cancelled", "conflict"}

// significantChangeMarkers additionally force an hourly-plan regeneration.
var significantChangeMarkers = []string{"emergency", "urgent", "changed location"}

// Action is one step of a minute-level plan.
type Action struct {
	Kind        ActionKind
	Description string
	Target      string // area, agent ID, or object ID depending on Kind
	StartsAt    time.Time
	Duration    time.Duration
}

// Plan is the full hierarchy for one agent: a daily outline broken into
// hourly blocks broken into minute-level actions, as spec §4.5 describes.
type Plan struct {
	AgentID    string
	Day        time.Time
	DailyGoal  string
	Hourly     []string // one entry per hour block, high-level description
	Actions    []Action // minute-level, flattened and ordered
	GeneratedAt time.Time
}

type Engine struct {
	gateway *llmgateway.Gateway
	stream  *memorystream.Stream
}

func New(gw *llmgateway.Gateway, stream *memorystream.Stream) *Engine {
	return &Engine{gateway: gw, stream: stream}
}

// GenerateDaily produces the top-level daily plan, grounded on the agent's
// persona and its memories most relevant to the day's priorities. On LM
// outage it falls back to a single "routine activity" block rather than
// failing the tick (spec's degraded LM path).
func (e *Engine) GenerateDaily(ctx context.Context, worldID, agentID, persona string, day time.Time) (*Plan, error) {
	log := observability.LoggerWithTrace(ctx)

	evidence, err := e.stream.RetrieveRelevant(ctx, worldID, agentID, "today's priorities and commitments", 10)
	if err != nil {
		log.Warn().Err(err).Msg("planning: evidence retrieval failed, planning from persona alone")
	}

	const system = "You are planning a single day for a character. Given their persona and recent memories, write a one-sentence daily goal, then a list of 5-8 broad time blocks (e.g. '7am-9am: wake up, breakfast'). Format: first line is the goal, following lines are 'HH:MM-HH:MM: activity'."
	prompt := buildDailyPrompt(persona, evidence, day)

	out, err := e.gateway.Complete(ctx, worldID, system, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("planning: LM unavailable, using fallback daily plan")
		return fallbackDailyPlan(agentID, day), nil
	}

	goal, hourly := parseDailyPlan(out)
	if goal == "" {
		return fallbackDailyPlan(agentID, day), nil
	}
	return &Plan{AgentID: agentID, Day: day, DailyGoal: goal, Hourly: hourly, GeneratedAt: time.Now().UTC()}, nil
}

func buildDailyPrompt(persona string, evidence []memorystream.Scored, day time.Time) string {
	var sb strings.Builder
	sb.WriteString("Persona: ")
	sb.WriteString(persona)
	sb.WriteString("\nDate: ")
	sb.WriteString(day.Format("2006-01-02"))
	if len(evidence) > 0 {
		sb.WriteString("\nRecent memories:\n")
		for _, sc := range evidence {
			sb.WriteString("- ")
			sb.WriteString(sc.Memory.Description)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func parseDailyPlan(out string) (string, []string) {
	lines := splitNonEmptyLines(out)
	if len(lines) == 0 {
		return "", nil
	}
	return lines[0], lines[1:]
}

func fallbackDailyPlan(agentID string, day time.Time) *Plan {
	return &Plan{
		AgentID:     agentID,
		Day:         day,
		DailyGoal:   "go about a typical day",
		Hourly:      []string{"9:00-17:00: routine activity"},
		GeneratedAt: time.Now().UTC(),
	}
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ReplanDecision reports what layers of the plan must be regenerated.
type ReplanDecision struct {
	Replan        bool // minute plan must be regenerated
	ReplanHourly  bool // additionally regenerate the hourly plan
}

// EvaluateReplan implements the replan policy: checks the observation text
// for disruption markers (minute replan) and significant-change markers
// (also hourly replan), or an explicit contradiction of the current
// minute step.
func EvaluateReplan(observation, currentMinuteStep string) ReplanDecision {
	lower := strings.ToLower(observation)
	disruption := containsAny(lower, disruptionMarkers) || contradicts(lower, currentMinuteStep)
	significant := containsAny(lower, significantChangeMarkers)
	return ReplanDecision{Replan: disruption, ReplanHourly: disruption && significant}
}

func containsAny(haystack string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(haystack, m) {
			return true
		}
	}
	return false
}

// contradicts is a minimal heuristic: an observation explicitly mentioning
// "cancelled" or "closed" alongside a noun from the current step text
// counts as a contradiction (e.g. step "walk to cafe", observation "the
// cafe is cancelled today").
func contradicts(observationLower, currentMinuteStep string) bool {
	if currentMinuteStep == "" {
		return false
	}
	if !strings.Contains(observationLower, "cancelled") && !strings.Contains(observationLower, "closed") {
		return false
	}
	for _, word := range strings.Fields(strings.ToLower(currentMinuteStep)) {
		if len(word) > 3 && strings.Contains(observationLower, word) {
			return true
		}
	}
	return false
}

// ClassifyAction infers an ActionKind from free-form plan text using
// keyword heuristics, the same low-cost classification style as the
// teacher's evolving.go memory-type classifier (classifyMemoryType).
func ClassifyAction(text string) ActionKind {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "talk") || strings.Contains(lower, "ask") || strings.Contains(lower, "tell") || strings.Contains(lower, "greet"):
		return ActionCommunicate
	case strings.Contains(lower, "walk") || strings.Contains(lower, "go to") || strings.Contains(lower, "head to") || strings.Contains(lower, "move"):
		return ActionMove
	case strings.Contains(lower, "use") || strings.Contains(lower, "open") || strings.Contains(lower, "pick up") || strings.Contains(lower, "turn on"):
		return ActionInteract
	case strings.Contains(lower, "observe") || strings.Contains(lower, "watch") || strings.Contains(lower, "look"):
		return ActionObserve
	default:
		return ActionGeneral
	}
}

// GenerateMinuteActions decomposes one hourly block into minute-level
// actions. Falls back to a single general action spanning the block on LM
// outage.
func (e *Engine) GenerateMinuteActions(ctx context.Context, worldID, block string, blockStart time.Time, blockDuration time.Duration) ([]Action, error) {
	log := observability.LoggerWithTrace(ctx)
	const system = "Decompose this hour-long activity into 3-6 smaller steps of 5-20 minutes each. One step per line, imperative form, no numbering."

	out, err := e.gateway.Complete(ctx, worldID, system, block)
	if err != nil {
		log.Warn().Err(err).Msg("planning: minute decomposition failed, using single block fallback")
		return []Action{{Kind: ActionGeneral, Description: "observe and choose next action", StartsAt: blockStart, Duration: blockDuration}}, nil
	}

	steps := splitNonEmptyLines(out)
	if len(steps) == 0 {
		return []Action{{Kind: ActionGeneral, Description: "observe and choose next action", StartsAt: blockStart, Duration: blockDuration}}, nil
	}

	step := blockDuration / time.Duration(len(steps))
	actions := make([]Action, 0, len(steps))
	cursor := blockStart
	for _, s := range steps {
		actions = append(actions, Action{
			Kind:        ClassifyAction(s),
			Description: s,
			StartsAt:    cursor,
			Duration:    step,
		})
		cursor = cursor.Add(step)
	}
	return actions, nil
}
