package agents

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/tracker"
)

// Category is an intent class a user message can route to.
type Category string

const (
	CategoryDataAnalysis Category = "DATA_ANALYSIS"
	CategoryCodeDev      Category = "CODE_DEVELOPMENT"
	CategoryResearch     Category = "RESEARCH"
	CategoryPlanning     Category = "PLANNING"
	CategoryGeneralChat  Category = "GENERAL_CHAT"
)

// RouteThreshold is the minimum keyword score a category must reach; below
// it the message falls through to general chat with full confidence.
const RouteThreshold = 0.1

// categoryKeywords is the fixed vocabulary the intent scorer matches on.
// Classification is deterministic on purpose: no LLM call, bounded latency,
// and a trace a human can follow.
var categoryKeywords = map[Category][]string{
	CategoryDataAnalysis: {
		"data", "csv", "dataset", "analyze", "analysis", "statistics", "chart",
		"plot", "graph", "metrics", "aggregate", "correlation", "trend", "excel",
	},
	CategoryCodeDev: {
		"code", "function", "bug", "debug", "implement", "refactor", "compile",
		"script", "program", "api", "class", "test", "error", "library",
	},
	CategoryResearch: {
		"research", "find", "search", "investigate", "compare", "sources",
		"literature", "explore", "survey", "background", "overview",
	},
	CategoryPlanning: {
		"plan", "planning", "schedule", "milestone", "roadmap", "stages",
		"timeline", "organize", "breakdown", "strategy", "prioritize",
	},
}

// routingOrder fixes tie-breaking so equal scores always pick the same
// category.
var routingOrder = []Category{
	CategoryDataAnalysis, CategoryCodeDev, CategoryResearch, CategoryPlanning,
}

// AnalyzeIntent scores the message against each category's keywords. Score =
// keyword matches / total tokens. Pure function of the message text.
func AnalyzeIntent(message string) (Category, float64) {
	tokens := tokenize(message)
	if len(tokens) == 0 {
		return CategoryGeneralChat, 1.0
	}
	best := CategoryGeneralChat
	bestScore := 0.0
	for _, cat := range routingOrder {
		keywords := make(map[string]bool, len(categoryKeywords[cat]))
		for _, k := range categoryKeywords[cat] {
			keywords[k] = true
		}
		matches := 0
		for _, tok := range tokens {
			if keywords[tok] {
				matches++
			}
		}
		score := float64(matches) / float64(len(tokens))
		if score > bestScore {
			best, bestScore = cat, score
		}
	}
	if bestScore < RouteThreshold {
		return CategoryGeneralChat, 1.0
	}
	return best, bestScore
}

func tokenize(message string) []string {
	lowered := strings.ToLower(message)
	return strings.FieldsFunc(lowered, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

// Specialist handles one category of user messages, streaming events through
// emit and returning the final reply text.
type Specialist interface {
	Name() string
	Respond(ctx context.Context, history []framework.Message, message string, emit func(framework.StreamEvent)) (string, error)
}

// Router classifies a message, delegates to the matching specialist, and
// falls back to general chat when the specialist fails mid-stream.
type Router struct {
	Specialists map[Category]Specialist
	Fallback    Specialist
	Log         *zap.Logger
}

// NewRouter wires the router over a specialist set. Fallback must be the
// general chat agent; it is also the target of sub-threshold messages.
func NewRouter(specialists map[Category]Specialist, fallback Specialist, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{Specialists: specialists, Fallback: fallback, Log: log.Named("router")}
}

// Handle routes one message end to end: classify, trace the decision, stream
// the specialist's response, and close with the execution summary. The final
// reply text is returned for session persistence. Handle never returns an
// error once the fallback chain is exhausted; the failure is streamed
// instead so the client sees a clean close.
func (r *Router) Handle(ctx context.Context, tr *tracker.Tracker, history []framework.Message, message string, emit func(framework.StreamEvent)) string {
	category, confidence := AnalyzeIntent(message)
	specialist := r.Specialists[category]
	if specialist == nil {
		specialist = r.Fallback
	}

	emit(framework.StreamEvent{Type: framework.StreamTrace, Text: tracker.RoutingLine(string(category), specialist.Name(), confidence)})
	tr.LogTransfer("Router", specialist.Name(), "intent "+string(category), confidence)
	tr.LogActivity("Router", "AGENT_ROUTING", "routed message to "+specialist.Name(),
		map[string]interface{}{"category": string(category), "confidence": confidence}, true, "")
	emit(framework.StreamEvent{Type: framework.StreamTrace, Text: tracker.TransferLine(tracker.AgentTransfer{
		From: "Router", To: specialist.Name(), Reason: "intent " + string(category), Confidence: confidence,
	})})

	reply, err := specialist.Respond(ctx, history, string(category)+": "+message, emit)
	if err != nil && specialist != r.Fallback {
		r.Log.Warn("specialist failed, falling back",
			zap.String("specialist", specialist.Name()), zap.Error(err))
		tr.LogTransfer(specialist.Name(), r.Fallback.Name(), "FALLBACK", 0)
		emit(framework.StreamEvent{Type: framework.StreamTrace, Text: tracker.TransferLine(tracker.AgentTransfer{
			From: specialist.Name(), To: r.Fallback.Name(), Reason: "FALLBACK",
		})})
		reply, err = r.Fallback.Respond(ctx, history, message, emit)
	}
	if err != nil {
		tr.LogActivity(specialist.Name(), "ERROR", "response failed", nil, false, err.Error())
		emit(framework.StreamEvent{Type: framework.StreamTrace, Text: tracker.ErrorLine(err.Error())})
		emit(framework.StreamEvent{Type: framework.StreamError, Text: err.Error()})
	}

	emit(framework.StreamEvent{Type: framework.StreamTrace, Text: tr.SummaryLine()})
	activities, toolCalls, transfers := tr.Counts()
	emit(framework.StreamEvent{Type: framework.StreamSummary, Summary: &framework.StreamSummaryData{
		ElapsedMS:      tr.Elapsed().Milliseconds(),
		ToolCalls:      toolCalls,
		Activities:     activities,
		AgentTransfers: transfers,
	}})
	return reply
}
