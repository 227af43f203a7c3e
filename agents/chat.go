package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/tools"
	"github.com/lexcodex/planform/tracker"
)

// maxToolRounds bounds the tool loop per message so a confused model cannot
// spin forever.
const maxToolRounds = 6

// ChatAgent is one specialist: a system prompt, a model, and the tool subset
// it may call. Tool results feed back into the conversation until the model
// answers in prose.
type ChatAgent struct {
	AgentName  string
	System     string
	Model      framework.LanguageModel
	Dispatcher *tools.Dispatcher
	Log        *zap.Logger
}

// Name implements Specialist.
func (a *ChatAgent) Name() string { return a.AgentName }

// Respond implements Specialist: run the bounded tool loop, then stream the
// final prose. Tool failures are rendered into the conversation as
// "Error: ..." results and traced, never raised.
func (a *ChatAgent) Respond(ctx context.Context, history []framework.Message, message string, emit func(framework.StreamEvent)) (string, error) {
	messages := make([]framework.Message, 0, len(history)+2)
	messages = append(messages, framework.Message{Role: "system", Content: a.System})
	messages = append(messages, history...)
	messages = append(messages, framework.Message{Role: "user", Content: message})

	var toolset []framework.Tool
	if a.Dispatcher != nil {
		toolset = a.Dispatcher.Registry.All()
	}

	for round := 0; round < maxToolRounds; round++ {
		resp, err := a.Model.ChatWithTools(ctx, messages, toolset, nil)
		if err != nil {
			return "", framework.AgentErr(a.AgentName+" chat failed", err)
		}
		if len(resp.ToolCalls) == 0 {
			if resp.Text != "" {
				emit(framework.StreamEvent{Type: framework.StreamProse, Text: resp.Text})
			}
			return resp.Text, nil
		}
		messages = append(messages, framework.Message{Role: "assistant", Content: resp.Text, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			result, ok := a.dispatch(ctx, call)
			emit(framework.StreamEvent{Type: framework.StreamTrace, Text: tracker.ToolCallLine(tracker.ToolCall{
				Tool: call.Name, Success: ok,
			})})
			messages = append(messages, framework.Message{
				Role: "tool", Name: call.Name, ToolCallID: call.ID, Content: result,
			})
		}
	}
	// Out of rounds: ask for a plain answer with tools withheld.
	resp, err := a.Model.Chat(ctx, append(messages, framework.Message{
		Role: "user", Content: "Summarize the results so far in a direct answer.",
	}), nil)
	if err != nil {
		return "", framework.AgentErr(a.AgentName+" chat failed", err)
	}
	emit(framework.StreamEvent{Type: framework.StreamProse, Text: resp.Text})
	return resp.Text, nil
}

func (a *ChatAgent) dispatch(ctx context.Context, call framework.ToolCall) (string, bool) {
	if a.Dispatcher == nil {
		return "Error: no tools available", false
	}
	return a.Dispatcher.Dispatch(ctx, call.Name, call.Args)
}

// BuildSpecialists constructs the five standard agents over a shared model
// and tool dispatcher, keyed by routing category. The general chat agent
// doubles as the fallback.
func BuildSpecialists(model framework.LanguageModel, dispatcher *tools.Dispatcher, log *zap.Logger) (map[Category]Specialist, Specialist) {
	if log == nil {
		log = zap.NewNop()
	}
	mk := func(name, system string) *ChatAgent {
		return &ChatAgent{AgentName: name, System: system, Model: model, Dispatcher: dispatcher, Log: log.Named(name)}
	}
	general := mk("GeneralChatAgent",
		"You are a helpful general-purpose assistant. Answer directly; use tools only when the task requires them.")
	specialists := map[Category]Specialist{
		CategoryDataAnalysis: mk("DataAnalysisAgent",
			"You analyze data files in the workspace. Read files with your tools before drawing conclusions, and show the numbers behind every claim."),
		CategoryCodeDev: mk("CodeDevelopmentAgent",
			"You write and modify code in the workspace. Read existing files before editing, keep changes minimal, and report exactly what you changed."),
		CategoryResearch: mk("ResearchAgent",
			"You gather and synthesize information. Organize findings under clear headings and separate facts from inference."),
		CategoryPlanning: mk("PlanningAgent",
			"You help organize work: plans, schedules, and progress summaries. Keep recommendations concrete and ordered."),
		CategoryGeneralChat: general,
	}
	return specialists, general
}
