package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/llm/llmtest"
	"github.com/lexcodex/planform/tools"
	"github.com/lexcodex/planform/tracker"
	"github.com/lexcodex/planform/workspace"
)

func chatFixture(t *testing.T, model *llmtest.ScriptedModel) (*ChatAgent, *tracker.Tracker) {
	t.Helper()
	mgr, err := workspace.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	ws, err := mgr.Get("proj")
	require.NoError(t, err)
	registry, err := framework.NewToolRegistry(tools.FilesystemTools(ws)...)
	require.NoError(t, err)
	tr := tracker.NewTracker("task", "sess")
	agent := &ChatAgent{
		AgentName:  "DataAnalysisAgent",
		System:     "You analyze data.",
		Model:      model,
		Dispatcher: tools.NewDispatcher(registry, tr, nil),
	}
	return agent, tr
}

func TestChatAgentPlainAnswer(t *testing.T) {
	model := llmtest.NewScriptedModel(llmtest.Reply{Text: "the answer is 42"})
	agent, _ := chatFixture(t, model)

	var events []framework.StreamEvent
	reply, err := agent.Respond(context.Background(), nil, "what is the answer?",
		func(e framework.StreamEvent) { events = append(events, e) })
	require.NoError(t, err)
	require.Equal(t, "the answer is 42", reply)
	require.Len(t, events, 1)
	require.Equal(t, framework.StreamProse, events[0].Type)
}

func TestChatAgentRunsToolLoop(t *testing.T) {
	model := llmtest.NewScriptedModel(
		llmtest.Reply{ToolCalls: []framework.ToolCall{{
			ID: "call_1", Name: "write_file",
			Args: map[string]interface{}{"path": "report.txt", "content": "totals: 99"},
		}}},
		llmtest.Reply{Text: "I wrote the report."},
	)
	agent, tr := chatFixture(t, model)

	var events []framework.StreamEvent
	reply, err := agent.Respond(context.Background(), nil, "save the totals",
		func(e framework.StreamEvent) { events = append(events, e) })
	require.NoError(t, err)
	require.Equal(t, "I wrote the report.", reply)

	_, toolCalls, _ := tr.Snapshot()
	require.Len(t, toolCalls, 1)
	require.True(t, toolCalls[0].Success)

	require.Equal(t, framework.StreamTrace, events[0].Type)
	require.Contains(t, events[0].Text, "[TOOL_CALL_END] tool=write_file")
}

func TestChatAgentSandboxViolationBecomesToolResult(t *testing.T) {
	model := llmtest.NewScriptedModel(
		llmtest.Reply{ToolCalls: []framework.ToolCall{{
			ID: "call_1", Name: "read_file",
			Args: map[string]interface{}{"path": "../../etc/shadow"},
		}}},
		llmtest.Reply{Text: "I cannot read outside the workspace."},
	)
	agent, tr := chatFixture(t, model)

	reply, err := agent.Respond(context.Background(), nil, "read /etc/shadow", func(framework.StreamEvent) {})
	require.NoError(t, err, "sandbox violations surface to the model, not the caller")
	require.Equal(t, "I cannot read outside the workspace.", reply)

	_, toolCalls, _ := tr.Snapshot()
	require.Len(t, toolCalls, 1)
	require.False(t, toolCalls[0].Success)
	require.Contains(t, toolCalls[0].ResultPreview, "Error:")
}

func TestBuildSpecialistsCoversAllCategories(t *testing.T) {
	model := llmtest.NewScriptedModel()
	specialists, fallback := BuildSpecialists(model, nil, nil)
	for _, cat := range []Category{CategoryDataAnalysis, CategoryCodeDev, CategoryResearch, CategoryPlanning, CategoryGeneralChat} {
		require.Contains(t, specialists, cat)
	}
	require.Equal(t, "GeneralChatAgent", fallback.Name())
	require.Same(t, specialists[CategoryGeneralChat], fallback)
}
