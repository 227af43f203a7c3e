package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/planform/framework"
	"github.com/lexcodex/planform/llm/llmtest"
)

var questionSchema = ObjectSchema(map[string]interface{}{
	"sufficient": map[string]interface{}{"type": "boolean"},
	"questions":  StringArraySchema(),
})

type questionsOut struct {
	Sufficient bool     `json:"sufficient"`
	Questions  []string `json:"questions"`
}

func TestStructuredCallHappyPath(t *testing.T) {
	model := llmtest.NewScriptedModel(llmtest.Reply{Text: `{"sufficient":false,"questions":["Which region?"]}`})
	caller := NewStructuredCaller(model)

	var out questionsOut
	err := caller.Call(context.Background(), "you are a planner", "analyze", questionSchema, &out)
	require.NoError(t, err)
	require.False(t, out.Sufficient)
	require.Equal(t, []string{"Which region?"}, out.Questions)
}

func TestStructuredCallStripsFences(t *testing.T) {
	model := llmtest.NewScriptedModel(llmtest.Reply{Text: "```json\n{\"sufficient\":true,\"questions\":[]}\n```"})
	var out questionsOut
	require.NoError(t, NewStructuredCaller(model).Call(context.Background(), "s", "u", questionSchema, &out))
	require.True(t, out.Sufficient)
}

func TestStructuredCallRepairsJSON(t *testing.T) {
	// Trailing comma and single quotes: jsonrepair territory.
	model := llmtest.NewScriptedModel(llmtest.Reply{Text: `{'sufficient': true, 'questions': [],}`})
	var out questionsOut
	require.NoError(t, NewStructuredCaller(model).Call(context.Background(), "s", "u", questionSchema, &out))
	require.True(t, out.Sufficient)
}

func TestStructuredCallRetriesOnSchemaMismatch(t *testing.T) {
	model := llmtest.NewScriptedModel(
		llmtest.Reply{Text: `{"wrong":"shape"}`},
		llmtest.Reply{Text: `{"sufficient":true,"questions":[]}`},
	)
	var out questionsOut
	require.NoError(t, NewStructuredCaller(model).Call(context.Background(), "s", "u", questionSchema, &out))
	require.Len(t, model.Calls, 2)
}

func TestStructuredCallExhaustsBudget(t *testing.T) {
	model := llmtest.NewScriptedModel(
		llmtest.Reply{Err: errors.New("boom")},
		llmtest.Reply{Err: errors.New("boom")},
		llmtest.Reply{Err: errors.New("boom")},
	)
	var out questionsOut
	err := NewStructuredCaller(model).Call(context.Background(), "s", "u", questionSchema, &out)
	require.Error(t, err)
	require.ErrorIs(t, err, framework.ErrAgent)
	require.Len(t, model.Calls, 3, "one attempt plus two retries")
}
