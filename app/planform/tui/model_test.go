package tui

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/planform/framework"
)

func TestFinishTurnMovesBufferIntoFeed(t *testing.T) {
	m := NewModel(NewClient("http://localhost:8000", "p1", "default"))
	m.streaming = true
	m.streamBuf = "[AGENT_ROUTING] Routed to CODING\nHere is the fix."

	m = m.finishTurn(&framework.StreamSummaryData{ElapsedMS: 12, ToolCalls: 1}, nil)

	require.False(t, m.streaming)
	require.Len(t, m.messages, 1)
	require.Equal(t, RoleAgent, m.messages[0].Role)
	require.Contains(t, m.messages[0].Text, "Here is the fix.")
	require.NotNil(t, m.summary)
	require.Equal(t, 1, m.summary.ToolCalls)
}

func TestFinishTurnWithErrorAddsSystemMessage(t *testing.T) {
	m := NewModel(NewClient("http://localhost:8000", "p1", "default"))
	m.streaming = true

	m = m.finishTurn(nil, errConn)

	require.False(t, m.streaming)
	require.Len(t, m.messages, 1)
	require.Equal(t, RoleSystem, m.messages[0].Role)
	require.Contains(t, m.messages[0].Text, "connection refused")
}

var errConn = errTest("connection refused")

type errTest string

func (e errTest) Error() string { return string(e) }
