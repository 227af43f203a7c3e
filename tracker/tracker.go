// Package tracker keeps the per-session execution trace: activities, tool
// calls, and agent transfers, interleaved into the response stream as
// pre-formatted trace lines.
package tracker

import (
	"fmt"
	"sync"
	"time"
)

// Activity is one recorded orchestration step.
type Activity struct {
	Agent       string                 `json:"agent"`
	ActionType  string                 `json:"action_type"`
	Description string                 `json:"description"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Success     bool                   `json:"success"`
	Error       string                 `json:"error,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// ToolCall is one recorded tool invocation, logged exactly once at call end
// with its duration.
type ToolCall struct {
	Tool          string                 `json:"tool"`
	Params        map[string]interface{} `json:"params,omitempty"`
	ResultPreview string                 `json:"result_preview,omitempty"`
	Success       bool                   `json:"success"`
	Error         string                 `json:"error,omitempty"`
	DurationMS    int64                  `json:"duration_ms"`
	Timestamp     time.Time              `json:"timestamp"`
}

// AgentTransfer records a routing decision or fallback handoff.
type AgentTransfer struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Tracker is the in-memory record for one (task, session) pair. It lives for
// the duration of a request session; nothing requires cross-request
// persistence.
type Tracker struct {
	TaskID    string
	SessionID string
	StartTime time.Time

	mu        sync.Mutex
	activities []Activity
	toolCalls  []ToolCall
	transfers  []AgentTransfer
}

// NewTracker starts a fresh trace.
func NewTracker(taskID, sessionID string) *Tracker {
	return &Tracker{TaskID: taskID, SessionID: sessionID, StartTime: time.Now().UTC()}
}

// LogActivity appends one activity record.
func (t *Tracker) LogActivity(agent, actionType, description string, details map[string]interface{}, success bool, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activities = append(t.activities, Activity{
		Agent:       agent,
		ActionType:  actionType,
		Description: description,
		Details:     details,
		Success:     success,
		Error:       errMsg,
		Timestamp:   time.Now().UTC(),
	})
}

// LogToolCall appends one completed tool call.
func (t *Tracker) LogToolCall(tool string, params map[string]interface{}, resultPreview string, success bool, errMsg string, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.toolCalls = append(t.toolCalls, ToolCall{
		Tool:          tool,
		Params:        params,
		ResultPreview: clip(resultPreview, 200),
		Success:       success,
		Error:         errMsg,
		DurationMS:    duration.Milliseconds(),
		Timestamp:     time.Now().UTC(),
	})
}

// LogTransfer appends one agent transfer.
func (t *Tracker) LogTransfer(from, to, reason string, confidence float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transfers = append(t.transfers, AgentTransfer{
		From:       from,
		To:         to,
		Reason:     reason,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	})
}

// Snapshot returns copies of the recorded slices for the trace endpoint.
func (t *Tracker) Snapshot() ([]Activity, []ToolCall, []AgentTransfer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Activity(nil), t.activities...),
		append([]ToolCall(nil), t.toolCalls...),
		append([]AgentTransfer(nil), t.transfers...)
}

// Counts returns the record totals for the closing stream summary.
func (t *Tracker) Counts() (activities, toolCalls, transfers int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.activities), len(t.toolCalls), len(t.transfers)
}

// Elapsed returns time since the trace started.
func (t *Tracker) Elapsed() time.Duration { return time.Since(t.StartTime) }

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Trace line formatting. Lines are emitted into the stream at event
// boundaries, always before any prose that could only exist after the event.

// RoutingLine formats the AGENT_ROUTING header for a routing decision.
func RoutingLine(category, agent string, confidence float64) string {
	return fmt.Sprintf("[AGENT_ROUTING] intent=%s agent=%s confidence=%.2f", category, agent, confidence)
}

// TransferLine formats an AGENT_TRANSFER trace entry.
func TransferLine(tr AgentTransfer) string {
	return fmt.Sprintf("[AGENT_TRANSFER] from=%s to=%s reason=%q confidence=%.2f", tr.From, tr.To, tr.Reason, tr.Confidence)
}

// ToolCallLine formats a TOOL_CALL_END trace entry.
func ToolCallLine(tc ToolCall) string {
	status := "ok"
	if !tc.Success {
		status = "error"
	}
	return fmt.Sprintf("[TOOL_CALL_END] tool=%s status=%s duration_ms=%d", tc.Tool, status, tc.DurationMS)
}

// ErrorLine formats an ERROR trace entry.
func ErrorLine(msg string) string {
	return fmt.Sprintf("[ERROR] %s", msg)
}

// SummaryLine formats the EXECUTION_SUMMARY closing line.
func (t *Tracker) SummaryLine() string {
	activities, tools, transfers := t.Counts()
	return fmt.Sprintf("[EXECUTION_SUMMARY] elapsed_ms=%d tool_calls=%d activities=%d transfers=%d",
		t.Elapsed().Milliseconds(), tools, activities, transfers)
}
