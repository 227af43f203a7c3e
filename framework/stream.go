package framework

// StreamEventType enumerates the variants a response stream can carry.
type StreamEventType string

const (
	StreamProse   StreamEventType = "message_chunk"
	StreamTrace   StreamEventType = "trace"
	StreamError   StreamEventType = "error"
	StreamSummary StreamEventType = "completion"
)

// StreamEvent is one element of a streamed response. A single writer drains
// the channel and serializes events to the HTTP body; producers never write
// to two streams for one client.
type StreamEvent struct {
	Type StreamEventType `json:"type"`
	// Text holds prose for StreamProse, the pre-formatted trace line for
	// StreamTrace, and the error message for StreamError.
	Text string `json:"text,omitempty"`
	// Summary is set only on the terminal StreamSummary event.
	Summary *StreamSummaryData `json:"summary,omitempty"`
}

// StreamSummaryData closes every successful stream.
type StreamSummaryData struct {
	ElapsedMS     int64 `json:"elapsed_ms"`
	ToolCalls     int   `json:"tool_calls"`
	Activities    int   `json:"activities"`
	AgentTransfers int  `json:"agent_transfers"`
}
