package framework

import "context"

// Message is used for chat-like interactions with a language model.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall encodes a function invocation requested by the LLM.
type ToolCall struct {
	ID   string                 `json:"id,omitempty"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// LLMOptions carries per-call overrides. A zero value means "use the client
// default" for every knob.
type LLMOptions struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	Stop         []string
	TopP         float64
	// ResponseSchema, when non-nil, asks the provider for JSON constrained to
	// the given JSON-schema document. Providers that cannot enforce it still
	// receive it as guidance inside the prompt.
	ResponseSchema map[string]interface{}
}

// LLMResponse is the result of a language model invocation.
type LLMResponse struct {
	Text         string         `json:"text,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
	Usage        map[string]int `json:"usage,omitempty"`
	ToolCalls    []ToolCall     `json:"tool_calls,omitempty"`
}

// LanguageModel provides the LLM capabilities the platform needs. The
// planning facade uses Chat for structured-output calls; the specialist chat
// agents additionally stream partial text and request tool invocations.
type LanguageModel interface {
	Chat(ctx context.Context, messages []Message, options *LLMOptions) (*LLMResponse, error)
	ChatStream(ctx context.Context, messages []Message, options *LLMOptions) (<-chan string, error)
	ChatWithTools(ctx context.Context, messages []Message, tools []Tool, options *LLMOptions) (*LLMResponse, error)
}
