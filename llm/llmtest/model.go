// Package llmtest provides a scripted LanguageModel so the planning
// pipeline, router, and end-to-end scenarios can run without a provider.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lexcodex/planform/framework"
)

// Reply is one scripted response. Match, when non-empty, restricts the reply
// to calls whose composed prompt contains the substring; unmatched replies
// are consumed in order.
type Reply struct {
	Match     string
	Text      string
	ToolCalls []framework.ToolCall
	Err       error
}

// ScriptedModel returns canned responses in order, optionally keyed by a
// substring of the prompt. It records every call for assertions.
type ScriptedModel struct {
	mu      sync.Mutex
	replies []Reply
	Calls   []string
}

// NewScriptedModel builds a model from the reply script.
func NewScriptedModel(replies ...Reply) *ScriptedModel {
	return &ScriptedModel{replies: replies}
}

// Push appends further replies to the script.
func (m *ScriptedModel) Push(replies ...Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
}

func (m *ScriptedModel) next(prompt string) (*framework.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, prompt)
	for i, r := range m.replies {
		if r.Match != "" && !strings.Contains(prompt, r.Match) {
			continue
		}
		m.replies = append(m.replies[:i], m.replies[i+1:]...)
		if r.Err != nil {
			return nil, r.Err
		}
		finish := "stop"
		if len(r.ToolCalls) > 0 {
			finish = "tool_calls"
		}
		return &framework.LLMResponse{Text: r.Text, ToolCalls: r.ToolCalls, FinishReason: finish}, nil
	}
	return nil, fmt.Errorf("scripted model: no reply for prompt %.80q", prompt)
}

// Chat implements framework.LanguageModel.
func (m *ScriptedModel) Chat(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return m.next(flatten(messages))
}

// ChatStream implements framework.LanguageModel by yielding the scripted
// reply in small chunks.
func (m *ScriptedModel) ChatStream(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (<-chan string, error) {
	resp, err := m.next(flatten(messages))
	if err != nil {
		return nil, err
	}
	ch := make(chan string)
	go func() {
		defer close(ch)
		text := resp.Text
		const chunk = 16
		for len(text) > 0 {
			n := chunk
			if n > len(text) {
				n = len(text)
			}
			select {
			case ch <- text[:n]:
				text = text[n:]
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// ChatWithTools implements framework.LanguageModel; the scripted reply text
// is returned as-is and tools are ignored.
func (m *ScriptedModel) ChatWithTools(ctx context.Context, messages []framework.Message, tools []framework.Tool, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	return m.next(flatten(messages))
}

func flatten(messages []framework.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
