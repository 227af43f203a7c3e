package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lexcodex/planform/framework"
)

// InstrumentedModel wraps a LanguageModel and logs every call with timing
// and token usage so planning runs stay legible in the server logs.
type InstrumentedModel struct {
	Inner  framework.LanguageModel
	Logger *zap.Logger
}

// NewInstrumentedModel builds the wrapper.
func NewInstrumentedModel(inner framework.LanguageModel, logger *zap.Logger) *InstrumentedModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedModel{Inner: inner, Logger: logger.Named("llm")}
}

// Chat implements framework.LanguageModel.
func (m *InstrumentedModel) Chat(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	start := time.Now()
	resp, err := m.Inner.Chat(ctx, messages, options)
	m.log("chat", start, len(messages), resp, err)
	return resp, err
}

// ChatStream implements framework.LanguageModel. Only stream start is
// logged; the chunks themselves flow through untouched.
func (m *InstrumentedModel) ChatStream(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (<-chan string, error) {
	start := time.Now()
	ch, err := m.Inner.ChatStream(ctx, messages, options)
	if err != nil {
		m.log("chat_stream", start, len(messages), nil, err)
	} else {
		m.Logger.Debug("chat stream opened", zap.Int("messages", len(messages)))
	}
	return ch, err
}

// ChatWithTools implements framework.LanguageModel.
func (m *InstrumentedModel) ChatWithTools(ctx context.Context, messages []framework.Message, tools []framework.Tool, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	start := time.Now()
	resp, err := m.Inner.ChatWithTools(ctx, messages, tools, options)
	m.log("chat_with_tools", start, len(messages), resp, err)
	return resp, err
}

func (m *InstrumentedModel) log(call string, start time.Time, messages int, resp *framework.LLMResponse, err error) {
	fields := []zap.Field{
		zap.String("call", call),
		zap.Int("messages", messages),
		zap.Duration("elapsed", time.Since(start)),
	}
	if resp != nil {
		fields = append(fields,
			zap.Int("response_chars", len(resp.Text)),
			zap.Int("tool_calls", len(resp.ToolCalls)))
		if tokens, ok := resp.Usage["total_tokens"]; ok {
			fields = append(fields, zap.Int("total_tokens", tokens))
		}
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		m.Logger.Warn("llm call failed", fields...)
		return
	}
	m.Logger.Debug("llm call", fields...)
}
