package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexcodex/planform/framework"
)

func TestChatSendsAuthAndModel(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello"},"finish_reason":"stop"}],"usage":{"total_tokens":12}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-123", "gpt-test", 0)
	resp, err := c.Chat(context.Background(), []framework.Message{{Role: "user", Content: "hi"}}, nil)
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Text)
	require.Equal(t, 12, resp.Usage["total_tokens"])
	require.Equal(t, "gpt-test", got.Model)
}

func TestChatResponseSchemaForwarded(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"{}"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "m", 0)
	schema := map[string]interface{}{"type": "object"}
	_, err := c.Chat(context.Background(), []framework.Message{{Role: "user", Content: "x"}},
		&framework.LLMOptions{ResponseSchema: schema})
	require.NoError(t, err)
	require.NotNil(t, got.ResponseFormat)
	require.Equal(t, "json_schema", got.ResponseFormat.Type)
}

func TestChatSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "m", 0)
	_, err := c.Chat(context.Background(), []framework.Message{{Role: "user", Content: "x"}}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited")
}

func TestChatStreamDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "m", 0)
	ch, err := c.ChatStream(context.Background(), []framework.Message{{Role: "user", Content: "x"}}, nil)
	require.NoError(t, err)

	var text string
	for chunk := range ch {
		text += chunk
	}
	require.Equal(t, "Hello", text)
}

func TestToolCallArgumentsDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"","tool_calls":[{"id":"c1","type":"function","function":{"name":"read_file","arguments":"{\"path\":\"a.txt\"}"}}]},"finish_reason":"tool_calls"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "m", 0)
	resp, err := c.Chat(context.Background(), []framework.Message{{Role: "user", Content: "x"}}, nil)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, "read_file", resp.ToolCalls[0].Name)
	require.Equal(t, "a.txt", resp.ToolCalls[0].Args["path"])
}
