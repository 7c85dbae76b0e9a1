package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fittrack-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatBuffered(t *testing.T) {
	var gotReq ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:   gotReq.Model,
			Message: ollamaMessage{Role: "assistant", Content: "full reply"},
			Done:    true,
		})
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "llama3")
	reply, err := provider.Chat(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "hello"}},
		llm.WithSystemInstruction("be brief"),
	)
	require.NoError(t, err)
	assert.Equal(t, "full reply", reply)

	assert.False(t, gotReq.Stream)
	assert.Equal(t, "llama3", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, llm.RoleSystem, gotReq.Messages[0].Role)
	assert.Equal(t, "be brief", gotReq.Messages[0].Content)
	assert.Equal(t, "hello", gotReq.Messages[1].Content)
}

func TestChatUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "missing-model")
	_, err := provider.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hello"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, part := range []string{"Hel", "lo ", "world"} {
			fmt.Fprintf(w, `{"model":"llama3","message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
		}
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`)
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "llama3")
	chunks, err := provider.ChatStream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	require.NoError(t, err)

	var text string
	var terminal llm.StreamChunk
	for chunk := range chunks {
		require.NoError(t, chunk.Err)
		text += chunk.Text
		if chunk.Done {
			terminal = chunk
		}
	}
	assert.Equal(t, "Hello world", text)
	assert.True(t, terminal.Done)
	assert.Equal(t, "stop", terminal.FinishReason)
}

func TestChatStreamMalformedLine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":"ok"},"done":false}`)
		fmt.Fprintln(w, `this is not json`)
	}))
	defer server.Close()

	provider := NewOllamaProvider(server.URL, "llama3")
	chunks, err := provider.ChatStream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	require.NoError(t, err)

	var sawErr bool
	for chunk := range chunks {
		if chunk.Err != nil {
			sawErr = true
		}
	}
	assert.True(t, sawErr)
}

func TestBuildRequestMapsModelRole(t *testing.T) {
	provider := NewOllamaProvider("http://localhost:11434", "llama3")
	req, err := provider.buildRequest([]llm.Message{
		{Role: "model", Content: "old reply"},
		{Role: llm.RoleUser, Content: "next"},
	}, nil, false)
	require.NoError(t, err)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleAssistant, req.Messages[0].Role)
	assert.Equal(t, llm.RoleUser, req.Messages[1].Role)
}
