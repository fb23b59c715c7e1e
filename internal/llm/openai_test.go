package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"meal-plan-generator/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_GenerateContent(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var got chatRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"recipeName\":\"Soup\"}"}}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(&config.Config{OpenAIAPIKey: "test-key", OpenAIBaseURL: server.URL + "/", OpenAIModel: "test-model"})
		resp, err := client.GenerateContent(context.Background(), Request{Prompt: "make soup", System: "be terse", Temperature: 0.85, MaxTokens: 900})
		require.NoError(t, err)

		assert.Equal(t, Text(`{"recipeName":"Soup"}`), resp.Output)
		assert.Equal(t, 15, resp.Usage.TotalTokens)
		assert.Equal(t, "test-model", resp.Usage.Model)

		require.Len(t, got.Messages, 2)
		assert.Equal(t, "system", got.Messages[0].Role)
		assert.Equal(t, "make soup", got.Messages[1].Content)
		assert.InDelta(t, 0.85, got.Temperature, 0.001)
		assert.Equal(t, 900, got.MaxTokens)
		assert.Equal(t, "json_object", got.ResponseFormat["type"])
	})

	t.Run("ServerErrorIsTransportFailure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewOpenAIClient(&config.Config{OpenAIAPIKey: "k", OpenAIBaseURL: server.URL})
		_, err := client.GenerateContent(context.Background(), Request{Prompt: "x"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrProviderTransport))
	})

	t.Run("NoChoices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer server.Close()

		client := NewOpenAIClient(&config.Config{OpenAIAPIKey: "k", OpenAIBaseURL: server.URL})
		_, err := client.GenerateContent(context.Background(), Request{Prompt: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no content generated")
	})
}
