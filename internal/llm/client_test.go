// internal/llm/client_test.go
package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

func chatCompletionResponse(content string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var reqBody map[string]interface{}
		err := json.NewDecoder(r.Body).Decode(&reqBody)
		assert.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", reqBody["model"])

		messages, ok := reqBody["messages"].([]interface{})
		assert.True(t, ok)
		assert.Len(t, messages, 2)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletionResponse(`{"item_name": "ski mask"}`)))
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
	})

	out, err := client.Complete(context.Background(), "system", "user", Options{})

	assert.NoError(t, err)
	assert.Equal(t, `{"item_name": "ski mask"}`, out)
}

func TestClient_Complete_JSONMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		err := json.NewDecoder(r.Body).Decode(&reqBody)
		assert.NoError(t, err)

		rf, ok := reqBody["response_format"].(map[string]interface{})
		assert.True(t, ok, "response_format should be present in JSON mode")
		assert.Equal(t, "json_object", rf["type"])

		w.Write([]byte(chatCompletionResponse(`{}`)))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k", Model: "m"})

	_, err := client.Complete(context.Background(), "s", "u", Options{JSONMode: true})
	assert.NoError(t, err)
}

func TestClient_Complete_TemperatureOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		err := json.NewDecoder(r.Body).Decode(&reqBody)
		assert.NoError(t, err)
		assert.Equal(t, 0.9, reqBody["temperature"])

		w.Write([]byte(chatCompletionResponse("ok")))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k", Model: "m", Temperature: 0.3})

	_, err := client.Complete(context.Background(), "s", "u", Options{Temperature: 0.9})
	assert.NoError(t, err)
}

// ==========================
// Error Handling Tests
// ==========================

func TestClient_Complete_Errors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    error
	}{
		{
			name:       "server error status",
			statusCode: http.StatusInternalServerError,
			body:       `{"error": {"message": "boom"}}`,
			wantErr:    ErrLLMCallFailed,
		},
		{
			name:       "error field in 200 response",
			statusCode: http.StatusOK,
			body:       `{"error": {"message": "model overloaded"}}`,
			wantErr:    ErrLLMCallFailed,
		},
		{
			name:       "no choices",
			statusCode: http.StatusOK,
			body:       `{"choices": []}`,
			wantErr:    ErrLLMCallFailed,
		},
		{
			name:       "malformed body",
			statusCode: http.StatusOK,
			body:       `not json`,
			wantErr:    ErrLLMCallFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(Config{BaseURL: server.URL, APIKey: "k", Model: "m"})

			_, err := client.Complete(context.Background(), "s", "u", Options{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_Complete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(chatCompletionResponse("late")))
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL: server.URL,
		APIKey:  "k",
		Model:   "m",
		Timeout: 50 * time.Millisecond,
	})

	_, err := client.Complete(context.Background(), "s", "u", Options{})
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMTimeout)
}
