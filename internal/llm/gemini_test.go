package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billsense/billsense/internal/common"
	"github.com/billsense/billsense/internal/model"
)

func geminiTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		Provider: "gemini",
		APIKey:   "test-key",
		BaseURL:  server.URL,
	})
	require.NoError(t, err)

	return server, client
}

func geminiReply(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"parts": []map[string]any{{"text": text}},
					"role":  "model",
				},
				"finishReason": "STOP",
			},
		},
	}
}

func TestGeminiCategorize(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	_, client := geminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(geminiReply(`{"categories":[]}`)))
	})

	payload := model.ImagePayload{Data: []byte("fake-image"), MIMEType: "image/jpeg"}
	raw, err := client.Categorize(context.Background(), payload, "bill.jpg")
	require.NoError(t, err)
	assert.Equal(t, `{"categories":[]}`, raw)

	assert.Equal(t, "/models/gemini-2.0-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)

	contents := gotBody["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)

	promptPart := parts[0].(map[string]any)
	assert.Contains(t, promptPart["text"], "bill_recognised")

	imagePart := parts[1].(map[string]any)
	inline := imagePart["inline_data"].(map[string]any)
	assert.Equal(t, "image/jpeg", inline["mime_type"])
	assert.NotEmpty(t, inline["data"])
}

func TestGeminiCategorizeTextPayload(t *testing.T) {
	var gotBody map[string]any

	_, client := geminiTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		require.NoError(t, json.NewEncoder(w).Encode(geminiReply("{}")))
	})

	payload := model.ImagePayload{Data: []byte("milk 60\nbread 45"), MIMEType: "text/plain"}
	_, err := client.Categorize(context.Background(), payload, "receipt.txt")
	require.NoError(t, err)

	contents := gotBody["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)

	textPart := parts[1].(map[string]any)
	assert.Equal(t, "milk 60\nbread 45", textPart["text"])
	_, hasInline := textPart["inline_data"]
	assert.False(t, hasInline)
}

func TestGeminiCategorizeMultiPartResponse(t *testing.T) {
	_, client := geminiTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		reply := map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"parts": []map[string]any{
							{"text": `{"categories":`},
							{"text": `[]}`},
						},
					},
				},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(reply))
	})

	raw, err := client.Categorize(context.Background(), model.ImagePayload{Data: []byte("x"), MIMEType: "image/png"}, "bill.png")
	require.NoError(t, err)
	assert.Equal(t, `{"categories":[]}`, raw)
}

func TestGeminiCategorizeErrors(t *testing.T) {
	t.Run("api error status", func(t *testing.T) {
		_, client := geminiTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
		})

		_, err := client.Categorize(context.Background(), model.ImagePayload{Data: []byte("x"), MIMEType: "image/png"}, "bill.png")
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrClassifierUnavailable)
	})

	t.Run("empty candidates", func(t *testing.T) {
		_, client := geminiTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}}))
		})

		_, err := client.Categorize(context.Background(), model.ImagePayload{Data: []byte("x"), MIMEType: "image/png"}, "bill.png")
		assert.Error(t, err)
	})

	t.Run("unreachable server", func(t *testing.T) {
		server, client := geminiTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		server.Close()

		_, err := client.Categorize(context.Background(), model.ImagePayload{Data: []byte("x"), MIMEType: "image/png"}, "bill.png")
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrClassifierUnavailable)
	})
}

func TestGeminiUnconfigured(t *testing.T) {
	client, err := NewClient(Config{Provider: "gemini"})
	require.NoError(t, err)

	assert.False(t, client.IsConfigured())
	assert.False(t, client.CheckHealth(context.Background()))

	_, err = client.Categorize(context.Background(), model.ImagePayload{Data: []byte("x"), MIMEType: "image/png"}, "bill.png")
	assert.ErrorIs(t, err, common.ErrClassifierUnavailable)
}

func TestGeminiCheckHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		_, client := geminiTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			require.NoError(t, json.NewEncoder(w).Encode(geminiReply("ok")))
		})
		assert.True(t, client.CheckHealth(context.Background()))
	})

	t.Run("unexpected reply", func(t *testing.T) {
		_, client := geminiTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			require.NoError(t, json.NewEncoder(w).Encode(geminiReply("no")))
		})
		assert.False(t, client.CheckHealth(context.Background()))
	})

	t.Run("server error", func(t *testing.T) {
		_, client := geminiTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		assert.False(t, client.CheckHealth(context.Background()))
	})
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "openai"})
	assert.Error(t, err)
}
