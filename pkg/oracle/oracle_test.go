package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingOracle struct{ calls int }

func (c *countingOracle) Name() string { return "counting" }

func (c *countingOracle) Suggest(_ context.Context, _ Prompt) (string, error) {
	c.calls++
	return "ok", nil
}

func TestNewWithoutProviderReturnsNil(t *testing.T) {
	o, err := New(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, o)

	o, err = New(context.Background(), Config{Provider: "none"}, nil)
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "carrier-pigeon"}, nil)
	assert.Error(t, err)
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: ProviderOpenAI}, nil)
	assert.Error(t, err)
}

func TestOpenAISuggest(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel = body.Model
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "sys", body.Messages[0].Content)
		assert.Equal(t, "user", body.Messages[1].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Priority: High"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	o, err := NewOpenAI("test-key", "", srv.URL+"/v1", zap.NewNop())
	require.NoError(t, err)

	text, err := o.Suggest(context.Background(), Prompt{System: "sys", User: "usr"})
	require.NoError(t, err)
	assert.Equal(t, "Priority: High", text)
	assert.Equal(t, defaultOpenAIModel, gotModel)
}

func TestOpenAISuggestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	o, err := NewOpenAI("test-key", "gpt-4o-mini", srv.URL+"/v1", zap.NewNop())
	require.NoError(t, err)
	_, err = o.Suggest(context.Background(), Prompt{User: "x"})
	assert.Error(t, err)
}

func TestRateLimitHonoursContext(t *testing.T) {
	inner := &countingOracle{}
	o := WithRateLimit(inner, 1)
	assert.Equal(t, "counting", o.Name())

	_, err := o.Suggest(context.Background(), Prompt{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = o.Suggest(ctx, Prompt{})
	assert.Error(t, err, "second call within the minute must wait and hit the deadline")
	assert.Equal(t, 1, inner.calls)
}

func TestRateLimitDisabled(t *testing.T) {
	inner := &countingOracle{}
	assert.Same(t, Oracle(inner), WithRateLimit(inner, 0))
}
