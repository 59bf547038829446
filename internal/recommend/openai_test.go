package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/audience-pilot/internal/config"
	"github.com/ignite/audience-pilot/internal/domain"
)

func stubReasoning(t *testing.T, handler http.HandlerFunc) *Reasoning {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	r := NewReasoning(config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini"}, srv.Client())
	r.endpoint = srv.URL
	return r
}

func chatReply(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(body)
}

func TestReasoningExplainValidReply(t *testing.T) {
	r := stubReasoning(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
		fmt.Fprint(w, chatReply(`{"action":"SCALE","reasons":["ROAS 2x account average","stable week"],"risks":["fatigue"]}`))
	})

	n, err := r.Explain(context.Background(), narrativeInput(domain.ActionScale, domain.AudienceInterest))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionScale, n.Action)
	assert.Len(t, n.Reasons, 2)
	assert.Len(t, n.Risks, 1)
}

func TestReasoningExplainRejectsContradictingAction(t *testing.T) {
	r := stubReasoning(t, func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, chatReply(`{"action":"PAUSE","reasons":["a","b"],"risks":[]}`))
	})

	_, err := r.Explain(context.Background(), narrativeInput(domain.ActionScale, domain.AudienceInterest))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contradicts")
}

func TestReasoningExplainRejectsMalformedJSON(t *testing.T) {
	r := stubReasoning(t, func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, chatReply(`scale it because it is doing great`))
	})

	_, err := r.Explain(context.Background(), narrativeInput(domain.ActionScale, domain.AudienceInterest))
	assert.Error(t, err)
}

func TestReasoningExplainRejectsUnknownAction(t *testing.T) {
	r := stubReasoning(t, func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, chatReply(`{"action":"DOUBLE_DOWN","reasons":["a","b"],"risks":[]}`))
	})

	_, err := r.Explain(context.Background(), narrativeInput(domain.ActionScale, domain.AudienceInterest))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not permitted")
}

func TestReasoningExplainRejectsWrongReasonCount(t *testing.T) {
	r := stubReasoning(t, func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, chatReply(`{"action":"SCALE","reasons":["only one"],"risks":[]}`))
	})

	_, err := r.Explain(context.Background(), narrativeInput(domain.ActionScale, domain.AudienceInterest))
	assert.Error(t, err)
}

func TestReasoningExplainErrorStatus(t *testing.T) {
	r := stubReasoning(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := r.Explain(context.Background(), narrativeInput(domain.ActionScale, domain.AudienceInterest))
	assert.Error(t, err)
}
