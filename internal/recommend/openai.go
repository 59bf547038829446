package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ignite/audience-pilot/internal/config"
	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/ignite/audience-pilot/internal/pkg/httpretry"
)

const (
	openAIEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultModel   = "gpt-4o-mini"
)

const systemPrompt = `You are a paid-social performance analyst. You are given
an audience's metrics and the action already decided by a rule engine. Respond
with JSON only, no prose, in this exact shape:
{"action":"SCALE|HOLD|PAUSE|RETEST","reasons":["..."],"risks":["..."]}
The action must restate the decided action. Give 2-3 concise reasons grounded
in the numbers and 0-3 risks. Never invent metrics.`

// Reasoning is the OpenAI-backed strategy. It upgrades the narrative quality
// only; the decided action is immutable. Any transport, parse, or contract
// violation is returned as an error so the caller can fall back.
type Reasoning struct {
	cfg      config.OpenAIConfig
	endpoint string
	http     httpretry.HTTPDoer
}

// NewReasoning creates the OpenAI strategy. doer is wrapped with retries when
// nil.
func NewReasoning(cfg config.OpenAIConfig, doer httpretry.HTTPDoer) *Reasoning {
	if doer == nil {
		doer = httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout()}, 2)
	}
	return &Reasoning{cfg: cfg, endpoint: openAIEndpoint, http: doer}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// narrativePayload is the strict output contract.
type narrativePayload struct {
	Action  string   `json:"action"`
	Reasons []string `json:"reasons"`
	Risks   []string `json:"risks"`
}

// Explain asks the model to narrate the decision and validates the reply
// against the output contract.
func (r *Reasoning) Explain(ctx context.Context, in NarrativeInput) (*Narrative, error) {
	model := r.cfg.Model
	if model == "" {
		model = defaultModel
	}
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: r.userPrompt(in)},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat completion: status %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(payload, &cr); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no choices")
	}

	var np narrativePayload
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &np); err != nil {
		return nil, fmt.Errorf("decode narrative: %w", err)
	}
	return validateNarrative(np, in.Result.Action)
}

// validateNarrative enforces the contract: a permitted action matching the
// engine's decision, 2-3 reasons, at most 3 risks.
func validateNarrative(np narrativePayload, decided domain.Action) (*Narrative, error) {
	if !domain.ValidAction(np.Action) {
		return nil, fmt.Errorf("narrative action %q not permitted", np.Action)
	}
	if domain.Action(np.Action) != decided {
		return nil, fmt.Errorf("narrative action %q contradicts decided %q", np.Action, decided)
	}
	if len(np.Reasons) < 2 || len(np.Reasons) > 3 {
		return nil, fmt.Errorf("narrative has %d reasons, want 2-3", len(np.Reasons))
	}
	if len(np.Risks) > 3 {
		return nil, fmt.Errorf("narrative has %d risks, want at most 3", len(np.Risks))
	}
	return &Narrative{
		Action:  decided,
		Reasons: np.Reasons,
		Risks:   np.Risks,
	}, nil
}

func (r *Reasoning) userPrompt(in NarrativeInput) string {
	roas := 0.0
	if in.Window.ROAS != nil {
		roas = *in.Window.ROAS
	}
	return fmt.Sprintf(
		"Audience %q (type %s). Decided action: %s.\n"+
			"7-day window: spend $%.2f, revenue $%.2f, %d purchases, ROAS %.2f.\n"+
			"Account benchmarks: avg ROAS %.2f, median spend $%.2f (normalized ROAS %.2f).\n"+
			"Trend: slope %+.3f/day, CPA volatility %.2f, spend acceleration %.2f, bucket %s, state %s.",
		in.Audience.Name, in.Audience.Type, in.Result.Action,
		in.Window.Spend, in.Window.Revenue, in.Window.Purchases, roas,
		in.Benchmark.AvgROAS, in.Benchmark.MedianSpend, in.Result.NormalizedROAS,
		in.Trend.ROASSlope, in.Trend.CPAVolatility, in.Trend.SpendAcceleration,
		in.Result.Bucket, in.Result.TrendState)
}
