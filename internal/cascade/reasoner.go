package cascade

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-investigator/configs"
	"github.com/enterprise/fraud-investigator/internal/faulterr"
)

// ReasonerResult is L5's output shape: a strict recommendation,
// a short free-text justification, and a confidence in [0,1] (§4.6).
type ReasonerResult struct {
	Recommendation string  `json:"recommendation"`
	Reasoning      string  `json:"reasoning"`
	Confidence     float64 `json:"confidence"`
}

// fallbackResult is returned on any parse/timeout/transport failure,
// with no retry (§4.6, §7 llm_unavailable).
var fallbackResult = ReasonerResult{Recommendation: "human_review", Reasoning: "LLM analysis failed", Confidence: 0.5}

const systemPrompt = "You are a fraud analyst. Respond only in valid JSON."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// Reasoner is L5: an external text-completion call for borderline cases,
// memoized by canonicalized-context hash (§4.6).
type Reasoner struct {
	client *resty.Client
	cache  *lru.Cache[string, ReasonerResult]
	cfg    configs.LLMConfig
}

// NewReasoner constructs L5 with an LRU cache bounded per cfg.CacheSize
// (default ~10,000, no TTL — contexts are stable per input).
func NewReasoner(cfg configs.LLMConfig) *Reasoner {
	size := cfg.CacheSize
	if size <= 0 {
		size = 10000
	}
	cache, err := lru.New[string, ReasonerResult](size)
	if err != nil {
		panic(err)
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Reasoner{client: client, cache: cache, cfg: cfg}
}

// Evaluate canonicalizes context, checks the cache, and on a miss calls
// the external completion endpoint with a fixed prompt (§4.6).
func (r *Reasoner) Evaluate(ctx context.Context, reasonCtx map[string]any) (ReasonerResult, bool) {
	canonical, err := canonicalize(reasonCtx)
	if err != nil {
		return fallbackResult, false
	}
	key := hashContext(canonical)

	if cached, ok := r.cache.Get(key); ok {
		return cached, true
	}

	result, err := r.call(ctx, canonical)
	if err != nil {
		log.Warn().Err(err).Msg("reasoner call failed, returning fallback verdict")
		return fallbackResult, false
	}

	r.cache.Add(key, result)
	return result, false
}

func (r *Reasoner) call(ctx context.Context, canonicalContext string) (ReasonerResult, error) {
	userMsg := "Evaluate this transaction for fraud risk and respond with JSON " +
		`{"recommendation": "approve"|"block"|"human_review", "reasoning": "<=2 sentences", "confidence": 0.0-1.0}. ` +
		"Context: " + canonicalContext

	reqBody := chatRequest{
		Model:       r.cfg.Model,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMsg},
		},
	}

	var parsed chatResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&parsed).
		Post(r.cfg.Endpoint)
	if err != nil {
		return ReasonerResult{}, faulterr.LLMUnavailable("cascade.reasoner", err)
	}
	if resp.IsError() {
		return ReasonerResult{}, faulterr.LLMUnavailable("cascade.reasoner", errStatusCode(resp.StatusCode()))
	}
	if len(parsed.Choices) == 0 {
		return ReasonerResult{}, faulterr.LLMUnavailable("cascade.reasoner", errEmptyCompletion)
	}

	return extractVerdict(parsed.Choices[0].Message.Content)
}

// canonicalize marshals v with alphabetically sorted keys — encoding/json
// already sorts map[string]any keys on Marshal, which is the
// canonicalization §4.6 asks for.
func canonicalize(v map[string]any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func hashContext(canonical string) string {
	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
