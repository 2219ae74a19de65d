package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"coletores/classification"
)

// DefaultModel is a Portuguese BERT fine-tuned for NER on Brazilian text.
const DefaultModel = "pierreguillou/bert-base-cased-pt-lenerbr"

const defaultBaseURL = "https://api-inference.huggingface.co"

// HuggingFaceConfig configures the inference-API client.
type HuggingFaceConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model" yaml:"model"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// MaxRequestsPerMinute throttles calls; 0 means no throttling.
	MaxRequestsPerMinute int `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
}

// HuggingFaceRecognizer calls the Hugging Face Inference API
// token-classification endpoint. A timed-out or failed call is reported as
// an error and never retried; the rule classifier result then stands.
type HuggingFaceRecognizer struct {
	config     HuggingFaceConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewHuggingFaceRecognizer creates a recognizer with pooled connections.
func NewHuggingFaceRecognizer(config HuggingFaceConfig) *HuggingFaceRecognizer {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxConnsPerHost:     5,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}

	var limiter *rate.Limiter
	if config.MaxRequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(config.MaxRequestsPerMinute)/60.0), 1)
	}

	return &HuggingFaceRecognizer{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		limiter: limiter,
		logger:  slog.Default().With("component", "ner_huggingface", "model", config.Model),
	}
}

// Name identifies the implementation.
func (r *HuggingFaceRecognizer) Name() string {
	return "huggingface"
}

// IsAvailable reports whether the client is configured with credentials.
func (r *HuggingFaceRecognizer) IsAvailable() bool {
	return r.config.APIKey != ""
}

type hfRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type hfEntity struct {
	EntityGroup string  `json:"entity_group"`
	Word        string  `json:"word"`
	Score       float64 `json:"score"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
}

// Recognize runs token classification over text.
func (r *HuggingFaceRecognizer) Recognize(ctx context.Context, text string, ruleConfidence float64) (*Result, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("ner rate limit: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	payload, err := json.Marshal(hfRequest{
		Inputs:     text,
		Parameters: map[string]any{"aggregation_strategy": "simple"},
	})
	if err != nil {
		return nil, fmt.Errorf("encode ner request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", r.config.BaseURL, r.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create ner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	}

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read ner response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ner endpoint returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var raw []hfEntity
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode ner response: %w", err)
	}

	result := &Result{Entities: make([]Entity, 0, len(raw))}
	for _, e := range raw {
		result.Entities = append(result.Entities, Entity{
			Text:  e.Word,
			Label: e.EntityGroup,
			Score: e.Score,
		})
	}
	result.ImprovedConfidence = ImprovedConfidence(classification.Result{
		RawText:    text,
		Confidence: ruleConfidence,
	}, result)

	r.logger.Debug("ner call completed",
		"entities", len(result.Entities),
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
