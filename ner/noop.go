package ner

import (
	"context"
	"errors"
)

// ErrRecognizerUnavailable signals that no model is configured. Callers
// fall back to the rule-classifier result.
var ErrRecognizerUnavailable = errors.New("ner recognizer unavailable")

// NoopRecognizer is the null implementation used when no model is
// configured. Tests of the core pipeline depend on it so they never touch
// model infrastructure.
type NoopRecognizer struct{}

// NewNoopRecognizer creates the null recognizer.
func NewNoopRecognizer() *NoopRecognizer {
	return &NoopRecognizer{}
}

// Name identifies the implementation.
func (n *NoopRecognizer) Name() string { return "noop" }

// IsAvailable is always false.
func (n *NoopRecognizer) IsAvailable() bool { return false }

// Recognize always reports the recognizer as unavailable.
func (n *NoopRecognizer) Recognize(ctx context.Context, text string, ruleConfidence float64) (*Result, error) {
	return nil, ErrRecognizerUnavailable
}
