package ner

import (
	"context"
	"errors"
	"testing"
	"time"

	"coletores/classification"
)

func ruleResult(text string, category classification.Category, confidence float64) classification.Result {
	return classification.Result{RawText: text, Category: category, Confidence: confidence}
}

func TestAdjustNilResultLeavesRuleStanding(t *testing.T) {
	rule := ruleResult("Silva, J.", classification.Pessoa, 0.80)
	adj := Adjust(rule, nil)
	if adj.Category != classification.Pessoa || adj.Confidence != 0.80 || adj.Discard {
		t.Errorf("Adjust(nil) = %+v, want rule result standing", adj)
	}
}

func TestAdjustTable(t *testing.T) {
	tests := []struct {
		name         string
		entities     []Entity
		wantCategory classification.Category
		wantConf     float64
	}{
		{
			name: "two strong persons",
			entities: []Entity{
				{Text: "Silva", Label: "PESSOA", Score: 0.95},
				{Text: "Santos", Label: "PER", Score: 0.91},
			},
			wantCategory: classification.ConjuntoPessoas,
			wantConf:     0.90,
		},
		{
			name:         "one strong person",
			entities:     []Entity{{Text: "Forzza", Label: "PERSON", Score: 0.92}},
			wantCategory: classification.Pessoa,
			wantConf:     0.85,
		},
		{
			name:         "medium person keeps category",
			entities:     []Entity{{Text: "Forzza", Label: "PESSOA", Score: 0.80}},
			wantCategory: classification.GrupoPessoas,
			wantConf:     0.75,
		},
		{
			name:         "weak person keeps category",
			entities:     []Entity{{Text: "Forzza", Label: "PESSOA", Score: 0.60}},
			wantCategory: classification.GrupoPessoas,
			wantConf:     0.70,
		},
		{
			name:         "organization only",
			entities:     []Entity{{Text: "EMBRAPA", Label: "ORG", Score: 0.88}},
			wantCategory: classification.Empresa,
			wantConf:     0.85,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := ruleResult("algum texto coletor", classification.GrupoPessoas, 0.60)
			adj := Adjust(rule, &Result{Entities: tt.entities})
			if adj.Discard {
				t.Fatalf("unexpected discard: %+v", adj)
			}
			if adj.Category != tt.wantCategory {
				t.Errorf("Category = %s, want %s", adj.Category, tt.wantCategory)
			}
			if adj.Confidence != tt.wantConf {
				t.Errorf("Confidence = %.2f, want %.2f", adj.Confidence, tt.wantConf)
			}
		})
	}
}

func TestAdjustDiscards(t *testing.T) {
	tests := []struct {
		name string
		rule classification.Result
		res  *Result
	}{
		{
			name: "no entities",
			rule: ruleResult("texto qualquer", classification.NaoDeterminado, 0.60),
			res:  &Result{},
		},
		{
			name: "all scores below half",
			rule: ruleResult("texto qualquer", classification.NaoDeterminado, 0.60),
			res:  &Result{Entities: []Entity{{Text: "x", Label: "PESSOA", Score: 0.3}}},
		},
		{
			name: "too few letters",
			rule: ruleResult("ab", classification.NaoDeterminado, 0.60),
			res:  &Result{Entities: []Entity{{Text: "ab", Label: "PESSOA", Score: 0.95}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj := Adjust(tt.rule, tt.res)
			if !adj.Discard {
				t.Errorf("Adjust = %+v, want discard", adj)
			}
		})
	}
}

func TestAdjustConfidenceCap(t *testing.T) {
	rule := ruleResult("Silva e Santos coletores", classification.Pessoa, 0.80)
	res := &Result{Entities: []Entity{
		{Text: "Silva", Label: "PESSOA", Score: 0.99},
		{Text: "Santos", Label: "PESSOA", Score: 0.99},
	}}
	adj := Adjust(rule, res)
	if adj.Confidence > 0.90 {
		t.Errorf("Confidence = %.2f, want <= 0.90", adj.Confidence)
	}
}

func TestNoopRecognizer(t *testing.T) {
	n := NewNoopRecognizer()
	if n.IsAvailable() {
		t.Error("noop recognizer reports available")
	}
	if _, err := n.Recognize(context.Background(), "Silva, J.", 0.8); !errors.Is(err, ErrRecognizerUnavailable) {
		t.Errorf("Recognize error = %v, want ErrRecognizerUnavailable", err)
	}
}

type stubRecognizer struct {
	calls  int
	result *Result
}

func (s *stubRecognizer) Recognize(ctx context.Context, text string, ruleConfidence float64) (*Result, error) {
	s.calls++
	return s.result, nil
}

func (s *stubRecognizer) Name() string      { return "stub" }
func (s *stubRecognizer) IsAvailable() bool { return true }

func TestCachedRecognizer(t *testing.T) {
	stub := &stubRecognizer{result: &Result{ImprovedConfidence: 0.85}}
	cached := NewCachedRecognizer(stub, time.Minute)

	for i := 0; i < 3; i++ {
		res, err := cached.Recognize(context.Background(), "Silva, J.", 0.8)
		if err != nil {
			t.Fatalf("Recognize failed: %v", err)
		}
		if res.ImprovedConfidence != 0.85 {
			t.Fatalf("unexpected result: %+v", res)
		}
	}
	if stub.calls != 1 {
		t.Errorf("inner recognizer called %d times, want 1", stub.calls)
	}

	if _, err := cached.Recognize(context.Background(), "Santos, M.", 0.8); err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if stub.calls != 2 {
		t.Errorf("inner recognizer called %d times, want 2", stub.calls)
	}

	stats := cached.Stats()
	if stats.Hits != 2 || stats.Misses != 2 {
		t.Errorf("stats = %+v, want 2 hits / 2 misses", stats)
	}
}
