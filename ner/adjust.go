package ner

import (
	"unicode"

	"coletores/classification"
)

// maxAdjustedConfidence caps every NER-derived confidence: the model is a
// tiebreaker, never a source of certainty.
const maxAdjustedConfidence = 0.90

// Adjustment is the final classification decision after consulting NER.
type Adjustment struct {
	Category   classification.Category
	Confidence float64
	// Discard marks input the model found no signal in at all; the
	// record is dropped rather than stored.
	Discard bool
	Pattern string
}

// Adjust applies the confidence-adjustment table to the rule result and the
// model output. A nil model result leaves the rule result standing.
func Adjust(rule classification.Result, res *Result) Adjustment {
	if res == nil {
		return Adjustment{Category: rule.Category, Confidence: rule.Confidence, Pattern: "ner_unavailable"}
	}

	persons := 0
	maxPerson := 0.0
	organizations := 0
	maxScore := 0.0
	for _, e := range res.Entities {
		if e.Score > maxScore {
			maxScore = e.Score
		}
		if e.IsPerson() {
			persons++
			if e.Score > maxPerson {
				maxPerson = e.Score
			}
		} else if e.IsOrganization() {
			organizations++
		}
	}

	adj := Adjustment{Category: rule.Category}

	switch {
	case letterCount(rule.RawText) < 3,
		len(res.Entities) == 0,
		maxScore < 0.50:
		return Adjustment{Category: classification.NaoDeterminado, Discard: true, Pattern: "ner_no_signal"}

	case persons >= 2 && maxPerson > 0.85:
		adj.Category = classification.ConjuntoPessoas
		adj.Confidence = 0.90
		adj.Pattern = "ner_multiple_persons"

	case persons == 1 && maxPerson > 0.85:
		adj.Category = classification.Pessoa
		adj.Confidence = 0.85
		adj.Pattern = "ner_single_person"

	case persons > 0 && maxPerson > 0.70:
		adj.Confidence = 0.75
		adj.Pattern = "ner_person_medium"

	case persons > 0 && maxPerson > 0.50:
		adj.Confidence = 0.70
		adj.Pattern = "ner_person_low"

	case organizations > 0 && persons == 0:
		adj.Category = classification.Empresa
		adj.Confidence = 0.85
		adj.Pattern = "ner_organization"

	default:
		return Adjustment{Category: classification.NaoDeterminado, Discard: true, Pattern: "ner_no_signal"}
	}

	if adj.Confidence > maxAdjustedConfidence {
		adj.Confidence = maxAdjustedConfidence
	}
	return adj
}

// ImprovedConfidence computes the confidence the adjustment table would
// assign, used to fill Result.ImprovedConfidence on the wire contract.
func ImprovedConfidence(rule classification.Result, res *Result) float64 {
	adj := Adjust(rule, res)
	if adj.Discard {
		return 0.0
	}
	return adj.Confidence
}

func letterCount(s string) int {
	count := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			count++
		}
	}
	return count
}
