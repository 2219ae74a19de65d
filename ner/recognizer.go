// Package ner is the named-entity-recognition fallback consulted when the
// rule classifier is not confident enough. The model is an external
// collaborator; this package only implements the contract with it.
package ner

import (
	"context"
	"strings"
)

// Entity is a single named entity returned by the model.
type Entity struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Result is the adapter output for one text.
type Result struct {
	Entities           []Entity `json:"entities"`
	ImprovedConfidence float64  `json:"improved_confidence"`
}

// Recognizer abstracts the NER model. Implementations must honor the
// context deadline; callers never retry on timeout.
type Recognizer interface {
	// Recognize runs the model over text. ruleConfidence is the rule
	// classifier's score, passed so the adapter can report an improved
	// confidence relative to it.
	Recognize(ctx context.Context, text string, ruleConfidence float64) (*Result, error)

	// Name identifies the implementation for logging.
	Name() string

	// IsAvailable reports whether the model can currently be reached.
	IsAvailable() bool
}

// Label families recognized across Portuguese and English model outputs.
var personLabels = map[string]bool{
	"PESSOA": true, "PER": true, "PERSON": true,
}

var organizationLabels = map[string]bool{
	"ORGANIZACAO": true, "ORGANIZAÇÃO": true, "ORG": true, "ORGANIZATION": true,
}

// IsPerson reports whether the entity label denotes a person.
func (e Entity) IsPerson() bool {
	return personLabels[strings.ToUpper(e.Label)]
}

// IsOrganization reports whether the entity label denotes an organization.
func (e Entity) IsOrganization() bool {
	return organizationLabels[strings.ToUpper(e.Label)]
}
