package websearch

import (
	"context"
	"log/slog"
	"strings"

	"coletores/database"
)

// Verification is the web-presence check for one institution entity.
type Verification struct {
	CanonicalName string `json:"canonical_name"`
	Query         string `json:"query"`
	Verified      bool   `json:"verified"`
	Evidence      string `json:"evidence,omitempty"`
}

// InstitutionValidator checks Empresa entities against web search results.
// A hit in a result title or snippet mentioning the acronym together with
// an institutional term counts as verification.
type InstitutionValidator struct {
	client *Client
	logger *slog.Logger
}

// NewInstitutionValidator creates the validator.
func NewInstitutionValidator(client *Client) *InstitutionValidator {
	return &InstitutionValidator{
		client: client,
		logger: slog.Default().With("component", "institution_validator"),
	}
}

var institutionalTerms = []string{
	"herbário", "herbario", "herbarium", "instituto", "universidade",
	"university", "jardim botânico", "jardim botanico", "botanical garden",
	"pesquisa", "research", "museu", "museum",
}

// Verify checks every Empresa entity and returns one verification each.
// Search failures degrade to unverified entries; the run never aborts.
func (v *InstitutionValidator) Verify(ctx context.Context, entities []*database.CanonicalEntity) []Verification {
	var verifications []Verification
	for _, entity := range entities {
		if entity.EntityType != database.EntityEmpresa {
			continue
		}
		verifications = append(verifications, v.verifyOne(ctx, entity))
	}
	return verifications
}

func (v *InstitutionValidator) verifyOne(ctx context.Context, entity *database.CanonicalEntity) Verification {
	query := entity.CanonicalName + " instituição botânica brasil"
	verification := Verification{CanonicalName: entity.CanonicalName, Query: query}

	result, err := v.client.Search(ctx, query)
	if err != nil {
		v.logger.Warn("institution search failed",
			"canonical_name", entity.CanonicalName, "error", err)
		return verification
	}

	acronym := strings.ToLower(entity.CanonicalName)
	texts := append(append([]string{}, result.Titles...), result.Snippets...)
	for _, text := range texts {
		lower := strings.ToLower(text)
		if !strings.Contains(lower, acronym) {
			continue
		}
		for _, term := range institutionalTerms {
			if strings.Contains(lower, term) {
				verification.Verified = true
				verification.Evidence = text
				return verification
			}
		}
	}
	return verification
}
