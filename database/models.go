package database

import (
	"time"

	"coletores/classification"
)

// EntityType is the stored type of a canonical entity. ConjuntoPessoas is
// not a storable type: its atoms are stored as individual Pessoa entities.
type EntityType string

const (
	EntityPessoa         EntityType = "Pessoa"
	EntityGrupoPessoas   EntityType = "GrupoPessoas"
	EntityEmpresa        EntityType = "Empresa"
	EntityNaoDeterminado EntityType = "NaoDeterminado"
)

// EntityTypeFromCategory folds a classification category into a storable
// entity type.
func EntityTypeFromCategory(c classification.Category) EntityType {
	switch c {
	case classification.Pessoa, classification.ConjuntoPessoas:
		return EntityPessoa
	case classification.GrupoPessoas:
		return EntityGrupoPessoas
	case classification.Empresa:
		return EntityEmpresa
	default:
		return EntityNaoDeterminado
	}
}

// Category maps the entity type back to its classification category.
func (t EntityType) Category() classification.Category {
	switch t {
	case EntityPessoa:
		return classification.Pessoa
	case EntityGrupoPessoas:
		return classification.GrupoPessoas
	case EntityEmpresa:
		return classification.Empresa
	default:
		return classification.NaoDeterminado
	}
}

// Valid reports whether t is one of the four storable types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityPessoa, EntityGrupoPessoas, EntityEmpresa, EntityNaoDeterminado:
		return true
	}
	return false
}

// NameVariation is one observed spelling attached to a canonical entity.
// VariationText keeps the exact source spelling; uniqueness within an
// entity is case-sensitive.
type NameVariation struct {
	VariationText         string    `json:"variation_text"`
	OccurrenceCount       int       `json:"occurrence_count"`
	AssociationConfidence float64   `json:"association_confidence"`
	FirstSeen             time.Time `json:"first_seen"`
	LastSeen              time.Time `json:"last_seen"`
}

// CanonicalEntity is a unique collector with its preferred display name and
// every observed variation. (CanonicalName, EntityType) is unique across
// the store.
type CanonicalEntity struct {
	ID                       int64           `json:"id"`
	CanonicalName            string          `json:"canonical_name"`
	EntityType               EntityType      `json:"entity_type"`
	ClassificationConfidence float64         `json:"classification_confidence"`
	GroupingConfidence       float64         `json:"grouping_confidence"`
	Variations               []NameVariation `json:"variations"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

// FindVariation returns the variation with the exact given text, or nil.
func (e *CanonicalEntity) FindVariation(text string) *NameVariation {
	for i := range e.Variations {
		if e.Variations[i].VariationText == text {
			return &e.Variations[i]
		}
	}
	return nil
}

// MinAssociationConfidence is the weakest link over all variations.
func (e *CanonicalEntity) MinAssociationConfidence() float64 {
	if len(e.Variations) == 0 {
		return 0
	}
	minConf := e.Variations[0].AssociationConfidence
	for _, v := range e.Variations[1:] {
		if v.AssociationConfidence < minConf {
			minConf = v.AssociationConfidence
		}
	}
	return minConf
}
