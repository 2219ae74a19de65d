package classification

import (
	"log/slog"
	"regexp"
	"strings"
)

// Result holds the outcome of classifying a raw collector string.
type Result struct {
	RawText         string   `json:"raw_text"`
	Category        Category `json:"category"`
	Confidence      float64  `json:"confidence"`
	PatternsMatched []string `json:"patterns_matched"`
	ShouldAtomize   bool     `json:"should_atomize"`
}

// Base confidences of the rule hierarchy. The relative ordering is part of
// the contract; the values themselves are tuning parameters.
const (
	confExactUnknown    = 1.00
	confInstitution     = 0.85
	confMultiPerson     = 0.82
	confMultiPersonName = 0.95
	confPersonStrict    = 0.80
	confPersonLoose     = 0.65
	confGroup           = 0.70
	confMalformed       = 0.70
	confDefault         = 0.60
)

// exactUnknown are placeholder strings meaning "collector not recorded".
var exactUnknown = map[string]bool{
	"?":                true,
	"sem coletor":      true,
	"não identificado": true,
	"nao identificado": true,
	"desconhecido":     true,
}

// defaultInstitutionKeywords covers Brazilian herbaria and research institutions.
var defaultInstitutionKeywords = []string{
	"embrapa", "usp", "unicamp", "ufrj", "ufmg", "inpa", "jbrj",
	"herbário", "herbario", "jardim botânico", "jardim botanico",
	"instituto", "universidade", "faculdade",
}

// defaultGroupKeywords mark generic collectives without individual names.
var defaultGroupKeywords = []string{
	"equipe", "grupo", "projeto", "expedição", "expedicao",
	"pesquisas", "alunos", "levantamento",
}

var (
	reEtAl            = regexp.MustCompile(`(?i)\bet\.?\s*al(li|ii)?\b\.?`)
	reStrongSeparator = regexp.MustCompile(`[;&|]`)
	reAcronym         = regexp.MustCompile(`^[\p{Lu}]{2,}$`)

	// "Surname, Initials": Guimarães, T. M. / Silva, J. / Müller-Freitas, A.B.
	reSurnameInitials = regexp.MustCompile(`[\p{Lu}][\p{L}]+(?:-[\p{Lu}][\p{L}]+)?,\s*[\p{Lu}]\.(?:\s*[\p{Lu}]\.)*`)
	reSurnameInitialsFull = regexp.MustCompile(`^[\p{Lu}][\p{L}]+(?:-[\p{Lu}][\p{L}]+)?,\s*[\p{Lu}]\.(?:\s*[\p{Lu}]\.)*$`)

	// "Initials Surname": R.C. Forzza / D.R. Gonzaga
	reInitialsSurname = regexp.MustCompile(`^(?:[\p{Lu}]\.\s*)+[\p{Lu}][\p{L}]+(?:-[\p{Lu}][\p{L}]+)?$`)

	// "Surname, GIVEN": Grespan, TIAGO
	reSurnameGiven = regexp.MustCompile(`^[\p{Lu}][\p{L}]+(?:-[\p{Lu}][\p{L}]+)?,\s*[\p{L}]{2,}(?:\s+[\p{L}.]+)*$`)

	// Full written name, every token capitalized: Alisson Nogueira Braz /
	// Débora G. Takaki. Lowercase connectives ("Pesquisas da Biodiversidade")
	// disqualify the string, keeping group phrases out of the person rule.
	reFullName = regexp.MustCompile(`^[\p{Lu}][\p{L}]+(?:\s+(?:[\p{Lu}]\.|[\p{Lu}][\p{L}]+))+$`)

	// Single capitalized word: Kumerrow
	reSingleCapitalized = regexp.MustCompile(`^[\p{Lu}][\p{Ll}\p{M}]+$`)

	reAnyLetter = regexp.MustCompile(`\p{L}`)
)

// Classifier assigns one of the five collector categories with a confidence
// score. It is pure and safe for concurrent use after construction.
type Classifier struct {
	institutionKeywords []string
	groupKeywords       []string
	logger              *slog.Logger
}

// NewClassifier creates a classifier with the default keyword lists.
func NewClassifier() *Classifier {
	return &Classifier{
		institutionKeywords: defaultInstitutionKeywords,
		groupKeywords:       defaultGroupKeywords,
		logger:              slog.Default().With("component", "classifier"),
	}
}

// NewClassifierWithKeywords creates a classifier with extra curator-supplied
// institution and group keywords on top of the defaults.
func NewClassifierWithKeywords(institutions, groups []string) *Classifier {
	c := NewClassifier()
	for _, kw := range institutions {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			c.institutionKeywords = append(c.institutionKeywords, kw)
		}
	}
	for _, kw := range groups {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			c.groupKeywords = append(c.groupKeywords, kw)
		}
	}
	return c
}

// Classify assigns a category to the raw collector string. The first rule
// that matches wins; rules are checked in contract priority order.
func (c *Classifier) Classify(raw string) Result {
	text := strings.TrimSpace(raw)
	result := Result{RawText: text}

	switch {
	case text == "" || !reAnyLetter.MatchString(text):
		// Empty or letterless junk ("...", "123"). Placeholder "?" is the
		// exception: it is an explicit unknown marker.
		if exactUnknown[strings.ToLower(text)] {
			result.set(NaoDeterminado, confExactUnknown, "exact_nao_determinado")
		} else {
			result.set(NaoDeterminado, confMalformed, "malformed_input")
		}

	case exactUnknown[strings.ToLower(text)]:
		result.set(NaoDeterminado, confExactUnknown, "exact_nao_determinado")

	case reAcronym.MatchString(text):
		result.set(Empresa, confInstitution, "acronym")

	case c.hasKeyword(text, c.institutionKeywords):
		result.set(Empresa, confInstitution, "institution_keyword")

	case reStrongSeparator.MatchString(text) || reEtAl.MatchString(text) || c.hasRepeatedNames(text):
		result.set(ConjuntoPessoas, confMultiPerson, "multiple_name_separator")
		if c.segmentsLookLikeNames(text) {
			result.Confidence = confMultiPersonName
			result.PatternsMatched = append(result.PatternsMatched, "name_pattern_detected")
		}

	case reSurnameInitialsFull.MatchString(text):
		result.set(Pessoa, confPersonStrict, "surname_initials")

	case reInitialsSurname.MatchString(text):
		result.set(Pessoa, confPersonStrict, "initials_surname")

	case reSurnameGiven.MatchString(text):
		result.set(Pessoa, confPersonStrict, "surname_given_name")

	case reFullName.MatchString(text):
		result.set(Pessoa, confPersonStrict, "full_name")

	case c.hasKeyword(text, c.groupKeywords) && !c.hasPersonPattern(text):
		result.set(GrupoPessoas, confGroup, "group_keyword")

	case reSingleCapitalized.MatchString(text):
		result.set(Pessoa, confPersonLoose, "single_capitalized_word")

	default:
		result.set(NaoDeterminado, confDefault, "no_pattern")
	}

	result.ShouldAtomize = result.Category == ConjuntoPessoas
	return result
}

// IsPlaceholder reports whether the result came from the exact unknown-marker
// rule or the malformed-input rule (empty or letterless text). Placeholder
// entities are stored verbatim without normalization.
func (r Result) IsPlaceholder() bool {
	for _, tag := range r.PatternsMatched {
		if tag == "exact_nao_determinado" || tag == "malformed_input" {
			return true
		}
	}
	return false
}

func (r *Result) set(cat Category, confidence float64, pattern string) {
	r.Category = cat
	r.Confidence = confidence
	r.PatternsMatched = append(r.PatternsMatched, pattern)
}

func (c *Classifier) hasKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// hasPersonPattern reports whether any person-name pattern appears in the
// text, anchored or embedded. Group keywords only classify in its absence.
func (c *Classifier) hasPersonPattern(text string) bool {
	return reSurnameInitials.MatchString(text) ||
		reInitialsSurname.MatchString(text) ||
		reSurnameGiven.MatchString(text) ||
		reFullName.MatchString(text)
}

// hasRepeatedNames detects comma-joined "Surname, Initials" units repeated at
// least twice, which promotes commas to separators during atomization.
func (c *Classifier) hasRepeatedNames(text string) bool {
	return len(reSurnameInitials.FindAllString(text, 3)) >= 2
}

// segmentsLookLikeNames reports whether every strong-separator segment of a
// multi-person string itself matches a person-name pattern.
func (c *Classifier) segmentsLookLikeNames(text string) bool {
	cleaned := reEtAl.ReplaceAllString(text, "")
	segments := reStrongSeparator.Split(cleaned, -1)
	seen := 0
	for _, seg := range segments {
		seg = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(seg), ","))
		if seg == "" || seg == "." {
			continue
		}
		seen++
		if !reSurnameInitialsFull.MatchString(seg) &&
			!reInitialsSurname.MatchString(seg) &&
			!reSurnameGiven.MatchString(seg) &&
			!reFullName.MatchString(seg) {
			return false
		}
	}
	return seen > 0
}
