package normalization

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"coletores/classification"
)

// Portuguese surname particles never contribute initials.
var surnameParticles = map[string]bool{
	"da": true, "das": true, "de": true, "do": true, "dos": true,
	"di": true, "du": true, "e": true, "van": true, "von": true, "del": true,
}


// CanonicalName derives the stored display name for an entity of the given
// category from a cleaned single-name display form.
//
// Pessoa follows "Surname, Initials"; Empresa and GrupoPessoas are
// upper-cased; NaoDeterminado keeps the text unchanged.
func CanonicalName(category classification.Category, display string) string {
	switch category {
	case classification.Empresa, classification.GrupoPessoas:
		return strings.ToUpper(display)
	case classification.NaoDeterminado:
		return display
	default:
		return CanonicalPersonName(display)
	}
}

// CanonicalPersonName reduces a person name to "Surname, Initials".
//
//	"Guimarães, T. M."    -> "Guimarães, T. M."
//	"D.R. Gonzaga"        -> "Gonzaga, D.R."
//	"Alisson Nogueira Braz" -> "Braz, A.N."
//	"Débora G. Takaki"    -> "Takaki, D.G."
//	"Grespan, TIAGO"      -> "Grespan, T."
func CanonicalPersonName(display string) string {
	name := strings.TrimSpace(display)
	if name == "" {
		return name
	}

	if surname, given, ok := strings.Cut(name, ","); ok {
		surname = titleCaseSurname(strings.TrimSpace(surname))
		given = formatGivenPart(strings.TrimSpace(given))
		if given == "" {
			return surname
		}
		return surname + ", " + given
	}

	tokens := strings.Fields(name)
	if len(tokens) == 1 {
		return titleCaseSurname(tokens[0])
	}

	// The last token is the surname; every non-particle token before it
	// contributes initials.
	surnameIdx := len(tokens) - 1
	surname := tokens[surnameIdx]

	var initials strings.Builder
	for _, tok := range tokens[:surnameIdx] {
		if surnameParticles[strings.ToLower(tok)] {
			continue
		}
		for _, group := range initialLetters(tok) {
			initials.WriteString(group)
		}
	}

	if initials.Len() == 0 {
		return titleCaseSurname(surname)
	}
	return titleCaseSurname(surname) + ", " + initials.String()
}

// formatGivenPart normalizes the part after the comma: initials become
// "X." groups, full given words reduce to their first letter. Source
// spacing between groups is preserved.
func formatGivenPart(given string) string {
	if given == "" {
		return ""
	}
	tokens := strings.Fields(given)
	formatted := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if surnameParticles[strings.ToLower(tok)] {
			continue
		}
		groups := initialLetters(tok)
		if len(groups) == 0 {
			continue
		}
		formatted = append(formatted, strings.Join(groups, ""))
	}
	return strings.Join(formatted, " ")
}

// initialLetters reduces one token to its initial groups.
//
//	"R.C."  -> ["R.", "C."]
//	"r.c"   -> ["R.", "C."]
//	"RC"    -> ["R.", "C."]   (bare uppercase initials)
//	"TIAGO" -> ["T."]
//	"Débora"-> ["D."]
func initialLetters(tok string) []string {
	tok = strings.Trim(tok, ",")
	if tok == "" {
		return nil
	}

	// Dotted initials: every dot-separated piece is a single letter.
	pieces := strings.Split(tok, ".")
	dotted := true
	var letters []string
	for _, piece := range pieces {
		if piece == "" {
			continue
		}
		runes := []rune(piece)
		if len(runes) != 1 || !unicode.IsLetter(runes[0]) {
			dotted = false
			break
		}
		letters = append(letters, strings.ToUpper(piece)+".")
	}
	if dotted && len(letters) > 0 {
		return letters
	}

	// Bare uppercase initials without dots ("RC").
	runes := []rune(tok)
	if len(runes) <= 3 && tok == strings.ToUpper(tok) && letterOnly(tok) {
		out := make([]string, 0, len(runes))
		for _, r := range runes {
			out = append(out, string(r)+".")
		}
		return out
	}

	// A written-out word contributes its first letter.
	return []string{strings.ToUpper(string(runes[0])) + "."}
}

func letterOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// titleCaseSurname title-cases a surname with Brazilian Portuguese rules.
// A cases.Caser is stateful, so one is created per call.
func titleCaseSurname(surname string) string {
	if surname == "" {
		return surname
	}
	return cases.Title(language.BrazilianPortuguese).String(strings.ToLower(surname))
}
