package normalization

import (
	"regexp"
	"strings"

	"coletores/classification"
)

// SeparatorType identifies which separator introduced an atom.
type SeparatorType int

const (
	SeparatorNone SeparatorType = iota
	SeparatorSemicolon
	SeparatorAmpersand
	SeparatorEtAl
	SeparatorComma
	SeparatorPipe
)

var separatorNames = map[SeparatorType]string{
	SeparatorNone:      "None",
	SeparatorSemicolon: "Semicolon",
	SeparatorAmpersand: "Ampersand",
	SeparatorEtAl:      "EtAl",
	SeparatorComma:     "Comma",
	SeparatorPipe:      "Pipe",
}

func (s SeparatorType) String() string {
	if name, ok := separatorNames[s]; ok {
		return name
	}
	return "None"
}

// AtomizedName is one individual name extracted from a multi-person string.
type AtomizedName struct {
	Text          string        `json:"text"`
	Position      int           `json:"position"`
	SeparatorUsed SeparatorType `json:"separator_used"`
	ParentRawText string        `json:"parent_raw_text"`
}

// Atomization is the result of splitting one multi-person string.
type Atomization struct {
	Atoms []AtomizedName `json:"atoms"`
	// HasUnknownCollaborators is set when an "et al." token was dropped:
	// at least one further collector existed but was not named.
	HasUnknownCollaborators bool `json:"has_unknown_collaborators"`
}

var (
	// Repeated "Surname, Initials" units promote commas to separators.
	reNameUnit     = regexp.MustCompile(`[\p{Lu}][\p{L}]+(?:-[\p{Lu}][\p{L}]+)?,\s*[\p{Lu}]\.(?:\s*[\p{Lu}]\.)*`)
	reInitialsOnly = regexp.MustCompile(`^\s*[\p{Lu}]\.(?:\s*[\p{Lu}]\.)*\s*$`)
)

// Atomizer splits ConjuntoPessoas strings into individual names.
type Atomizer struct{}

// NewAtomizer creates a new atomizer.
func NewAtomizer() *Atomizer {
	return &Atomizer{}
}

// Atomize splits text into individual name atoms. For any category other
// than ConjuntoPessoas the result is empty.
func (a *Atomizer) Atomize(text string, category classification.Category) Atomization {
	result := Atomization{}
	if category != classification.ConjuntoPessoas {
		return result
	}

	parent := strings.TrimSpace(text)

	type segment struct {
		text string
		sep  SeparatorType
	}

	// Split on strong separators first, remembering which one preceded
	// each segment.
	segments := []segment{}
	current := strings.Builder{}
	sep := SeparatorNone
	flush := func(next SeparatorType) {
		segments = append(segments, segment{text: current.String(), sep: sep})
		current.Reset()
		sep = next
	}
	for _, r := range parent {
		switch r {
		case ';':
			flush(SeparatorSemicolon)
		case '&':
			flush(SeparatorAmpersand)
		case '|':
			flush(SeparatorPipe)
		default:
			current.WriteRune(r)
		}
	}
	flush(SeparatorNone)

	for _, seg := range segments {
		segText := seg.text

		// "et al." drops itself and everything after it on the segment.
		if loc := reNormEtAl.FindStringIndex(segText); loc != nil {
			segText = segText[:loc[0]]
			result.HasUnknownCollaborators = true
		}

		segText = strings.TrimSpace(segText)
		if segText == "" {
			continue
		}

		names := splitCommaUnits(segText)
		for i, name := range names {
			name = stripDigitRuns(name)
			if name == "" {
				continue
			}
			atomSep := seg.sep
			if i > 0 {
				atomSep = SeparatorComma
			}
			if len(result.Atoms) == 0 {
				atomSep = SeparatorNone
			}
			result.Atoms = append(result.Atoms, AtomizedName{
				Text:          name,
				Position:      len(result.Atoms),
				SeparatorUsed: atomSep,
				ParentRawText: parent,
			})
		}
	}

	return result
}

// splitCommaUnits promotes commas to separators when the segment is a run of
// at least two "Surname, Initials" units. Otherwise the segment is a single
// name and its comma stays part of it.
func splitCommaUnits(seg string) []string {
	if len(reNameUnit.FindAllString(seg, 3)) < 2 {
		return []string{seg}
	}

	pieces := strings.Split(seg, ",")
	names := []string{}
	for i := 0; i < len(pieces); i++ {
		piece := strings.TrimSpace(pieces[i])
		if piece == "" {
			continue
		}
		// Rejoin "Surname" with its trailing "Initials" piece.
		if i+1 < len(pieces) && reInitialsOnly.MatchString(pieces[i+1]) {
			names = append(names, piece+", "+strings.TrimSpace(pieces[i+1]))
			i++
			continue
		}
		names = append(names, piece)
	}
	if len(names) < 2 {
		return []string{seg}
	}
	return names
}

// stripDigitRuns removes collection numbers attached to name tokens.
func stripDigitRuns(name string) string {
	cleaned := reDigitGroup.ReplaceAllString(name, " ")
	return strings.TrimSpace(strings.Join(strings.Fields(cleaned), " "))
}
