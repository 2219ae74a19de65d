package algorithms

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Metaphone encodes names into a phonetic code. Input is ASCII-folded before
// encoding so that accented Portuguese spellings share codes with their plain
// counterparts ("Conceição" / "Conceicao").
type Metaphone struct{}

// NewMetaphone creates a new Metaphone encoder.
func NewMetaphone() *Metaphone {
	return &Metaphone{}
}

// FoldASCII strips combining marks, mapping accented letters to their base
// form. Display forms are never folded; this is internal to phonetic coding.
// The transform chain is stateful, so it is built per call.
func FoldASCII(s string) string {
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(chain, s)
	if err != nil {
		return s
	}
	return folded
}

// Encode returns the phonetic code of the leading name token. Single-letter
// tokens (initials) carry no phonetic content and are skipped, so
// "FORZZA, R." and "R. C. FORZZA" both encode the surname.
func (m *Metaphone) Encode(text string) string {
	word := leadingNameToken(strings.ToUpper(FoldASCII(text)))
	if word == "" {
		return ""
	}
	return m.encodeWord(word)
}

// Match reports whether two strings share a phonetic code. Empty codes never
// match anything.
func (m *Metaphone) Match(s1, s2 string) bool {
	c1 := m.Encode(s1)
	c2 := m.Encode(s2)
	if c1 == "" || c2 == "" {
		return false
	}
	return c1 == c2
}

// leadingNameToken extracts the first alphabetic token of at least two
// letters; falls back to all letters concatenated when there is none.
func leadingNameToken(s string) string {
	var token strings.Builder
	var all strings.Builder

	flush := func() string {
		t := token.String()
		token.Reset()
		return t
	}

	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			token.WriteRune(r)
			all.WriteRune(r)
			continue
		}
		if t := flush(); len(t) >= 2 {
			return t
		}
	}
	if t := flush(); len(t) >= 2 {
		return t
	}
	return all.String()
}

func isVowel(r byte) bool {
	switch r {
	case 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}

// encodeWord applies Metaphone transformation rules to a single uppercase
// ASCII word. W is treated like V: in Brazilian names of German origin
// ("Kummrow" / "Kummrov") both spellings denote the same sound.
func (m *Metaphone) encodeWord(word string) string {
	b := []byte(word)

	// Initial-letter exceptions.
	switch {
	case len(b) >= 2 && (string(b[:2]) == "AE"):
		b = b[1:]
	case len(b) >= 2 && (string(b[:2]) == "GN" || string(b[:2]) == "KN" || string(b[:2]) == "PN" || string(b[:2]) == "WR"):
		b = b[1:]
	case len(b) >= 2 && string(b[:2]) == "WH":
		b = append([]byte{'W'}, b[2:]...)
	case len(b) >= 1 && b[0] == 'X':
		b[0] = 'S'
	}

	var code strings.Builder
	n := len(b)

	at := func(i int) byte {
		if i < 0 || i >= n {
			return 0
		}
		return b[i]
	}

	for i := 0; i < n; i++ {
		c := b[i]

		// Collapse doubled letters, except C.
		if i > 0 && c == b[i-1] && c != 'C' {
			continue
		}

		switch c {
		case 'A', 'E', 'I', 'O', 'U':
			if i == 0 {
				code.WriteByte(c)
			}
		case 'B':
			// Terminal MB is silent.
			if !(i == n-1 && at(i-1) == 'M') {
				code.WriteByte('B')
			}
		case 'C':
			switch {
			case at(i+1) == 'I' && at(i+2) == 'A':
				code.WriteByte('X')
			case at(i+1) == 'H':
				code.WriteByte('X')
			case at(i+1) == 'I' || at(i+1) == 'E' || at(i+1) == 'Y':
				code.WriteByte('S')
			default:
				code.WriteByte('K')
			}
		case 'D':
			if at(i+1) == 'G' && (at(i+2) == 'E' || at(i+2) == 'Y' || at(i+2) == 'I') {
				code.WriteByte('J')
			} else {
				code.WriteByte('T')
			}
		case 'G':
			switch {
			case at(i+1) == 'H' && !isVowel(at(i+2)):
				// silent
			case at(i+1) == 'N':
				// silent
			case at(i+1) == 'I' || at(i+1) == 'E' || at(i+1) == 'Y':
				code.WriteByte('J')
			default:
				code.WriteByte('K')
			}
		case 'H':
			if isVowel(at(i-1)) && !isVowel(at(i+1)) {
				// silent
			} else if at(i-1) == 'C' || at(i-1) == 'S' || at(i-1) == 'P' || at(i-1) == 'T' || at(i-1) == 'G' {
				// consumed by the digraph rule
			} else {
				code.WriteByte('H')
			}
		case 'J':
			code.WriteByte('J')
		case 'K':
			if at(i-1) != 'C' {
				code.WriteByte('K')
			}
		case 'F', 'L', 'M', 'N', 'R':
			code.WriteByte(c)
		case 'P':
			if at(i+1) == 'H' {
				code.WriteByte('F')
			} else {
				code.WriteByte('P')
			}
		case 'Q':
			code.WriteByte('K')
		case 'S':
			switch {
			case at(i+1) == 'H':
				code.WriteByte('X')
			case at(i+1) == 'I' && (at(i+2) == 'O' || at(i+2) == 'A'):
				code.WriteByte('X')
			default:
				code.WriteByte('S')
			}
		case 'T':
			switch {
			case at(i+1) == 'I' && (at(i+2) == 'O' || at(i+2) == 'A'):
				code.WriteByte('X')
			case at(i+1) == 'H':
				code.WriteByte('0')
			default:
				code.WriteByte('T')
			}
		case 'V', 'W':
			code.WriteByte('F')
		case 'X':
			code.WriteString("KS")
		case 'Y':
			if isVowel(at(i + 1)) {
				code.WriteByte('Y')
			}
		case 'Z':
			code.WriteByte('S')
		}
	}

	return code.String()
}
