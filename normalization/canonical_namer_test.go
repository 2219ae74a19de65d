package normalization

import (
	"testing"

	"coletores/classification"
)

func TestCanonicalPersonName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Already "Surname, Initials": casing fixed, spacing kept.
		{"Guimarães, T. M.", "Guimarães, T. M."},
		{"Silva, J.", "Silva, J."},
		{"FORZZA, R.C.", "Forzza, R.C."},
		{"forzza, r.c.", "Forzza, R.C."},

		// "Initials Surname" reorders.
		{"D.R. Gonzaga", "Gonzaga, D.R."},
		{"R.C. Forzza", "Forzza, R.C."},

		// Full written names reduce to initials.
		{"Alisson Nogueira Braz", "Braz, A.N."},
		{"Débora G. Takaki", "Takaki, D.G."},
		{"Rafaela C. Forzza", "Forzza, R.C."},

		// A written-out given name after the comma becomes an initial.
		{"Grespan, TIAGO", "Grespan, T."},

		// Hyphenated surnames stay one token.
		{"Müller-Freitas, A.B.", "Müller-Freitas, A.B."},
		{"Ana Müller-Freitas", "Müller-Freitas, A."},

		// Particles contribute no initials.
		{"Maria da Silva", "Silva, M."},

		// Surname-only collectors.
		{"Kumerrow", "Kumerrow"},
		{"SILVA", "Silva"},
	}

	for _, tt := range tests {
		if got := CanonicalPersonName(tt.input); got != tt.expected {
			t.Errorf("CanonicalPersonName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestCanonicalPersonNameIdempotent(t *testing.T) {
	inputs := []string{"Forzza, R.C.", "Gonzaga, D.R.", "Braz, A.N.", "Kumerrow"}
	for _, input := range inputs {
		once := CanonicalPersonName(input)
		twice := CanonicalPersonName(once)
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", input, once, twice)
		}
	}
}

func TestCanonicalNameByCategory(t *testing.T) {
	tests := []struct {
		category classification.Category
		input    string
		expected string
	}{
		{classification.Empresa, "Embrapa", "EMBRAPA"},
		{classification.Empresa, "Jardim Botânico", "JARDIM BOTÂNICO"},
		{classification.GrupoPessoas, "Pesquisas da Biodiversidade", "PESQUISAS DA BIODIVERSIDADE"},
		{classification.NaoDeterminado, "sem coletor", "sem coletor"},
		{classification.NaoDeterminado, "?", "?"},
		{classification.Pessoa, "R.C. Forzza", "Forzza, R.C."},
	}

	for _, tt := range tests {
		if got := CanonicalName(tt.category, tt.input); got != tt.expected {
			t.Errorf("CanonicalName(%s, %q) = %q, want %q", tt.category, tt.input, got, tt.expected)
		}
	}
}
