package classification

import "testing"

func TestClassifyPlaceholders(t *testing.T) {
	c := NewClassifier()

	for _, input := range []string{"?", "sem coletor", "SEM COLETOR", "não identificado", "desconhecido"} {
		got := c.Classify(input)
		if got.Category != NaoDeterminado {
			t.Errorf("Classify(%q).Category = %s, want NaoDeterminado", input, got.Category)
		}
		if got.Confidence != 1.0 {
			t.Errorf("Classify(%q).Confidence = %.2f, want 1.00", input, got.Confidence)
		}
		if !got.IsPlaceholder() {
			t.Errorf("Classify(%q) should be a placeholder", input)
		}
	}
}

func TestClassifyInstitutions(t *testing.T) {
	c := NewClassifier()

	tests := []string{
		"EMBRAPA",
		"INPA",
		"JBRJ",
		"Herbário Nacional",
		"Jardim Botânico do Rio de Janeiro",
		"Instituto de Botânica",
	}
	for _, input := range tests {
		got := c.Classify(input)
		if got.Category != Empresa {
			t.Errorf("Classify(%q).Category = %s, want Empresa", input, got.Category)
		}
		if got.Confidence < 0.85 {
			t.Errorf("Classify(%q).Confidence = %.2f, want >= 0.85", input, got.Confidence)
		}
	}
}

func TestClassifyMultiPerson(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		input         string
		minConfidence float64
	}{
		{"Silva, J. & R.C. Forzza; Santos, M. et al.", 0.90},
		{"Silva, J.; Santos, M.", 0.90},
		{"Botelho, R.D. ET. AL.", 0.82},
		{"Silva, J., Santos, M.", 0.82},
		{"fulano & beltrano", 0.82},
	}
	for _, tt := range tests {
		got := c.Classify(tt.input)
		if got.Category != ConjuntoPessoas {
			t.Errorf("Classify(%q).Category = %s, want ConjuntoPessoas", tt.input, got.Category)
			continue
		}
		if !got.ShouldAtomize {
			t.Errorf("Classify(%q).ShouldAtomize = false", tt.input)
		}
		if got.Confidence < tt.minConfidence {
			t.Errorf("Classify(%q).Confidence = %.2f, want >= %.2f", tt.input, got.Confidence, tt.minConfidence)
		}
	}
}

func TestClassifyPerson(t *testing.T) {
	c := NewClassifier()

	strict := []string{
		"Forzza, R.C.",
		"Guimarães, T. M.",
		"D.R. Gonzaga",
		"Grespan, TIAGO",
		"Alisson Nogueira Braz",
		"Rafaela C. Forzza",
	}
	for _, input := range strict {
		got := c.Classify(input)
		if got.Category != Pessoa {
			t.Errorf("Classify(%q).Category = %s, want Pessoa", input, got.Category)
			continue
		}
		if got.Confidence < 0.80 {
			t.Errorf("Classify(%q).Confidence = %.2f, want >= 0.80", input, got.Confidence)
		}
		if got.ShouldAtomize {
			t.Errorf("Classify(%q).ShouldAtomize = true", input)
		}
	}

	// A lone capitalized word is a weak person signal: below the storage
	// threshold so the NER fallback always weighs in.
	loose := c.Classify("Kumerrow")
	if loose.Category != Pessoa {
		t.Errorf("Classify(Kumerrow).Category = %s, want Pessoa", loose.Category)
	}
	if loose.Confidence >= 0.70 {
		t.Errorf("Classify(Kumerrow).Confidence = %.2f, want < 0.70", loose.Confidence)
	}
}

func TestClassifyGroup(t *testing.T) {
	c := NewClassifier()

	tests := []string{
		"Pesquisas da Biodiversidade",
		"Equipe de Campo",
		"Projeto Flora do Cerrado",
		"Alunos da disciplina de botânica",
	}
	for _, input := range tests {
		got := c.Classify(input)
		if got.Category != GrupoPessoas {
			t.Errorf("Classify(%q).Category = %s, want GrupoPessoas", input, got.Category)
			continue
		}
		if got.Confidence < 0.70 {
			t.Errorf("Classify(%q).Confidence = %.2f, want >= 0.70", input, got.Confidence)
		}
	}
}

func TestClassifyGroupKeywordWithPersonNameStaysPerson(t *testing.T) {
	c := NewClassifier()

	// A group keyword does not override an embedded person pattern.
	got := c.Classify("Projeto Flora: Silva, J.")
	if got.Category == GrupoPessoas {
		t.Errorf("Classify with embedded person pattern = %s, want not GrupoPessoas", got.Category)
	}

	// A fully capitalized multi-word name wins over a group keyword: the
	// person rule ranks above the group rule.
	got = c.Classify("Grupo Nogueira Braz")
	if got.Category != Pessoa {
		t.Errorf("Classify(Grupo Nogueira Braz).Category = %s, want Pessoa", got.Category)
	}
	if got.Confidence < 0.80 {
		t.Errorf("Classify(Grupo Nogueira Braz).Confidence = %.2f, want >= 0.80", got.Confidence)
	}
}

func TestClassifyDefaults(t *testing.T) {
	c := NewClassifier()

	got := c.Classify("13313, A.C.B.")
	if got.Category != NaoDeterminado {
		t.Errorf("Category = %s, want NaoDeterminado", got.Category)
	}
	if got.Confidence >= 0.70 {
		t.Errorf("Confidence = %.2f, want < 0.70 so the fallback engages", got.Confidence)
	}

	empty := c.Classify("   ")
	if empty.Category != NaoDeterminado || !empty.IsPlaceholder() {
		t.Errorf("blank input = %s placeholder=%t, want NaoDeterminado placeholder", empty.Category, empty.IsPlaceholder())
	}

	junk := c.Classify("12345")
	if junk.Category != NaoDeterminado {
		t.Errorf("letterless input = %s, want NaoDeterminado", junk.Category)
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	c := NewClassifier()

	// Placeholder beats everything.
	if got := c.Classify("sem coletor"); got.Category != NaoDeterminado {
		t.Errorf("placeholder lost to %s", got.Category)
	}
	// Institution keyword beats the separator rule.
	if got := c.Classify("Herbário X & Y"); got.Category != Empresa {
		t.Errorf("institution keyword lost to %s", got.Category)
	}
	// Separator beats the single-person rule.
	if got := c.Classify("Silva, J. & Santos, M."); got.Category != ConjuntoPessoas {
		t.Errorf("separator lost to %s", got.Category)
	}
}

func TestClassifyCustomKeywords(t *testing.T) {
	c := NewClassifierWithKeywords([]string{"fiocruz"}, []string{"mutirão"})

	if got := c.Classify("Fiocruz Amazônia"); got.Category != Empresa {
		t.Errorf("custom institution keyword = %s, want Empresa", got.Category)
	}
	if got := c.Classify("Mutirão de coleta"); got.Category != GrupoPessoas {
		t.Errorf("custom group keyword = %s, want GrupoPessoas", got.Category)
	}
}

func TestPatternsMatched(t *testing.T) {
	c := NewClassifier()

	got := c.Classify("Silva, J. & Santos, M.")
	if len(got.PatternsMatched) == 0 {
		t.Fatal("no patterns recorded")
	}
	if got.PatternsMatched[0] != "multiple_name_separator" {
		t.Errorf("first pattern = %q, want multiple_name_separator", got.PatternsMatched[0])
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range []Category{Pessoa, ConjuntoPessoas, GrupoPessoas, Empresa, NaoDeterminado} {
		parsed, ok := ParseCategory(c.String())
		if !ok || parsed != c {
			t.Errorf("ParseCategory(%s) = %v, %t", c, parsed, ok)
		}
	}
	if _, ok := ParseCategory("nonsense"); ok {
		t.Error("ParseCategory accepted nonsense")
	}
}
