// Generates synthetic herbarium collector datasets for load testing the
// canonicalization pipeline. Output is CSV in the source format the
// pipeline reads (id, recordedBy).
package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

var institutions = []string{
	"EMBRAPA", "INPA", "JBRJ", "USP", "UNICAMP", "UFRJ",
	"Herbário Nacional", "Instituto de Botânica", "Jardim Botânico do Rio de Janeiro",
}

var placeholders = []string{"?", "sem coletor", "desconhecido", "não identificado"}

var groups = []string{
	"Equipe de Campo", "Projeto Flora", "Expedição Amazônia", "Grupo de Pesquisas Botânicas",
}

func main() {
	gofakeit.Seed(42)
	rng := rand.New(rand.NewSource(42))

	sizes := []struct {
		name string
		size int
	}{
		{"1k", 1000},
		{"10k", 10000},
		{"100k", 100000},
	}

	dataDir := filepath.Join("tests", "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	// A pool of base collectors so that variations of the same person
	// actually repeat across records, like a real herbarium dump.
	type collector struct {
		surname string
		given   []string
	}
	pool := make([]collector, 400)
	for i := range pool {
		pool[i] = collector{
			surname: gofakeit.LastName(),
			given:   []string{gofakeit.FirstName(), gofakeit.FirstName()},
		}
	}

	spellings := func(c collector) []string {
		initials := fmt.Sprintf("%c.%c.", c.given[0][0], c.given[1][0])
		return []string{
			fmt.Sprintf("%s, %s", c.surname, initials),
			fmt.Sprintf("%s %s", initials, c.surname),
			fmt.Sprintf("%s %s", c.given[0], c.surname),
			fmt.Sprintf("%s, %c.", c.surname, c.given[0][0]),
		}
	}

	for _, tier := range sizes {
		path := filepath.Join(dataDir, fmt.Sprintf("collectors_%s.csv", tier.name))
		file, err := os.Create(path)
		if err != nil {
			log.Fatalf("failed to create %s: %v", path, err)
		}

		w := csv.NewWriter(file)
		if err := w.Write([]string{"id", "recordedBy"}); err != nil {
			log.Fatalf("failed to write header: %v", err)
		}

		for i := 0; i < tier.size; i++ {
			var value string
			switch roll := rng.Float64(); {
			case roll < 0.05:
				value = placeholders[rng.Intn(len(placeholders))]
			case roll < 0.10:
				value = institutions[rng.Intn(len(institutions))]
			case roll < 0.13:
				value = groups[rng.Intn(len(groups))]
			case roll < 0.35:
				// Multi-person string with separators.
				a := pool[rng.Intn(len(pool))]
				b := pool[rng.Intn(len(pool))]
				sep := []string{"; ", " & ", " | "}[rng.Intn(3)]
				value = spellings(a)[rng.Intn(4)] + sep + spellings(b)[rng.Intn(4)]
				if rng.Float64() < 0.2 {
					value += " et al."
				}
			default:
				c := pool[rng.Intn(len(pool))]
				value = spellings(c)[rng.Intn(4)]
				if rng.Float64() < 0.05 {
					// Collection number glued to the name.
					value = fmt.Sprintf("%s %d", value, rng.Intn(9000)+100)
				}
			}

			record := []string{fmt.Sprintf("rec-%s-%06d", tier.name, i), value}
			if err := w.Write(record); err != nil {
				log.Fatalf("failed to write record: %v", err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			log.Fatalf("failed to flush %s: %v", path, err)
		}
		file.Close()

		fmt.Printf("wrote %s (%d records)\n", path, tier.size)
	}

	fmt.Println(strings.Repeat("-", 40))
	fmt.Println("done")
}
