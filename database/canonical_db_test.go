package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coletores/classification"
	"coletores/normalization/algorithms"
)

func newTestDB(t *testing.T) *CanonicalDB {
	t.Helper()
	db, err := NewCanonicalDB(":memory:", algorithms.NewSimilarityMetrics())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func personUpsert(db *CanonicalDB, canonical, variation string, confidence float64) UpsertRequest {
	return UpsertRequest{
		CanonicalName:            canonical,
		EntityType:               EntityPessoa,
		ClassificationConfidence: confidence,
		VariationText:            variation,
		AssociationConfidence:    1.0,
		MatchKey:                 db.MatchKey(EntityPessoa, variation),
	}
}

func TestCreateSchemaIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.CreateSchema())
	require.NoError(t, db.CreateSchema())
}

func TestUpsertInsertAndMerge(t *testing.T) {
	db := newTestDB(t)

	entity, created, err := db.Upsert(personUpsert(db, "Forzza, R.C.", "Forzza, R.C.", 0.80))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Forzza, R.C.", entity.CanonicalName)
	require.Len(t, entity.Variations, 1)
	assert.Equal(t, 1, entity.Variations[0].OccurrenceCount)

	// The identical spelling merges idempotently.
	entity, created, err = db.Upsert(personUpsert(db, "Forzza, R.C.", "Forzza, R.C.", 0.80))
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, entity.Variations, 1)
	assert.Equal(t, 2, entity.Variations[0].OccurrenceCount)
	assert.False(t, entity.Variations[0].LastSeen.Before(entity.Variations[0].FirstSeen))
}

func TestUpsertAttachesVariationToTarget(t *testing.T) {
	db := newTestDB(t)

	first, _, err := db.Upsert(personUpsert(db, "Forzza, R.C.", "Forzza, R.C.", 0.80))
	require.NoError(t, err)

	req := personUpsert(db, "Forzza, R.C.", "R.C. Forzza", 0.80)
	req.Target = first
	req.AssociationConfidence = 0.92

	entity, created, err := db.Upsert(req)
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, entity.Variations, 2)

	// Grouping confidence is the weakest link.
	assert.InDelta(t, 0.92, entity.GroupingConfidence, 1e-9)
}

func TestFindSimilarShortCircuit(t *testing.T) {
	db := newTestDB(t)

	_, _, err := db.Upsert(personUpsert(db, "Forzza, R.C.", "Forzza, R.C.", 0.80))
	require.NoError(t, err)

	// Same letters, different punctuation: exact short circuit.
	key := db.MatchKey(EntityPessoa, "R.C. Forzza")
	entity, score, err := db.FindSimilar(key, EntityPessoa, 0.70)
	require.NoError(t, err)
	assert.Equal(t, "Forzza, R.C.", entity.CanonicalName)
	assert.Equal(t, 1.0, score)
}

func TestFindSimilarAgainstVariations(t *testing.T) {
	db := newTestDB(t)

	_, _, err := db.Upsert(personUpsert(db, "Forzza, R.C.", "Forzza, R.C.", 0.80))
	require.NoError(t, err)

	key := db.MatchKey(EntityPessoa, "Forzza, R.")
	entity, score, err := db.FindSimilar(key, EntityPessoa, 0.70)
	require.NoError(t, err)
	assert.Equal(t, "Forzza, R.C.", entity.CanonicalName)
	assert.GreaterOrEqual(t, score, 0.70)
}

func TestFindSimilarRespectsEntityType(t *testing.T) {
	db := newTestDB(t)

	_, _, err := db.Upsert(UpsertRequest{
		CanonicalName:            "EMBRAPA",
		EntityType:               EntityEmpresa,
		ClassificationConfidence: 0.85,
		VariationText:            "EMBRAPA",
		AssociationConfidence:    1.0,
		MatchKey:                 db.MatchKey(EntityEmpresa, "EMBRAPA"),
	})
	require.NoError(t, err)

	_, _, err = db.FindSimilar(db.MatchKey(EntityPessoa, "EMBRAPA"), EntityPessoa, 0.70)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindSimilarBelowThreshold(t *testing.T) {
	db := newTestDB(t)

	_, _, err := db.Upsert(personUpsert(db, "Silva, J.", "Silva, J.", 0.80))
	require.NoError(t, err)

	_, _, err = db.FindSimilar(db.MatchKey(EntityPessoa, "Nakamura, Y."), EntityPessoa, 0.70)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUniqueCanonicalNamePerType(t *testing.T) {
	db := newTestDB(t)

	// The same canonical name arriving twice without a target folds into
	// the existing entity instead of violating the unique index.
	_, created, err := db.Upsert(personUpsert(db, "Silva, J.", "Silva, J.", 0.80))
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = db.Upsert(personUpsert(db, "Silva, J.", "silva, j.", 0.80))
	require.NoError(t, err)
	assert.False(t, created)

	all, err := db.AllEntities()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Len(t, all[0].Variations, 2)
}

func TestConfidenceInvariants(t *testing.T) {
	db := newTestDB(t)

	// Below-threshold inputs are clamped to the floor, never stored lower.
	req := personUpsert(db, "Silva, J.", "Silva, J.", 0.40)
	req.AssociationConfidence = 0.10
	_, _, err := db.Upsert(req)
	require.NoError(t, err)

	all, err := db.AllEntities()
	require.NoError(t, err)
	for _, e := range all {
		assert.GreaterOrEqual(t, e.ClassificationConfidence, 0.70)
		assert.GreaterOrEqual(t, e.GroupingConfidence, 0.70)
		for _, v := range e.Variations {
			assert.GreaterOrEqual(t, v.AssociationConfidence, 0.70)
		}
	}
}

func TestCanonicalNameLeadingCharacterRejected(t *testing.T) {
	db := newTestDB(t)

	for _, name := range []string{" Silva", ";Silva", "|Silva", "&Silva", ",Silva", ""} {
		req := personUpsert(db, name, "Silva", 0.80)
		_, _, err := db.Upsert(req)
		assert.Error(t, err, "canonical name %q accepted", name)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := t.TempDir() + "/canonical.db"

	db, err := NewCanonicalDB(path, algorithms.NewSimilarityMetrics())
	require.NoError(t, err)
	_, _, err = db.Upsert(personUpsert(db, "Guimarães, T. M.", "Guimarães, T. M.", 0.80))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := NewCanonicalDB(path, algorithms.NewSimilarityMetrics())
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.AllEntities()
	require.NoError(t, err)
	require.Len(t, all, 1)
	// Accented characters survive the JSON column byte-identical.
	assert.Equal(t, "Guimarães, T. M.", all[0].CanonicalName)
	assert.Equal(t, "Guimarães, T. M.", all[0].Variations[0].VariationText)

	// The reloaded working set still answers similarity searches.
	entity, _, err := reopened.FindSimilar(reopened.MatchKey(EntityPessoa, "T. M. Guimarães"), EntityPessoa, 0.70)
	require.NoError(t, err)
	assert.Equal(t, all[0].ID, entity.ID)
}

func TestMergeCommutativity(t *testing.T) {
	inputs := []struct{ canonical, variation string }{
		{"Forzza, R.C.", "Forzza, R.C."},
		{"Forzza, R.C.", "R.C. Forzza"},
	}

	run := func(order []int) ([]*CanonicalEntity, error) {
		db := newTestDB(t)
		for _, i := range order {
			req := personUpsert(db, inputs[i].canonical, inputs[i].variation, 0.80)
			if best, score, err := db.FindSimilar(req.MatchKey, EntityPessoa, 0.70); err == nil {
				req.Target = best
				req.AssociationConfidence = score
			}
			if _, _, err := db.Upsert(req); err != nil {
				return nil, err
			}
		}
		return db.AllEntities()
	}

	forward, err := run([]int{0, 1})
	require.NoError(t, err)
	backward, err := run([]int{1, 0})
	require.NoError(t, err)

	require.Len(t, forward, 1)
	require.Len(t, backward, 1)
	assert.Equal(t, forward[0].CanonicalName, backward[0].CanonicalName)

	variationSet := func(e *CanonicalEntity) map[string]int {
		set := make(map[string]int)
		for _, v := range e.Variations {
			set[v.VariationText] = v.OccurrenceCount
		}
		return set
	}
	assert.Equal(t, variationSet(forward[0]), variationSet(backward[0]))
}

func TestEntityTypeMapping(t *testing.T) {
	assert.Equal(t, EntityPessoa, EntityTypeFromCategory(classification.Pessoa))
	assert.Equal(t, EntityPessoa, EntityTypeFromCategory(classification.ConjuntoPessoas))
	assert.Equal(t, EntityEmpresa, EntityTypeFromCategory(classification.Empresa))
	assert.Equal(t, EntityGrupoPessoas, EntityTypeFromCategory(classification.GrupoPessoas))
	assert.Equal(t, EntityNaoDeterminado, EntityTypeFromCategory(classification.NaoDeterminado))

	for _, et := range []EntityType{EntityPessoa, EntityGrupoPessoas, EntityEmpresa, EntityNaoDeterminado} {
		assert.True(t, et.Valid())
	}
	assert.False(t, EntityType("ConjuntoPessoas").Valid())
}

func TestMatchKeyFoldsPersonSpellings(t *testing.T) {
	db := newTestDB(t)

	spellings := []string{"Forzza, R.C.", "R.C. Forzza", "Rafaela C. Forzza", "forzza, r.c."}
	keys := make(map[string]bool)
	for _, s := range spellings {
		keys[db.MatchKey(EntityPessoa, s)] = true
	}
	assert.Len(t, keys, 1, "person spellings should fold to one match key, got %v", keys)
	assert.False(t, strings.ContainsAny(db.MatchKey(EntityPessoa, "Forzza, R.C."), "abcdefghijklmnopqrstuvwxyz"))
}
