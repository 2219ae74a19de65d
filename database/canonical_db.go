package database

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"coletores/normalization"
	"coletores/normalization/algorithms"
)

// ErrNotFound is returned when an entity lookup matches nothing.
var ErrNotFound = errors.New("canonical entity not found")

// minStoredConfidence is the lower bound on every persisted confidence.
const minStoredConfidence = 0.70

const createCanonicalSchema = `
CREATE TABLE IF NOT EXISTS canonical_entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	canonical_name TEXT NOT NULL,
	entity_type TEXT NOT NULL CHECK(entity_type IN ('Pessoa', 'GrupoPessoas', 'Empresa', 'NaoDeterminado')),
	classification_confidence REAL NOT NULL CHECK(classification_confidence >= 0.70 AND classification_confidence <= 1.0),
	grouping_confidence REAL NOT NULL CHECK(grouping_confidence >= 0.70 AND grouping_confidence <= 1.0),
	variations TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_canonical_name_type
ON canonical_entities(canonical_name, entity_type);

CREATE INDEX IF NOT EXISTS idx_entity_type
ON canonical_entities(entity_type);
`

// entityIndex carries the in-memory matching state for one entity: the
// comparison keys of its canonical name and variations, plus their
// letters-only forms for the exact-match short circuit.
type entityIndex struct {
	entity   *CanonicalEntity
	keys     []string
	stripped map[string]bool
}

// CanonicalDB is the canonical-entity store: SQLite persistence plus an
// in-memory per-type working set used by similarity search. All writes must
// come from a single logical writer; a mutex guards the critical section as
// a backstop.
type CanonicalDB struct {
	conn       *sql.DB
	metrics    *algorithms.SimilarityMetrics
	normalizer *normalization.Normalizer
	logger     *slog.Logger

	mu     sync.Mutex
	byType map[EntityType][]*entityIndex
	loaded bool
}

// NewCanonicalDB opens (creating if needed) the store at path. Use
// ":memory:" for tests.
func NewCanonicalDB(path string, metrics *algorithms.SimilarityMetrics) (*CanonicalDB, error) {
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open canonical database: %w", err)
	}
	// The store has a single writer; more connections would only give the
	// scan cache a stale view.
	conn.SetMaxOpenConns(1)

	db := &CanonicalDB{
		conn:       conn,
		metrics:    metrics,
		normalizer: normalization.NewNormalizer(),
		logger:     slog.Default().With("component", "canonical_db"),
		byType:     make(map[EntityType][]*entityIndex),
	}
	if err := db.CreateSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// CreateSchema creates tables and indexes. Idempotent.
func (db *CanonicalDB) CreateSchema() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, err := db.conn.Exec(createCanonicalSchema); err != nil {
		return fmt.Errorf("failed to create canonical schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (db *CanonicalDB) Close() error {
	return db.conn.Close()
}

// MatchKey derives the comparison key used to match text against entities
// of the given type. Person spellings are first reduced to their canonical
// "Surname, Initials" form so that "R.C. Forzza" and "Forzza, R.C." key
// identically.
func (db *CanonicalDB) MatchKey(entityType EntityType, text string) string {
	if entityType == EntityPessoa {
		text = normalization.CanonicalPersonName(text)
	}
	return db.normalizer.ComparisonKey(text)
}

// FindSimilar returns the best-matching entity of the given type whose
// score against key reaches threshold, or ErrNotFound. Ties break to the
// highest score, then the oldest entity.
func (db *CanonicalDB) FindSimilar(key string, entityType EntityType, threshold float64) (*CanonicalEntity, float64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.ensureLoaded(); err != nil {
		return nil, 0, err
	}

	var best *entityIndex
	bestScore := 0.0

	strippedKey := algorithms.StripNonAlpha(key)

	for _, idx := range db.byType[entityType] {
		score := db.scoreAgainst(idx, key, strippedKey)
		if score < threshold {
			continue
		}
		if best == nil || score > bestScore ||
			(score == bestScore && idx.entity.CreatedAt.Before(best.entity.CreatedAt)) {
			best = idx
			bestScore = score
		}
	}

	if best == nil {
		return nil, 0, ErrNotFound
	}
	return best.entity, bestScore, nil
}

// FindExact returns the entity with the exact (canonical_name, entity_type)
// unique key, or ErrNotFound.
func (db *CanonicalDB) FindExact(canonicalName string, entityType EntityType) (*CanonicalEntity, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.ensureLoaded(); err != nil {
		return nil, err
	}
	if idx := db.findExactLocked(canonicalName, entityType); idx != nil {
		return idx.entity, nil
	}
	return nil, ErrNotFound
}

func (db *CanonicalDB) scoreAgainst(idx *entityIndex, key, strippedKey string) float64 {
	// Short circuit: identical letters mean identical names under any
	// punctuation or spacing.
	if strippedKey != "" && idx.stripped[strippedKey] {
		return 1.0
	}
	best := 0.0
	for _, candidate := range idx.keys {
		if score := db.metrics.CombinedScore(key, candidate); score > best {
			best = score
		}
	}
	return best
}

// UpsertRequest describes one attach-or-create operation.
type UpsertRequest struct {
	// Target, when set, is an entity previously returned by FindSimilar;
	// the variation is attached to it. When nil the store first looks for
	// an exact (CanonicalName, EntityType) match and only then inserts.
	Target *CanonicalEntity

	CanonicalName            string
	EntityType               EntityType
	ClassificationConfidence float64
	VariationText            string
	AssociationConfidence    float64
	// MatchKey is the comparison key the variation will answer to in
	// future searches.
	MatchKey string
}

// Upsert attaches a variation to an existing entity or creates a new one,
// reporting which happened. Attaching an already-present spelling increments
// its occurrence count and refreshes last_seen. Unique-constraint races
// reload the conflicting row and retry once.
func (db *CanonicalDB) Upsert(req UpsertRequest) (*CanonicalEntity, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.ensureLoaded(); err != nil {
		return nil, false, err
	}
	if err := validateUpsert(req); err != nil {
		return nil, false, err
	}

	entity, created, err := db.upsertLocked(req)
	if err == nil {
		return entity, created, nil
	}

	// A unique violation means the entity appeared outside our cache view;
	// reload and retry once.
	if isUniqueViolation(err) {
		db.logger.Warn("unique constraint race on upsert, reloading",
			"canonical_name", req.CanonicalName, "entity_type", string(req.EntityType))
		if reloadErr := db.reloadLocked(); reloadErr != nil {
			return nil, false, reloadErr
		}
		req.Target = nil
		return db.upsertLocked(req)
	}
	return nil, false, err
}

func (db *CanonicalDB) upsertLocked(req UpsertRequest) (*CanonicalEntity, bool, error) {
	now := time.Now().UTC()

	var idx *entityIndex
	if req.Target != nil {
		idx = db.findByIDLocked(req.Target.ID, req.Target.EntityType)
	}
	if idx == nil {
		idx = db.findExactLocked(req.CanonicalName, req.EntityType)
	}

	if idx == nil {
		entity, err := db.insertLocked(req, now)
		return entity, true, err
	}

	entity := idx.entity
	if variation := entity.FindVariation(req.VariationText); variation != nil {
		variation.OccurrenceCount++
		variation.LastSeen = now
	} else {
		entity.Variations = append(entity.Variations, NameVariation{
			VariationText:         req.VariationText,
			OccurrenceCount:       1,
			AssociationConfidence: clampConfidence(req.AssociationConfidence),
			FirstSeen:             now,
			LastSeen:              now,
		})
		db.indexVariationLocked(idx, req.MatchKey)
	}

	// The grouping confidence never exceeds the weakest variation link.
	entity.GroupingConfidence = clampConfidence(entity.MinAssociationConfidence())
	entity.UpdatedAt = now

	if err := db.persistUpdateLocked(entity); err != nil {
		return nil, false, err
	}
	return entity, false, nil
}

func (db *CanonicalDB) insertLocked(req UpsertRequest, now time.Time) (*CanonicalEntity, error) {
	entity := &CanonicalEntity{
		CanonicalName:            req.CanonicalName,
		EntityType:               req.EntityType,
		ClassificationConfidence: clampConfidence(req.ClassificationConfidence),
		GroupingConfidence:       clampConfidence(req.AssociationConfidence),
		Variations: []NameVariation{{
			VariationText:         req.VariationText,
			OccurrenceCount:       1,
			AssociationConfidence: clampConfidence(req.AssociationConfidence),
			FirstSeen:             now,
			LastSeen:              now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	variationsJSON, err := encodeVariations(entity.Variations)
	if err != nil {
		return nil, err
	}

	res, err := db.conn.Exec(`
		INSERT INTO canonical_entities
		(canonical_name, entity_type, classification_confidence, grouping_confidence, variations, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entity.CanonicalName,
		string(entity.EntityType),
		entity.ClassificationConfidence,
		entity.GroupingConfidence,
		variationsJSON,
		entity.CreatedAt.Format(time.RFC3339Nano),
		entity.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert canonical entity %q: %w", entity.CanonicalName, err)
	}
	entity.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted entity id: %w", err)
	}

	idx := &entityIndex{entity: entity, stripped: make(map[string]bool)}
	db.indexVariationLocked(idx, db.MatchKey(entity.EntityType, entity.CanonicalName))
	if req.MatchKey != "" {
		db.indexVariationLocked(idx, req.MatchKey)
	}
	db.byType[entity.EntityType] = append(db.byType[entity.EntityType], idx)

	return entity, nil
}

func (db *CanonicalDB) persistUpdateLocked(entity *CanonicalEntity) error {
	variationsJSON, err := encodeVariations(entity.Variations)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(`
		UPDATE canonical_entities SET
			classification_confidence = ?,
			grouping_confidence = ?,
			variations = ?,
			updated_at = ?
		WHERE id = ?`,
		entity.ClassificationConfidence,
		entity.GroupingConfidence,
		variationsJSON,
		entity.UpdatedAt.Format(time.RFC3339Nano),
		entity.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update canonical entity %d: %w", entity.ID, err)
	}
	return nil
}

// AllEntities enumerates the store in insertion order, for export.
func (db *CanonicalDB) AllEntities() ([]*CanonicalEntity, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.ensureLoaded(); err != nil {
		return nil, err
	}

	var all []*CanonicalEntity
	for _, indexes := range db.byType {
		for _, idx := range indexes {
			all = append(all, idx.entity)
		}
	}
	sortEntitiesByID(all)
	return all, nil
}

// CountByType reports how many entities of each type exist.
func (db *CanonicalDB) CountByType() (map[EntityType]int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.ensureLoaded(); err != nil {
		return nil, err
	}
	counts := make(map[EntityType]int, len(db.byType))
	for t, indexes := range db.byType {
		counts[t] = len(indexes)
	}
	return counts, nil
}

func (db *CanonicalDB) ensureLoaded() error {
	if db.loaded {
		return nil
	}
	return db.reloadLocked()
}

func (db *CanonicalDB) reloadLocked() error {
	rows, err := db.conn.Query(`
		SELECT id, canonical_name, entity_type, classification_confidence,
		       grouping_confidence, variations, created_at, updated_at
		FROM canonical_entities ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to load canonical entities: %w", err)
	}
	defer rows.Close()

	byType := make(map[EntityType][]*entityIndex)
	count := 0
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return err
		}
		idx := &entityIndex{entity: entity, stripped: make(map[string]bool)}
		db.indexVariationLocked(idx, db.MatchKey(entity.EntityType, entity.CanonicalName))
		for _, v := range entity.Variations {
			db.indexVariationLocked(idx, db.MatchKey(entity.EntityType, v.VariationText))
		}
		byType[entity.EntityType] = append(byType[entity.EntityType], idx)
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate canonical entities: %w", err)
	}

	db.byType = byType
	db.loaded = true
	if count > 0 {
		db.logger.Info("loaded canonical working set", "entities", count)
	}
	return nil
}

func (db *CanonicalDB) indexVariationLocked(idx *entityIndex, key string) {
	if key == "" {
		return
	}
	for _, existing := range idx.keys {
		if existing == key {
			return
		}
	}
	idx.keys = append(idx.keys, key)
	if stripped := algorithms.StripNonAlpha(key); stripped != "" {
		idx.stripped[stripped] = true
	}
}

func (db *CanonicalDB) findExactLocked(canonicalName string, entityType EntityType) *entityIndex {
	for _, idx := range db.byType[entityType] {
		if idx.entity.CanonicalName == canonicalName {
			return idx
		}
	}
	return nil
}

func (db *CanonicalDB) findByIDLocked(id int64, entityType EntityType) *entityIndex {
	for _, idx := range db.byType[entityType] {
		if idx.entity.ID == id {
			return idx
		}
	}
	return nil
}

func scanEntity(rows *sql.Rows) (*CanonicalEntity, error) {
	var (
		entity         CanonicalEntity
		entityType     string
		variationsJSON string
		createdAt      string
		updatedAt      string
	)
	if err := rows.Scan(&entity.ID, &entity.CanonicalName, &entityType,
		&entity.ClassificationConfidence, &entity.GroupingConfidence,
		&variationsJSON, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan canonical entity: %w", err)
	}
	entity.EntityType = EntityType(entityType)
	if err := json.Unmarshal([]byte(variationsJSON), &entity.Variations); err != nil {
		return nil, fmt.Errorf("failed to decode variations of entity %d: %w", entity.ID, err)
	}
	entity.CreatedAt = parseTimestamp(createdAt)
	entity.UpdatedAt = parseTimestamp(updatedAt)
	return &entity, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.000Z07:00",
	"2006-01-02 15:04:05",
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// encodeVariations serializes variations without HTML escaping so accented
// characters stay byte-identical to the source.
func encodeVariations(variations []NameVariation) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(variations); err != nil {
		return "", fmt.Errorf("failed to encode variations: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func validateUpsert(req UpsertRequest) error {
	if req.CanonicalName == "" {
		return errors.New("canonical name must not be empty")
	}
	if first := []rune(req.CanonicalName)[0]; strings.ContainsRune(" \t;|&,", first) {
		return fmt.Errorf("canonical name %q begins with whitespace or a separator", req.CanonicalName)
	}
	if !req.EntityType.Valid() {
		return fmt.Errorf("invalid entity type %q", req.EntityType)
	}
	if req.VariationText == "" {
		return errors.New("variation text must not be empty")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func clampConfidence(c float64) float64 {
	if c < minStoredConfidence {
		return minStoredConfidence
	}
	if c > 1.0 {
		return 1.0
	}
	return c
}

func sortEntitiesByID(entities []*CanonicalEntity) {
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID < entities[j].ID
	})
}
