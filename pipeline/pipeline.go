// Package pipeline composes the four text-analysis stages over a record
// stream: classification, atomization, normalization and canonicalization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"coletores/classification"
	"coletores/database"
	"coletores/internal/config"
	"coletores/ner"
	"coletores/normalization"
	"coletores/source"
)

// Summary aggregates the outcome of one pipeline run.
type Summary struct {
	RunID            string        `json:"run_id"`
	Processed        int64         `json:"processed"`
	Skipped          int64         `json:"skipped"`
	Discarded        int64         `json:"discarded"`
	NewEntities      int64         `json:"new_entities"`
	MergedVariations int64         `json:"merged_variations"`
	NERCalls         int64         `json:"ner_calls"`
	NERFailures      int64         `json:"ner_failures"`
	RecordErrors     int64         `json:"record_errors"`
	Duration         time.Duration `json:"duration"`
}

// Rate returns records per second over the run.
func (s *Summary) Rate() float64 {
	secs := s.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Processed) / secs
}

// Pipeline drives records from a source into the canonical store.
//
// Classification and normalization run on parallel workers; every store
// access goes through a single writer that applies records in source order,
// so an atom from record N is visible to the lookup for record N+1.
type Pipeline struct {
	cfg        *config.Config
	classifier *classification.Classifier
	atomizer   *normalization.Atomizer
	normalizer *normalization.Normalizer
	recognizer ner.Recognizer
	store      *database.CanonicalDB
	progress   *database.ProgressTracker
	logger     *slog.Logger
}

// New assembles a pipeline. recognizer may be a NoopRecognizer; progress
// may be nil to disable resumability.
func New(cfg *config.Config, store *database.CanonicalDB, recognizer ner.Recognizer, progress *database.ProgressTracker) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		classifier: classification.NewClassifierWithKeywords(cfg.InstitutionKeywords, cfg.GroupKeywords),
		atomizer:   normalization.NewAtomizer(),
		normalizer: normalization.NewNormalizer(),
		recognizer: recognizer,
		store:      store,
		progress:   progress,
		logger:     slog.Default().With("component", "pipeline"),
	}
}

type job struct {
	seq    int64
	record *source.Record
}

// atomUpsert is one store operation prepared by a worker, applied by the
// single writer.
type atomUpsert struct {
	entityType               database.EntityType
	canonicalName            string
	variationText            string
	matchKey                 string
	classificationConfidence float64
	// exact skips similarity search: placeholder entities are stored
	// verbatim under their own canonical name.
	exact bool
}

type recordResult struct {
	seq       int64
	recordID  string
	upserts   []atomUpsert
	discarded int64
	nerCalled bool
	nerFailed bool
}

// Run processes the whole source. Cancelling ctx stops the run at the next
// batch boundary; everything already persisted remains valid.
func (p *Pipeline) Run(ctx context.Context, src source.RecordSource) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString()}
	start := time.Now()

	p.logger.Info("starting canonicalization run",
		"run_id", summary.RunID,
		"workers", p.cfg.Workers,
		"batch_size", p.cfg.BatchSize,
		"ner", p.recognizer.Name())

	jobs := make(chan job, p.cfg.Workers*2)
	results := make(chan recordResult, p.cfg.Workers*2)

	var workers sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for j := range jobs {
				results <- p.processRecord(ctx, j)
			}
		}()
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	readErr := make(chan error, 1)
	go p.readRecords(ctx, src, jobs, readErr, summary)

	p.applyResults(results, summary)

	err := <-readErr
	summary.Duration = time.Since(start)

	if p.progress != nil {
		if metaErr := p.progress.SetMetadata("last_run_id", summary.RunID); metaErr != nil {
			p.logger.Warn("failed to record run id", "error", metaErr)
		}
	}

	p.logger.Info("canonicalization run finished",
		"run_id", summary.RunID,
		"processed", summary.Processed,
		"discarded", summary.Discarded,
		"new_entities", summary.NewEntities,
		"merged_variations", summary.MergedVariations,
		"ner_calls", summary.NERCalls,
		"record_errors", summary.RecordErrors,
		"duration", summary.Duration.Round(time.Millisecond),
		"rate_per_sec", fmt.Sprintf("%.1f", summary.Rate()))

	if err != nil && !errors.Is(err, context.Canceled) {
		return summary, err
	}
	return summary, nil
}

// readRecords pulls from the source and enqueues jobs, checking for
// cancellation at batch boundaries.
func (p *Pipeline) readRecords(ctx context.Context, src source.RecordSource, jobs chan<- job, done chan<- error, summary *Summary) {
	defer close(jobs)

	var seq int64
	var read int64
	for {
		if read%int64(p.cfg.BatchSize) == 0 && ctx.Err() != nil {
			done <- ctx.Err()
			return
		}

		record, err := src.Next(ctx)
		if errors.Is(err, source.ErrNoMoreRecords) {
			done <- nil
			return
		}
		if err != nil {
			done <- fmt.Errorf("source read failed: %w", err)
			return
		}
		read++

		if p.progress != nil && record.ID != "" {
			processed, err := p.progress.IsProcessed(record.ID)
			if err != nil {
				p.logger.Warn("progress lookup failed", "record_id", record.ID, "error", err)
			} else if processed {
				summary.Skipped++
				continue
			}
		}

		jobs <- job{seq: seq, record: record}
		seq++
	}
}

// applyResults is the single writer: it reorders worker output back into
// source order and applies every store operation sequentially.
func (p *Pipeline) applyResults(results <-chan recordResult, summary *Summary) {
	pending := make(map[int64]recordResult)
	var next int64
	var batchIDs []string
	batchNumber := 0

	flushBatch := func() {
		if p.progress == nil || len(batchIDs) == 0 {
			return
		}
		if err := p.progress.MarkBatchProcessed(batchIDs, batchNumber); err != nil {
			p.logger.Warn("failed to persist progress batch", "batch", batchNumber, "error", err)
		}
		batchIDs = batchIDs[:0]
		batchNumber++
	}

	for result := range results {
		pending[result.seq] = result
		for {
			current, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			p.applyRecord(current, summary)
			if current.recordID != "" {
				batchIDs = append(batchIDs, current.recordID)
			}
			if len(batchIDs) >= p.cfg.BatchSize {
				flushBatch()
			}
		}
	}
	flushBatch()
}

func (p *Pipeline) applyRecord(result recordResult, summary *Summary) {
	summary.Processed++
	summary.Discarded += result.discarded
	if result.nerCalled {
		summary.NERCalls++
	}
	if result.nerFailed {
		summary.NERFailures++
	}

	for _, item := range result.upserts {
		if err := p.applyUpsert(item, summary); err != nil {
			summary.RecordErrors++
			// One line per failed record; diagnostics go to the log.
			p.logger.Error("record upsert failed",
				"record_id", result.recordID,
				"canonical_name", item.canonicalName,
				"error", err)
		}
	}
}

func (p *Pipeline) applyUpsert(item atomUpsert, summary *Summary) error {
	req := database.UpsertRequest{
		CanonicalName:            item.canonicalName,
		EntityType:               item.entityType,
		ClassificationConfidence: item.classificationConfidence,
		VariationText:            item.variationText,
		AssociationConfidence:    1.0,
		MatchKey:                 item.matchKey,
	}

	if !item.exact {
		best, score, err := p.store.FindSimilar(item.matchKey, item.entityType, p.cfg.ConfidenceThreshold)
		switch {
		case errors.Is(err, database.ErrNotFound):
			// New canonical entity; association is perfect with itself.
		case err != nil:
			return err
		default:
			req.Target = best
			req.CanonicalName = best.CanonicalName
			req.AssociationConfidence = score
		}
	}

	_, created, err := p.store.Upsert(req)
	if err != nil {
		return err
	}
	if created {
		summary.NewEntities++
	} else {
		summary.MergedVariations++
	}
	return nil
}

// processRecord runs the pure stages for one record on a worker.
func (p *Pipeline) processRecord(ctx context.Context, j job) recordResult {
	result := recordResult{seq: j.seq, recordID: j.record.ID}

	raw := strings.TrimSpace(j.record.Collector)
	if raw == "" {
		result.discarded++
		return result
	}

	// Records led by a digit or a separator are source artifacts
	// (collection numbers, broken joins); no canonical name may begin
	// with either.
	if first := []rune(raw)[0]; unicode.IsDigit(first) || strings.ContainsRune(";|&,", first) {
		result.discarded++
		p.logger.Debug("record discarded by leading character", "record_id", j.record.ID, "text", raw)
		return result
	}

	classified := p.classifier.Classify(raw)

	if classified.Confidence < p.cfg.NERTriggerThreshold {
		var discard bool
		classified, discard = p.consultNER(ctx, classified, &result)
		if discard {
			result.discarded++
			p.logger.Debug("record discarded by ner", "record_id", j.record.ID, "text", raw)
			return result
		}
	}

	switch {
	case classified.Category == classification.NaoDeterminado && classified.IsPlaceholder():
		// Placeholder markers are stored verbatim.
		result.upserts = append(result.upserts, atomUpsert{
			entityType:               database.EntityNaoDeterminado,
			canonicalName:            raw,
			variationText:            raw,
			classificationConfidence: classified.Confidence,
			exact:                    true,
		})

	case classified.Category == classification.NaoDeterminado:
		p.appendAtom(&result, classification.NaoDeterminado, raw, classified.Confidence)

	case classified.ShouldAtomize:
		atoms := p.atomizer.Atomize(raw, classified.Category)
		for _, atom := range atoms.Atoms {
			p.appendAtom(&result, classification.Pessoa, atom.Text, classified.Confidence)
		}

	default:
		p.appendAtom(&result, classified.Category, raw, classified.Confidence)
	}

	return result
}

// appendAtom normalizes one atom and prepares its store operation. Atoms
// rejected by normalization are discarded and reported.
func (p *Pipeline) appendAtom(result *recordResult, category classification.Category, text string, confidence float64) {
	normalized, err := p.normalizer.Normalize(text)
	if err != nil {
		result.discarded++
		p.logger.Debug("atom discarded by normalization", "record_id", result.recordID, "text", text)
		return
	}

	entityType := database.EntityTypeFromCategory(category)
	canonicalName := normalization.CanonicalName(category, normalized.DisplayForm)

	result.upserts = append(result.upserts, atomUpsert{
		entityType:               entityType,
		canonicalName:            canonicalName,
		variationText:            normalized.DisplayForm,
		matchKey:                 p.store.MatchKey(entityType, canonicalName),
		classificationConfidence: confidence,
	})
}

// consultNER asks the fallback model for low-confidence classifications.
// On timeout or failure the rule result stands; a rule result still below
// the storage threshold is raised to exactly the threshold as unknown.
func (p *Pipeline) consultNER(ctx context.Context, classified classification.Result, result *recordResult) (classification.Result, bool) {
	result.nerCalled = true

	nerCtx, cancel := context.WithTimeout(ctx, p.cfg.NERTimeout())
	defer cancel()

	nerResult, err := p.recognizer.Recognize(nerCtx, classified.RawText, classified.Confidence)
	if err != nil {
		result.nerFailed = true
		if !errors.Is(err, ner.ErrRecognizerUnavailable) {
			p.logger.Debug("ner call failed", "error", err, "text", classified.RawText)
		}
		if classified.Confidence < p.cfg.ConfidenceThreshold {
			classified.Category = classification.NaoDeterminado
			classified.Confidence = p.cfg.ConfidenceThreshold
			classified.PatternsMatched = append(classified.PatternsMatched, "ner_unavailable")
		}
		classified.ShouldAtomize = classified.Category == classification.ConjuntoPessoas
		return classified, false
	}

	adjustment := ner.Adjust(classified, nerResult)
	if adjustment.Discard {
		return classified, true
	}

	classified.Category = adjustment.Category
	classified.Confidence = adjustment.Confidence
	classified.PatternsMatched = append(classified.PatternsMatched, adjustment.Pattern)

	if classified.Confidence < p.cfg.ConfidenceThreshold {
		classified.Category = classification.NaoDeterminado
		classified.Confidence = p.cfg.ConfidenceThreshold
	}
	classified.ShouldAtomize = classified.Category == classification.ConjuntoPessoas
	return classified, false
}
