// Package learning orchestrates the six-step cycle that fires when an
// episode completes: admission, reward, reflection, persistence,
// pattern extraction, and effectiveness initialization. Grounded on the
// teacher's LearningEngine orchestration shape (internal/memory/learning.go),
// generalized into spec.md §4.6's exact sequence.
package learning

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/d-o-hub/episodic-memory/internal/effectiveness"
	"github.com/d-o-hub/episodic-memory/internal/patterns"
	"github.com/d-o-hub/episodic-memory/internal/quality"
	"github.com/d-o-hub/episodic-memory/internal/reflection"
	"github.com/d-o-hub/episodic-memory/internal/reward"
	"github.com/d-o-hub/episodic-memory/internal/storage"
	"github.com/d-o-hub/episodic-memory/internal/types"
	"github.com/google/uuid"
)

// Config controls the learning pipeline's behavior, with field names
// following the teacher's UPPER_SNAKE_CASE env var convention when
// loaded via ConfigFromEnv (internal/storage/config.go's pattern).
type Config struct {
	QualityThreshold    float64
	RejectLowQuality    bool
	AsyncExtraction     bool
	ExtractionWorkers   int
	ConfidenceThreshold float64
	EnableClustering    bool
}

// DefaultConfig mirrors spec.md §4.6/§4.10's stated defaults.
func DefaultConfig() Config {
	return Config{
		QualityThreshold:    quality.DefaultThreshold,
		RejectLowQuality:    false,
		AsyncExtraction:     false,
		ExtractionWorkers:   4,
		ConfidenceThreshold: patterns.DefaultConfidenceThreshold,
		EnableClustering:    true,
	}
}

// ConfigFromEnv reads learning-pipeline configuration from environment
// variables, following internal/storage/config.go's ConfigFromEnv
// pattern: unknown/unset keys fall back to DefaultConfig(), malformed
// numeric values are ignored with a log warning rather than failing
// startup, and a bool key is true only for the exact value "true" (any
// other value sets it false, without a warning).
//   - LEARNING_QUALITY_THRESHOLD, LEARNING_REJECT_LOW_QUALITY
//   - LEARNING_ASYNC_EXTRACTION, LEARNING_EXTRACTION_WORKERS
//   - LEARNING_CONFIDENCE_THRESHOLD, LEARNING_ENABLE_CLUSTERING
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("LEARNING_QUALITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.QualityThreshold = f
		} else {
			log.Printf("ignoring invalid LEARNING_QUALITY_THRESHOLD %q: %v", v, err)
		}
	}
	if v := os.Getenv("LEARNING_REJECT_LOW_QUALITY"); v != "" {
		cfg.RejectLowQuality = v == "true"
	}
	if v := os.Getenv("LEARNING_ASYNC_EXTRACTION"); v != "" {
		cfg.AsyncExtraction = v == "true"
	}
	if v := os.Getenv("LEARNING_EXTRACTION_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ExtractionWorkers = n
		} else {
			log.Printf("ignoring invalid LEARNING_EXTRACTION_WORKERS %q", v)
		}
	}
	if v := os.Getenv("LEARNING_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ConfidenceThreshold = f
		} else {
			log.Printf("ignoring invalid LEARNING_CONFIDENCE_THRESHOLD %q: %v", v, err)
		}
	}
	if v := os.Getenv("LEARNING_ENABLE_CLUSTERING"); v != "" {
		cfg.EnableClustering = v == "true"
	}

	return cfg
}

// Result reports what the pipeline did with one episode, for callers
// that want visibility beyond the mutated episode itself.
type Result struct {
	Admitted      bool
	QualityScore  float64
	PatternIDs    []string
	ExtractionErr error // non-nil if extraction failed; never fails the overall cycle
}

// Pipeline wires together the Quality Assessor, Reward Calculator,
// Reflection Generator, Hybrid pattern extractors, and Effectiveness
// Tracker behind the Storage capability set the Memory Facade already
// depends on.
type Pipeline struct {
	cfg     Config
	storage storage.Storage
	assess  *quality.Assessor
	calc    *reward.Calculator
	stats   *reward.DomainStatisticsCache
	eff     *effectiveness.Tracker

	extractQueue chan *types.Episode
}

// New returns a Pipeline. st is the Storage capability set patterns and
// episodes are persisted through (typically a ResilientStorage wrapping
// a SQLiteStorage primary). stats may be nil to always use the fixed
// reward baseline.
func New(cfg Config, st storage.Storage, stats *reward.DomainStatisticsCache, eff *effectiveness.Tracker) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		storage: st,
		assess:  quality.New(quality.DefaultWeights(), cfg.QualityThreshold),
		calc:    reward.New(stats),
		stats:   stats,
		eff:     eff,
	}
	if cfg.AsyncExtraction {
		p.extractQueue = make(chan *types.Episode, 256)
		workers := cfg.ExtractionWorkers
		if workers <= 0 {
			workers = 1
		}
		for i := 0; i < workers; i++ {
			go p.extractionWorker()
		}
	}
	return p
}

// Complete runs the full learning cycle against e, which must already
// carry its terminal Outcome (the Memory Facade sets this before
// calling Complete). It mutates e in place: Reward, Reflection,
// Patterns, and (if rejected) ArchivedAt are all populated here.
func (p *Pipeline) Complete(e *types.Episode) Result {
	reflect := reflection.Generate(e)
	e.Reflection = reflect

	// Admission is scored once before extraction (pattern_novelty = 0).
	// Extraction runs whatever that first score is. In async mode the
	// first score is final; in sync mode the episode is re-scored after
	// extraction, since newly found patterns can still tip a borderline
	// episode over the threshold.
	admitted, score, _ := p.assess.Admit(e, reflect, 0)

	e.Reward = p.calc.Score(e)

	if p.stats != nil {
		succeeded := e.Outcome != nil && e.Outcome.Status == types.OutcomeSuccess
		p.stats.UpdateIncremental(e.Context.Domain, e.Duration().Seconds(), len(e.Steps), e.Reward.Total, succeeded)
	}

	result := Result{Admitted: admitted, QualityScore: score}

	if p.cfg.AsyncExtraction {
		p.persist(e)
		select {
		case p.extractQueue <- e:
		default:
			log.Printf("learning: extraction queue full, dropping episode %s for async extraction", e.EpisodeID)
		}
		p.finalizeAdmission(e, admitted, score)
		return result
	}

	patternIDs, err := p.extractAndStore(e)
	result.PatternIDs = patternIDs
	result.ExtractionErr = err

	// Re-score admission now that pattern_novelty is known; extraction
	// failures never block storage (spec §7: "a missing pattern set is
	// allowed and recorded as such").
	admitted, score, _ = p.assess.Admit(e, reflect, len(patternIDs))
	result.Admitted, result.QualityScore = admitted, score

	p.finalizeAdmission(e, admitted, score)
	p.persist(e)

	return result
}

func (p *Pipeline) finalizeAdmission(e *types.Episode, admitted bool, _ float64) {
	if admitted || !p.cfg.RejectLowQuality {
		return
	}
	now := time.Now()
	e.ArchivedAt = &now
}

// persist writes e to storage, logging (not failing) on error, per
// spec §7's "reward/reflection/extraction errors do not fail the
// overall completion".
func (p *Pipeline) persist(e *types.Episode) {
	if err := p.storage.StoreEpisode(e); err != nil {
		log.Printf("learning: persisting episode %s failed: %v", e.EpisodeID, err)
	}
}

// extractAndStore runs Hybrid extraction (and clustering, if enabled),
// attaches the resulting pattern ids to e, seeds each new pattern's
// Effectiveness record, and stores episode+patterns atomically via
// LearningWrite when the Storage happens to support it.
func (p *Pipeline) extractAndStore(e *types.Episode) ([]string, error) {
	candidates := patterns.ExtractHybrid(e, p.cfg.ConfidenceThreshold)
	if p.cfg.EnableClustering {
		candidates = patterns.Cluster(candidates)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	for i, pat := range candidates {
		if pat.ID == "" {
			pat.ID = uuid.NewString()
		}
		ids[i] = pat.ID
		if p.eff != nil {
			p.eff.Seed(pat.ID, types.Effectiveness{CreatedAt: time.Now()})
		}
	}
	e.Patterns = ids

	type batchStorer interface {
		StoreLearningWrite(w storage.LearningWrite) error
	}
	if bs, ok := p.storage.(batchStorer); ok {
		if err := bs.StoreLearningWrite(storage.LearningWrite{Episode: e, Patterns: candidates}); err != nil {
			return ids, err
		}
		return ids, nil
	}

	if err := p.storage.StorePatternsBatch(candidates); err != nil {
		return ids, err
	}
	return ids, nil
}

func (p *Pipeline) extractionWorker() {
	for e := range p.extractQueue {
		if _, err := p.extractAndStore(e); err != nil {
			log.Printf("learning: async extraction for episode %s failed: %v", e.EpisodeID, err)
			continue
		}
		p.persist(e)
	}
}
