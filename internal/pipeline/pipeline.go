package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/config"
	"github.com/scoutline-hq/prospect-discovery/internal/domain"
	"github.com/scoutline-hq/prospect-discovery/internal/logger"
	"github.com/scoutline-hq/prospect-discovery/internal/monitoring"
)

// ErrInvalidRecord marks records whose identity fields failed validation.
// Such records cannot be scored and are dropped.
var ErrInvalidRecord = errors.New("record failed validation")

// Pipeline runs scraped records through clean, validate, enrich and score.
type Pipeline struct {
	cleaner   *Cleaner
	validator *Validator
	enricher  *Enricher
	scorer    *Scorer

	log  logger.Logger
	sink monitoring.Sink
	now  func() time.Time
}

// New wires the four stages together.
func New(cfg config.ScoringConfig, log logger.Logger, sink monitoring.Sink) *Pipeline {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Pipeline{
		cleaner:   NewCleaner(log),
		validator: NewValidator(log),
		enricher:  NewEnricher(log),
		scorer:    NewScorer(cfg, log),
		log:       log,
		sink:      monitoring.Ensure(sink),
		now:       time.Now,
	}
}

// Process turns one raw record into a scored prospect. The input record is
// not mutated. A record without usable identity fields yields
// ErrInvalidRecord.
func (p *Pipeline) Process(rec *domain.RawRecord) (*domain.Prospect, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}

	cleaned := p.cleaner.Clean(rec.RawData)
	report := p.validator.Validate(cleaned)
	if !report.BasicInfo.IsValid {
		p.sink.LogError("record rejected", "validation_error", "pipeline", map[string]any{
			"task_id": rec.Metadata.TaskID,
			"source":  rec.Source,
			"errors":  report.BasicInfo.Errors,
		})
		return nil, fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(report.BasicInfo.Errors, "; "))
	}

	enriched := p.enricher.Enrich(cleaned)
	score := p.scorer.Score(enriched)

	prospect := &domain.Prospect{
		TaskID:     rec.Metadata.TaskID,
		Source:     rec.Source,
		Data:       enriched,
		Validation: report.Merged(),
		Score:      score,
		ScoredAt:   p.now().UTC(),
	}

	p.sink.RecordMetric("prospects_scored_total", 1, map[string]string{"source": rec.Source})
	p.sink.RecordMetric("prospect_composite_score", score.Composite, map[string]string{"source": rec.Source})
	p.log.DebugObj("prospect scored", "prospect", map[string]any{
		"task_id":   prospect.TaskID,
		"source":    prospect.Source,
		"composite": score.Composite,
	})
	return prospect, nil
}
