package domain

import "time"

// Domain contains core models shared across the discovery pipeline.

// TaskType identifies what kind of data a scrape task collects.
type TaskType string

const (
	TaskTypeProfile    TaskType = "profile"
	TaskTypeContent    TaskType = "content"
	TaskTypeNetwork    TaskType = "network"
	TaskTypeEngagement TaskType = "engagement"
)

// TaskStatus tracks a task through its lifecycle.
type TaskStatus string

const (
	StatusCreated   TaskStatus = "created"
	StatusScheduled TaskStatus = "scheduled"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Priority orders tasks by urgency. Higher values run sooner: the backlog
// sorts on descending Priority so critical work is always popped before low.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return "unknown"
}

// ParsePriority maps a config/CLI string to a Priority, defaulting to medium.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	default:
		return PriorityMedium
	}
}

// DefaultMaxRetries bounds automatic rescheduling of failed tasks.
const DefaultMaxRetries = 3

// ScrapeTask is one unit of discovery work against a platform target.
type ScrapeTask struct {
	ID            string        `json:"id"`
	Platform      string        `json:"platform"`
	Target        string        `json:"target"`
	Type          TaskType      `json:"type"`
	Priority      Priority      `json:"priority"`
	ScheduledTime time.Time     `json:"scheduled_time"`
	RetryCount    int           `json:"retry_count"`
	MaxRetries    int           `json:"max_retries"`
	Dependencies  []string      `json:"dependencies,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
	Status        TaskStatus    `json:"status"`
	Progress      float64       `json:"progress"`
	CreatedAt     time.Time     `json:"created_at"`
}

// RecordMetadata carries provenance for a RawRecord.
type RecordMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	TaskID    string    `json:"task_id,omitempty"`
}

// RawRecord is the unprocessed output of a single platform fetch. It is
// immutable once created; the pipeline derives copies instead of mutating it.
type RawRecord struct {
	Source        string         `json:"source"`
	RawData       map[string]any `json:"raw_data"`
	ProcessedData map[string]any `json:"processed_data"`
	Metadata      RecordMetadata `json:"metadata"`
}

// NewRawRecord builds a record for a fetch result with an empty processed
// section and a creation timestamp.
func NewRawRecord(source string, raw map[string]any, taskID string) *RawRecord {
	if raw == nil {
		raw = map[string]any{}
	}
	return &RawRecord{
		Source:        source,
		RawData:       raw,
		ProcessedData: map[string]any{},
		Metadata: RecordMetadata{
			Timestamp: time.Now().UTC(),
			TaskID:    taskID,
		},
	}
}

// DimensionScores holds the five prospect scoring dimensions, each in [0,1].
type DimensionScores struct {
	AudienceQuality      float64 `json:"audience_quality"`
	ContentRelevance     float64 `json:"content_relevance"`
	InfluenceLevel       float64 `json:"influence_level"`
	ConversionPotential  float64 `json:"conversion_potential"`
	EngagementPropensity float64 `json:"engagement_propensity"`
}

// ProspectScoreResult is the read-only outcome of one scoring pass.
type ProspectScoreResult struct {
	Composite  float64         `json:"composite_score"`
	Dimensions DimensionScores `json:"dimension_scores"`
	Weights    DimensionScores `json:"weights"`
}

// ValidationResult reports schema conformance of a cleaned record.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Prospect is a RawRecord after cleaning, validation and enrichment,
// carrying its score. This is what gets archived and published downstream.
type Prospect struct {
	TaskID     string              `json:"task_id"`
	Source     string              `json:"source"`
	Data       map[string]any      `json:"data"`
	Validation ValidationResult    `json:"validation"`
	Score      ProspectScoreResult `json:"score"`
	ScoredAt   time.Time           `json:"scored_at"`
}

// DiscoveryRequest is the external input translated into scrape tasks.
type DiscoveryRequest struct {
	Platform     string        `json:"platform" yaml:"platform"`
	TargetType   TaskType      `json:"target_type" yaml:"target_type"`
	Target       string        `json:"target" yaml:"target"`
	Priority     Priority      `json:"priority" yaml:"-"`
	PriorityName string        `json:"-" yaml:"priority"`
	Dependencies []string      `json:"dependencies,omitempty" yaml:"dependencies"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"-"`
	TimeoutSecs  int64         `json:"-" yaml:"timeout_seconds"`
}

// Normalize resolves the YAML-facing fields into their typed counterparts.
func (r DiscoveryRequest) Normalize() DiscoveryRequest {
	if r.Priority == 0 {
		r.Priority = ParsePriority(r.PriorityName)
	}
	if r.Timeout == 0 && r.TimeoutSecs > 0 {
		r.Timeout = time.Duration(r.TimeoutSecs) * time.Second
	}
	if r.TargetType == "" {
		r.TargetType = TaskTypeProfile
	}
	return r
}
