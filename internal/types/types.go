// Package types defines the core data structures for the episodic memory
// engine: episodes, execution steps, outcomes, rewards, reflections,
// patterns, heuristics, embeddings, and domain statistics.
//
// These types are shared across the storage, learning, retrieval, and
// facade packages. They are designed for concurrent access: values are
// passed by copy or behind a guarded map in the owning package, never
// mutated through a shared pointer from two goroutines at once.
package types

import "time"

// TaskType classifies the kind of task an episode attempts.
type TaskType string

const (
	TaskCodeGeneration TaskType = "code_generation"
	TaskDebugging      TaskType = "debugging"
	TaskTesting        TaskType = "testing"
	TaskAnalysis       TaskType = "analysis"
	TaskDocumentation  TaskType = "documentation"
	TaskRefactoring    TaskType = "refactoring"
	TaskFeature        TaskType = "feature"
	TaskOther          TaskType = "other"
)

// Complexity is a coarse task-complexity bucket.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// TaskContext describes the situational context of a task: the domain it
// belongs to, optional language/framework, a complexity bucket, and a set
// of normalized tags. It is used both when starting an episode and when
// querying for relevant episodes/patterns.
type TaskContext struct {
	Domain     string     `json:"domain"`
	Language   string     `json:"language,omitempty"`
	Framework  string     `json:"framework,omitempty"`
	Complexity Complexity `json:"complexity"`
	Tags       []string   `json:"tags,omitempty"`
}

// ExecutionStep is one step taken while attempting a task.
type ExecutionStep struct {
	StepNumber int                    `json:"step_number"`
	Tool       string                 `json:"tool"`
	Action     string                 `json:"action"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Result     *StepResult            `json:"result,omitempty"`
	LatencyMs  int64                  `json:"latency_ms"`
	TokensUsed *int                   `json:"tokens_used,omitempty"`
}

// StepResult is the tagged-union outcome of one execution step: exactly
// one of Output (success) or Message (error) is meaningful, discriminated
// by Success.
type StepResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Message string `json:"message,omitempty"`
}

// IsSuccess reports whether the step completed without error.
func (r *StepResult) IsSuccess() bool {
	return r != nil && r.Success
}

// OutcomeStatus discriminates the Outcome tagged union.
type OutcomeStatus string

const (
	OutcomeSuccess        OutcomeStatus = "success"
	OutcomePartialSuccess OutcomeStatus = "partial_success"
	OutcomeFailure        OutcomeStatus = "failure"
)

// Outcome is the terminal result of an episode, set exactly once on
// completion. Fields are populated according to Status:
//   - Success: Verdict, Artifacts
//   - PartialSuccess: Verdict, Completed, Failed
//   - Failure: Reason, ErrorDetails
type Outcome struct {
	Status       OutcomeStatus `json:"status"`
	Verdict      string        `json:"verdict,omitempty"`
	Artifacts    []string      `json:"artifacts,omitempty"`
	Completed    []string      `json:"completed,omitempty"`
	Failed       []string      `json:"failed,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	ErrorDetails string        `json:"error_details,omitempty"`
}

// RewardScore is the composite reward computed once an episode completes.
// See internal/reward for the exact formula.
type RewardScore struct {
	Total             float64 `json:"total"`
	Base              float64 `json:"base"`
	Efficiency        float64 `json:"efficiency"`
	ComplexityBonus   float64 `json:"complexity_bonus"`
	QualityMultiplier float64 `json:"quality_multiplier"`
	LearningBonus     float64 `json:"learning_bonus"`
}

// Reflection is a deterministically derived summary of a completed episode.
type Reflection struct {
	Successes    []string  `json:"successes"`
	Improvements []string  `json:"improvements"`
	Insights     []string  `json:"insights"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Episode is a single attempted task: the unit the engine learns from.
type Episode struct {
	EpisodeID       string                 `json:"episode_id"`
	TaskType        TaskType               `json:"task_type"`
	TaskDescription string                 `json:"task_description"`
	Context         TaskContext            `json:"context"`
	StartTime       time.Time              `json:"start_time"`
	EndTime         *time.Time             `json:"end_time,omitempty"`
	Steps           []ExecutionStep        `json:"steps"`
	Outcome         *Outcome               `json:"outcome,omitempty"`
	Reward          *RewardScore           `json:"reward,omitempty"`
	Reflection      *Reflection            `json:"reflection,omitempty"`
	Patterns        []string               `json:"patterns,omitempty"`
	Tags            []string               `json:"tags,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	ArchivedAt       *time.Time             `json:"archived_at,omitempty"`
}

// IsComplete reports whether the episode has gone through the learning
// cycle. Per invariant 1, this must imply Outcome, Reward, and Reflection
// are all present.
func (e *Episode) IsComplete() bool {
	return e.EndTime != nil
}

// Duration returns the episode's elapsed wall time, or zero if not yet
// complete.
func (e *Episode) Duration() time.Duration {
	if e.EndTime == nil {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

// PatternKind discriminates the Pattern tagged union.
type PatternKind string

const (
	PatternToolSequence  PatternKind = "tool_sequence"
	PatternDecisionPoint PatternKind = "decision_point"
	PatternErrorRecovery PatternKind = "error_recovery"
	PatternContextShape  PatternKind = "context_pattern"
)

// OutcomeStats aggregates binary outcomes observed at a decision point.
type OutcomeStats struct {
	SuccessCount    int     `json:"success_count"`
	FailureCount    int     `json:"failure_count"`
	TotalCount      int     `json:"total_count"`
	AvgDurationSecs float64 `json:"avg_duration_secs"`
}

// Effectiveness embeds the usage counters tracked by the Effectiveness
// Tracker (internal/effectiveness) directly on the pattern so retrieval
// results can be ranked without a second lookup.
type Effectiveness struct {
	RetrievalCount   int        `json:"retrieval_count"`
	ApplicationCount int        `json:"application_count"`
	SuccessCount     int        `json:"success_count"`
	FailureCount     int        `json:"failure_count"`
	LastRetrieved    *time.Time `json:"last_retrieved,omitempty"`
	LastApplied      *time.Time `json:"last_applied,omitempty"`
	Score            float64    `json:"effectiveness_score"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Pattern is a reusable strategy distilled from one or more episodes. It
// is a tagged union of four variants, discriminated by Kind; fields that
// belong to other variants are left at their zero value.
type Pattern struct {
	ID   string      `json:"id"`
	Kind PatternKind `json:"kind"`

	// ToolSequence fields.
	Tools           []string `json:"tools,omitempty"`
	AvgLatencyMs    float64  `json:"avg_latency_ms,omitempty"`
	OccurrenceCount int      `json:"occurrence_count,omitempty"`

	// DecisionPoint fields.
	Condition    string        `json:"condition,omitempty"`
	Action       string        `json:"action,omitempty"`
	OutcomeStats *OutcomeStats `json:"outcome_stats,omitempty"`

	// ErrorRecovery fields.
	ErrorType     string   `json:"error_type,omitempty"`
	RecoverySteps []string `json:"recovery_steps,omitempty"`

	// ContextPattern fields.
	ContextShape        string `json:"context_shape,omitempty"`
	RecommendedApproach string `json:"recommended_approach,omitempty"`

	// Common to all variants.
	SuccessRate   float64       `json:"success_rate"`
	Context       TaskContext   `json:"context"`
	Effectiveness Effectiveness `json:"effectiveness"`
	SourceEpisode string        `json:"source_episode,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Heuristic is a learned condition-to-action rule with supporting evidence.
type Heuristic struct {
	HeuristicID string    `json:"heuristic_id"`
	Condition   string    `json:"condition"`
	Action      string    `json:"action"`
	Confidence  float64   `json:"confidence"`
	Evidence    Evidence  `json:"evidence"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Evidence backs a Heuristic's confidence score.
type Evidence struct {
	EpisodeIDs  []string `json:"episode_ids"`
	SuccessRate float64  `json:"success_rate"`
	SampleSize  int      `json:"sample_size"`
}

// ItemType discriminates what an Embedding is attached to.
type ItemType string

const (
	ItemEpisode ItemType = "episode"
	ItemPattern ItemType = "pattern"
)

// Embedding is a dense vector associated with an episode or pattern.
// Dimension must equal len(Vector); routing to a dimension-specific
// storage region is the Embedding Store's responsibility, not this type's.
type Embedding struct {
	ItemID    string    `json:"item_id"`
	ItemType  ItemType  `json:"item_type"`
	Dimension int       `json:"dimension"`
	Vector    []float32 `json:"vector"`
	Model     string    `json:"model"`
}

// Valid reports whether the embedding's declared dimension matches its
// vector length.
func (e Embedding) Valid() bool {
	return e.Dimension == len(e.Vector)
}
