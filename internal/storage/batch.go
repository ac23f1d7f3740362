package storage

import (
	"database/sql"

	"github.com/d-o-hub/episodic-memory/internal/types"
)

// LearningWrite bundles everything one learning-cycle run persists for
// a single episode: the completed episode itself, any newly extracted
// patterns, and any heuristics touched by those patterns. Storing them
// together in one transaction satisfies the batch-atomic invariant
// across entity types, not just within PatternRepository.
type LearningWrite struct {
	Episode    *types.Episode
	Patterns   []*types.Pattern
	Heuristics []*types.Heuristic
}

// StoreLearningWrite commits a LearningWrite atomically against the
// SQLite Primary: any failure rolls back the episode, pattern, and
// heuristic rows together, so a reader never observes an episode marked
// complete without its patterns, or patterns without their episode.
func (s *SQLiteStorage) StoreLearningWrite(w LearningWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return types.WrapError(types.ErrTransient, "begin learning write", err)
	}
	if err := s.execLearningWrite(tx, w); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return types.WrapError(types.ErrTransient, "commit learning write", err)
	}

	if w.Episode != nil {
		s.cache.StoreEpisode(w.Episode)
	}
	for _, p := range w.Patterns {
		s.cache.StorePattern(p)
	}
	for _, h := range w.Heuristics {
		s.cache.StoreHeuristic(h)
	}
	return nil
}

func (s *SQLiteStorage) execLearningWrite(tx *sql.Tx, w LearningWrite) error {
	if w.Episode != nil {
		if err := s.execStoreEpisode(tx, w.Episode); err != nil {
			return err
		}
	}
	patternStmt := tx.Stmt(s.stmtInsertPattern)
	for _, p := range w.Patterns {
		data, marshalErr := marshalOptional(p)
		if marshalErr != nil {
			return types.WrapError(types.ErrSerialization, "marshal pattern", marshalErr)
		}
		if _, err := patternStmt.Exec(p.ID, string(p.Kind), string(data), p.SuccessRate, p.Context.Domain, p.CreatedAt.Unix()); err != nil {
			return types.WrapError(types.ErrTransient, "learning write: store pattern failed", err)
		}
	}
	heuristicStmt := tx.Stmt(s.stmtInsertHeuristic)
	for _, h := range w.Heuristics {
		data, marshalErr := marshalOptional(h)
		if marshalErr != nil {
			return types.WrapError(types.ErrSerialization, "marshal heuristic", marshalErr)
		}
		if _, err := heuristicStmt.Exec(h.HeuristicID, string(data), h.CreatedAt.Unix(), h.UpdatedAt.Unix()); err != nil {
			return types.WrapError(types.ErrTransient, "learning write: store heuristic failed", err)
		}
	}
	return nil
}

// execStoreEpisode runs StoreEpisode's insert/update against tx instead
// of s.db directly, so it participates in the caller's transaction.
func (s *SQLiteStorage) execStoreEpisode(tx *sql.Tx, e *types.Episode) error {
	contextJSON, _ := marshalOptional(e.Context)
	stepsJSON, _ := marshalOptional(e.Steps)
	outcomeJSON, _ := marshalOptional(e.Outcome)
	rewardJSON, _ := marshalOptional(e.Reward)
	reflectionJSON, _ := marshalOptional(e.Reflection)
	patternsJSON, _ := marshalOptional(nonNilStrings(e.Patterns))
	tagsJSON, _ := marshalOptional(nonNilStrings(e.Tags))
	metadataJSON, _ := marshalOptional(nonNilMap(e.Metadata))

	var endTime, archivedAt sql.NullInt64
	if e.EndTime != nil {
		endTime = sql.NullInt64{Int64: e.EndTime.Unix(), Valid: true}
	}
	if e.ArchivedAt != nil {
		archivedAt = sql.NullInt64{Int64: e.ArchivedAt.Unix(), Valid: true}
	}

	stmt := tx.Stmt(s.stmtInsertEpisode)
	_, err := stmt.Exec(
		e.EpisodeID, string(e.TaskType), e.TaskDescription, string(contextJSON),
		e.StartTime.Unix(), endTime, string(stepsJSON), string(outcomeJSON),
		string(rewardJSON), string(reflectionJSON), string(patternsJSON), "[]",
		string(metadataJSON), e.Context.Domain, e.Context.Language, string(tagsJSON), archivedAt,
	)
	if err != nil {
		return types.WrapError(types.ErrTransient, "learning write: store episode failed", err)
	}
	return nil
}
