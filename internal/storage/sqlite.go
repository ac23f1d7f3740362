package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/d-o-hub/episodic-memory/internal/types"
)

// SQLiteStorage is the Primary storage backend: a remote-capable,
// SQL-like store with indexed queries, transactions, and (via
// internal/storage's EmbeddingStore, wired separately) native
// dimension-specific vector top-k. It write-throughs every mutation into
// an in-process MemoryStorage cache so reads that hit a warmed id avoid
// a round trip, following the teacher's sqlite.go cache-first idiom.
type SQLiteStorage struct {
	db       *sql.DB
	cache    *MemoryStorage
	Embeddings *EmbeddingStore
	mu       sync.RWMutex

	stmtInsertEpisode *sql.Stmt
	stmtGetEpisode    *sql.Stmt
	stmtDeleteEpisode *sql.Stmt
	stmtInsertPattern *sql.Stmt
	stmtGetPattern    *sql.Stmt
	stmtDeletePattern *sql.Stmt
	stmtInsertHeuristic *sql.Stmt
	stmtGetHeuristic    *sql.Stmt
}

// NewSQLiteStorage opens (creating if needed) a SQLite database at
// dbPath, applies the schema, prepares statements, and warms the cache
// from the most recent episodes — mirroring the teacher's
// NewSQLiteStorage initialization sequence.
func NewSQLiteStorage(dbPath string, timeoutMs int) (*SQLiteStorage, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", dbPath, timeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := configureSQLite(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := initializeEmbeddingSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize embedding schema: %w", err)
	}

	s := &SQLiteStorage{db: db, cache: NewMemoryStorage(), Embeddings: NewEmbeddingStore(db)}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	if err := s.warmCache(1000); err != nil {
		log.Printf("warning: cache warm failed: %v", err)
	}

	return s, nil
}

func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func initializeSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS episodes (
	episode_id       TEXT PRIMARY KEY,
	task_type        TEXT NOT NULL,
	task_description TEXT NOT NULL,
	context          TEXT NOT NULL,
	start_time       INTEGER NOT NULL,
	end_time         INTEGER,
	steps            TEXT NOT NULL,
	outcome          TEXT,
	reward           TEXT,
	reflection       TEXT,
	patterns         TEXT NOT NULL DEFAULT '[]',
	heuristics       TEXT NOT NULL DEFAULT '[]',
	metadata         TEXT NOT NULL DEFAULT '{}',
	domain           TEXT NOT NULL,
	language         TEXT,
	tags             TEXT NOT NULL DEFAULT '[]',
	archived_at      INTEGER
);
CREATE INDEX IF NOT EXISTS idx_episodes_domain ON episodes(domain);
CREATE INDEX IF NOT EXISTS idx_episodes_start_time ON episodes(start_time);

CREATE TABLE IF NOT EXISTS patterns (
	id              TEXT PRIMARY KEY,
	kind            TEXT NOT NULL,
	data            TEXT NOT NULL,
	success_rate    REAL NOT NULL,
	domain          TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_patterns_domain ON patterns(domain);
CREATE INDEX IF NOT EXISTS idx_patterns_kind ON patterns(kind);

CREATE TABLE IF NOT EXISTS heuristics (
	heuristic_id TEXT PRIMARY KEY,
	data         TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStorage) prepareStatements() error {
	var err error
	s.stmtInsertEpisode, err = s.db.Prepare(`
		INSERT INTO episodes (episode_id, task_type, task_description, context, start_time, end_time,
			steps, outcome, reward, reflection, patterns, heuristics, metadata, domain, language, tags, archived_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(episode_id) DO UPDATE SET
			task_type=excluded.task_type, task_description=excluded.task_description,
			context=excluded.context, start_time=excluded.start_time, end_time=excluded.end_time,
			steps=excluded.steps, outcome=excluded.outcome, reward=excluded.reward,
			reflection=excluded.reflection, patterns=excluded.patterns, heuristics=excluded.heuristics,
			metadata=excluded.metadata, domain=excluded.domain, language=excluded.language,
			tags=excluded.tags, archived_at=excluded.archived_at
	`)
	if err != nil {
		return err
	}

	s.stmtGetEpisode, err = s.db.Prepare(`SELECT episode_id, task_type, task_description, context, start_time,
		end_time, steps, outcome, reward, reflection, patterns, metadata, tags, archived_at FROM episodes WHERE episode_id = ?`)
	if err != nil {
		return err
	}

	s.stmtDeleteEpisode, err = s.db.Prepare(`DELETE FROM episodes WHERE episode_id = ?`)
	if err != nil {
		return err
	}

	s.stmtInsertPattern, err = s.db.Prepare(`
		INSERT INTO patterns (id, kind, data, success_rate, domain, created_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET kind=excluded.kind, data=excluded.data,
			success_rate=excluded.success_rate, domain=excluded.domain, created_at=excluded.created_at
	`)
	if err != nil {
		return err
	}

	s.stmtGetPattern, err = s.db.Prepare(`SELECT data FROM patterns WHERE id = ?`)
	if err != nil {
		return err
	}

	s.stmtDeletePattern, err = s.db.Prepare(`DELETE FROM patterns WHERE id = ?`)
	if err != nil {
		return err
	}

	s.stmtInsertHeuristic, err = s.db.Prepare(`
		INSERT INTO heuristics (heuristic_id, data, created_at, updated_at)
		VALUES (?,?,?,?)
		ON CONFLICT(heuristic_id) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at
	`)
	if err != nil {
		return err
	}

	s.stmtGetHeuristic, err = s.db.Prepare(`SELECT data FROM heuristics WHERE heuristic_id = ?`)
	return err
}

func (s *SQLiteStorage) warmCache(limit int) error {
	rows, err := s.db.Query(`SELECT episode_id FROM episodes ORDER BY start_time DESC LIMIT ?`, limit)
	if err != nil {
		return err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		if e, err := s.fetchEpisode(id); err == nil {
			s.cache.StoreEpisode(e)
		}
	}
	return nil
}

func (s *SQLiteStorage) StoreEpisode(e *types.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contextJSON, _ := json.Marshal(e.Context)
	stepsJSON, _ := json.Marshal(e.Steps)
	outcomeJSON, _ := marshalOptional(e.Outcome)
	rewardJSON, _ := marshalOptional(e.Reward)
	reflectionJSON, _ := marshalOptional(e.Reflection)
	patternsJSON, _ := json.Marshal(nonNilStrings(e.Patterns))
	tagsJSON, _ := json.Marshal(nonNilStrings(e.Tags))
	metadataJSON, _ := json.Marshal(nonNilMap(e.Metadata))

	var endTime, archivedAt sql.NullInt64
	if e.EndTime != nil {
		endTime = sql.NullInt64{Int64: e.EndTime.Unix(), Valid: true}
	}
	if e.ArchivedAt != nil {
		archivedAt = sql.NullInt64{Int64: e.ArchivedAt.Unix(), Valid: true}
	}

	_, err := s.stmtInsertEpisode.Exec(
		e.EpisodeID, string(e.TaskType), e.TaskDescription, string(contextJSON),
		e.StartTime.Unix(), endTime, string(stepsJSON), string(outcomeJSON),
		string(rewardJSON), string(reflectionJSON), string(patternsJSON), "[]",
		string(metadataJSON), e.Context.Domain, e.Context.Language, string(tagsJSON), archivedAt,
	)
	if err != nil {
		return types.WrapError(types.ErrTransient, "store episode failed", err)
	}
	s.cache.StoreEpisode(e)
	return nil
}

func (s *SQLiteStorage) fetchEpisode(id string) (*types.Episode, error) {
	row := s.stmtGetEpisode.QueryRow(id)
	return scanEpisode(row)
}

func scanEpisode(row *sql.Row) (*types.Episode, error) {
	var (
		episodeID, taskType, desc, contextJSON, stepsJSON, domain string
		startTime                                                int64
		endTime, archivedAt                                      sql.NullInt64
		outcomeJSON, rewardJSON, reflectionJSON                  sql.NullString
		patternsJSON, metadataJSON, tagsJSON                     string
		language                                                 sql.NullString
	)
	err := row.Scan(&episodeID, &taskType, &desc, &contextJSON, &startTime, &endTime,
		&stepsJSON, &outcomeJSON, &rewardJSON, &reflectionJSON, &patternsJSON, &metadataJSON, &tagsJSON, &archivedAt)
	_ = domain
	_ = language
	if err == sql.ErrNoRows {
		return nil, types.NewError(types.ErrNotFound, "episode not found: "+episodeID)
	}
	if err != nil {
		return nil, types.WrapError(types.ErrSerialization, "scan episode", err)
	}

	e := &types.Episode{
		EpisodeID:       episodeID,
		TaskType:        types.TaskType(taskType),
		TaskDescription: desc,
		StartTime:       time.Unix(startTime, 0),
	}
	_ = json.Unmarshal([]byte(contextJSON), &e.Context)
	_ = json.Unmarshal([]byte(stepsJSON), &e.Steps)
	_ = json.Unmarshal([]byte(patternsJSON), &e.Patterns)
	_ = json.Unmarshal([]byte(metadataJSON), &e.Metadata)
	_ = json.Unmarshal([]byte(tagsJSON), &e.Tags)

	if endTime.Valid {
		t := time.Unix(endTime.Int64, 0)
		e.EndTime = &t
	}
	if archivedAt.Valid {
		t := time.Unix(archivedAt.Int64, 0)
		e.ArchivedAt = &t
	}
	if outcomeJSON.Valid && outcomeJSON.String != "" {
		var o types.Outcome
		_ = json.Unmarshal([]byte(outcomeJSON.String), &o)
		e.Outcome = &o
	}
	if rewardJSON.Valid && rewardJSON.String != "" {
		var r types.RewardScore
		_ = json.Unmarshal([]byte(rewardJSON.String), &r)
		e.Reward = &r
	}
	if reflectionJSON.Valid && reflectionJSON.String != "" {
		var r types.Reflection
		_ = json.Unmarshal([]byte(reflectionJSON.String), &r)
		e.Reflection = &r
	}
	return e, nil
}

func (s *SQLiteStorage) GetEpisode(id string) (*types.Episode, error) {
	if e, err := s.cache.GetEpisode(id); err == nil {
		return e, nil
	}

	s.mu.RLock()
	e, err := s.fetchEpisode(id)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	s.cache.StoreEpisode(e)
	return e, nil
}

func (s *SQLiteStorage) DeleteEpisode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.stmtDeleteEpisode.Exec(id)
	if err != nil {
		return types.WrapError(types.ErrTransient, "delete episode failed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.NewError(types.ErrNotFound, "episode not found: "+id)
	}
	s.cache.DeleteEpisode(id)
	return nil
}

// ListEpisodes queries directly against SQLite for domain/completed/since
// filters (indexed), and applies tag filtering in Go since tags are a
// JSON column with no native index — mirroring the teacher's pattern of
// pushing what it can to SQL and finishing the rest in memory.
func (s *SQLiteStorage) ListEpisodes(filter EpisodeFilter) ([]*types.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT episode_id FROM episodes WHERE 1=1`
	var args []interface{}
	if filter.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, filter.Domain)
	}
	if filter.CompletedOnly {
		query += ` AND end_time IS NOT NULL`
	}
	if filter.Since != nil {
		query += ` AND start_time >= ?`
		args = append(args, filter.Since.Unix())
	}
	query += ` ORDER BY start_time DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, types.WrapError(types.ErrTransient, "list episodes failed", err)
	}
	defer rows.Close()

	var results []*types.Episode
	skipped := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		e, err := s.fetchEpisode(id)
		if err != nil {
			continue
		}
		if len(filter.Tags) > 0 {
			if filter.RequireAllTags && !types.TagsContainAll(e.Tags, filter.Tags) {
				continue
			}
			if !filter.RequireAllTags && !types.TagsOverlap(e.Tags, filter.Tags) {
				continue
			}
		}
		if filter.Offset > 0 && skipped < filter.Offset {
			skipped++
			continue
		}
		results = append(results, e)
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results, nil
}

func (s *SQLiteStorage) QueryEpisodesSince(ts time.Time) ([]*types.Episode, error) {
	return s.ListEpisodes(EpisodeFilter{Since: &ts})
}

// CountEpisodes reports the total and completed episode counts via a
// single indexed aggregate query.
func (s *SQLiteStorage) CountEpisodes() (total int, completed int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`SELECT COUNT(*), COUNT(end_time) FROM episodes`)
	if err := row.Scan(&total, &completed); err != nil {
		return 0, 0, types.WrapError(types.ErrTransient, "count episodes failed", err)
	}
	return total, completed, nil
}

func (s *SQLiteStorage) QueryEpisodesByMetadata(key string, value interface{}) ([]*types.Episode, error) {
	all, err := s.ListEpisodes(EpisodeFilter{})
	if err != nil {
		return nil, err
	}
	var results []*types.Episode
	for _, e := range all {
		if v, ok := e.Metadata[key]; ok && v == value {
			results = append(results, e)
		}
	}
	return results, nil
}

func (s *SQLiteStorage) StorePattern(p *types.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storePatternLocked(p)
}

func (s *SQLiteStorage) storePatternLocked(p *types.Pattern) error {
	data, _ := json.Marshal(p)
	_, err := s.stmtInsertPattern.Exec(p.ID, string(p.Kind), string(data), p.SuccessRate, p.Context.Domain, p.CreatedAt.Unix())
	if err != nil {
		return types.WrapError(types.ErrTransient, "store pattern failed", err)
	}
	s.cache.StorePattern(p)
	return nil
}

func (s *SQLiteStorage) GetPattern(id string) (*types.Pattern, error) {
	if p, err := s.cache.GetPattern(id); err == nil {
		return p, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var data string
	err := s.stmtGetPattern.QueryRow(id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, types.NewError(types.ErrNotFound, "pattern not found: "+id)
	}
	if err != nil {
		return nil, types.WrapError(types.ErrSerialization, "scan pattern", err)
	}
	var p types.Pattern
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, types.WrapError(types.ErrSerialization, "unmarshal pattern", err)
	}
	s.cache.StorePattern(&p)
	return &p, nil
}

func (s *SQLiteStorage) DeletePattern(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.stmtDeletePattern.Exec(id)
	if err != nil {
		return types.WrapError(types.ErrTransient, "delete pattern failed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.NewError(types.ErrNotFound, "pattern not found: "+id)
	}
	s.cache.DeletePattern(id)
	return nil
}

// StorePatternsBatch writes all patterns in one transaction: any row
// failure rolls back the entire batch, satisfying spec §4.2's
// atomic-batch contract and invariant 4.
func (s *SQLiteStorage) StorePatternsBatch(patterns []*types.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return types.WrapError(types.ErrTransient, "begin batch", err)
	}

	stmt := tx.Stmt(s.stmtInsertPattern)
	for _, p := range patterns {
		data, _ := json.Marshal(p)
		if _, err := stmt.Exec(p.ID, string(p.Kind), string(data), p.SuccessRate, p.Context.Domain, p.CreatedAt.Unix()); err != nil {
			tx.Rollback()
			return types.WrapError(types.ErrTransient, fmt.Sprintf("batch store failed on pattern %s", p.ID), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return types.WrapError(types.ErrTransient, "commit batch", err)
	}
	for _, p := range patterns {
		s.cache.StorePattern(p)
	}
	return nil
}

func (s *SQLiteStorage) GetPatternsBatch(ids []string) ([]*types.Pattern, error) {
	results := make([]*types.Pattern, 0, len(ids))
	for _, id := range ids {
		if p, err := s.GetPattern(id); err == nil {
			results = append(results, p)
		}
	}
	return results, nil
}

// ListPatterns queries the domain index directly when filter.Domain is
// set, ordering newest first; GetPattern serves each row so the cache
// stays warm, mirroring ListEpisodes's cache-through idiom.
func (s *SQLiteStorage) ListPatterns(filter PatternFilter) ([]*types.Pattern, error) {
	s.mu.RLock()
	query := `SELECT id FROM patterns WHERE 1=1`
	var args []interface{}
	if filter.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, filter.Domain)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	rows, err := s.db.Query(query, args...)
	s.mu.RUnlock()
	if err != nil {
		return nil, types.WrapError(types.ErrTransient, "list patterns failed", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}

	results := make([]*types.Pattern, 0, len(ids))
	for _, id := range ids {
		if p, err := s.GetPattern(id); err == nil {
			results = append(results, p)
		}
	}
	return results, nil
}

// CountPatterns reports the total number of stored patterns.
func (s *SQLiteStorage) CountPatterns() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM patterns`).Scan(&count); err != nil {
		return 0, types.WrapError(types.ErrTransient, "count patterns failed", err)
	}
	return count, nil
}

func (s *SQLiteStorage) UpdatePatternsBatch(patterns []*types.Pattern) error {
	return s.StorePatternsBatch(patterns)
}

func (s *SQLiteStorage) DeletePatternsBatch(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return types.WrapError(types.ErrTransient, "begin batch delete", err)
	}
	stmt := tx.Stmt(s.stmtDeletePattern)
	for _, id := range ids {
		if _, err := stmt.Exec(id); err != nil {
			tx.Rollback()
			return types.WrapError(types.ErrTransient, fmt.Sprintf("batch delete failed on pattern %s", id), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return types.WrapError(types.ErrTransient, "commit batch delete", err)
	}
	for _, id := range ids {
		s.cache.DeletePattern(id)
	}
	return nil
}

func (s *SQLiteStorage) StoreHeuristic(h *types.Heuristic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, _ := json.Marshal(h)
	_, err := s.stmtInsertHeuristic.Exec(h.HeuristicID, string(data), h.CreatedAt.Unix(), h.UpdatedAt.Unix())
	if err != nil {
		return types.WrapError(types.ErrTransient, "store heuristic failed", err)
	}
	s.cache.StoreHeuristic(h)
	return nil
}

func (s *SQLiteStorage) GetHeuristic(id string) (*types.Heuristic, error) {
	if h, err := s.cache.GetHeuristic(id); err == nil {
		return h, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var data string
	err := s.stmtGetHeuristic.QueryRow(id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, types.NewError(types.ErrNotFound, "heuristic not found: "+id)
	}
	if err != nil {
		return nil, types.WrapError(types.ErrSerialization, "scan heuristic", err)
	}
	var h types.Heuristic
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return nil, types.WrapError(types.ErrSerialization, "unmarshal heuristic", err)
	}
	s.cache.StoreHeuristic(&h)
	return &h, nil
}

func (s *SQLiteStorage) StoreHeuristicsBatch(hs []*types.Heuristic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return types.WrapError(types.ErrTransient, "begin heuristic batch", err)
	}
	stmt := tx.Stmt(s.stmtInsertHeuristic)
	for _, h := range hs {
		data, _ := json.Marshal(h)
		if _, err := stmt.Exec(h.HeuristicID, string(data), h.CreatedAt.Unix(), h.UpdatedAt.Unix()); err != nil {
			tx.Rollback()
			return types.WrapError(types.ErrTransient, fmt.Sprintf("batch store failed on heuristic %s", h.HeuristicID), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return types.WrapError(types.ErrTransient, "commit heuristic batch", err)
	}
	for _, h := range hs {
		s.cache.StoreHeuristic(h)
	}
	return nil
}

func (s *SQLiteStorage) GetHeuristicsBatch(ids []string) ([]*types.Heuristic, error) {
	results := make([]*types.Heuristic, 0, len(ids))
	for _, id := range ids {
		if h, err := s.GetHeuristic(id); err == nil {
			results = append(results, h)
		}
	}
	return results, nil
}

// HealthCheck pings the underlying database.
func (s *SQLiteStorage) HealthCheck() bool {
	return s.db.Ping() == nil
}

// Close closes all prepared statements then the database handle.
func (s *SQLiteStorage) Close() error {
	for _, stmt := range []*sql.Stmt{
		s.stmtInsertEpisode, s.stmtGetEpisode, s.stmtDeleteEpisode,
		s.stmtInsertPattern, s.stmtGetPattern, s.stmtDeletePattern,
		s.stmtInsertHeuristic, s.stmtGetHeuristic,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

// marshalOptional marshals v to JSON, returning an empty byte slice
// (not the literal "null") for a nil interface, pointer, slice, or map
// so the caller can distinguish "absent" from "present but empty" when
// scanning the column back with sql.NullString.
func marshalOptional(v interface{}) ([]byte, error) {
	if v == nil {
		return []byte(""), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			return []byte(""), nil
		}
	}
	return json.Marshal(v)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
