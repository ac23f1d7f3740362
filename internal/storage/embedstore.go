package storage

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/d-o-hub/episodic-memory/internal/embeddings"
	"github.com/d-o-hub/episodic-memory/internal/types"
)

// dedicatedDimensions lists the embedding widths that get their own
// table (and therefore their own index), matching the common output
// sizes of widely-used embedding models. Anything else routes to
// embeddings_other, which carries an explicit dimension column and is
// scanned in full rather than indexed.
var dedicatedDimensions = []int{384, 1024, 1536, 3072}

func dimensionTable(dim int) string {
	for _, d := range dedicatedDimensions {
		if d == dim {
			return fmt.Sprintf("embeddings_%d", d)
		}
	}
	return "embeddings_other"
}

func initializeEmbeddingSchema(db *sql.DB) error {
	for _, dim := range dedicatedDimensions {
		table := dimensionTable(dim)
		schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	item_id    TEXT NOT NULL,
	item_type  TEXT NOT NULL,
	model      TEXT NOT NULL,
	vector     BLOB NOT NULL,
	PRIMARY KEY (item_id, item_type)
);`, table)
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("create %s: %w", table, err)
		}
	}

	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS embeddings_other (
	item_id    TEXT NOT NULL,
	item_type  TEXT NOT NULL,
	dimension  INTEGER NOT NULL,
	model      TEXT NOT NULL,
	vector     BLOB NOT NULL,
	PRIMARY KEY (item_id, item_type)
);`)
	return err
}

// EmbeddingStore persists and searches dense vectors, routing storage
// to a dimension-specific table so similarity search over a known width
// never has to filter out vectors of other sizes.
type EmbeddingStore struct {
	db *sql.DB
}

// NewEmbeddingStore wraps db, assuming its embedding tables have
// already been created (see initializeEmbeddingSchema, called from
// NewSQLiteStorage's schema step).
func NewEmbeddingStore(db *sql.DB) *EmbeddingStore {
	return &EmbeddingStore{db: db}
}

// Store upserts one embedding by (item_id, item_type).
func (s *EmbeddingStore) Store(e types.Embedding) error {
	if !e.Valid() {
		return types.NewError(types.ErrInvalidInput, "embedding dimension does not match vector length")
	}
	blob := embeddings.SerializeFloat32(e.Vector)

	if table := dimensionTable(e.Dimension); table != "embeddings_other" {
		query := fmt.Sprintf(`
			INSERT INTO %s (item_id, item_type, model, vector) VALUES (?,?,?,?)
			ON CONFLICT(item_id, item_type) DO UPDATE SET model=excluded.model, vector=excluded.vector
		`, table)
		_, err := s.db.Exec(query, e.ItemID, string(e.ItemType), e.Model, blob)
		if err != nil {
			return types.WrapError(types.ErrTransient, "store embedding failed", err)
		}
		return nil
	}

	_, err := s.db.Exec(`
		INSERT INTO embeddings_other (item_id, item_type, dimension, model, vector) VALUES (?,?,?,?,?)
		ON CONFLICT(item_id, item_type) DO UPDATE SET dimension=excluded.dimension, model=excluded.model, vector=excluded.vector
	`, e.ItemID, string(e.ItemType), e.Dimension, e.Model, blob)
	if err != nil {
		return types.WrapError(types.ErrTransient, "store embedding failed", err)
	}
	return nil
}

// Get retrieves the embedding for (itemID, itemType) at the given
// dimension, or ErrNotFound. dimension selects which table to query,
// since item ids are not unique across dimensions/models.
func (s *EmbeddingStore) Get(itemID string, itemType types.ItemType, dimension int) (*types.Embedding, error) {
	if table := dimensionTable(dimension); table != "embeddings_other" {
		var model string
		var blob []byte
		query := fmt.Sprintf(`SELECT model, vector FROM %s WHERE item_id = ? AND item_type = ?`, table)
		err := s.db.QueryRow(query, itemID, string(itemType)).Scan(&model, &blob)
		if err == sql.ErrNoRows {
			return nil, types.NewError(types.ErrNotFound, "embedding not found: "+itemID)
		}
		if err != nil {
			return nil, types.WrapError(types.ErrTransient, "get embedding failed", err)
		}
		return &types.Embedding{ItemID: itemID, ItemType: itemType, Dimension: dimension, Model: model, Vector: embeddings.DeserializeFloat32(blob)}, nil
	}

	var model string
	var blob []byte
	var dim int
	err := s.db.QueryRow(`SELECT dimension, model, vector FROM embeddings_other WHERE item_id = ? AND item_type = ?`,
		itemID, string(itemType)).Scan(&dim, &model, &blob)
	if err == sql.ErrNoRows {
		return nil, types.NewError(types.ErrNotFound, "embedding not found: "+itemID)
	}
	if err != nil {
		return nil, types.WrapError(types.ErrTransient, "get embedding failed", err)
	}
	return &types.Embedding{ItemID: itemID, ItemType: itemType, Dimension: dim, Model: model, Vector: embeddings.DeserializeFloat32(blob)}, nil
}

// ScoredItem is a similarity search hit.
type ScoredItem struct {
	ItemID     string
	ItemType   types.ItemType
	Similarity float64
}

// FindSimilar returns the topK items of itemType whose stored embedding
// (at query's dimension) has the highest cosine similarity to query.
// Dedicated-dimension tables are scanned directly; embeddings_other is
// filtered to the requested dimension first since it mixes widths.
func (s *EmbeddingStore) FindSimilar(query []float32, itemType types.ItemType, topK int) ([]ScoredItem, error) {
	dim := len(query)
	table := dimensionTable(dim)

	var rows *sql.Rows
	var err error
	if table != "embeddings_other" {
		q := fmt.Sprintf(`SELECT item_id, vector FROM %s WHERE item_type = ?`, table)
		rows, err = s.db.Query(q, string(itemType))
	} else {
		rows, err = s.db.Query(`SELECT item_id, vector FROM embeddings_other WHERE item_type = ? AND dimension = ?`,
			string(itemType), dim)
	}
	if err != nil {
		return nil, types.WrapError(types.ErrTransient, "find similar query failed", err)
	}
	defer rows.Close()

	var scored []ScoredItem
	for rows.Next() {
		var itemID string
		var blob []byte
		if err := rows.Scan(&itemID, &blob); err != nil {
			continue
		}
		vec := embeddings.DeserializeFloat32(blob)
		sim := embeddings.CosineSimilarity(query, vec)
		scored = append(scored, ScoredItem{ItemID: itemID, ItemType: itemType, Similarity: sim})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// ListItemsWithoutEmbeddings supports embeddings.BackfillStorage: it
// joins episodes/patterns against all embedding tables and returns
// those absent from every one, regardless of dimension.
func (s *EmbeddingStore) ListItemsWithoutEmbeddings(itemType string, limit int, candidates map[string]string) ([]*embeddings.BackfillItem, error) {
	var missing []*embeddings.BackfillItem
	for id, text := range candidates {
		has, err := s.hasAnyEmbedding(id, itemType)
		if err != nil {
			return nil, err
		}
		if !has {
			missing = append(missing, &embeddings.BackfillItem{ItemID: id, ItemType: itemType, Text: text})
		}
		if limit > 0 && len(missing) >= limit {
			break
		}
	}
	return missing, nil
}

func (s *EmbeddingStore) hasAnyEmbedding(itemID, itemType string) (bool, error) {
	tables := append(append([]string{}, dedicatedTableNames()...), "embeddings_other")
	for _, table := range tables {
		var found int
		query := fmt.Sprintf(`SELECT 1 FROM %s WHERE item_id = ? AND item_type = ? LIMIT 1`, table)
		err := s.db.QueryRow(query, itemID, itemType).Scan(&found)
		if err == nil {
			return true, nil
		}
		if err != sql.ErrNoRows {
			return false, types.WrapError(types.ErrTransient, "embedding existence check failed", err)
		}
	}
	return false, nil
}

func dedicatedTableNames() []string {
	names := make([]string, len(dedicatedDimensions))
	for i, d := range dedicatedDimensions {
		names[i] = dimensionTable(d)
	}
	return names
}

// UpdateItemEmbedding implements embeddings.BackfillStorage by storing
// a freshly generated vector using Store's upsert semantics.
func (s *EmbeddingStore) UpdateItemEmbedding(itemID, itemType string, vector []float32) error {
	return s.Store(types.Embedding{
		ItemID:    itemID,
		ItemType:  types.ItemType(itemType),
		Dimension: len(vector),
		Vector:    vector,
		Model:     "backfill",
	})
}
