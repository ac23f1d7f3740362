// Package retrieval implements the four-stage retrieval pipeline:
// structural filtering against storage, embedding similarity scoring,
// MMR diversity re-ranking, and effectiveness-tracker notification.
// Grounded on the teacher's EpisodicMemoryStore.RetrieveSimilarTrajectories
// tag/hash fallback idiom (internal/memory/episodic.go) for the
// no-embedding-provider path, and on the MMR formula from the domain's
// diversity-maximizer design.
package retrieval

import (
	"context"
	"sort"
	"time"

	"github.com/d-o-hub/episodic-memory/internal/effectiveness"
	"github.com/d-o-hub/episodic-memory/internal/embeddings"
	"github.com/d-o-hub/episodic-memory/internal/storage"
	"github.com/d-o-hub/episodic-memory/internal/types"
)

// DefaultLambda balances relevance against diversity in MMR re-ranking.
const DefaultLambda = 0.7

// candidateOverfetch is how many more candidates than the caller's
// limit are requested from similarity ranking, giving MMR room to trade
// off relevance for diversity.
const candidateOverfetch = 3

// Query describes a retrieval request.
type Query struct {
	Text    string
	Context types.TaskContext
	Limit   int
	Since   *time.Time
	Lambda  float64 // 0 uses DefaultLambda
}

// Result is one retrieved episode with its scoring breakdown.
type Result struct {
	Episode    *types.Episode
	Relevance  float64
	Similarity float64
}

// Response is the full output of a retrieval call.
type Response struct {
	Results       []Result
	DiversityScore float64
}

// Engine runs the retrieval pipeline against a Storage backend, an
// optional embedder (nil falls back to tag/lexical overlap scoring),
// and the Embedding Store used for the similarity-rank stage.
type Engine struct {
	storage   storage.Storage
	embedding *storage.EmbeddingStore
	embedder  embeddings.Embedder
	eff       *effectiveness.Tracker
}

// New returns an Engine. embedder and embedding may be nil to force the
// lexical-overlap fallback path.
func New(st storage.Storage, embedding *storage.EmbeddingStore, embedder embeddings.Embedder, eff *effectiveness.Tracker) *Engine {
	return &Engine{storage: st, embedding: embedding, embedder: embedder, eff: eff}
}

// RetrieveEpisodes runs the full pipeline and returns up to q.Limit
// episodes, most relevant first, plus the set's diversity score.
func (e *Engine) RetrieveEpisodes(ctx context.Context, q Query) (*Response, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	lambda := q.Lambda
	if lambda <= 0 {
		lambda = DefaultLambda
	}

	candidates, err := e.structuralFilter(q)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Response{}, nil
	}

	scored, usedEmbeddings := e.similarityRank(ctx, q, candidates)

	overfetch := q.Limit * candidateOverfetch
	if overfetch < len(scored) {
		scored = scored[:overfetch]
	}

	selected := mmrSelect(scored, q.Limit, lambda, usedEmbeddings)

	results := make([]Result, len(selected))
	for i, s := range selected {
		results[i] = Result{Episode: s.episode, Relevance: s.relevance, Similarity: s.similarity}
	}

	return &Response{
		Results:        results,
		DiversityScore: diversityScore(selected),
	}, nil
}

// structuralFilter fetches the candidate set matching domain, any
// overlapping tag, and the optional date window.
func (e *Engine) structuralFilter(q Query) ([]*types.Episode, error) {
	filter := storage.EpisodeFilter{
		Domain: q.Context.Domain,
		Tags:   q.Context.Tags,
		Since:  q.Since,
	}
	return e.storage.ListEpisodes(filter)
}

type scoredEpisode struct {
	episode    *types.Episode
	relevance  float64
	similarity float64
	vector     []float32
}

// similarityRank embeds q.Text and scores every candidate by cosine
// similarity against its stored embedding (fetched by item id); when no
// embedder is configured or embedding fails, it falls back to tag/domain
// overlap (lexicalOverlap), matching the teacher's hash-based fallback when an
// embedding provider is unavailable. Returns the candidates sorted by
// relevance descending, and whether real embeddings were used (so MMR
// knows whether pairwise similarity is meaningful).
func (e *Engine) similarityRank(ctx context.Context, q Query, candidates []*types.Episode) ([]scoredEpisode, bool) {
	var queryVec []float32
	usedEmbeddings := false
	if e.embedder != nil && e.embedding != nil {
		if vec, err := e.embedder.Embed(ctx, q.Text); err == nil {
			queryVec = vec
			usedEmbeddings = true
		}
	}

	scored := make([]scoredEpisode, 0, len(candidates))
	for _, ep := range candidates {
		s := scoredEpisode{episode: ep}
		if usedEmbeddings {
			if emb, err := e.embedding.Get(ep.EpisodeID, types.ItemEpisode, len(queryVec)); err == nil {
				s.similarity = clamp01(embeddings.CosineSimilarity(queryVec, emb.Vector))
				s.vector = emb.Vector
			}
		} else {
			s.similarity = lexicalOverlap(q, ep)
		}
		s.relevance = s.similarity
		scored = append(scored, s)
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].relevance > scored[j].relevance })
	return scored, usedEmbeddings
}

// lexicalOverlap scores an episode by tag/domain overlap with the
// query context when no embedding provider is available: each shared
// tag and a matching domain contribute, normalized to [0,1].
func lexicalOverlap(q Query, ep *types.Episode) float64 {
	tagSet := make(map[string]struct{}, len(q.Context.Tags))
	for _, t := range q.Context.Tags {
		tagSet[t] = struct{}{}
	}
	shared := 0
	for _, t := range ep.Tags {
		if _, ok := tagSet[t]; ok {
			shared++
		}
	}
	denom := len(q.Context.Tags)
	if denom == 0 {
		denom = 1
	}
	score := float64(shared) / float64(denom)
	if ep.Context.Domain == q.Context.Domain && q.Context.Domain != "" {
		score = clamp01(score + 0.3)
	}
	return score
}

// mmrSelect greedily picks limit items maximizing
// lambda*relevance - (1-lambda)*max_similarity_to_already_selected.
// Missing embeddings (usedEmbeddings=false, or no vector) contribute 0
// similarity to already-selected items, per spec.
func mmrSelect(candidates []scoredEpisode, limit int, lambda float64, usedEmbeddings bool) []scoredEpisode {
	if limit > len(candidates) {
		limit = len(candidates)
	}
	selected := make([]scoredEpisode, 0, limit)
	remaining := append([]scoredEpisode(nil), candidates...)

	for len(selected) < limit && len(remaining) > 0 {
		bestIdx, bestScore := -1, -1.0
		for i, c := range remaining {
			maxSim := 0.0
			if usedEmbeddings {
				for _, sel := range selected {
					if sim := clamp01(embeddings.CosineSimilarity(c.vector, sel.vector)); sim > maxSim {
						maxSim = sim
					}
				}
			}
			mmr := lambda*c.relevance - (1-lambda)*maxSim
			if mmr > bestScore {
				bestScore, bestIdx = mmr, i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// diversityScore is the mean pairwise dissimilarity (1 - cosine
// similarity) across the selected set; undefined (0) for fewer than 2
// results.
func diversityScore(selected []scoredEpisode) float64 {
	n := len(selected)
	if n < 2 {
		return 0
	}
	var sum float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if selected[i].vector == nil || selected[j].vector == nil {
				continue
			}
			sum += 1 - clamp01(embeddings.CosineSimilarity(selected[i].vector, selected[j].vector))
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// NotifyRetrieval tells the Effectiveness Tracker that patternIDs were
// just returned by a pattern-retrieval call, per spec §4.9 step 5.
func (e *Engine) NotifyRetrieval(patternIDs []string) {
	if e.eff == nil {
		return
	}
	for _, id := range patternIDs {
		e.eff.RecordRetrieval(id)
	}
}
