package memory

import (
	"sort"

	"github.com/d-o-hub/episodic-memory/internal/storage"
	"github.com/d-o-hub/episodic-memory/internal/types"
)

// AddTags merges additional (normalized, validated) tags onto an
// episode's tag set and persists the result.
func (f *Facade) AddTags(episodeID string, additions []string) ([]string, error) {
	normalized, err := types.NormalizeTags(additions)
	if err != nil {
		return nil, err
	}
	return f.mutateTags(episodeID, func(existing []string) []string {
		return types.MergeTags(existing, normalized)
	})
}

// RemoveTags drops the given (normalized) tags from an episode's tag
// set and persists the result.
func (f *Facade) RemoveTags(episodeID string, removals []string) ([]string, error) {
	normalized, err := types.NormalizeTags(removals)
	if err != nil {
		return nil, err
	}
	return f.mutateTags(episodeID, func(existing []string) []string {
		return types.RemoveTags(existing, normalized)
	})
}

// SetTags replaces an episode's entire tag set.
func (f *Facade) SetTags(episodeID string, tags []string) ([]string, error) {
	normalized, err := types.NormalizeTags(tags)
	if err != nil {
		return nil, err
	}
	return f.mutateTags(episodeID, func([]string) []string {
		return normalized
	})
}

// GetTags returns an episode's current tag set.
func (f *Facade) GetTags(episodeID string) ([]string, error) {
	ep, err := f.GetEpisode(episodeID)
	if err != nil {
		return nil, err
	}
	return ep.Tags, nil
}

// ListByTags returns episodes carrying tags (after normalization):
// every tag when requireAll is true, any overlapping tag otherwise.
// limit <= 0 means unbounded.
func (f *Facade) ListByTags(tags []string, requireAll bool, limit int) ([]*types.Episode, error) {
	normalized, err := types.NormalizeTags(tags)
	if err != nil {
		return nil, err
	}
	return f.storage.ListEpisodes(storage.EpisodeFilter{
		Tags:           normalized,
		RequireAllTags: requireAll,
		Limit:          limit,
	})
}

// GetAllTags returns every distinct tag across all stored episodes,
// sorted.
func (f *Facade) GetAllTags() ([]string, error) {
	episodes, err := f.storage.ListEpisodes(storage.EpisodeFilter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, ep := range episodes {
		for _, t := range ep.Tags {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// TagStat is one tag's usage count across stored episodes.
type TagStat struct {
	Tag   string
	Count int
}

// GetTagStatistics returns every tag's usage count, sorted by count
// descending then tag ascending for determinism.
func (f *Facade) GetTagStatistics() ([]TagStat, error) {
	episodes, err := f.storage.ListEpisodes(storage.EpisodeFilter{})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, ep := range episodes {
		for _, t := range ep.Tags {
			counts[t]++
		}
	}
	stats := make([]TagStat, 0, len(counts))
	for tag, count := range counts {
		stats = append(stats, TagStat{Tag: tag, Count: count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Tag < stats[j].Tag
	})
	return stats, nil
}

// mutateTags applies mutate to episodeID's current tag set (preferring
// the open working-set copy when present) and persists the result.
func (f *Facade) mutateTags(episodeID string, mutate func(existing []string) []string) ([]string, error) {
	if entry, err := f.lookupOpen(episodeID); err == nil {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		entry.episode.Tags = mutate(entry.episode.Tags)
		if err := f.storage.StoreEpisode(entry.episode); err != nil {
			return nil, err
		}
		return entry.episode.Tags, nil
	}

	ep, err := f.storage.GetEpisode(episodeID)
	if err != nil {
		return nil, err
	}
	ep.Tags = mutate(ep.Tags)
	if err := f.storage.StoreEpisode(ep); err != nil {
		return nil, err
	}
	return ep.Tags, nil
}
