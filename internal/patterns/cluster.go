package patterns

import (
	"sort"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/d-o-hub/episodic-memory/internal/types"
)

// Cluster merges near-duplicate patterns by structural signature
// (Kind + sorted lowercase keyword set), keeping the pattern with the
// highest success_rate in each group. Ties are broken by co-occurrence
// in-degree: patterns are modeled as vertices in a directed graph with
// an edge from every pattern to every other pattern that shares its
// source episode, and the one more other patterns "point to" within
// this extraction batch is treated as more central and kept. The
// result is sorted by success_rate descending, matching Hybrid's
// postcondition.
func Cluster(candidates []*types.Pattern) []*types.Pattern {
	if len(candidates) == 0 {
		return nil
	}

	g := graph.New(func(p *types.Pattern) string { return p.ID }, graph.Directed())
	for _, p := range candidates {
		_ = g.AddVertex(p)
	}
	for _, a := range candidates {
		for _, b := range candidates {
			if a.ID == b.ID || a.SourceEpisode == "" || a.SourceEpisode != b.SourceEpisode {
				continue
			}
			_ = g.AddEdge(a.ID, b.ID)
		}
	}

	inDegree := make(map[string]int)
	if preds, err := graph.PredecessorMap(g); err == nil {
		for id, ps := range preds {
			inDegree[id] = len(ps)
		}
	}

	groups := make(map[string][]*types.Pattern)
	var order []string
	for _, p := range candidates {
		sig := signature(p)
		if _, seen := groups[sig]; !seen {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], p)
	}

	merged := make([]*types.Pattern, 0, len(order))
	for _, sig := range order {
		merged = append(merged, pickBest(groups[sig], inDegree))
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].SuccessRate > merged[j].SuccessRate })
	return merged
}

func pickBest(group []*types.Pattern, inDegree map[string]int) *types.Pattern {
	best := group[0]
	for _, p := range group[1:] {
		switch {
		case p.SuccessRate > best.SuccessRate:
			best = p
		case p.SuccessRate == best.SuccessRate && inDegree[p.ID] > inDegree[best.ID]:
			best = p
		}
	}
	return best
}

// signature is the structural dedup key: deterministic given a fixed
// pattern set and idempotent across repeated clustering runs, since it
// depends only on each pattern's own content.
func signature(p *types.Pattern) string {
	var keywords []string
	switch p.Kind {
	case types.PatternToolSequence:
		keywords = lowerAll(p.Tools)
	case types.PatternDecisionPoint:
		keywords = lowerAll(strings.Fields(p.Condition))
	case types.PatternErrorRecovery:
		keywords = lowerAll(strings.Fields(p.ErrorType))
	case types.PatternContextShape:
		keywords = lowerAll([]string{p.Context.Domain, string(p.Context.Complexity)})
	}

	sort.Strings(keywords)
	return string(p.Kind) + "|" + strings.Join(keywords, ",")
}

func lowerAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}
