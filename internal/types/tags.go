package types

import (
	"regexp"
	"sort"
	"strings"
)

// tagPattern matches a normalized tag: lower-case, starts with an
// alphanumeric, 2..100 chars total, and restricted to alphanumerics plus
// '.', '_', '-'.
var tagPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,99}$`)

// NormalizeTag trims and lower-cases a tag. It does not validate the
// result against tagPattern; call ValidateTag for that.
func NormalizeTag(tag string) string {
	return InternTag(strings.ToLower(strings.TrimSpace(tag)))
}

// ValidateTag reports whether an already-normalized tag matches the
// accepted shape.
func ValidateTag(tag string) bool {
	return tagPattern.MatchString(tag)
}

// NormalizeTags normalizes and validates a batch of tags, merging
// duplicates (by normalized form) without rejecting them. The whole
// operation fails if any tag, once normalized, does not match
// ValidateTag — per spec, invalid input fails the whole operation with
// no partial application.
func NormalizeTags(tags []string) ([]string, error) {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, raw := range tags {
		norm := NormalizeTag(raw)
		if !ValidateTag(norm) {
			return nil, NewError(ErrInvalidInput, "invalid tag: "+raw)
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	sort.Strings(out)
	return out, nil
}

// MergeTags unions two already-normalized tag sets, deduplicating and
// sorting the result. Used by tag-add operations.
func MergeTags(existing, additions []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(additions))
	out := make([]string, 0, len(existing)+len(additions))
	for _, t := range existing {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range additions {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// RemoveTags returns existing minus removals (both already normalized).
func RemoveTags(existing, removals []string) []string {
	drop := make(map[string]struct{}, len(removals))
	for _, t := range removals {
		drop[t] = struct{}{}
	}
	out := make([]string, 0, len(existing))
	for _, t := range existing {
		if _, ok := drop[t]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

// TagsOverlap reports whether a and b (both normalized sets) share at
// least one tag.
func TagsOverlap(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	for _, t := range b {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// TagsContainAll reports whether a (normalized) contains every tag in b.
func TagsContainAll(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	for _, t := range b {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}
