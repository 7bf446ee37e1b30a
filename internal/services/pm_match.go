package services

import (
	"strings"

	"github.com/sitewerks/spectrum-sync/internal/models"
)

// MatchOutcome distinguishes a confidently resolved manager from a guess and
// from no match at all, so callers and tests never conflate the three.
type MatchOutcome int

const (
	MatchNone MatchOutcome = iota
	MatchFound
	MatchAmbiguous
)

// PMMatch is the result of resolving a vendor-supplied project-manager name.
type PMMatch struct {
	Outcome MatchOutcome
	User    *models.User
	Raw     string
}

// splitName parses a vendor PM string. "Last, First" splits on the comma;
// otherwise the tokens are taken as "First ... Last".
func splitName(raw string) (first, last string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if i := strings.Index(raw, ","); i >= 0 {
		last = strings.TrimSpace(raw[:i])
		first = strings.TrimSpace(raw[i+1:])
		return first, last
	}
	tokens := strings.Fields(raw)
	if len(tokens) == 1 {
		return tokens[0], ""
	}
	return strings.Join(tokens[:len(tokens)-1], " "), tokens[len(tokens)-1]
}

// MatchProjectManager resolves a free-text vendor name against candidate
// users. Strategy, in order: exact (first,last) case-insensitive; swapped
// tokens for exactly two tokens; substring containment in both directions.
// More than one hit at any stage is ambiguous and leaves the user unset; the
// raw string is always retained for display.
func MatchProjectManager(candidates []models.User, raw string) PMMatch {
	result := PMMatch{Outcome: MatchNone, Raw: strings.TrimSpace(raw)}
	if result.Raw == "" || len(candidates) == 0 {
		return result
	}

	first, last := splitName(result.Raw)
	firstLower := strings.ToLower(first)
	lastLower := strings.ToLower(last)

	pick := func(hits []*models.User) (PMMatch, bool) {
		switch len(hits) {
		case 0:
			return result, false
		case 1:
			return PMMatch{Outcome: MatchFound, User: hits[0], Raw: result.Raw}, true
		default:
			return PMMatch{Outcome: MatchAmbiguous, Raw: result.Raw}, true
		}
	}

	// Exact (first, last)
	var hits []*models.User
	for i := range candidates {
		u := &candidates[i]
		if strings.EqualFold(u.FirstName, first) && strings.EqualFold(u.LastName, last) {
			hits = append(hits, u)
		}
	}
	if m, ok := pick(hits); ok {
		return m
	}

	// Swapped tokens, only meaningful for a two-token name
	if firstLower != "" && lastLower != "" && !strings.Contains(first, " ") {
		hits = hits[:0]
		for i := range candidates {
			u := &candidates[i]
			if strings.EqualFold(u.FirstName, last) && strings.EqualFold(u.LastName, first) {
				hits = append(hits, u)
			}
		}
		if m, ok := pick(hits); ok {
			return m
		}
	}

	// Substring containment, both directions
	rawLower := strings.ToLower(result.Raw)
	hits = hits[:0]
	for i := range candidates {
		u := &candidates[i]
		full := strings.ToLower(strings.TrimSpace(u.FirstName + " " + u.LastName))
		if full == "" {
			continue
		}
		if strings.Contains(rawLower, full) || strings.Contains(full, rawLower) {
			hits = append(hits, u)
		}
	}
	if m, ok := pick(hits); ok {
		return m
	}

	return result
}
