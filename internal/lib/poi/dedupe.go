package poi

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

var (
	spaceRegex      = regexp.MustCompile(`\s+`)
	trailPunctRegex = regexp.MustCompile(`[.!?:;,]+$`)
)

// Key identifies a candidate across overlapping fetches. Source identity
// (e.g. "node/123") wins; otherwise a content hash is used.
func Key(c Candidate) string {
	if c.ID != "" {
		return c.ID
	}
	return ContentHash(c)
}

// ContentHash hashes the normalized name, a ~100m location key and the
// category.
func ContentHash(c Candidate) string {
	content := fmt.Sprintf("%s|%s|%s", NormalizeName(c.Name), locationKey(c), c.Category)
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}

// NormalizeName cleans a name for consistent hashing.
func NormalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = spaceRegex.ReplaceAllString(normalized, " ")
	return trailPunctRegex.ReplaceAllString(normalized, "")
}

// Dedupe drops candidates whose Key was already seen, keeping the first
// occurrence and the input order.
func Dedupe(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		k := Key(c)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// locationKey rounds the candidate's location to 3 decimals.
func locationKey(c Candidate) string {
	if c.Geometry == nil || c.Geometry.Bound().IsEmpty() {
		return "nowhere"
	}
	center := c.Geometry.Bound().Center()
	return fmt.Sprintf("%.3f_%.3f", center.Lat(), center.Lon())
}
