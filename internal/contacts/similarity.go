// Package contacts implements duplicate-contact detection and merging.
// Inbound identity (a phone number, an email) is the only reliable join key
// across channels, so near-duplicate contacts are expected; they are found
// with a weighted fuzzy scorer and reconciled by an operator-driven merge.
package contacts

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

// Scoring weights. A pair is considered a likely duplicate at or above
// DefaultThreshold, so email+name or phone+name matches qualify but a name
// match alone never does.
const (
	emailWeight      = 40
	phoneWeight      = 35
	DefaultThreshold = 60
)

// Name-similarity tiers on the normalized edit-distance ratio.
var nameTiers = []struct {
	ratio float64
	bonus int
}{
	{0.95, 25},
	{0.85, 20},
	{0.75, 15},
}

// MatchResult explains one pairwise comparison.
type MatchResult struct {
	Score         int      `json:"score"`
	MatchedFields []string `json:"matched_fields,omitempty"`
	Reasons       []string `json:"reasons,omitempty"`
}

// NormalizeEmail canonicalizes an email for exact comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// phoneDigits strips everything but digits.
func phoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ArePhonesSimilar compares phones on their last 10 digits, tolerating
// country-code prefix differences ("+1 555-123-4567" matches "5551234567").
func ArePhonesSimilar(a, b string) bool {
	da, db := phoneDigits(a), phoneDigits(b)
	if da == "" || db == "" {
		return false
	}
	if len(da) > 10 {
		da = da[len(da)-10:]
	}
	if len(db) > 10 {
		db = db[len(db)-10:]
	}
	return da == db
}

// NameSimilarity returns 1 - levenshtein(a,b)/max(len(a),len(b)) over
// case-folded names, 0 when either is empty.
func NameSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

// Score computes the weighted similarity of two contacts. Pure function,
// no I/O.
func Score(a, b *store.Contact) MatchResult {
	var res MatchResult

	if a.Email != "" && b.Email != "" && NormalizeEmail(a.Email) == NormalizeEmail(b.Email) {
		res.Score += emailWeight
		res.MatchedFields = append(res.MatchedFields, "email")
		res.Reasons = append(res.Reasons, "identical email address")
	}

	if ArePhonesSimilar(a.Phone, b.Phone) {
		res.Score += phoneWeight
		res.MatchedFields = append(res.MatchedFields, "phone")
		res.Reasons = append(res.Reasons, "identical phone number")
	}

	if sim := NameSimilarity(a.Name, b.Name); sim >= nameTiers[len(nameTiers)-1].ratio {
		for _, tier := range nameTiers {
			if sim >= tier.ratio {
				res.Score += tier.bonus
				res.MatchedFields = append(res.MatchedFields, "name")
				res.Reasons = append(res.Reasons, fmt.Sprintf("similar name (%.0f%% match)", sim*100))
				break
			}
		}
	}

	return res
}

// AreLikelyDuplicates reports whether the pair scores at or above threshold
// (DefaultThreshold when threshold <= 0).
func AreLikelyDuplicates(a, b *store.Contact, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Score(a, b).Score >= threshold
}
