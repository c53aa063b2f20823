// Package relevance scores candidate news/mention items against a target
// company. The score is an additive point system; it is deterministic and
// has no side effects.
package relevance

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/philippeb99/researcher-sub001/internal/model"
)

// Item is a candidate mention to score.
type Item struct {
	Title       string
	Snippet     string
	PublishedAt *time.Time
}

// Target describes the entity the item is scored against.
type Target struct {
	CompanyName string
	CEOName     string
	Country     string
	City        string
	Website     string
}

// Point values for each scoring factor.
const (
	pointsExactName      = 50
	pointsStrippedName   = 35
	pointsNormalizedName = 25
	pointsCEO            = 15
	pointsCountry        = 30
	pointsCity           = 20
	pointsDomain         = 40
)

// suffixPattern matches trailing legal entity suffixes for fuzzy name matching.
var suffixPattern = regexp.MustCompile(`(?i),?\s*(inc\.?|llc|ltd\.?|corporation|corp\.?|limited)$`)

// punctPattern matches the punctuation replaced during name normalization.
var punctPattern = regexp.MustCompile(`[:\-.]`)

// spacePattern collapses runs of whitespace.
var spacePattern = regexp.MustCompile(`\s+`)

// StripSuffix removes a trailing legal suffix (Inc., LLC, Ltd., Corporation,
// Corp., Limited) from a company name. Returns the name unchanged when no
// suffix is present.
func StripSuffix(name string) string {
	return strings.TrimSpace(suffixPattern.ReplaceAllString(strings.TrimSpace(name), ""))
}

// NormalizeName replaces ':', '-' and '.' with spaces and collapses
// whitespace. Used as the loosest name-match variant.
func NormalizeName(name string) string {
	n := punctPattern.ReplaceAllString(name, " ")
	n = spacePattern.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

// NameVariants returns the company name match variants in priority order:
// the exact name, then the suffix-stripped form, then the punctuation-
// normalized form. Variants identical to an earlier one are omitted.
func NameVariants(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	variants := []string{name}
	if stripped := StripSuffix(name); !strings.EqualFold(stripped, name) && stripped != "" {
		variants = append(variants, stripped)
	}
	if normalized := NormalizeName(name); len(normalized) > 3 {
		dup := false
		for _, v := range variants {
			if strings.EqualFold(v, normalized) {
				dup = true
				break
			}
		}
		if !dup {
			variants = append(variants, normalized)
		}
	}
	return variants
}

// RegisteredDomain extracts the website hostname minus a leading "www.".
// Returns "" when the website cannot be parsed into a host.
func RegisteredDomain(website string) string {
	if website == "" {
		return ""
	}
	raw := website
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}

// Score rates an item against a target. Factors, in order:
// company-name match (exact +50, else suffix-stripped +35, else normalized
// +25 — first match only), CEO name +15, country +30, city +20, registered
// domain +40, then a recency bonus. An invalid or missing date contributes 0.
func Score(item Item, target Target, now time.Time) int {
	text := strings.ToLower(item.Title + " " + item.Snippet)
	score := 0

	name := strings.TrimSpace(target.CompanyName)
	if name != "" {
		switch {
		case strings.Contains(text, strings.ToLower(name)):
			score += pointsExactName
		case matchesVariant(text, StripSuffix(name), name):
			score += pointsStrippedName
		case matchesNormalized(text, name):
			score += pointsNormalizedName
		}
	}

	if target.CEOName != "" && strings.Contains(text, strings.ToLower(target.CEOName)) {
		score += pointsCEO
	}
	if target.Country != "" && strings.Contains(text, strings.ToLower(target.Country)) {
		score += pointsCountry
	}
	if target.City != "" && strings.Contains(text, strings.ToLower(target.City)) {
		score += pointsCity
	}
	if domain := RegisteredDomain(target.Website); domain != "" && strings.Contains(text, domain) {
		score += pointsDomain
	}

	score += recencyBonus(item.PublishedAt, now)
	return score
}

// Level buckets a score into a confidence level: >=80 high, >=50 medium,
// else low.
func Level(score int) model.ConfidenceLevel {
	switch {
	case score >= 80:
		return model.ConfidenceHigh
	case score >= 50:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func matchesVariant(text, variant, original string) bool {
	if variant == "" || strings.EqualFold(variant, original) {
		return false
	}
	return strings.Contains(text, strings.ToLower(variant))
}

func matchesNormalized(text, name string) bool {
	normalized := NormalizeName(name)
	if len(normalized) <= 3 || strings.EqualFold(normalized, name) {
		return false
	}
	return strings.Contains(text, strings.ToLower(normalized))
}

func recencyBonus(published *time.Time, now time.Time) int {
	if published == nil || published.IsZero() {
		return 0
	}
	age := now.Sub(*published)
	switch {
	case age < 30*24*time.Hour:
		return 20
	case age < 90*24*time.Hour:
		return 15
	case age < 180*24*time.Hour:
		return 10
	case age < 365*24*time.Hour:
		return 5
	default:
		return 0
	}
}
