package relevance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/philippeb99/researcher-sub001/internal/model"
)

var scoreNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNameVariants(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "legal suffix produces stripped variant",
			in:   "Foo Inc.",
			want: []string{"Foo Inc.", "Foo"},
		},
		{
			name: "no suffix means no stripped variant",
			in:   "Foo Systems",
			want: []string{"Foo Systems"},
		},
		{
			name: "punctuation produces normalized variant",
			in:   "Acme-Widgets Corp.",
			want: []string{"Acme-Widgets Corp.", "Acme-Widgets", "Acme Widgets Corp"},
		},
		{
			name: "short normalized variant dropped",
			in:   "A.B",
			want: []string{"A.B"},
		},
		{
			name: "empty name",
			in:   "  ",
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NameVariants(tc.in))
		})
	}
}

func TestStripSuffix(t *testing.T) {
	assert.Equal(t, "Acme", StripSuffix("Acme Corp."))
	assert.Equal(t, "Acme", StripSuffix("Acme, Inc."))
	assert.Equal(t, "Acme Holdings", StripSuffix("Acme Holdings Limited"))
	assert.Equal(t, "Acme Group", StripSuffix("Acme Group"))
}

func TestRegisteredDomain(t *testing.T) {
	assert.Equal(t, "acme.com", RegisteredDomain("https://www.acme.com/about"))
	assert.Equal(t, "acme.co.uk", RegisteredDomain("acme.co.uk"))
	assert.Equal(t, "", RegisteredDomain(""))
}

func TestScore_NameMatchPriority(t *testing.T) {
	target := Target{CompanyName: "Acme Corp."}

	// Exact match takes the full 50 points.
	exact := Item{Title: "Acme Corp. raises funding"}
	assert.Equal(t, 50, Score(exact, target, scoreNow))

	// Suffix-stripped match only: 35 points.
	stripped := Item{Title: "Acme expands into Europe"}
	assert.Equal(t, 35, Score(stripped, target, scoreNow))

	// No match at all.
	none := Item{Title: "Unrelated industry news"}
	assert.Equal(t, 0, Score(none, target, scoreNow))
}

func TestScore_NormalizedNameMatch(t *testing.T) {
	target := Target{CompanyName: "Data-Bridge Analytics"}
	item := Item{Title: "Data Bridge Analytics report published"}
	// Hyphen blocks the exact and stripped branches; normalized variant hits.
	assert.Equal(t, 25, Score(item, target, scoreNow))
}

func TestScore_MonotonicInEachFactor(t *testing.T) {
	target := Target{
		CompanyName: "Acme Corp.",
		CEOName:     "Jane Smith",
		Country:     "Germany",
		City:        "Berlin",
		Website:     "https://www.acme.com",
	}

	base := Item{Title: "Acme Corp. announcement"}
	baseScore := Score(base, target, scoreNow)

	additions := []struct {
		name   string
		extra  string
		points int
	}{
		{"ceo", " by Jane Smith", 15},
		{"country", " in Germany", 30},
		{"city", " near Berlin", 20},
		{"domain", " via acme.com", 40},
	}

	for _, tc := range additions {
		t.Run(tc.name, func(t *testing.T) {
			item := Item{Title: base.Title, Snippet: tc.extra}
			got := Score(item, target, scoreNow)
			assert.Equal(t, baseScore+tc.points, got)
			assert.GreaterOrEqual(t, got, baseScore, "adding a matching term must never decrease the score")
		})
	}
}

func TestScore_RecencyBonus(t *testing.T) {
	target := Target{CompanyName: "Acme Corp."}

	tests := []struct {
		name  string
		age   time.Duration
		bonus int
	}{
		{"under 30 days", 10 * 24 * time.Hour, 20},
		{"under 90 days", 60 * 24 * time.Hour, 15},
		{"under 180 days", 120 * 24 * time.Hour, 10},
		{"under 365 days", 300 * 24 * time.Hour, 5},
		{"over a year", 400 * 24 * time.Hour, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			published := scoreNow.Add(-tc.age)
			item := Item{Title: "Acme Corp. update", PublishedAt: &published}
			assert.Equal(t, 50+tc.bonus, Score(item, target, scoreNow))
		})
	}

	// Missing date contributes nothing and never errors.
	item := Item{Title: "Acme Corp. update"}
	assert.Equal(t, 50, Score(item, target, scoreNow))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, model.ConfidenceHigh, Level(80))
	assert.Equal(t, model.ConfidenceMedium, Level(50))
	assert.Equal(t, model.ConfidenceMedium, Level(79))
	assert.Equal(t, model.ConfidenceLow, Level(49))
	assert.Equal(t, model.ConfidenceLow, Level(0))
}
