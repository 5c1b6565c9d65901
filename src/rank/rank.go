// Package rank scores and filters retrieved candidates against accumulated
// user preferences.
package rank

import (
	"sort"
	"strings"

	"github.com/hembot/hembot/src/catalog"
	"github.com/hembot/hembot/src/intent"
)

// maxResults caps the ranked output shown to the user.
const maxResults = 5

const (
	priceWithinScore  = 30
	priceStretchScore = 10
	colorScore        = 20
	featureScore      = 10
	baseScore         = 10

	// Candidates up to 20% over the max price still rank, just lower.
	priceStretchFactor = 1.20
)

// Score ranks candidates against prefs and returns at most five with a
// positive score, best first. Sorting is stable so retrieval order is
// preserved among ties. With no preferences every candidate gets a flat base
// score so unfiltered results still display.
func Score(candidates []catalog.ProductRecord, prefs intent.Preferences) []catalog.ProductRecord {
	type scored struct {
		record catalog.ProductRecord
		score  int
	}
	var results []scored
	for _, c := range candidates {
		s, ok := ScoreOne(c, prefs)
		if !ok || s <= 0 {
			continue
		}
		results = append(results, scored{record: c, score: s})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	out := make([]catalog.ProductRecord, 0, len(results))
	for _, r := range results {
		out = append(out, r.record)
	}
	return out
}

// ScoreOne scores a single candidate. ok=false means the candidate is
// excluded by a hard price filter. An unparseable candidate price skips price
// scoring rather than excluding the candidate.
func ScoreOne(c catalog.ProductRecord, prefs intent.Preferences) (int, bool) {
	if prefs.Empty() {
		return baseScore, true
	}

	score := 0
	text := c.SearchText()

	if pr := prefs.PriceRange; pr != nil {
		if price, parseable := catalog.ParsePrice(c.Price); parseable {
			if pr.Min != nil && price < *pr.Min {
				return 0, false
			}
			if pr.Max != nil {
				switch {
				case price <= *pr.Max:
					score += priceWithinScore
				case price <= *pr.Max*priceStretchFactor:
					score += priceStretchScore
				default:
					return 0, false
				}
			}
		}
	}

	for _, color := range prefs.Colors {
		if strings.Contains(text, strings.ToLower(color)) {
			score += colorScore
			break
		}
	}

	for _, feature := range prefs.Features {
		if strings.Contains(text, strings.ToLower(feature)) {
			score += featureScore
		}
	}

	return score, true
}
