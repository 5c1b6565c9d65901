package intent

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Pattern and synonym tables for deterministic preference extraction. The
// classifier normally fills preferences, but the extractor backfills anything
// it missed so a stated constraint is never silently dropped.

var pricePatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{"max", regexp.MustCompile(`under \$?(\d+)`)},
	{"max", regexp.MustCompile(`below \$?(\d+)`)},
	{"max", regexp.MustCompile(`less than \$?(\d+)`)},
	{"max", regexp.MustCompile(`max(?:imum)? ?\$?(\d+)`)},
	{"max", regexp.MustCompile(`budget.*?\$?(\d+)`)},
	{"around", regexp.MustCompile(`around \$?(\d+)`)},
	{"between", regexp.MustCompile(`between \$?(\d+).*?(?:and|-).*?\$?(\d+)`)},
}

var colorSynonyms = map[string][]string{
	"white": {"white", "ivory", "cream", "off-white", "off white"},
	"black": {"black", "charcoal"},
	"gray":  {"gray", "grey", "silver"},
	"beige": {"beige", "tan", "sand", "natural"},
	"brown": {"brown", "walnut", "oak"},
	"blue":  {"blue", "navy", "azure"},
	"red":   {"red", "burgundy", "crimson"},
	"green": {"green", "olive", "forest"},
}

var featureSynonyms = map[string][]string{
	"armrests":   {"armrest", "arm rest", "with arms"},
	"adjustable": {"adjustable", "height adjust"},
	"wheels":     {"wheels", "casters", "rolling", "swivel"},
	"ergonomic":  {"ergonomic", "lumbar"},
	"cushioned":  {"cushion", "padded", "upholstered"},
	"reclining":  {"recline", "tilt"},
}

// ExtractPreferences parses free text for price ranges, colors and features
// using the tables above. Purely deterministic; no model call.
func ExtractPreferences(text string) Preferences {
	lower := strings.ToLower(text)
	var prefs Preferences

	for _, pp := range pricePatterns {
		m := pp.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		switch pp.kind {
		case "max":
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				prefs.PriceRange = &PriceRange{Max: &v}
			}
		case "around":
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				lo, hi := v*0.8, v*1.2
				prefs.PriceRange = &PriceRange{Min: &lo, Max: &hi}
			}
		case "between":
			lo, errLo := strconv.ParseFloat(m[1], 64)
			hi, errHi := strconv.ParseFloat(m[2], 64)
			if errLo == nil && errHi == nil {
				prefs.PriceRange = &PriceRange{Min: &lo, Max: &hi}
			}
		}
		break
	}

	for base, variants := range colorSynonyms {
		for _, v := range variants {
			if strings.Contains(lower, v) {
				prefs.Colors = append(prefs.Colors, base)
				break
			}
		}
	}

	for base, variants := range featureSynonyms {
		for _, v := range variants {
			if strings.Contains(lower, v) {
				prefs.Features = append(prefs.Features, base)
				break
			}
		}
	}

	// Map iteration order is random; keep extractor output stable.
	sort.Strings(prefs.Colors)
	sort.Strings(prefs.Features)
	return prefs
}
