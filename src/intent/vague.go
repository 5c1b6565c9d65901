package intent

import (
	"regexp"
	"strings"
)

// A query is vague when it names a product category with no modifiers at all.
// The check is deterministic and runs before search dispatch, independent of
// what the classifier said.
var vaguePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(show me|show|find|looking for|want|need)\s+(a|an|some)?\s*(chair|table|desk|sofa|furniture)s?\s*$`),
	regexp.MustCompile(`^(chair|table|desk|sofa|furniture)s?\s*$`),
	regexp.MustCompile(`^browse\s+(chair|furniture)s?`),
	regexp.MustCompile(`^i\s+(want|need)\s+(a|an)\s+(chair|table)\s*$`),
}

// IsVagueQuery reports whether the query is a bare category mention that
// needs clarification. Returns false while a clarification is already in
// flight so the flow is not re-triggered.
func IsVagueQuery(query string, clarificationPending bool) bool {
	if clarificationPending {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(query))
	for _, re := range vaguePatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}
