package similarity

import "strings"

// tokenSet lowercases text and splits it on whitespace into a set of words.
func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b| × 100 for the word sets of a and b, and
// false when either text has no tokens.
func Jaccard(a, b string) (float64, bool) {
	return jaccardSets(tokenSet(a), tokenSet(b))
}

func jaccardSets(a, b map[string]struct{}) (float64, bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, false
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	var inter int
	for w := range small {
		if _, ok := large[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union) * 100, true
}
