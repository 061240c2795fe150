package phishing

import (
	"strings"
	"unicode"
)

type trigramTables struct {
	suspicious map[string]struct{}
	safe       map[string]struct{}
}

func newTrigramTables(suspicious, safe []string) trigramTables {
	return trigramTables{
		suspicious: toSet(suspicious),
		safe:       toSet(safe),
	}
}

// score rates the 3-character windows of each alphanumeric run in s.
// Suspicious trigrams raise the score, safe ones lower it at half weight and
// digit-letter-digit windows add half weight.
func (t trigramTables) score(s string) float64 {
	var total, suspicious, safe, random int

	for _, run := range splitAlphanumeric(strings.ToLower(s)) {
		runes := []rune(run)
		for i := 0; i+3 <= len(runes); i++ {
			tri := string(runes[i : i+3])
			total++
			if _, ok := t.suspicious[tri]; ok {
				suspicious++
			}
			if _, ok := t.safe[tri]; ok {
				safe++
			}
			if unicode.IsDigit(runes[i]) && unicode.IsLetter(runes[i+1]) && unicode.IsDigit(runes[i+2]) {
				random++
			}
		}
	}

	if total == 0 {
		return 0
	}

	n := float64(total)
	score := float64(suspicious)/n - 0.5*float64(safe)/n + 0.5*float64(random)/n
	return clamp(score, 0, 1)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}
