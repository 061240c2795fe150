package privacy

import (
	"sort"
	"strings"
)

type replacement struct {
	index   int
	pattern string
	value   string
	sample  string
}

// Redact substitutes every occurrence of each matched substring with its
// pattern's sample value. Replacements are applied in descending order of
// their last position in the original text. Each substitution rescans the
// partially redacted string, so a sample that contains another pattern's raw
// match can be substituted again.
func Redact(text string, matchesByPattern map[string][]string, samples map[string]string) string {
	if text == "" || len(matchesByPattern) == 0 {
		return text
	}

	var replacements []replacement
	for name, matches := range matchesByPattern {
		sample, ok := samples[name]
		if !ok || sample == "" {
			sample = DefaultSample
		}
		for _, m := range matches {
			if m == "" {
				continue
			}
			replacements = append(replacements, replacement{
				index:   strings.LastIndex(text, m),
				pattern: name,
				value:   m,
				sample:  sample,
			})
		}
	}

	sort.Slice(replacements, func(i, j int) bool {
		a, b := replacements[i], replacements[j]
		if a.index != b.index {
			return a.index > b.index
		}
		if a.pattern != b.pattern {
			return a.pattern < b.pattern
		}
		return a.value < b.value
	})

	redacted := text
	for _, r := range replacements {
		redacted = replaceAll(redacted, r.value, r.sample)
	}

	return redacted
}

// replaceAll replaces occurrences left to right, resuming the scan after the
// inserted sample so a sample containing its own value terminates
func replaceAll(s, value, sample string) string {
	pos := 0
	for {
		i := strings.Index(s[pos:], value)
		if i < 0 {
			return s
		}
		i += pos
		s = s[:i] + sample + s[i+len(value):]
		pos = i + len(sample)
	}
}

// RedactText detects and redacts in one pass using the definitions' samples
func (e *Engine) RedactText(text string, patterns []PatternDefinition) (string, DetectionResult) {
	result := e.Detect(text, patterns)
	if !result.HasMatches() {
		return text, result
	}
	return Redact(text, result.MatchesByPattern, SamplesFor(patterns)), result
}

// SamplesFor maps pattern names to their redaction samples
func SamplesFor(patterns []PatternDefinition) map[string]string {
	samples := make(map[string]string, len(patterns))
	for _, p := range patterns {
		samples[p.Name] = p.Sample()
	}
	return samples
}
