package phishing

import (
	"strings"
	"unicode"
)

const (
	minSegmentLength = 3
	maxSegmentLength = 8
	// words shorter than this tail are split into single characters
	singleCharTail = 5
)

// Segmenter splits run-together words into known keyword and brand pieces.
// The cache is built once and only read afterwards.
type Segmenter struct {
	known map[string]struct{}
}

// NewSegmenter builds the segment cache from the given vocabularies. Only
// alphanumeric entries of 3 to 8 characters are kept.
func NewSegmenter(vocabularies ...[]string) *Segmenter {
	s := &Segmenter{known: make(map[string]struct{})}
	for _, vocab := range vocabularies {
		for _, word := range vocab {
			word = strings.ToLower(word)
			n := len([]rune(word))
			if n < minSegmentLength || n > maxSegmentLength || !isAlphanumeric(word) {
				continue
			}
			s.known[word] = struct{}{}
		}
	}
	return s
}

// Len returns the number of cached segments
func (s *Segmenter) Len() int {
	return len(s.known)
}

// Segment tokenizes word with greedy longest match against the cache.
// Digit runs become single tokens. Unknown characters accumulate into a
// chunk until a known segment or digit run starts, except near the end of
// the word where they are emitted one by one.
func (s *Segmenter) Segment(word string) []string {
	runes := []rune(strings.ToLower(word))
	var (
		tokens  []string
		pending []rune
	)
	flush := func() {
		if len(pending) > 0 {
			tokens = append(tokens, string(pending))
			pending = pending[:0]
		}
	}

	for i := 0; i < len(runes); {
		if unicode.IsDigit(runes[i]) {
			flush()
			j := i
			for j < len(runes) && unicode.IsDigit(runes[j]) {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j
			continue
		}

		if n := s.longestMatch(runes[i:]); n > 0 {
			flush()
			tokens = append(tokens, string(runes[i:i+n]))
			i += n
			continue
		}

		if len(runes)-i < singleCharTail {
			flush()
			tokens = append(tokens, string(runes[i]))
			i++
			continue
		}

		pending = append(pending, runes[i])
		i++
	}
	flush()

	return tokens
}

func (s *Segmenter) longestMatch(runes []rune) int {
	n := maxSegmentLength
	if len(runes) < n {
		n = len(runes)
	}
	for ; n >= minSegmentLength; n-- {
		if _, ok := s.known[string(runes[:n])]; ok {
			return n
		}
	}
	return 0
}

// splitAlphanumeric splits s on every non-alphanumeric character
func splitAlphanumeric(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// tokenize splits s into alphanumeric tokens, segmenting tokens longer than
// the maximum segment length
func (s *Segmenter) tokenize(text string) []string {
	var tokens []string
	for _, tok := range splitAlphanumeric(strings.ToLower(text)) {
		if len([]rune(tok)) > maxSegmentLength {
			tokens = append(tokens, s.Segment(tok)...)
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}
