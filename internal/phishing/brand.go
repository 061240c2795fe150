package phishing

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"
)

const minBrandLength = 3

// brandMatcher holds the per-brand lookups precomputed from the tables
type brandMatcher struct {
	brands     []string
	variations map[string][]string
	suffix     map[string]*regexp.Regexp
	noise      map[string]*regexp.Regexp
	homoglyphs *strings.Replacer
}

func newBrandMatcher(t Tables) *brandMatcher {
	m := &brandMatcher{
		variations: make(map[string][]string),
		suffix:     make(map[string]*regexp.Regexp),
		noise:      make(map[string]*regexp.Regexp),
		homoglyphs: newHomoglyphReplacer(t.Homoglyphs),
	}

	suffixes := make([]string, 0, len(t.BrandSuffixes))
	for _, s := range t.BrandSuffixes {
		suffixes = append(suffixes, regexp.QuoteMeta(strings.ToLower(s)))
	}
	// longer alternatives first so verification is preferred over verify
	sort.SliceStable(suffixes, func(i, j int) bool { return len(suffixes[i]) > len(suffixes[j]) })
	suffixAlt := strings.Join(suffixes, "|")

	for _, brand := range t.TargetedBrands {
		brand = strings.ToLower(strings.TrimSpace(brand))
		if utf8.RuneCountInString(brand) < minBrandLength {
			continue
		}
		m.brands = append(m.brands, brand)

		for _, v := range t.BrandVariations[brand] {
			m.variations[brand] = append(m.variations[brand], strings.ToLower(v))
		}

		if suffixAlt != "" {
			m.suffix[brand] = regexp.MustCompile(regexp.QuoteMeta(brand) + `[^a-z0-9]?(` + suffixAlt + `)`)
		}

		if utf8.RuneCountInString(brand) >= 6 {
			parts := make([]string, 0, len(brand))
			for _, r := range brand {
				parts = append(parts, regexp.QuoteMeta(string(r)))
			}
			m.noise[brand] = regexp.MustCompile(strings.Join(parts, `[^a-z]?`))
		}
	}

	return m
}

// similarity returns the strongest brand resemblance of domain, or 0 when
// no rule fires for any brand
func (m *brandMatcher) similarity(domain string) float64 {
	domain = strings.ToLower(domain)
	if domain == "" {
		return 0
	}

	best := 0.0
	for _, brand := range m.brands {
		if s := m.score(domain, brand); s > best {
			best = s
		}
		if best >= 1 {
			break
		}
	}
	return best
}

func (m *brandMatcher) score(domain, brand string) float64 {
	if domain == brand {
		return 1.0
	}

	best := 0.0
	raise := func(v float64) {
		if v > best {
			best = v
		}
	}

	for _, v := range m.variations[brand] {
		if v != "" && strings.Contains(domain, v) {
			raise(0.95)
			break
		}
	}

	if re, ok := m.suffix[brand]; ok && re.MatchString(domain) {
		raise(0.9)
	}

	if strings.Contains(domain, brand) {
		ratio := float64(utf8.RuneCountInString(brand)) / float64(utf8.RuneCountInString(domain))
		raise(clamp(ratio, 0.6, 0.95))
	}

	// edit distance covers the whole domain, not its labels
	brandLen := utf8.RuneCountInString(brand)
	domainLen := utf8.RuneCountInString(domain)
	switch dist := levenshtein.ComputeDistance(domain, brand); {
	case dist <= 2 && brandLen > 5:
		raise(0.8)
	case dist <= 3 && float64(domainLen) > 0.7*float64(brandLen):
		raise(0.7)
	}

	// digit and symbol lookalikes fold too, so this runs for ASCII hosts
	raise(m.homographDistance(domain, brand))

	if re, ok := m.noise[brand]; ok && re.MatchString(domain) {
		raise(0.65)
	}

	return best
}

// homographDistance compares domain and brand after folding lookalike
// characters to their ASCII counterparts
func (m *brandMatcher) homographDistance(domain, brand string) float64 {
	d := m.fold(domain)
	b := m.fold(brand)
	if d == "" || b == "" {
		return 0
	}

	switch {
	case d == b:
		return 0.95
	case strings.Contains(d, b):
		return 0.9
	case levenshtein.ComputeDistance(d, b) <= 2 && utf8.RuneCountInString(b) > 4:
		return 0.85
	}
	return 0
}

// HomographDistance scores how closely domain imitates brand once lookalike
// characters are folded, using the default homoglyph table
func HomographDistance(domain, brand string) float64 {
	m := &brandMatcher{homoglyphs: newHomoglyphReplacer(DefaultTables().Homoglyphs)}
	return m.homographDistance(domain, brand)
}

func (m *brandMatcher) fold(s string) string {
	s = norm.NFKC.String(strings.ToLower(s))
	return strings.ToLower(m.homoglyphs.Replace(s))
}

func newHomoglyphReplacer(table map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(table))
	for k := range table {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, k, table[k])
	}
	return strings.NewReplacer(pairs...)
}
