package phishing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BrandPattern pairs a brand token with the path segments its phishing kits
// commonly use
type BrandPattern struct {
	Brand        string   `yaml:"brand" json:"brand"`
	PathSegments []string `yaml:"path_segments" json:"pathSegments"`
}

// Tables holds the heuristic lookup data used by the detector. It is
// versioned configuration, not code, so it can be replaced from a file.
type Tables struct {
	Version                string              `yaml:"version" json:"version"`
	TrustedDomains         []string            `yaml:"trusted_domains" json:"trustedDomains"`
	SuspiciousKeywords     []string            `yaml:"suspicious_keywords" json:"suspiciousKeywords"`
	TargetedBrands         []string            `yaml:"targeted_brands" json:"targetedBrands"`
	BrandVariations        map[string][]string `yaml:"brand_variations" json:"brandVariations"`
	BrandPatterns          []BrandPattern      `yaml:"brand_patterns" json:"brandPatterns"`
	BrandSuffixes          []string            `yaml:"brand_suffixes" json:"brandSuffixes"`
	RiskyTLDs              []string            `yaml:"risky_tlds" json:"riskyTlds"`
	SuspiciousPathSegments []string            `yaml:"suspicious_path_segments" json:"suspiciousPathSegments"`
	SuspiciousTrigrams     []string            `yaml:"suspicious_trigrams" json:"suspiciousTrigrams"`
	SafeTrigrams           []string            `yaml:"safe_trigrams" json:"safeTrigrams"`
	Homoglyphs             map[string]string   `yaml:"homoglyphs" json:"homoglyphs"`
	FeatureWeights         map[string]float64  `yaml:"feature_weights" json:"featureWeights"`
}

// LoadTables reads a YAML table file over the defaults. List fields present in
// the file replace the default list; map fields are merged key by key.
func LoadTables(path string) (Tables, error) {
	tables := DefaultTables()

	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("failed to read heuristic tables: %w", err)
	}
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return Tables{}, fmt.Errorf("failed to parse heuristic tables %s: %w", path, err)
	}
	if err := tables.Validate(); err != nil {
		return Tables{}, fmt.Errorf("heuristic tables %s: %w", path, err)
	}

	return tables, nil
}

// Validate checks that every weighted feature exists and no weight is negative
func (t Tables) Validate() error {
	for name, w := range t.FeatureWeights {
		if !IsFeatureName(name) {
			return fmt.Errorf("%w: unknown feature weight %q", ErrInvalidConfig, name)
		}
		if w < 0 {
			return fmt.Errorf("%w: negative weight for %q", ErrInvalidConfig, name)
		}
	}
	for _, bp := range t.BrandPatterns {
		if bp.Brand == "" || len(bp.PathSegments) == 0 {
			return fmt.Errorf("%w: brand pattern needs a brand and path segments", ErrInvalidConfig)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can edit tables without touching a
// detector built from them
func (t Tables) Clone() Tables {
	c := t
	c.TrustedDomains = append([]string(nil), t.TrustedDomains...)
	c.SuspiciousKeywords = append([]string(nil), t.SuspiciousKeywords...)
	c.TargetedBrands = append([]string(nil), t.TargetedBrands...)
	c.BrandSuffixes = append([]string(nil), t.BrandSuffixes...)
	c.RiskyTLDs = append([]string(nil), t.RiskyTLDs...)
	c.SuspiciousPathSegments = append([]string(nil), t.SuspiciousPathSegments...)
	c.SuspiciousTrigrams = append([]string(nil), t.SuspiciousTrigrams...)
	c.SafeTrigrams = append([]string(nil), t.SafeTrigrams...)

	c.BrandVariations = make(map[string][]string, len(t.BrandVariations))
	for k, v := range t.BrandVariations {
		c.BrandVariations[k] = append([]string(nil), v...)
	}
	c.BrandPatterns = make([]BrandPattern, len(t.BrandPatterns))
	for i, bp := range t.BrandPatterns {
		c.BrandPatterns[i] = BrandPattern{Brand: bp.Brand, PathSegments: append([]string(nil), bp.PathSegments...)}
	}
	c.Homoglyphs = make(map[string]string, len(t.Homoglyphs))
	for k, v := range t.Homoglyphs {
		c.Homoglyphs[k] = v
	}
	c.FeatureWeights = make(map[string]float64, len(t.FeatureWeights))
	for k, v := range t.FeatureWeights {
		c.FeatureWeights[k] = v
	}
	return c
}

// DefaultTables returns the built-in heuristic tables
func DefaultTables() Tables {
	return Tables{
		Version: "2024.1",
		TrustedDomains: []string{
			"google.com", "youtube.com", "gmail.com", "facebook.com", "instagram.com",
			"amazon.com", "apple.com", "icloud.com", "microsoft.com", "live.com",
			"office.com", "outlook.com", "paypal.com", "netflix.com", "github.com",
			"linkedin.com", "twitter.com", "x.com", "wikipedia.org", "yahoo.com",
			"dropbox.com", "chase.com", "wellsfargo.com", "bankofamerica.com", "coinbase.com",
			"binance.com", "ebay.com", "adobe.com", "spotify.com", "steampowered.com",
			"openai.com", "chatgpt.com", "anthropic.com", "claude.ai",
		},
		SuspiciousKeywords: []string{
			"login", "signin", "sign-in", "logon", "verify", "verification", "account",
			"update", "secure", "security", "banking", "confirm", "password", "credential",
			"wallet", "suspend", "suspended", "unlock", "billing", "invoice", "payment",
			"recover", "authenticate", "webscr", "validation", "limited", "urgent",
			"bonus", "prize", "winner", "refund",
		},
		TargetedBrands: []string{
			"paypal", "apple", "google", "microsoft", "amazon", "facebook", "netflix",
			"instagram", "linkedin", "twitter", "dropbox", "chase", "wellsfargo",
			"bankofamerica", "coinbase", "binance", "outlook", "office365", "icloud",
			"ebay", "adobe", "spotify", "steam", "yahoo", "github",
		},
		BrandVariations: map[string][]string{
			"paypal":    {"paypa1", "paypai", "pay-pal", "paypall", "payp4l"},
			"apple":     {"app1e", "appie", "appl3", "apple-id", "appleid"},
			"google":    {"g00gle", "gooogle", "googel", "go0gle", "g0ogle", "goggle"},
			"microsoft": {"micros0ft", "rnicrosoft", "microsof", "micr0soft", "mircosoft", "microsft"},
			"amazon":    {"amaz0n", "arnazon", "amazn", "amazom"},
			"facebook":  {"faceb00k", "facebok", "faceboook", "fb-login", "facebo0k"},
			"netflix":   {"netfl1x", "netflx", "nettflix", "netflix-account"},
			"instagram": {"1nstagram", "instagrarn", "instagran", "insta-gram"},
			"linkedin":  {"linked1n", "linkedln", "l1nkedin"},
			"coinbase":  {"c0inbase", "coinbace", "coin-base"},
			"binance":   {"b1nance", "binanse", "binnance"},
		},
		BrandPatterns: []BrandPattern{
			{Brand: "paypal", PathSegments: []string{"signin", "login", "verify", "account", "update", "secure", "webscr"}},
			{Brand: "apple", PathSegments: []string{"account", "verify", "signin", "update", "id", "icloud"}},
			{Brand: "microsoft", PathSegments: []string{"login", "signin", "account", "verify", "office", "outlook"}},
			{Brand: "amazon", PathSegments: []string{"signin", "account", "verify", "update", "order", "payment"}},
			{Brand: "google", PathSegments: []string{"signin", "accounts", "login", "verify", "drive"}},
			{Brand: "netflix", PathSegments: []string{"login", "account", "billing", "update", "payment"}},
			{Brand: "facebook", PathSegments: []string{"login", "recover", "checkpoint", "verify"}},
			{Brand: "chase", PathSegments: []string{"login", "signin", "verify", "account", "secure"}},
			{Brand: "wellsfargo", PathSegments: []string{"login", "signin", "verify", "account", "secure"}},
			{Brand: "coinbase", PathSegments: []string{"login", "signin", "verify", "wallet"}},
		},
		BrandSuffixes: []string{
			"verify", "verification", "secure", "security", "login", "signin", "account",
			"update", "support", "id", "service", "auth", "confirm", "billing", "help", "online",
		},
		RiskyTLDs: []string{
			"tk", "ml", "ga", "cf", "gq", "xyz", "top", "club", "online", "site", "work",
			"buzz", "click", "link", "icu", "cyou", "rest", "fit", "loan", "zip", "mov",
			"country", "kim", "men", "date", "racing", "review", "stream", "download",
			"win", "bid", "support",
		},
		SuspiciousPathSegments: []string{
			"admin", "login", "signin", "verify", "verification", "account", "accounts",
			"update", "secure", "security", "confirm", "banking", "wp-admin", "wp-includes",
			"webscr", "auth", "authenticate", "billing", "payment", "recover", "unlock",
			"validate", "session", "password", "reset",
		},
		SuspiciousTrigrams: []string{
			"log", "gin", "sig", "ver", "rif", "ify", "acc", "cou", "unt", "sec",
			"cur", "upd", "pda", "pay", "ypa", "pal", "ban", "ank", "onf", "irm",
			"wal", "let", "pas", "ass", "swo", "cre", "ede", "aut", "uth", "app",
			"ppl", "web", "scr", "bil", "lli", "unl", "loc", "val", "xyz",
		},
		SafeTrigrams: []string{
			"the", "ing", "and", "ion", "ent", "for", "tio", "ere", "her", "ate",
			"ter", "res", "ers", "ati", "ine", "all", "ive", "new", "net", "org",
			"inf", "nfo", "dia", "ews", "ome", "hom", "blo", "doc", "ear", "lea",
		},
		Homoglyphs: map[string]string{
			"а": "a", "е": "e", "о": "o", "р": "p", "с": "c", "у": "y", "х": "x",
			"і": "i", "ј": "j", "ѕ": "s", "ԁ": "d", "һ": "h", "ӏ": "l", "ո": "n",
			"ս": "u", "ɡ": "g", "ο": "o", "α": "a", "ν": "v", "ρ": "p", "τ": "t",
			"ι": "i", "κ": "k", "ε": "e", "ł": "l", "ı": "i", "ø": "o",
			"0": "o", "1": "l", "3": "e", "5": "s", "@": "a",
		},
		FeatureWeights: DefaultWeights(),
	}
}

// DefaultWeights returns the calibrated feature weights. They sum to 1.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		FeatureURLLength:               0.03,
		FeatureDomainLength:            0.03,
		FeaturePathLength:              0.02,
		FeatureSpecialCharCount:        0.03,
		FeatureDigitCount:              0.03,
		FeatureNonASCIICharCount:       0.06,
		FeatureHexPatternCount:         0.02,
		FeatureConsecutiveSpecialChars: 0.02,
		FeatureHasSubdomain:            0.02,
		FeatureDomainHasDash:           0.04,
		FeatureQueryParamCount:         0.02,
		FeatureTLDIsRisky:              0.06,
		FeatureHasIPAddress:            0.08,
		FeatureIsHTTP:                  0.05,
		FeatureHasSuspiciousPath:       0.06,
		FeatureDomainEntropyScore:      0.03,
		FeatureURLEntropyScore:         0.02,
		FeatureDomainTokenCount:        0.02,
		FeaturePathTokenCount:          0.02,
		FeatureAvgTokenLength:          0.02,
		FeatureTrigramSuspiciousness:   0.06,
		FeatureBrandSimilarity:         0.14,
		FeatureHasSuspiciousKeywords:   0.12,
	}
}
