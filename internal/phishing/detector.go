package phishing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
	"gopkg.in/yaml.v3"
)

var (
	ipv4Host       = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)
	hexEscape      = regexp.MustCompile(`%[0-9a-fA-F]{2}`)
	userDirectory  = regexp.MustCompile(`/~[^/]+`)
	scriptInPath   = regexp.MustCompile(`\.(php|asp|aspx|jsp|cgi|pl|exe|sh|py)/`)
	specialChar    = regexp.MustCompile(`[^a-zA-Z0-9.:/]`)
	specialCharRun = regexp.MustCompile(`[^a-zA-Z0-9./:_-]+`)
)

// Config is the detector configuration snapshot
type Config struct {
	Tables    Tables
	Threshold float64
}

// DefaultConfig returns the built-in tables at the default threshold
func DefaultConfig() Config {
	return Config{Tables: DefaultTables(), Threshold: DefaultThreshold}
}

// Result is the outcome of analyzing one URL
type Result struct {
	URL            string        `json:"url"`
	IsPhishing     bool          `json:"isPhishing"`
	Confidence     int           `json:"confidence"`
	PhishingScore  float64       `json:"phishingScore"`
	BaseScore      float64       `json:"baseScore"`
	Threshold      float64       `json:"threshold"`
	Features       FeatureVector `json:"features"`
	DomainSegments []string      `json:"domainSegments"`
	PathSegments   []string      `json:"pathSegments"`
	Error          string        `json:"error,omitempty"`
}

// Detector scores URLs against an immutable configuration snapshot.
// It is safe for concurrent use; changing configuration means building a
// new Detector.
type Detector struct {
	config  Config
	version string
	logger  *zap.Logger

	trusted      []string
	keywords     []string
	keywordSet   map[string]struct{}
	riskyTLDs    map[string]struct{}
	pathSegments map[string]struct{}
	brandPaths   []brandPath
	brands       *brandMatcher
	trigrams     trigramTables
	segmenter    *Segmenter
}

type brandPath struct {
	brand    string
	segments map[string]struct{}
}

// NewDetector validates cfg and precomputes lookup caches
func NewDetector(cfg Config, logger *zap.Logger) (*Detector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ValidateThreshold(cfg.Threshold); err != nil {
		return nil, err
	}
	if err := cfg.Tables.Validate(); err != nil {
		return nil, err
	}

	cfg.Tables = cfg.Tables.Clone()
	t := cfg.Tables

	d := &Detector{
		config:       cfg,
		logger:       logger,
		keywordSet:   toSet(t.SuspiciousKeywords),
		riskyTLDs:    toSet(t.RiskyTLDs),
		pathSegments: toSet(t.SuspiciousPathSegments),
		brands:       newBrandMatcher(t),
		trigrams:     newTrigramTables(t.SuspiciousTrigrams, t.SafeTrigrams),
	}

	for _, domain := range t.TrustedDomains {
		if domain = strings.Trim(strings.ToLower(domain), ". "); domain != "" {
			d.trusted = append(d.trusted, domain)
		}
	}
	for _, kw := range t.SuspiciousKeywords {
		if kw = strings.ToLower(kw); kw != "" {
			d.keywords = append(d.keywords, kw)
		}
	}
	for _, bp := range t.BrandPatterns {
		d.brandPaths = append(d.brandPaths, brandPath{
			brand:    strings.ToLower(bp.Brand),
			segments: toSet(bp.PathSegments),
		})
	}

	var variations []string
	for _, vs := range t.BrandVariations {
		variations = append(variations, vs...)
	}
	d.segmenter = NewSegmenter(t.SuspiciousKeywords, t.TargetedBrands, variations)

	version, err := configVersion(cfg)
	if err != nil {
		return nil, err
	}
	d.version = version

	logger.Info("Phishing detector initialized",
		zap.String("tables_version", t.Version),
		zap.String("config_version", d.version),
		zap.Float64("threshold", cfg.Threshold),
		zap.Int("brands", len(d.brands.brands)),
		zap.Int("trusted_domains", len(d.trusted)),
		zap.Int("segment_cache", d.segmenter.Len()),
	)

	return d, nil
}

func configVersion(cfg Config) (string, error) {
	data, err := yaml.Marshal(cfg.Tables)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint tables: %w", err)
	}
	h := sha256.New()
	h.Write(data)
	fmt.Fprintf(h, "|threshold=%g", cfg.Threshold)
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// Version fingerprints the configuration. Results from detectors with the
// same version are interchangeable.
func (d *Detector) Version() string {
	return d.version
}

// Threshold returns the classification threshold
func (d *Detector) Threshold() float64 {
	return d.config.Threshold
}

// Config returns a copy of the detector configuration
func (d *Detector) Config() Config {
	c := d.config
	c.Tables = c.Tables.Clone()
	return c
}

// WithThreshold returns a detector sharing these tables with a new threshold
func (d *Detector) WithThreshold(threshold float64) (*Detector, error) {
	cfg := d.config
	cfg.Threshold = threshold
	return NewDetector(cfg, d.logger)
}

// WithSensitivity returns a detector whose threshold is derived from the
// 0-100 sensitivity knob
func (d *Detector) WithSensitivity(sensitivity int) (*Detector, error) {
	if sensitivity < 0 || sensitivity > 100 {
		return nil, fmt.Errorf("%w: sensitivity %d outside [0,100]", ErrInvalidConfig, sensitivity)
	}
	return d.WithThreshold(ThresholdFromSensitivity(sensitivity))
}

// Check analyzes rawURL and never fails. Unparseable URLs produce a
// non-phishing zero-confidence result with Error set.
func (d *Detector) Check(rawURL string) Result {
	result, err := d.Analyze(rawURL)
	if err != nil {
		d.logger.Debug("URL analysis failed", zap.String("url", rawURL), zap.Error(err))
		return Result{
			URL:       rawURL,
			Threshold: d.config.Threshold,
			Error:     err.Error(),
		}
	}
	return *result
}

// Analyze extracts features from rawURL and scores it
func (d *Detector) Analyze(rawURL string) (*Result, error) {
	p, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}

	features, domainSegments, pathSegments := d.extract(p)
	brandPattern := d.matchesBrandPattern(p)

	base := ComposeScore(features, d.config.Tables.FeatureWeights, brandPattern)
	score := ApplyTrust(base, features.IsDomainTrusted > 0)

	result := &Result{
		URL:            rawURL,
		IsPhishing:     Classify(score, d.config.Threshold),
		Confidence:     Confidence(score),
		PhishingScore:  score,
		BaseScore:      base,
		Threshold:      d.config.Threshold,
		Features:       features,
		DomainSegments: domainSegments,
		PathSegments:   pathSegments,
	}

	if result.IsPhishing {
		d.logger.Info("Phishing URL detected",
			zap.String("host", p.host),
			zap.Int("confidence", result.Confidence),
			zap.Float64("brand_similarity", features.BrandSimilarity),
		)
	}

	return result, nil
}

// parsedURL is the decomposed form the features are computed from
type parsedURL struct {
	raw         string
	scheme      string
	host        string
	unicodeHost string
	path        string
	rawQuery    string
}

func parseURL(raw string) (*parsedURL, error) {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if u.Scheme == "" || host == "" {
		return nil, fmt.Errorf("%w: %q has no scheme or host", ErrInvalidURL, raw)
	}

	p := &parsedURL{
		raw:         trimmed,
		scheme:      strings.ToLower(u.Scheme),
		host:        host,
		unicodeHost: host,
		path:        u.EscapedPath(),
		rawQuery:    u.RawQuery,
	}

	if strings.Contains(host, "xn--") {
		if decoded, err := idna.ToUnicode(host); err == nil {
			p.unicodeHost = decoded
		}
	}

	return p, nil
}

// asciiHost is the punycode form used for allowlist and suffix lookups
func (p *parsedURL) asciiHost() string {
	if ascii, err := idna.ToASCII(p.host); err == nil {
		return ascii
	}
	return p.host
}

func (p *parsedURL) isIP() bool {
	return ipv4Host.MatchString(p.host)
}

// brandDomain is the host without a leading www and without its public suffix
func (p *parsedURL) brandDomain() string {
	host := strings.TrimPrefix(p.unicodeHost, "www.")
	if p.isIP() {
		return host
	}
	suffix, _ := publicsuffix.PublicSuffix(host)
	if suffix == "" || suffix == host {
		return host
	}
	return strings.TrimSuffix(host, "."+suffix)
}

func (p *parsedURL) registrableDomain() string {
	if p.isIP() {
		return p.host
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(p.asciiHost()); err == nil {
		return etld1
	}
	return p.host
}

func (d *Detector) extract(p *parsedURL) (FeatureVector, []string, []string) {
	var f FeatureVector
	lowerPath := strings.ToLower(p.path)

	f.URLLength = float64(utf8.RuneCountInString(p.raw))
	f.DomainLength = float64(utf8.RuneCountInString(p.host))
	f.PathLength = float64(utf8.RuneCountInString(p.path))
	f.SpecialCharCount = float64(len(specialChar.FindAllString(p.raw, -1)))
	f.DigitCount = float64(countRunes(p.raw, func(r rune) bool { return r >= '0' && r <= '9' }))
	f.NonASCIICharCount = float64(countRunes(p.raw, func(r rune) bool { return r >= utf8.RuneSelf }))
	if f.NonASCIICharCount == 0 && p.unicodeHost != p.host {
		f.NonASCIICharCount = float64(countRunes(p.unicodeHost, func(r rune) bool { return r >= utf8.RuneSelf }))
	}
	f.HexPatternCount = float64(len(hexEscape.FindAllString(p.raw, -1)))
	f.ConsecutiveSpecialChars = float64(longestRun(specialCharRun.FindAllString(p.raw, -1)))

	f.HasSubdomain = indicator(strings.Count(p.host, ".") >= 2)
	f.DomainHasDash = indicator(strings.Contains(p.host, "-"))
	f.QueryParamCount = float64(countQueryParams(p.rawQuery))
	f.TLDIsRisky = indicator(d.isRiskyTLD(p.host))
	f.HasIPAddress = indicator(p.isIP())
	f.IsHTTP = indicator(p.scheme != "https")
	f.HasSuspiciousPath = indicator(d.hasSuspiciousPath(lowerPath))

	f.DomainEntropyScore = ShannonEntropy(p.host)
	f.URLEntropyScore = ShannonEntropy(p.raw)

	domainSegments := d.segmenter.tokenize(p.unicodeHost)
	pathSegments := d.segmenter.tokenize(lowerPath)
	f.DomainTokenCount = float64(len(domainSegments))
	f.PathTokenCount = float64(len(pathSegments))
	f.AvgTokenLength = averageLength(domainSegments, pathSegments)

	brandDomain := p.brandDomain()
	f.TrigramSuspiciousness = d.trigrams.score(brandDomain)
	f.BrandSimilarity = d.brands.similarity(brandDomain)
	f.IsDomainTrusted = indicator(d.isTrusted(p.asciiHost()))
	f.HasSuspiciousKeywords = indicator(d.hasSuspiciousKeywords(p.unicodeHost+lowerPath, domainSegments, pathSegments))

	return f, domainSegments, pathSegments
}

func (d *Detector) isTrusted(host string) bool {
	for _, domain := range d.trusted {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func (d *Detector) isRiskyTLD(host string) bool {
	tld := host
	if i := strings.LastIndex(host, "."); i >= 0 {
		tld = host[i+1:]
	}
	_, ok := d.riskyTLDs[tld]
	return ok
}

func (d *Detector) hasSuspiciousPath(path string) bool {
	if userDirectory.MatchString(path) || scriptInPath.MatchString(path) {
		return true
	}
	for _, segment := range strings.Split(path, "/") {
		if _, ok := d.pathSegments[segment]; ok {
			return true
		}
	}
	return false
}

func (d *Detector) hasSuspiciousKeywords(text string, tokenLists ...[]string) bool {
	text = strings.ToLower(text)
	for _, kw := range d.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, tokens := range tokenLists {
		for _, tok := range tokens {
			if _, ok := d.keywordSet[tok]; ok {
				return true
			}
		}
	}
	return false
}

// matchesBrandPattern reports a brand token in the host combined with one of
// the brand's typical phishing path segments on a domain the brand does not own
func (d *Detector) matchesBrandPattern(p *parsedURL) bool {
	registrable := p.registrableDomain()
	segments := strings.Split(strings.ToLower(p.path), "/")

	for _, bp := range d.brandPaths {
		if !strings.Contains(p.unicodeHost, bp.brand) || registrable == bp.brand+".com" {
			continue
		}
		for _, s := range segments {
			if _, ok := bp.segments[s]; ok {
				return true
			}
		}
	}
	return false
}

func countRunes(s string, pred func(rune) bool) int {
	n := 0
	for _, r := range s {
		if pred(r) {
			n++
		}
	}
	return n
}

func longestRun(runs []string) int {
	longest := 0
	for _, run := range runs {
		if n := utf8.RuneCountInString(run); n > longest {
			longest = n
		}
	}
	return longest
}

func countQueryParams(rawQuery string) int {
	n := 0
	for _, part := range strings.Split(rawQuery, "&") {
		if strings.TrimFunc(part, unicode.IsSpace) != "" {
			n++
		}
	}
	return n
}

func averageLength(lists ...[]string) float64 {
	var total, count int
	for _, tokens := range lists {
		for _, tok := range tokens {
			total += utf8.RuneCountInString(tok)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}
