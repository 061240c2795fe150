package phishing

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/idna"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	return d
}

func TestAnalyzeBrandImpersonation(t *testing.T) {
	d := newTestDetector(t)

	result, err := d.Analyze("https://appleid-verify.com/account/update")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Features.BrandSimilarity, 0.9)
	assert.Equal(t, 1.0, result.Features.HasSuspiciousPath)
	assert.Equal(t, 1.0, result.Features.DomainHasDash)
	assert.Equal(t, 1.0, result.Features.HasSuspiciousKeywords)
	assert.Equal(t, 0.0, result.Features.IsDomainTrusted)
	assert.True(t, result.IsPhishing)
	assert.Equal(t, int(math.Round(result.PhishingScore*100)), result.Confidence)
	assert.Equal(t, []string{"appleid", "verify", "com"}, result.DomainSegments)
	assert.Equal(t, []string{"account", "update"}, result.PathSegments)
}

func TestAnalyzeTrustedDomain(t *testing.T) {
	d := newTestDetector(t)

	result, err := d.Analyze("https://www.google.com/search?q=test")
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.Features.IsDomainTrusted)
	assert.Equal(t, 1.0, result.Features.QueryParamCount)
	assert.Equal(t, 1.0, result.Features.HasSubdomain)
	assert.InDelta(t, math.Max(0, result.BaseScore-0.4), result.PhishingScore, 1e-9)
	assert.False(t, result.IsPhishing)
}

func TestAnalyzeIPAddressOverHTTP(t *testing.T) {
	d := newTestDetector(t)

	result, err := d.Analyze("http://192.168.1.1/login/verify")
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.Features.HasIPAddress)
	assert.Equal(t, 1.0, result.Features.IsHTTP)
	assert.Equal(t, 1.0, result.Features.HasSuspiciousPath)
	assert.True(t, result.IsPhishing)

	without := result.Features
	without.HasIPAddress = 0
	withoutScore := ComposeScore(without, DefaultWeights(), false)
	assert.Greater(t, result.BaseScore, withoutScore, "ip bonuses should raise the score")
}

func TestAnalyzeBenignURL(t *testing.T) {
	d := newTestDetector(t)

	result := d.Check("https://example.org/docs/index.html")

	assert.Empty(t, result.Error)
	assert.False(t, result.IsPhishing)
	assert.Equal(t, 0.0, result.Features.HasSuspiciousKeywords)
	assert.Less(t, result.PhishingScore, DefaultThreshold)
}

func TestAnalyzePunycodeHomograph(t *testing.T) {
	d := newTestDetector(t)

	host, err := idna.ToASCII("аpple.com")
	require.NoError(t, err)
	require.Contains(t, host, "xn--")

	result, err := d.Analyze("https://" + host + "/signin")
	require.NoError(t, err)

	assert.Greater(t, result.Features.NonASCIICharCount, 0.0)
	assert.GreaterOrEqual(t, result.Features.BrandSimilarity, 0.9)
	assert.Equal(t, 0.0, result.Features.IsDomainTrusted)
	assert.True(t, result.IsPhishing)
}

func TestAnalyzeInvalidURL(t *testing.T) {
	d := newTestDetector(t)

	for _, raw := range []string{"", "not a url", "javascript:alert(1)", "http://", "://missing-scheme"} {
		t.Run(raw, func(t *testing.T) {
			_, err := d.Analyze(raw)
			assert.ErrorIs(t, err, ErrInvalidURL)

			result := d.Check(raw)
			assert.False(t, result.IsPhishing)
			assert.Equal(t, 0, result.Confidence)
			assert.NotEmpty(t, result.Error)
		})
	}
}

func TestFeatureExtraction(t *testing.T) {
	d := newTestDetector(t)

	result, err := d.Analyze("http://secure-login.example.tk/~user/a.php/x?a=1&b=%20&&c=3")
	require.NoError(t, err)
	f := result.Features

	assert.Equal(t, 1.0, f.TLDIsRisky)
	assert.Equal(t, 1.0, f.HasSubdomain)
	assert.Equal(t, 1.0, f.DomainHasDash)
	assert.Equal(t, 1.0, f.HasSuspiciousPath)
	assert.Equal(t, 1.0, f.HasSuspiciousKeywords)
	assert.Equal(t, 3.0, f.QueryParamCount)
	assert.Equal(t, 1.0, f.HexPatternCount)
	assert.Equal(t, 1.0, f.IsHTTP)
	assert.Equal(t, 0.0, f.HasIPAddress)
}

func TestThresholdBoundary(t *testing.T) {
	assert.False(t, Classify(0.6, 0.6))
	assert.True(t, Classify(0.6000001, 0.6))
	assert.False(t, Classify(0, 0))
}

func TestThresholdFromSensitivity(t *testing.T) {
	tests := []struct {
		sensitivity int
		want        float64
	}{
		{0, 0.7},
		{DefaultSensitivity, DefaultThreshold},
		{50, 0.5},
		{75, 0.4},
		{100, 0.4},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, ThresholdFromSensitivity(tt.sensitivity), 1e-9, "sensitivity %d", tt.sensitivity)
	}
}

func TestWithSensitivity(t *testing.T) {
	d := newTestDetector(t)

	strict, err := d.WithSensitivity(100)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, strict.Threshold(), 1e-9)
	assert.NotEqual(t, d.Version(), strict.Version())
	assert.InDelta(t, DefaultThreshold, d.Threshold(), 1e-9, "original detector is unchanged")

	_, err = d.WithSensitivity(101)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = d.WithThreshold(1.5)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestScoreMonotonicInIPAddress(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	weights := DefaultWeights()

	for i := 0; i < 500; i++ {
		f := randomFeatures(rng)
		brandPattern := rng.Intn(2) == 1

		before := ComposeScore(withIP(f, 0), weights, brandPattern)
		after := ComposeScore(withIP(f, 1), weights, brandPattern)

		assert.GreaterOrEqual(t, after, before)
		assert.LessOrEqual(t, after, 1.0)
	}
}

func TestTrustDominance(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 200; i++ {
		base := ComposeScore(randomFeatures(rng), DefaultWeights(), false)
		final := ApplyTrust(base, true)
		assert.LessOrEqual(t, final, math.Max(0, base-0.4)+1e-12)
		assert.GreaterOrEqual(t, final, 0.0)
		assert.Equal(t, base, ApplyTrust(base, false))
	}
}

func TestComposeScoreWithoutWeights(t *testing.T) {
	f := FeatureVector{HasIPAddress: 1, IsHTTP: 1, HasSuspiciousPath: 1}
	assert.Equal(t, 0.0, ComposeScore(f, nil, true))
	assert.Equal(t, 0.0, ComposeScore(f, map[string]float64{}, true))
}

func TestLoadTables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.yaml")
	content := `version: "test"
risky_tlds: [zz]
feature_weights:
  brandSimilarity: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tables, err := LoadTables(path)
	require.NoError(t, err)
	assert.Equal(t, "test", tables.Version)
	assert.Equal(t, []string{"zz"}, tables.RiskyTLDs)
	assert.Equal(t, 0.5, tables.FeatureWeights[FeatureBrandSimilarity])
	assert.Equal(t, 0.03, tables.FeatureWeights[FeatureURLLength])
	assert.NotEmpty(t, tables.TrustedDomains)

	d, err := NewDetector(Config{Tables: tables, Threshold: DefaultThreshold}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, d.Check("https://shop.example.zz/").Features.TLDIsRisky)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("feature_weights:\n  notAFeature: 1\n"), 0o644))
	_, err = LoadTables(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDefaultWeightsCoverFeatures(t *testing.T) {
	weights := DefaultWeights()
	sum := 0.0
	for name, w := range weights {
		assert.True(t, IsFeatureName(name), name)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.NotContains(t, weights, FeatureIsDomainTrusted)
	assert.NoError(t, DefaultTables().Validate())
}

func TestVersionIsStable(t *testing.T) {
	a := newTestDetector(t)
	b := newTestDetector(t)
	assert.Equal(t, a.Version(), b.Version())
	assert.Len(t, a.Version(), 16)
}

func withIP(f FeatureVector, v float64) FeatureVector {
	f.HasIPAddress = v
	return f
}

func randomFeatures(rng *rand.Rand) FeatureVector {
	bit := func() float64 { return float64(rng.Intn(2)) }
	return FeatureVector{
		URLLength:               float64(rng.Intn(200)),
		DomainLength:            float64(rng.Intn(80)),
		PathLength:              float64(rng.Intn(120)),
		SpecialCharCount:        float64(rng.Intn(30)),
		DigitCount:              float64(rng.Intn(30)),
		NonASCIICharCount:       float64(rng.Intn(4)),
		HexPatternCount:         float64(rng.Intn(6)),
		ConsecutiveSpecialChars: float64(rng.Intn(6)),
		HasSubdomain:            bit(),
		DomainHasDash:           bit(),
		QueryParamCount:         float64(rng.Intn(6)),
		TLDIsRisky:              bit(),
		IsHTTP:                  bit(),
		HasSuspiciousPath:       bit(),
		DomainEntropyScore:      rng.Float64() * 5,
		URLEntropyScore:         rng.Float64() * 6,
		DomainTokenCount:        float64(rng.Intn(8)),
		PathTokenCount:          float64(rng.Intn(12)),
		AvgTokenLength:          rng.Float64() * 12,
		TrigramSuspiciousness:   rng.Float64(),
		BrandSimilarity:         rng.Float64(),
		HasSuspiciousKeywords:   bit(),
	}
}

func TestAnalyzeHostsSharingWordsWithBrands(t *testing.T) {
	d := newTestDetector(t)

	for _, raw := range []string{
		"https://accounts.example.com/login",
		"https://house-rentals.com/account",
		"https://my-bank-portal.com/secure/login",
	} {
		t.Run(raw, func(t *testing.T) {
			result, err := d.Analyze(raw)
			require.NoError(t, err)
			assert.Equal(t, 0.0, result.Features.BrandSimilarity)
			assert.False(t, result.IsPhishing)
		})
	}
}

func TestAnalyzeASCIILookalikeHost(t *testing.T) {
	d := newTestDetector(t)

	result, err := d.Analyze("https://micr0s0ft.com/")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Features.BrandSimilarity, 0.95)
}

func TestRuleBonus(t *testing.T) {
	tests := []struct {
		name    string
		f       FeatureVector
		pattern bool
		want    float64
	}{
		{"nothing", FeatureVector{}, false, 0},
		{"strong brand", FeatureVector{BrandSimilarity: 0.6}, false, 0.15},
		{"brand at cut-off is weak", FeatureVector{BrandSimilarity: 0.5}, false, 0},
		{"brand with keywords", FeatureVector{BrandSimilarity: 0.6, HasSuspiciousKeywords: 1}, false, 0.35},
		{"brand with path and dash", FeatureVector{BrandSimilarity: 0.6, HasSuspiciousPath: 1, DomainHasDash: 1}, false, 0.4},
		{"very strong brand with keywords", FeatureVector{BrandSimilarity: 0.8, HasSuspiciousKeywords: 1}, false, 0.5},
		{"brand pattern", FeatureVector{}, true, 0.3},
		{"ip", FeatureVector{HasIPAddress: 1}, false, 0.1},
		{"ip over http", FeatureVector{HasIPAddress: 1, IsHTTP: 1}, false, 0.25},
		{"ip with path", FeatureVector{HasIPAddress: 1, HasSuspiciousPath: 1}, false, 0.3},
		{"ip over http with keywords", FeatureVector{HasIPAddress: 1, IsHTTP: 1, HasSuspiciousKeywords: 1}, false, 0.55},
		{"risky tld with keywords", FeatureVector{TLDIsRisky: 1, HasSuspiciousKeywords: 1}, false, 0.1},
		{"risky tld alone", FeatureVector{TLDIsRisky: 1}, false, 0},
		{"non-ascii brand", FeatureVector{NonASCIICharCount: 2, BrandSimilarity: 0.6}, false, 0.35},
		{"non-ascii without brand", FeatureVector{NonASCIICharCount: 2}, false, 0},
		{"suspicious trigrams with dash", FeatureVector{TrigramSuspiciousness: 0.4, DomainHasDash: 1}, false, 0.2},
		{"trigrams at cut-off", FeatureVector{TrigramSuspiciousness: 0.3, DomainHasDash: 1}, false, 0},
		{"http with path", FeatureVector{IsHTTP: 1, HasSuspiciousPath: 1}, false, 0.1},
		{"http alone", FeatureVector{IsHTTP: 1}, false, 0},
	}

	// the only weighted feature is zero, so the score is bonus / total weight
	weights := map[string]float64{FeatureHexPatternCount: 2}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ruleBonus(tt.f, tt.pattern), 1e-9)
			assert.InDelta(t, tt.want/2, ComposeScore(tt.f, weights, tt.pattern), 1e-9)
		})
	}
}

func TestMatchesBrandPattern(t *testing.T) {
	d := newTestDetector(t)

	tests := []struct {
		url  string
		want bool
	}{
		{"https://paypal-secure.tk/signin", true},
		{"https://paypal-secure.tk/about", false},
		{"https://www.paypal.com/webscr", false},
		{"https://example.com/signin", false},
		{"https://login.apple.com/verify", false},
		{"https://paypal.apple.com/signin", true},
		{"https://apple-help.net/x/id/y", true},
		{"http://192.168.1.1/login", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			p, err := parseURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.matchesBrandPattern(p))
		})
	}
}

func TestBrandPatternRaisesBaseScore(t *testing.T) {
	d := newTestDetector(t)

	result, err := d.Analyze("https://paypal.apple.com/signin")
	require.NoError(t, err)
	without := ComposeScore(result.Features, DefaultWeights(), false)

	assert.InDelta(t, math.Min(1, without+0.3), result.BaseScore, 1e-9)
}
