package phishing

// Feature names as they appear in weight tables and JSON output
const (
	FeatureURLLength               = "urlLength"
	FeatureDomainLength            = "domainLength"
	FeaturePathLength              = "pathLength"
	FeatureSpecialCharCount        = "specialCharCount"
	FeatureDigitCount              = "digitCount"
	FeatureNonASCIICharCount       = "nonAsciiCharCount"
	FeatureHexPatternCount         = "hexPatternCount"
	FeatureConsecutiveSpecialChars = "consecutiveSpecialChars"
	FeatureHasSubdomain            = "hasSubdomain"
	FeatureDomainHasDash           = "domainHasDash"
	FeatureQueryParamCount         = "queryParamCount"
	FeatureTLDIsRisky              = "tldIsRisky"
	FeatureHasIPAddress            = "hasIPAddress"
	FeatureIsHTTP                  = "isHttp"
	FeatureHasSuspiciousPath       = "hasSuspiciousPath"
	FeatureDomainEntropyScore      = "domainEntropyScore"
	FeatureURLEntropyScore         = "urlEntropyScore"
	FeatureDomainTokenCount        = "domainTokenCount"
	FeaturePathTokenCount          = "pathTokenCount"
	FeatureAvgTokenLength          = "avgTokenLength"
	FeatureTrigramSuspiciousness   = "trigramSuspiciousness"
	FeatureBrandSimilarity         = "brandSimilarity"
	FeatureIsDomainTrusted         = "isDomainTrusted"
	FeatureHasSuspiciousKeywords   = "hasSuspiciousKeywords"
)

// FeatureNames lists every feature in vector order
var FeatureNames = []string{
	FeatureURLLength,
	FeatureDomainLength,
	FeaturePathLength,
	FeatureSpecialCharCount,
	FeatureDigitCount,
	FeatureNonASCIICharCount,
	FeatureHexPatternCount,
	FeatureConsecutiveSpecialChars,
	FeatureHasSubdomain,
	FeatureDomainHasDash,
	FeatureQueryParamCount,
	FeatureTLDIsRisky,
	FeatureHasIPAddress,
	FeatureIsHTTP,
	FeatureHasSuspiciousPath,
	FeatureDomainEntropyScore,
	FeatureURLEntropyScore,
	FeatureDomainTokenCount,
	FeaturePathTokenCount,
	FeatureAvgTokenLength,
	FeatureTrigramSuspiciousness,
	FeatureBrandSimilarity,
	FeatureIsDomainTrusted,
	FeatureHasSuspiciousKeywords,
}

// featureScales divides raw counts and lengths into [0,1]. Features without
// a scale are already ratios or indicators.
var featureScales = map[string]float64{
	FeatureURLLength:               100,
	FeatureDomainLength:            50,
	FeaturePathLength:              100,
	FeatureSpecialCharCount:        20,
	FeatureDigitCount:              20,
	FeatureNonASCIICharCount:       5,
	FeatureHexPatternCount:         5,
	FeatureConsecutiveSpecialChars: 5,
	FeatureQueryParamCount:         5,
	FeatureDomainEntropyScore:      5,
	FeatureURLEntropyScore:         6,
	FeatureDomainTokenCount:        6,
	FeaturePathTokenCount:          10,
	FeatureAvgTokenLength:          10,
}

// FeatureVector is the fixed set of lexical and structural features extracted
// from one URL. Indicator features are 0 or 1.
type FeatureVector struct {
	URLLength               float64 `json:"urlLength"`
	DomainLength            float64 `json:"domainLength"`
	PathLength              float64 `json:"pathLength"`
	SpecialCharCount        float64 `json:"specialCharCount"`
	DigitCount              float64 `json:"digitCount"`
	NonASCIICharCount       float64 `json:"nonAsciiCharCount"`
	HexPatternCount         float64 `json:"hexPatternCount"`
	ConsecutiveSpecialChars float64 `json:"consecutiveSpecialChars"`
	HasSubdomain            float64 `json:"hasSubdomain"`
	DomainHasDash           float64 `json:"domainHasDash"`
	QueryParamCount         float64 `json:"queryParamCount"`
	TLDIsRisky              float64 `json:"tldIsRisky"`
	HasIPAddress            float64 `json:"hasIPAddress"`
	IsHTTP                  float64 `json:"isHttp"`
	HasSuspiciousPath       float64 `json:"hasSuspiciousPath"`
	DomainEntropyScore      float64 `json:"domainEntropyScore"`
	URLEntropyScore         float64 `json:"urlEntropyScore"`
	DomainTokenCount        float64 `json:"domainTokenCount"`
	PathTokenCount          float64 `json:"pathTokenCount"`
	AvgTokenLength          float64 `json:"avgTokenLength"`
	TrigramSuspiciousness   float64 `json:"trigramSuspiciousness"`
	BrandSimilarity         float64 `json:"brandSimilarity"`
	IsDomainTrusted         float64 `json:"isDomainTrusted"`
	HasSuspiciousKeywords   float64 `json:"hasSuspiciousKeywords"`
}

// Value returns a feature by name
func (f FeatureVector) Value(name string) (float64, bool) {
	switch name {
	case FeatureURLLength:
		return f.URLLength, true
	case FeatureDomainLength:
		return f.DomainLength, true
	case FeaturePathLength:
		return f.PathLength, true
	case FeatureSpecialCharCount:
		return f.SpecialCharCount, true
	case FeatureDigitCount:
		return f.DigitCount, true
	case FeatureNonASCIICharCount:
		return f.NonASCIICharCount, true
	case FeatureHexPatternCount:
		return f.HexPatternCount, true
	case FeatureConsecutiveSpecialChars:
		return f.ConsecutiveSpecialChars, true
	case FeatureHasSubdomain:
		return f.HasSubdomain, true
	case FeatureDomainHasDash:
		return f.DomainHasDash, true
	case FeatureQueryParamCount:
		return f.QueryParamCount, true
	case FeatureTLDIsRisky:
		return f.TLDIsRisky, true
	case FeatureHasIPAddress:
		return f.HasIPAddress, true
	case FeatureIsHTTP:
		return f.IsHTTP, true
	case FeatureHasSuspiciousPath:
		return f.HasSuspiciousPath, true
	case FeatureDomainEntropyScore:
		return f.DomainEntropyScore, true
	case FeatureURLEntropyScore:
		return f.URLEntropyScore, true
	case FeatureDomainTokenCount:
		return f.DomainTokenCount, true
	case FeaturePathTokenCount:
		return f.PathTokenCount, true
	case FeatureAvgTokenLength:
		return f.AvgTokenLength, true
	case FeatureTrigramSuspiciousness:
		return f.TrigramSuspiciousness, true
	case FeatureBrandSimilarity:
		return f.BrandSimilarity, true
	case FeatureIsDomainTrusted:
		return f.IsDomainTrusted, true
	case FeatureHasSuspiciousKeywords:
		return f.HasSuspiciousKeywords, true
	}
	return 0, false
}

// Map returns the features keyed by name
func (f FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, len(FeatureNames))
	for _, name := range FeatureNames {
		m[name], _ = f.Value(name)
	}
	return m
}

// IsFeatureName reports whether name is a known feature
func IsFeatureName(name string) bool {
	_, ok := FeatureVector{}.Value(name)
	return ok
}

// Normalize maps a raw feature value into [0,1] using its scale
func Normalize(name string, value float64) float64 {
	if scale, ok := featureScales[name]; ok && scale > 0 {
		value /= scale
	}
	return clamp(value, 0, 1)
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
