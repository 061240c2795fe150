package privacy

import "errors"

// DefaultSample is substituted for a match when its pattern has no sample data
const DefaultSample = "REDACTED"

var (
	// ErrPatternNotFound is returned when a registry edit names an unknown pattern
	ErrPatternNotFound = errors.New("pattern not found")
	// ErrPatternProtected is returned when deleting a global default pattern
	ErrPatternProtected = errors.New("pattern is a global default and cannot be deleted")
	// ErrInvalidPattern is returned when a pattern definition fails validation
	ErrInvalidPattern = errors.New("invalid pattern")
)

// PatternDefinition is a named, user-configurable detection rule.
//
// Pattern holds a regular expression source. It may use the /source/flags
// delimiter syntax, in which case the flags are honoured and the pattern is
// always matched globally.
//
// Priority makes the overlap tie-break explicit: patterns are evaluated in
// ascending Priority order, and equal priorities keep their list order.
type PatternDefinition struct {
	ID         string `yaml:"id" json:"id" mapstructure:"id"`
	Name       string `yaml:"name" json:"name" mapstructure:"name"`
	Pattern    string `yaml:"pattern" json:"pattern" mapstructure:"pattern"`
	Enabled    bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	IsDefault  bool   `yaml:"is_default" json:"isDefault" mapstructure:"is_default"`
	SampleData string `yaml:"sample_data" json:"sampleData" mapstructure:"sample_data"`
	IsGlobal   bool   `yaml:"is_global" json:"isGlobal" mapstructure:"is_global"`
	Priority   int    `yaml:"priority" json:"priority" mapstructure:"priority"`
}

// CanDelete reports whether the pattern may be removed from a registry
func (p PatternDefinition) CanDelete() bool {
	return !p.IsGlobal || !p.IsDefault
}

// Sample returns the replacement used when redacting this pattern's matches
func (p PatternDefinition) Sample() string {
	if p.SampleData == "" {
		return DefaultSample
	}
	return p.SampleData
}

// MatchSpan is one accepted match. End is exclusive; offsets are byte offsets into the scanned text.
type MatchSpan struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	PatternName string `json:"patternName"`
	MatchedText string `json:"matchedText"`
}

// Overlaps reports whether two spans share at least one byte
func (s MatchSpan) Overlaps(other MatchSpan) bool {
	return !(s.End <= other.Start || s.Start >= other.End)
}

// PatternError records a pattern that could not be compiled or evaluated.
// It is reported through DetectionResult and never aborts a detection pass.
type PatternError struct {
	PatternID   string `json:"patternId,omitempty"`
	PatternName string `json:"patternName"`
	Reason      string `json:"reason"`
	err         error
}

func newPatternError(def PatternDefinition, err error) PatternError {
	return PatternError{
		PatternID:   def.ID,
		PatternName: def.Name,
		Reason:      err.Error(),
		err:         err,
	}
}

func (e PatternError) Error() string {
	return "pattern " + e.PatternName + ": " + e.Reason
}

func (e PatternError) Unwrap() error {
	return e.err
}

// DetectionResult is the outcome of one detection pass over a text
type DetectionResult struct {
	// MatchesByPattern maps pattern name to its matched substrings in discovery order
	MatchesByPattern map[string][]string `json:"matchesByPattern"`
	// PatternOrder lists the names in MatchesByPattern in evaluation order
	PatternOrder []string       `json:"patternOrder"`
	Spans        []MatchSpan    `json:"spans"`
	Errors       []PatternError `json:"errors,omitempty"`
}

// HasMatches reports whether any pattern matched
func (r DetectionResult) HasMatches() bool {
	return len(r.Spans) > 0
}

// TotalMatches returns the number of accepted spans
func (r DetectionResult) TotalMatches() int {
	return len(r.Spans)
}

// Counts returns the number of matches per pattern name
func (r DetectionResult) Counts() map[string]int {
	counts := make(map[string]int, len(r.MatchesByPattern))
	for name, matches := range r.MatchesByPattern {
		counts[name] = len(matches)
	}
	return counts
}

// Segment is one piece of a highlighted text partition
type Segment struct {
	Text        string `json:"text"`
	Tagged      bool   `json:"tagged"`
	PatternName string `json:"patternName,omitempty"`
}
