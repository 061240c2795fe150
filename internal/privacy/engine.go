package privacy

import (
	"sort"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
)

// CompiledPattern is a pattern ready for matching
type CompiledPattern struct {
	Name   string
	Regexp *regexp2.Regexp
}

// EngineConfig tunes the detection engine
type EngineConfig struct {
	// MatchTimeout bounds a single pattern evaluation; zero disables the bound
	MatchTimeout time.Duration
	// CacheSize caps the number of compiled patterns kept; zero uses
	// DefaultCompileCacheSize
	CacheSize int
}

// DefaultCompileCacheSize is the compile cache cap when none is configured
const DefaultCompileCacheSize = 512

// Engine evaluates text against pattern definitions. It holds no state
// besides a compile cache, so one Engine can serve concurrent callers
// with different pattern snapshots.
type Engine struct {
	config EngineConfig
	logger *zap.Logger

	mu       sync.RWMutex
	compiled map[string]*regexp2.Regexp
}

// NewEngine creates a detection engine
func NewEngine(cfg EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCompileCacheSize
	}
	return &Engine{
		config:   cfg,
		logger:   logger,
		compiled: make(map[string]*regexp2.Regexp),
	}
}

// compile returns a cached compiled pattern, compiling on first use
func (e *Engine) compile(pattern string) (*regexp2.Regexp, error) {
	e.mu.RLock()
	re, ok := e.compiled[pattern]
	e.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := CompilePattern(pattern, e.config.MatchTimeout)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if _, ok := e.compiled[pattern]; !ok && len(e.compiled) >= e.config.CacheSize {
		// edited and deleted patterns would otherwise pin their programs forever
		e.compiled = make(map[string]*regexp2.Regexp, e.config.CacheSize)
	}
	e.compiled[pattern] = re
	e.mu.Unlock()

	return re, nil
}

// Purge drops every cached compiled pattern
func (e *Engine) Purge() {
	e.mu.Lock()
	e.compiled = make(map[string]*regexp2.Regexp, e.config.CacheSize)
	e.mu.Unlock()
}

// CachedPatterns reports how many compiled patterns are cached
func (e *Engine) CachedPatterns() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// CompileAll compiles the enabled patterns in evaluation order. Patterns that
// fail to compile are skipped and reported.
func (e *Engine) CompileAll(patterns []PatternDefinition) ([]CompiledPattern, []PatternError) {
	var (
		compiled []CompiledPattern
		errs     []PatternError
	)

	for _, def := range OrderPatterns(patterns) {
		if !def.Enabled {
			continue
		}

		re, err := e.compile(def.Pattern)
		if err != nil {
			e.logger.Warn("Skipping pattern that failed to compile",
				zap.String("pattern", def.Name),
				zap.Error(err),
			)
			errs = append(errs, newPatternError(def, err))
			continue
		}

		compiled = append(compiled, CompiledPattern{Name: def.Name, Regexp: re})
	}

	return compiled, errs
}

// Detect finds non-overlapping matches of the enabled patterns in text
func (e *Engine) Detect(text string, patterns []PatternDefinition) DetectionResult {
	compiled, errs := e.CompileAll(patterns)
	spans, matchErrs := e.Spans(text, compiled)

	result := DetectionResult{
		MatchesByPattern: make(map[string][]string),
		PatternOrder:     []string{},
		Spans:            spans,
		Errors:           append(errs, matchErrs...),
	}

	for _, span := range spans {
		if _, seen := result.MatchesByPattern[span.PatternName]; !seen {
			result.PatternOrder = append(result.PatternOrder, span.PatternName)
		}
		result.MatchesByPattern[span.PatternName] = append(result.MatchesByPattern[span.PatternName], span.MatchedText)
	}

	if len(spans) > 0 {
		e.logger.Debug("Sensitive data detected",
			zap.Strings("patterns", result.PatternOrder),
			zap.Int("matches", len(spans)),
		)
	}

	return result
}

// Spans runs the compiled patterns in order and keeps every match that does
// not overlap a previously accepted one. Spans are returned in discovery order.
func (e *Engine) Spans(text string, compiled []CompiledPattern) ([]MatchSpan, []PatternError) {
	var (
		accepted []MatchSpan
		errs     []PatternError
	)
	if text == "" {
		return accepted, nil
	}

	offsets := runeOffsets(text)

	for _, cp := range compiled {
		m, err := cp.Regexp.FindStringMatch(text)
		for err == nil && m != nil {
			if m.Length > 0 {
				start, end := offsets[m.Index], offsets[m.Index+m.Length]
				span := MatchSpan{
					Start:       start,
					End:         end,
					PatternName: cp.Name,
					MatchedText: text[start:end],
				}
				if !overlapsAny(accepted, span) {
					accepted = append(accepted, span)
				}
			}
			m, err = cp.Regexp.FindNextMatch(m)
		}

		if err != nil {
			// A timed-out pattern keeps the spans it already produced
			e.logger.Warn("Pattern evaluation aborted",
				zap.String("pattern", cp.Name),
				zap.Error(err),
			)
			errs = append(errs, newPatternError(PatternDefinition{Name: cp.Name}, err))
		}
	}

	return accepted, errs
}

// Highlight partitions text into plain and tagged segments using the same
// overlap rules as Detect
func (e *Engine) Highlight(text string, compiled []CompiledPattern) []Segment {
	spans, _ := e.Spans(text, compiled)
	return Partition(text, spans)
}

// HighlightPatterns compiles the enabled definitions and highlights text
func (e *Engine) HighlightPatterns(text string, patterns []PatternDefinition) []Segment {
	compiled, _ := e.CompileAll(patterns)
	return e.Highlight(text, compiled)
}

// Partition splits text around non-overlapping spans
func Partition(text string, spans []MatchSpan) []Segment {
	ordered := make([]MatchSpan, len(spans))
	copy(ordered, spans)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	segments := make([]Segment, 0, len(ordered)*2+1)
	cursor := 0
	for _, span := range ordered {
		if span.Start > cursor {
			segments = append(segments, Segment{Text: text[cursor:span.Start]})
		}
		segments = append(segments, Segment{
			Text:        text[span.Start:span.End],
			Tagged:      true,
			PatternName: span.PatternName,
		})
		cursor = span.End
	}
	if cursor < len(text) {
		segments = append(segments, Segment{Text: text[cursor:]})
	}

	return segments
}

// OrderPatterns returns the definitions sorted by Priority, preserving list
// order among equal priorities
func OrderPatterns(patterns []PatternDefinition) []PatternDefinition {
	ordered := make([]PatternDefinition, len(patterns))
	copy(ordered, patterns)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})
	return ordered
}

func overlapsAny(accepted []MatchSpan, candidate MatchSpan) bool {
	for _, span := range accepted {
		if span.Overlaps(candidate) {
			return true
		}
	}
	return false
}

// runeOffsets maps rune indexes (as reported by regexp2) to byte offsets.
// The final entry is len(text) so exclusive ends resolve.
func runeOffsets(text string) []int {
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	return append(offsets, len(text))
}
