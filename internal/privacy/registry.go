package privacy

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Registry is the ordered, editable set of pattern definitions.
// Readers receive copies, so a snapshot taken for a detection pass is
// never mutated by a concurrent edit.
type Registry struct {
	mu       sync.RWMutex
	patterns []PatternDefinition
	logger   *zap.Logger
}

// NewRegistry creates a registry seeded with the given patterns
func NewRegistry(patterns []PatternDefinition, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{logger: logger}
	if err := r.Replace(patterns); err != nil {
		return nil, err
	}

	logger.Info("Pattern registry initialized",
		zap.Int("total_patterns", len(r.patterns)),
		zap.Int("enabled_patterns", r.countEnabled()),
	)

	return r, nil
}

// List returns the patterns in evaluation order
func (r *Registry) List() []PatternDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return OrderPatterns(r.patterns)
}

// Get returns the pattern with the given ID
func (r *Registry) Get(id string) (PatternDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(id); i >= 0 {
		return r.patterns[i], nil
	}
	return PatternDefinition{}, fmt.Errorf("%w: %s", ErrPatternNotFound, id)
}

// Add validates and appends a pattern. A missing ID is generated.
func (r *Registry) Add(def PatternDefinition) (PatternDefinition, error) {
	if err := ValidatePattern(def); err != nil {
		return PatternDefinition{}, err
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(def.ID) >= 0 {
		return PatternDefinition{}, fmt.Errorf("%w: duplicate id %s", ErrInvalidPattern, def.ID)
	}
	r.patterns = append(r.patterns, def)

	r.logger.Info("Pattern added", zap.String("pattern", def.Name), zap.String("id", def.ID))
	return def, nil
}

// Update replaces an existing pattern, keeping its default/global flags
func (r *Registry) Update(def PatternDefinition) (PatternDefinition, error) {
	if err := ValidatePattern(def); err != nil {
		return PatternDefinition{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(def.ID)
	if i < 0 {
		return PatternDefinition{}, fmt.Errorf("%w: %s", ErrPatternNotFound, def.ID)
	}
	def.IsDefault = r.patterns[i].IsDefault
	def.IsGlobal = r.patterns[i].IsGlobal
	r.patterns[i] = def

	r.logger.Info("Pattern updated", zap.String("pattern", def.Name), zap.String("id", def.ID))
	return def, nil
}

// Toggle enables or disables a pattern
func (r *Registry) Toggle(id string, enabled bool) (PatternDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return PatternDefinition{}, fmt.Errorf("%w: %s", ErrPatternNotFound, id)
	}
	r.patterns[i].Enabled = enabled

	r.logger.Info("Pattern toggled",
		zap.String("pattern", r.patterns[i].Name),
		zap.Bool("enabled", enabled),
	)
	return r.patterns[i], nil
}

// Delete removes a pattern. Global default patterns are protected.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrPatternNotFound, id)
	}
	if !r.patterns[i].CanDelete() {
		return fmt.Errorf("%w: %s", ErrPatternProtected, r.patterns[i].Name)
	}

	name := r.patterns[i].Name
	r.patterns = append(r.patterns[:i], r.patterns[i+1:]...)

	r.logger.Info("Pattern deleted", zap.String("pattern", name), zap.String("id", id))
	return nil
}

// Replace swaps the whole pattern set. Invalid patterns are kept but reported
// through detection results, matching how a persisted configuration behaves.
func (r *Registry) Replace(patterns []PatternDefinition) error {
	next := make([]PatternDefinition, 0, len(patterns))
	seen := make(map[string]bool, len(patterns))

	for _, p := range patterns {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidPattern, p.ID)
		}
		seen[p.ID] = true
		if err := ValidatePattern(p); err != nil {
			r.logger.Warn("Configured pattern is invalid", zap.String("pattern", p.Name), zap.Error(err))
		}
		next = append(next, p)
	}

	r.mu.Lock()
	r.patterns = next
	r.mu.Unlock()

	return nil
}

// Samples maps pattern names to their redaction samples
func (r *Registry) Samples() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return SamplesFor(r.patterns)
}

func (r *Registry) indexOf(id string) int {
	for i, p := range r.patterns {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) countEnabled() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, p := range r.patterns {
		if p.Enabled {
			count++
		}
	}
	return count
}

// PatternPack is the on-disk format for shareable pattern sets
type PatternPack struct {
	Version  string              `yaml:"version"`
	Patterns []PatternDefinition `yaml:"patterns"`
}

// LoadPatternPack reads a YAML pattern pack from disk
func LoadPatternPack(path string) ([]PatternDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern pack: %w", err)
	}

	var pack PatternPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse pattern pack %s: %w", path, err)
	}

	for _, p := range pack.Patterns {
		if err := ValidatePattern(p); err != nil {
			return nil, fmt.Errorf("pattern pack %s: %w", path, err)
		}
	}

	return pack.Patterns, nil
}
