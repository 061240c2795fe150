package privacy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(DefaultPatterns(), zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestRegistryDeleteProtectsGlobalDefaults(t *testing.T) {
	r := newTestRegistry(t)

	err := r.Delete(PatternEmail)
	assert.ErrorIs(t, err, ErrPatternProtected)

	_, err = r.Get(PatternEmail)
	assert.NoError(t, err)
}

func TestRegistryDeleteRules(t *testing.T) {
	tests := []struct {
		name      string
		isDefault bool
		isGlobal  bool
		deletable bool
	}{
		{"custom", false, false, true},
		{"default not global", true, false, true},
		{"global not default", false, true, true},
		{"global default", true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRegistry([]PatternDefinition{{
				ID: "p", Name: "P", Pattern: `x`, IsDefault: tt.isDefault, IsGlobal: tt.isGlobal,
			}}, nil)
			require.NoError(t, err)

			err = r.Delete("p")
			if tt.deletable {
				assert.NoError(t, err)
				assert.Empty(t, r.List())
			} else {
				assert.ErrorIs(t, err, ErrPatternProtected)
			}
		})
	}
}

func TestRegistryAddToggleUpdate(t *testing.T) {
	r := newTestRegistry(t)
	before := len(r.List())

	added, err := r.Add(PatternDefinition{Name: "Employee ID", Pattern: `EMP-\d{6}`, Enabled: true, Priority: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Len(t, r.List(), before+1)
	assert.Equal(t, "Employee ID", r.List()[0].Name, "lowest priority is evaluated first")

	toggled, err := r.Toggle(added.ID, false)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)

	added.Pattern = `EMP-\d{8}`
	added.IsDefault = true
	updated, err := r.Update(added)
	require.NoError(t, err)
	assert.Equal(t, `EMP-\d{8}`, updated.Pattern)
	assert.False(t, updated.IsDefault, "update cannot promote a pattern to default")

	require.NoError(t, r.Delete(added.ID))
	assert.Len(t, r.List(), before)
}

func TestRegistryErrors(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Add(PatternDefinition{Name: "Bad", Pattern: `(`})
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = r.Add(PatternDefinition{Pattern: `x`})
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = r.Add(PatternDefinition{ID: PatternEmail, Name: "Dup", Pattern: `x`})
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = r.Toggle("missing", true)
	assert.ErrorIs(t, err, ErrPatternNotFound)

	_, err = r.Update(PatternDefinition{ID: "missing", Name: "M", Pattern: `x`})
	assert.ErrorIs(t, err, ErrPatternNotFound)

	assert.ErrorIs(t, r.Delete("missing"), ErrPatternNotFound)
}

func TestRegistryListIsACopy(t *testing.T) {
	r := newTestRegistry(t)

	list := r.List()
	list[0].Enabled = !list[0].Enabled

	assert.NotEqual(t, list[0].Enabled, r.List()[0].Enabled)
}

func TestRegistrySamples(t *testing.T) {
	r, err := NewRegistry([]PatternDefinition{
		{ID: "a", Name: "A", Pattern: `a`, SampleData: "[A]"},
		{ID: "b", Name: "B", Pattern: `b`},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"A": "[A]", "B": DefaultSample}, r.Samples())
}

func TestLoadPatternPack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pack.yaml")
	content := `version: "1"
patterns:
  - id: employee
    name: Employee ID
    pattern: 'EMP-\d{6}'
    enabled: true
    sample_data: EMP-XXXXXX
    priority: 5
  - id: project
    name: Project Code
    pattern: '/proj-[a-z]+/i'
    enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	patterns, err := LoadPatternPack(path)
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	assert.Equal(t, "Employee ID", patterns[0].Name)
	assert.Equal(t, "EMP-XXXXXX", patterns[0].SampleData)
	assert.Equal(t, 5, patterns[0].Priority)
	assert.False(t, patterns[1].Enabled)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("patterns:\n  - name: Bad\n    pattern: '('\n"), 0o644))
	_, err = LoadPatternPack(bad)
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = LoadPatternPack(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
