package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raaihank/pasteshield/internal/navigation"
	"github.com/raaihank/pasteshield/internal/phishing"
	"github.com/raaihank/pasteshield/internal/privacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := GetDefaults()
	require.NoError(t, validateConfig(cfg))
	assert.Equal(t, phishing.DefaultThreshold, cfg.Phishing.EffectiveThreshold())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Address())
	assert.Len(t, cfg.Privacy.Patterns, len(privacy.DefaultPatterns()))
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9191
privacy:
  mode: redact-and-paste
  match_timeout: 100ms
  patterns:
    - id: ticket
      name: Ticket
      pattern: "TCK-\\d+"
      enabled: true
      priority: 5
phishing:
  mode: warn
  sensitivity: 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "untouched keys keep defaults")
	assert.Equal(t, string(privacy.ModeRedactAndPaste), cfg.Privacy.Mode)
	assert.Equal(t, 100*time.Millisecond, cfg.Privacy.MatchTimeout)
	require.Len(t, cfg.Privacy.Patterns, 1, "a configured list replaces the defaults")
	assert.Equal(t, "ticket", cfg.Privacy.Patterns[0].ID)
	assert.Equal(t, 5, cfg.Privacy.Patterns[0].Priority)
	assert.InDelta(t, 0.5, cfg.Phishing.EffectiveThreshold(), 1e-9)
	assert.Equal(t, navigation.ModeWarn, cfg.Phishing.GuardConfig().Mode)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("PASTESHIELD_SERVER_PORT", "9292")
	t.Setenv("PASTESHIELD_LOGGING_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "logging:\n  format: console\n"))
	require.NoError(t, err)

	assert.Equal(t, 9292, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"port", "server:\n  port: 70000\n"},
		{"log level", "logging:\n  level: loud\n"},
		{"privacy mode", "privacy:\n  mode: shred\n"},
		{"phishing mode", "phishing:\n  mode: panic\n"},
		{"sensitivity", "phishing:\n  sensitivity: 101\n"},
		{"threshold", "phishing:\n  threshold: 1.5\n"},
		{"store driver", "store:\n  enabled: true\n  driver: oracle\n"},
		{"rate limit", "rate_limit:\n  enabled: true\n  burst: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestGuardConfigDisabledWhenPhishingOff(t *testing.T) {
	cfg := GetDefaults()
	cfg.Phishing.Enabled = false
	assert.Equal(t, navigation.ModeDisabled, cfg.Phishing.GuardConfig().Mode)
}

func TestDetectorConfig(t *testing.T) {
	dir := t.TempDir()
	tablesPath := filepath.Join(dir, "tables.yaml")
	require.NoError(t, os.WriteFile(tablesPath, []byte("trusted_domains: [corp.example]\n"), 0o644))

	cfg := GetDefaults().Phishing
	cfg.TablesFile = tablesPath
	cfg.TrustedDomains = []string{"intranet.example"}

	dc, err := cfg.DetectorConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"corp.example", "intranet.example"}, dc.Tables.TrustedDomains)

	d, err := phishing.NewDetector(dc, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, d.Check("https://wiki.intranet.example/").Features.IsDomainTrusted)

	cfg.TablesFile = filepath.Join(dir, "missing.yaml")
	_, err = cfg.DetectorConfig()
	assert.Error(t, err)
}

func TestLoadPatternsPrefersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`version: "1"
patterns:
  - id: badge
    name: Badge
    pattern: "B-\\d{6}"
    enabled: true
`), 0o644))

	cfg := GetDefaults().Privacy
	patterns, err := cfg.LoadPatterns()
	require.NoError(t, err)
	assert.Len(t, patterns, len(privacy.DefaultPatterns()))

	cfg.PatternsFile = path
	patterns, err = cfg.LoadPatterns()
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "Badge", patterns[0].Name)
}
