package privacy

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// delimited matches the /source/flags form used by browser-side pattern configs
var delimited = regexp.MustCompile(`^/(.+)/([a-zA-Z]*)$`)

// splitDelimited separates inline /source/flags syntax. Sources without
// delimiters are returned unchanged with no flags.
func splitDelimited(pattern string) (source, flags string) {
	if m := delimited.FindStringSubmatch(pattern); m != nil {
		return m[1], m[2]
	}
	return pattern, ""
}

// optionsForFlags maps browser regex flags onto regexp2 options. The global
// flag is implied: every compiled pattern is matched exhaustively.
func optionsForFlags(flags string) (regexp2.RegexOptions, error) {
	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	dotAll := false

	for _, f := range flags {
		switch f {
		case 'g', 'd', 'u', 'v':
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			dotAll = true
		default:
			return 0, fmt.Errorf("unsupported regex flag %q", f)
		}
	}

	// ECMAScript mode only combines with IgnoreCase and Multiline
	if dotAll {
		opts = (opts &^ regexp2.ECMAScript) | regexp2.Singleline
	}

	return opts, nil
}

// CompilePattern compiles a pattern source, normalising delimiter syntax.
// A non-positive timeout leaves matching unbounded.
func CompilePattern(pattern string, timeout time.Duration) (*regexp2.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}

	source, flags := splitDelimited(pattern)
	opts, err := optionsForFlags(flags)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	re, err := regexp2.Compile(source, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	if timeout > 0 {
		re.MatchTimeout = timeout
	}

	return re, nil
}

// ValidatePattern checks a definition before it is accepted into a configuration
func ValidatePattern(def PatternDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPattern)
	}
	if _, err := CompilePattern(def.Pattern, 0); err != nil {
		return fmt.Errorf("pattern %q: %w", def.Name, err)
	}
	return nil
}
