package navigation

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/raaihank/pasteshield/internal/phishing"
	"go.uber.org/zap"
)

// Mode selects how the guard reacts to phishing verdicts
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeWarn     Mode = "warn"
	ModeBlock    Mode = "block"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDisabled, ModeWarn, ModeBlock:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown navigation mode: %q", s)
}

// Action is the decision for one navigation
type Action string

const (
	ActionNone  Action = "none"
	ActionAllow Action = "allow"
	ActionWarn  Action = "warn"
	ActionBlock Action = "block"
)

// Reason explains why a navigation was not analyzed or how it was decided
type Reason string

const (
	ReasonDisabled      Reason = "disabled"
	ReasonSubframe      Reason = "subframe"
	ReasonInternal      Reason = "internal_scheme"
	ReasonWarningPage   Reason = "warning_page"
	ReasonWhitelisted   Reason = "whitelisted"
	ReasonAnalysisError Reason = "analysis_error"
	ReasonAnalyzed      Reason = "analyzed"
)

// DefaultWhitelistTTL is how long a user override lasts
const DefaultWhitelistTTL = 30 * time.Second

// MessageAllowPhishingURL is sent by the warning page when the user proceeds
const MessageAllowPhishingURL = "allowPhishingUrl"

// DefaultInternalSchemes are never analyzed
var DefaultInternalSchemes = []string{
	"chrome", "about", "chrome-extension", "moz-extension", "safari-web-extension", "edge",
}

// Navigation is a committed navigation reported by the browser
type Navigation struct {
	URL     string `json:"url"`
	TabID   int    `json:"tabId"`
	FrameID int    `json:"frameId"`
}

// Decision is the guard's answer for a navigation
type Decision struct {
	Action      Action           `json:"action"`
	Reason      Reason           `json:"reason"`
	URL         string           `json:"url"`
	TabID       int              `json:"tabId"`
	RedirectURL string           `json:"redirectUrl,omitempty"`
	Result      *phishing.Result `json:"result,omitempty"`
}

// Message is a request from the warning page or popup
type Message struct {
	Action string `json:"action"`
	URL    string `json:"url"`
}

// MessageResponse acknowledges a message
type MessageResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Analyzer scores a URL. Implementations must not fail: parse errors are
// reported through Result.Error.
type Analyzer interface {
	Analyze(ctx context.Context, rawURL string) phishing.Result
}

// AnalyzerFunc adapts a function to Analyzer
type AnalyzerFunc func(ctx context.Context, rawURL string) phishing.Result

// Analyze calls f
func (f AnalyzerFunc) Analyze(ctx context.Context, rawURL string) phishing.Result {
	return f(ctx, rawURL)
}

// DetectorAnalyzer analyzes with a fixed detector
func DetectorAnalyzer(d *phishing.Detector) Analyzer {
	return AnalyzerFunc(func(_ context.Context, rawURL string) phishing.Result {
		return d.Check(rawURL)
	})
}

// Config configures a Guard
type Config struct {
	Mode            Mode
	WarningPage     string
	WhitelistTTL    time.Duration
	InternalSchemes []string
}

// Option customizes a Guard
type Option func(*Guard)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// Guard sequences navigation checks: mode, frame, scheme and whitelist
// filters run before any analysis.
type Guard struct {
	mu        sync.Mutex
	mode      Mode
	whitelist map[string]time.Time

	warningPage string
	ttl         time.Duration
	internal    map[string]struct{}
	analyzer    Analyzer
	now         func() time.Time
	logger      *zap.Logger
}

// NewGuard creates a navigation guard
func NewGuard(cfg Config, analyzer Analyzer, logger *zap.Logger, opts ...Option) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeDisabled
	}
	if cfg.WhitelistTTL <= 0 {
		cfg.WhitelistTTL = DefaultWhitelistTTL
	}
	if cfg.InternalSchemes == nil {
		cfg.InternalSchemes = DefaultInternalSchemes
	}

	g := &Guard{
		mode:        cfg.Mode,
		whitelist:   make(map[string]time.Time),
		warningPage: cfg.WarningPage,
		ttl:         cfg.WhitelistTTL,
		internal:    make(map[string]struct{}, len(cfg.InternalSchemes)),
		analyzer:    analyzer,
		now:         time.Now,
		logger:      logger,
	}
	for _, s := range cfg.InternalSchemes {
		g.internal[strings.TrimSuffix(strings.ToLower(s), ":")] = struct{}{}
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Mode returns the current mode
func (g *Guard) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// SetMode switches mode. Leaving disabled starts listening immediately.
func (g *Guard) SetMode(mode Mode) {
	g.mu.Lock()
	prev := g.mode
	g.mode = mode
	g.mu.Unlock()

	if prev != mode {
		g.logger.Info("Navigation guard mode changed",
			zap.String("from", string(prev)),
			zap.String("to", string(mode)),
		)
	}
}

// HandleNavigation decides what to do with a committed navigation
func (g *Guard) HandleNavigation(ctx context.Context, nav Navigation) Decision {
	decision := Decision{Action: ActionAllow, URL: nav.URL, TabID: nav.TabID}

	g.mu.Lock()
	mode := g.mode
	analyzer := g.analyzer
	g.mu.Unlock()

	switch {
	case mode == ModeDisabled:
		decision.Action, decision.Reason = ActionNone, ReasonDisabled
		return decision
	case nav.FrameID != 0:
		decision.Action, decision.Reason = ActionNone, ReasonSubframe
		return decision
	case g.isInternal(nav.URL):
		decision.Reason = ReasonInternal
		return decision
	case g.isWarningPage(nav.URL):
		decision.Reason = ReasonWarningPage
		return decision
	case g.IsWhitelisted(nav.URL):
		decision.Reason = ReasonWhitelisted
		return decision
	}

	if analyzer == nil {
		decision.Action, decision.Reason = ActionNone, ReasonAnalysisError
		return decision
	}

	result := analyzer.Analyze(ctx, nav.URL)
	decision.Result = &result
	decision.Reason = ReasonAnalyzed

	if result.Error != "" {
		decision.Action, decision.Reason = ActionNone, ReasonAnalysisError
		return decision
	}
	if !result.IsPhishing {
		return decision
	}

	if mode == ModeBlock {
		decision.Action = ActionBlock
		decision.RedirectURL = BuildWarningURL(g.warningPage, nav.URL, result.Confidence)
	} else {
		decision.Action = ActionWarn
	}

	g.logger.Warn("Phishing navigation intercepted",
		zap.String("action", string(decision.Action)),
		zap.Int("tab_id", nav.TabID),
		zap.Int("confidence", result.Confidence),
	)

	return decision
}

// HandleMessage processes warning page messages
func (g *Guard) HandleMessage(msg Message) MessageResponse {
	switch msg.Action {
	case MessageAllowPhishingURL:
		if msg.URL == "" {
			return MessageResponse{Error: "url is required"}
		}
		g.AllowURL(msg.URL)
		return MessageResponse{Success: true}
	default:
		return MessageResponse{Error: fmt.Sprintf("unknown action: %s", msg.Action)}
	}
}

// AllowURL whitelists a URL for the configured TTL
func (g *Guard) AllowURL(rawURL string) {
	g.mu.Lock()
	g.whitelist[rawURL] = g.now().Add(g.ttl)
	g.mu.Unlock()

	g.logger.Info("URL temporarily allowed", zap.Duration("ttl", g.ttl))
}

// IsWhitelisted reports whether rawURL has an unexpired override. Expired
// entries are purged on every call.
func (g *Guard) IsWhitelisted(rawURL string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for u, expires := range g.whitelist {
		if !now.Before(expires) {
			delete(g.whitelist, u)
		}
	}

	_, ok := g.whitelist[rawURL]
	return ok
}

// WhitelistSize returns the number of live entries without purging
func (g *Guard) WhitelistSize() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.whitelist)
}

func (g *Guard) isInternal(rawURL string) bool {
	i := strings.Index(rawURL, ":")
	if i <= 0 {
		return false
	}
	_, ok := g.internal[strings.ToLower(rawURL[:i])]
	return ok
}

func (g *Guard) isWarningPage(rawURL string) bool {
	return g.warningPage != "" && strings.HasPrefix(rawURL, g.warningPage)
}

// BuildWarningURL returns the warning page URL carrying the blocked URL and
// its confidence
func BuildWarningURL(warningPage, blockedURL string, confidence int) string {
	sep := "?"
	if strings.Contains(warningPage, "?") {
		sep = "&"
	}
	return warningPage + sep + "url=" + url.QueryEscape(blockedURL) + "&risk=" + strconv.Itoa(confidence)
}

// ParseWarningURL extracts the blocked URL and confidence from a warning page URL
func ParseWarningURL(rawURL string) (string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("invalid warning url: %w", err)
	}

	q := u.Query()
	blocked := q.Get("url")
	if blocked == "" {
		return "", 0, fmt.Errorf("warning url has no url parameter")
	}

	risk := 0
	if r := q.Get("risk"); r != "" {
		risk, err = strconv.Atoi(r)
		if err != nil || risk < 0 || risk > 100 {
			return "", 0, fmt.Errorf("warning url has invalid risk %q", r)
		}
	}

	return blocked, risk, nil
}
