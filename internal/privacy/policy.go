package privacy

import (
	"fmt"
	"path"
	"strings"
)

// Mode is the configured reaction to sensitive data
type Mode string

const (
	ModeInteractive    Mode = "interactive"
	ModeBlockAndAlert  Mode = "block-and-alert"
	ModeAlertOnly      Mode = "alert-only"
	ModeSilentBlock    Mode = "silent-block"
	ModeRedactAndPaste Mode = "redact-and-paste"
	ModeWarnOnly       Mode = "warn-only"
	ModeDisabled       Mode = "disabled"
)

// Modes lists every valid mode
var Modes = []Mode{
	ModeInteractive,
	ModeBlockAndAlert,
	ModeAlertOnly,
	ModeSilentBlock,
	ModeRedactAndPaste,
	ModeWarnOnly,
	ModeDisabled,
}

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown privacy mode: %q", s)
}

// Action is what the client should do with the intercepted paste or upload
type Action string

const (
	ActionAllow  Action = "allow"
	ActionBlock  Action = "block"
	ActionPrompt Action = "prompt"
	ActionRedact Action = "redact"
)

// Notify is how the client should inform the user
type Notify string

const (
	NotifyNone    Notify = "none"
	NotifyAlert   Notify = "alert"
	NotifyWarning Notify = "warning"
)

// Decision is the policy outcome for one intercepted event
type Decision struct {
	Action Action         `json:"action"`
	Notify Notify         `json:"notify"`
	Text   string         `json:"text,omitempty"`
	Counts map[string]int `json:"counts,omitempty"`
}

// DecidePaste applies the mode to a detection result. Without matches the
// paste is always allowed. Redaction uses the supplied samples.
func DecidePaste(mode Mode, text string, result DetectionResult, samples map[string]string) Decision {
	if mode == ModeDisabled || !result.HasMatches() {
		return Decision{Action: ActionAllow, Notify: NotifyNone}
	}

	d := Decision{Counts: result.Counts()}
	switch mode {
	case ModeInteractive:
		d.Action, d.Notify = ActionPrompt, NotifyAlert
	case ModeBlockAndAlert:
		d.Action, d.Notify = ActionBlock, NotifyAlert
	case ModeAlertOnly:
		d.Action, d.Notify = ActionAllow, NotifyAlert
	case ModeSilentBlock:
		d.Action, d.Notify = ActionBlock, NotifyNone
	case ModeRedactAndPaste:
		d.Action, d.Notify = ActionRedact, NotifyWarning
		d.Text = Redact(text, result.MatchesByPattern, samples)
	case ModeWarnOnly:
		d.Action, d.Notify = ActionAllow, NotifyWarning
	default:
		// unknown modes fail open
		d.Action, d.Notify = ActionAllow, NotifyNone
	}

	return d
}

// IsBlocked reports whether the filename's extension is in the blocked list.
// The comparison is case-insensitive on the text after the last dot.
func IsBlocked(filename string, blockedExtensions []string) bool {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	dot := strings.LastIndex(base, ".")
	if dot < 0 || dot == len(base)-1 {
		return false
	}
	ext := strings.ToLower(base[dot+1:])

	for _, blocked := range blockedExtensions {
		if strings.ToLower(strings.TrimLeft(blocked, ".")) == ext {
			return true
		}
	}
	return false
}

// DecideFile applies the mode to a file selection. File content is never
// inspected, so the redact mode blocks the upload instead.
func DecideFile(mode Mode, filename string, blockedExtensions []string) Decision {
	if mode == ModeDisabled || !IsBlocked(filename, blockedExtensions) {
		return Decision{Action: ActionAllow, Notify: NotifyNone}
	}

	switch mode {
	case ModeInteractive:
		return Decision{Action: ActionPrompt, Notify: NotifyAlert}
	case ModeBlockAndAlert, ModeRedactAndPaste:
		return Decision{Action: ActionBlock, Notify: NotifyAlert}
	case ModeAlertOnly:
		return Decision{Action: ActionAllow, Notify: NotifyAlert}
	case ModeSilentBlock:
		return Decision{Action: ActionBlock, Notify: NotifyNone}
	case ModeWarnOnly:
		return Decision{Action: ActionAllow, Notify: NotifyWarning}
	default:
		return Decision{Action: ActionAllow, Notify: NotifyNone}
	}
}
