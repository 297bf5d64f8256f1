// Package domain defines the boundary to the external text-generation
// provider.
package domain

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// SubTask is one proposed child item from the provider.
type SubTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Request carries the parent task fields the prompt is built from.
type Request struct {
	Title       string
	Description string
	DueDate     string
	Priority    string
}

// BaseText returns the text the ambiguity gate and prompt lean on: the
// description, or the title when the description is blank.
func (r Request) BaseText() string {
	if s := strings.TrimSpace(r.Description); s != "" {
		return s
	}
	return strings.TrimSpace(r.Title)
}

// Generator produces child-task proposals. There is exactly one concrete
// implementation, selected by configuration, never by runtime probing.
type Generator interface {
	// Enabled reports whether the provider credential is configured.
	Enabled() bool
	// GenerateSubTasks returns a bounded, de-duplicated list of proposals.
	// An empty list with a nil error means the model produced nothing
	// usable.
	GenerateSubTasks(ctx context.Context, req Request) ([]SubTask, error)
}

var (
	// ErrNotConfigured means the provider credential is absent; callers
	// must not attempt the network.
	ErrNotConfigured = errors.New("ai_not_configured")
	// ErrCircuitOpen means the breaker is cooling down after sustained
	// failures; no network attempt was made.
	ErrCircuitOpen = errors.New("ai_circuit_open")
	// ErrUpstreamFailed means the attempt sequence exhausted its retries.
	ErrUpstreamFailed = errors.New("ai_upstream_failed")
)

// TooAmbiguous reports whether the base text is too thin to decompose.
// Both thresholds must fail together: satisfying either one alone is
// enough to proceed. Length is measured in runes, not bytes, so CJK
// titles are gated the same as ASCII ones.
func TooAmbiguous(base string, minChars, minWords int) bool {
	base = strings.TrimSpace(base)
	if base == "" {
		return true
	}
	words := len(strings.Fields(base))
	return utf8.RuneCountInString(base) < minChars && words < minWords
}

// Normalize prepares text for echo-detection: trims, strips a leading
// bullet marker, collapses whitespace, and uppercases.
func Normalize(s string) string {
	t := strings.TrimSpace(s)
	for _, prefix := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(t, prefix) {
			t = strings.TrimSpace(strings.TrimPrefix(t, prefix))
			break
		}
	}
	t = strings.Join(strings.Fields(t), " ")
	return strings.ToUpper(t)
}
