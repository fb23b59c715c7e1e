package shared

import (
	"time"
	"unicode/utf8"
)

// TokenUsage tracks the tokens consumed by a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// AgentMeta holds operational metadata for a single provider call.
type AgentMeta struct {
	AgentName string
	Provider  string
	Attempt   int
	Outcome   string
	Usage     TokenUsage
	Latency   time.Duration
}

// Truncate shortens s to at most n runes for log output.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "...(truncated)"
}
