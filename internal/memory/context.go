package memory

import (
	"strings"
	"unicode/utf8"

	"fitcoach/internal/store"
)

// Entry is one projected turn: role plus possibly truncated content.
type Entry struct {
	Role    store.Role
	Content string
}

// BoundedContext is the size-capped projection of a turn log used to build
// a prompt. It has no lifecycle of its own; it is recomputed from the log
// on every load.
type BoundedContext struct {
	Entries []Entry
}

// Stats summarizes a projection for monitoring.
type Stats struct {
	TurnCount       int
	CharCount       int
	EstimatedTokens int
}

// Project keeps the last policy.MaxTurns turns and truncates each turn's
// content to policy.MaxCharsPerTurn runes, appending the truncation marker
// when clipped. Pure and deterministic.
func Project(msgs []store.Message, p Policy) BoundedContext {
	if p.MaxTurns > 0 && len(msgs) > p.MaxTurns {
		msgs = msgs[len(msgs)-p.MaxTurns:]
	}

	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, Entry{
			Role:    m.Role,
			Content: truncate(m.Content, p.MaxCharsPerTurn),
		})
	}
	return BoundedContext{Entries: entries}
}

func truncate(content string, maxChars int) string {
	if maxChars <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= maxChars {
		return content
	}
	return string(runes[:maxChars]) + TruncationMarker
}

// rolePrefix maps roles to the compact single-letter prefixes used in the
// rendered context.
func rolePrefix(r store.Role) string {
	switch r {
	case store.RoleHuman:
		return "U"
	case store.RoleAI:
		return "A"
	case store.RoleSystem:
		return "S"
	case store.RoleFunction:
		return "F"
	default:
		return "?"
	}
}

// Render joins the projected turns into the compact form consumed by the
// prompt builder: "U: hola | A: ¡Hola!". Rendered length is a function of
// the policy parameters only once the log exceeds the window.
func (c BoundedContext) Render() string {
	if len(c.Entries) == 0 {
		return ""
	}
	parts := make([]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		parts = append(parts, rolePrefix(e.Role)+": "+e.Content)
	}
	return strings.Join(parts, " | ")
}

// Stats returns size accounting for the rendered projection. Counts are
// in runes, matching the per-turn truncation unit; token count is the
// chars/4 approximation, not an exact tokenization.
func (c BoundedContext) Stats() Stats {
	chars := utf8.RuneCountInString(c.Render())
	return Stats{
		TurnCount:       len(c.Entries),
		CharCount:       chars,
		EstimatedTokens: chars / 4,
	}
}
