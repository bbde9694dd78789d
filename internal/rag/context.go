package rag

import (
	"fmt"
	"strings"

	"github.com/pauloribeiro16/D3fendGraph/internal/index"
)

// MaxFieldChars caps each description or mitigations field in the assembled
// context.
const MaxFieldChars = 400

// Truncate shortens text to at most limit runes, ending in an ellipsis when
// anything was cut. The result never exceeds the limit, so truncating
// already-truncated text changes nothing.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// FormatContext renders retrieval matches as the context block handed to the
// generator. Matches render in the order given; one entry per node with its
// taxonomy tags, truncated description, and truncated mitigations.
func FormatContext(matches []index.Match) string {
	var b strings.Builder
	for i, m := range matches {
		if i > 0 {
			b.WriteString("\n")
		}
		n := m.Node
		tags := make([]string, len(n.Frameworks))
		for j, fw := range n.Frameworks {
			tags[j] = string(fw)
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", strings.Join(tags, ","), n.ID, n.Label)
		if n.Description != "" {
			fmt.Fprintf(&b, "  Description: %s\n", Truncate(n.Description, MaxFieldChars))
		}
		if n.Mitigations != "" {
			fmt.Fprintf(&b, "  Mitigations: %s\n", Truncate(n.Mitigations, MaxFieldChars))
		}
	}
	return b.String()
}
