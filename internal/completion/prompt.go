// Package completion holds what every completer shares: turning a
// domain.Prompt into a system text that carries recalled memories.
package completion

import (
	"fmt"
	"strings"

	"memchat/internal/domain"
)

const DefaultSystemPrompt = "You are a helpful assistant with long-term memory. " +
	"Use the recalled memories when they are relevant and ignore them otherwise."

// UserText renders the user's message through the human template. A
// template without the placeholder gets the message appended after a blank
// line.
func UserText(p domain.Prompt) string {
	user := strings.TrimSpace(p.User)
	tmpl := strings.TrimSpace(p.HumanTemplate)
	switch {
	case tmpl == "":
		return user
	case strings.Contains(tmpl, domain.HumanInputPlaceholder):
		return strings.ReplaceAll(tmpl, domain.HumanInputPlaceholder, user)
	default:
		return tmpl + "\n\n" + user
	}
}

// SystemText returns the system prompt followed by the recalled context, most
// similar first.
func SystemText(p domain.Prompt) string {
	system := strings.TrimSpace(p.System)
	if system == "" {
		system = DefaultSystemPrompt
	}
	if len(p.Context) == 0 {
		return system
	}
	var b strings.Builder
	b.WriteString(system)
	b.WriteString("\n\nRecalled memories:\n")
	for i, r := range p.Context {
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, r.Path, strings.TrimSpace(r.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}
