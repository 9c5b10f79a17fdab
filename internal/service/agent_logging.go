package service

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

const maxAgentLogSnippetRunes = 1024

// logAgentExchange 输出提示词代理请求与响应的关键片段，便于排查代理行为。
func logAgentExchange(log *slog.Logger, recipeID, phase, content string) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		log.Debug("agent exchange", "recipe_id", recipeID, "phase", phase, "content", "<empty>")
		return
	}

	runeCount := utf8.RuneCountInString(trimmed)
	snippet := trimmed
	if runeCount > maxAgentLogSnippetRunes {
		snippet = string([]rune(trimmed)[:maxAgentLogSnippetRunes]) + "…(truncated)"
	}
	log.Debug("agent exchange", "recipe_id", recipeID, "phase", phase, "runes", runeCount, "content", snippet)
}
