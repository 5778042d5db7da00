package chunk

import "strings"

// DefaultTokenBudget is the conservative per-document character budget used
// before handing text to downstream summarization.
const DefaultTokenBudget = 4000

// TruncateTokens caps text at a one-character-per-token budget. The estimate
// is deliberately conservative so dense legal text stays under hard model
// limits even in worst-case tokenization. The cut prefers a word boundary
// when one falls within the last fifth of the budget.
func TruncateTokens(text string, maxTokens int) string {
	runes := []rune(text)
	if len(runes) <= maxTokens {
		return text
	}
	truncated := string(runes[:maxTokens])
	if i := strings.LastIndex(truncated, " "); i > len(truncated)*4/5 {
		truncated = truncated[:i]
	}
	return strings.TrimRight(truncated, " \t\n")
}
