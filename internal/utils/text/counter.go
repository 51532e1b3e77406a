// Package text provides small text processing helpers shared by the
// digest providers and the notification formatting code.
package text

// CountRunes counts the number of Unicode characters (runes) in the given
// text. Headlines and digests can carry CJK announcement text and emoji,
// so character budgets must be checked in runes rather than bytes.
//
// Examples:
//
//	CountRunes("hello")      // returns 5
//	CountRunes("BTC到達")    // returns 5 (mixed ASCII and CJK)
//	CountRunes("up 5% 🚀")   // returns 8 (emoji is one rune)
//	CountRunes("")           // returns 0
func CountRunes(text string) int {
	return len([]rune(text))
}
