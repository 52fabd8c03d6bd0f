package filter

import (
	"strings"
	"unicode/utf8"
)

// Match reports whether text matches the glob pattern in full.
//
// '*' matches any run of characters (including none), '?' matches exactly one
// character and every other character matches itself. Matching is
// case-sensitive. A pattern that is not valid UTF-8 never matches.
func Match(text, pattern string) bool {
	if !utf8.ValidString(pattern) {
		return false
	}
	if !strings.ContainsAny(pattern, "*?") {
		return text == pattern
	}
	return matchTable([]rune(text), []rune(pattern))
}

// matchTable fills t[i][j] = pattern[:i] matches text[:j].
func matchTable(s, p []rune) bool {
	t := make([][]bool, len(p)+1)
	for i := range t {
		t[i] = make([]bool, len(s)+1)
	}
	t[0][0] = true

	for i := 1; i <= len(p); i++ {
		if p[i-1] != '*' {
			break
		}
		t[i][0] = t[i-1][0]
	}

	for i := 1; i <= len(p); i++ {
		for j := 1; j <= len(s); j++ {
			switch p[i-1] {
			case '*':
				t[i][j] = t[i-1][j] || t[i][j-1]
			case '?':
				t[i][j] = t[i-1][j-1]
			default:
				t[i][j] = t[i-1][j-1] && p[i-1] == s[j-1]
			}
		}
	}

	return t[len(p)][len(s)]
}
