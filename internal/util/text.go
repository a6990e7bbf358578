package util

import (
	"regexp"
	"strings"
)

var mentionPattern = regexp.MustCompile(`(?:^|[^\w@])@([A-Za-z0-9_]{3,20})\b`)

// ExtractMentions extracts @username mentions from text content.
// Returns unique usernames, lowercased and without the @, in order of first
// appearance. Email addresses are not mentions.
func ExtractMentions(content string) []string {
	var mentions []string
	seen := make(map[string]bool)

	for _, m := range mentionPattern.FindAllStringSubmatch(content, -1) {
		username := strings.ToLower(m[1])
		if !seen[username] {
			seen[username] = true
			mentions = append(mentions, username)
		}
	}
	return mentions
}

// Truncate shortens s to at most n runes, adding an ellipsis when cut
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
