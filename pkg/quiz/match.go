// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package quiz

import "strings"

// MatchesText reports whether text occurs, ignoring case, in the quiz title,
// description, category or any tag. Backends without server-side matching
// use it to implement SearchText.
func MatchesText(q *Quiz, text string) bool {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return false
	}
	fields := []string{q.Title, q.Description, q.Category}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	for _, tag := range q.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}
