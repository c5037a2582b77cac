package moderation

import _ "embed"

//go:embed words.txt
var defaultWordList string

// DefaultWords returns the built-in banned term list. Operators can extend
// it through configuration; the embedded list is the floor, not the policy.
func DefaultWords() []string {
	return ParseWordList(defaultWordList)
}
