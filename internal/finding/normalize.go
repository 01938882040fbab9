package finding

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// stopwords are skipped when deriving the intent signature so different
// phrasings of the same attack collapse to one key.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "must": true,
	"can": true, "this": true, "that": true, "these": true, "those": true,
	"you": true, "your": true, "please": true, "now": true, "me": true,
}

// normalizeIntent reduces a prompt to a sorted keyword signature: lowercase,
// punctuation stripped, stopwords and short tokens removed.
func normalizeIntent(prompt string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == ' ' {
			return r
		}
		return ' '
	}, strings.ToLower(prompt))

	seen := make(map[string]bool)
	var keywords []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 2 || stopwords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
	}
	sort.Strings(keywords)

	return strings.Join(keywords, " ")
}

// dedupKey computes the sha256 deduplication key over category and
// normalized prompt intent.
func dedupKey(category, prompt string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(category))))
	h.Write([]byte{0})
	h.Write([]byte(normalizeIntent(prompt)))
	return hex.EncodeToString(h.Sum(nil))
}
