// Package analysis holds the lexical helpers shared by extraction, ingestion
// and search: tokenization, stop words, sentence splitting, keyword
// extraction and extractive summaries.
package analysis

import (
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

var (
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
	sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// Stop words to filter out of keyword and verbatim matching
var stopWords = map[string]bool{
	"a": true, "about": true, "above": true, "after": true, "again": true, "all": true,
	"also": true, "an": true, "and": true, "any": true, "are": true, "as": true,
	"at": true, "be": true, "been": true, "before": true, "being": true, "below": true,
	"between": true, "but": true, "by": true, "can": true, "could": true, "did": true,
	"do": true, "does": true, "don": true, "down": true, "during": true, "each": true,
	"else": true, "for": true, "from": true, "further": true, "had": true, "has": true,
	"have": true, "he": true, "her": true, "here": true, "his": true, "how": true,
	"i": true, "if": true, "in": true, "into": true, "is": true, "it": true,
	"its": true, "just": true, "me": true, "more": true, "most": true, "my": true,
	"no": true, "not": true, "now": true, "of": true, "off": true, "on": true,
	"or": true, "our": true, "out": true, "over": true, "own": true, "same": true,
	"she": true, "should": true, "so": true, "some": true, "such": true, "than": true,
	"that": true, "the": true, "their": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true, "through": true, "to": true,
	"too": true, "under": true, "up": true, "very": true, "was": true, "we": true,
	"were": true, "what": true, "when": true, "where": true, "which": true, "while": true,
	"who": true, "will": true, "with": true, "would": true, "you": true, "your": true,
}

// IsStopword reports whether a lowercase token is a stop word.
func IsStopword(token string) bool {
	return stopWords[token]
}

// Tokens splits text into lowercase word and number tokens.
func Tokens(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// ContentTokens returns Tokens without stop words and single letters.
func ContentTokens(text string) []string {
	tokens := Tokens(text)
	filtered := tokens[:0]
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) < 2 || stopWords[tok] {
			continue
		}
		filtered = append(filtered, tok)
	}
	return filtered
}

// ContainsAllWords reports whether every content word of query appears in document.
func ContainsAllWords(document, query string) bool {
	queryWords := ContentTokens(query)
	if len(queryWords) == 0 {
		return false
	}

	docWords := make(map[string]bool)
	for _, word := range ContentTokens(document) {
		docWords[word] = true
	}

	for _, word := range queryWords {
		if !docWords[word] {
			return false
		}
	}
	return true
}

// Sentences splits text into trimmed sentences. Trailing text without
// terminal punctuation is returned as a final sentence.
func Sentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// Keywords returns up to k content words ordered by frequency. Ties keep the
// order of first appearance.
func Keywords(text string, k int) []string {
	if k <= 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, tok := range ContentTokens(text) {
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return counts[b] - counts[a]
	})
	if len(order) > k {
		order = order[:k]
	}
	return order
}

// Summarize returns the n highest-ranked sentences in their original order.
// Sentences are ranked by normalized content-word frequency divided by the
// square root of their length.
func Summarize(text string, n int) string {
	if n <= 0 {
		n = 2
	}
	sentences := Sentences(text)
	if len(sentences) <= n {
		return strings.Join(sentences, " ")
	}

	freq := make(map[string]float64)
	for _, tok := range ContentTokens(text) {
		freq[tok]++
	}
	maxF := 1.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i, sent := range sentences {
		tokens := ContentTokens(sent)
		s := 0.0
		for _, tok := range tokens {
			s += freq[tok] / maxF
		}
		if len(tokens) > 0 {
			s /= math.Sqrt(float64(len(tokens)))
		}
		scores[i] = scored{idx: i, score: s}
	}
	slices.SortStableFunc(scores, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	selected := make([]int, n)
	for i := range n {
		selected[i] = scores[i].idx
	}
	slices.Sort(selected)

	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " ")
}

// Truncate shortens text to at most limit runes, appending "..." when cut.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
