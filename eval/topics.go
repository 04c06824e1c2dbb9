package eval

import "strings"

// Stop words ignored when matching expected topics against retrieved text
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}`*"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// TopicCoverage returns the fraction of topics whose words all appear in
// text. A topic made only of stop words never matches. No topics yields 0.
func TopicCoverage(text string, topics []string) float64 {
	if len(topics) == 0 {
		return 0
	}
	words := tokenizeAndFilter(text)
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}

	covered := 0
	for _, topic := range topics {
		if containsAllWords(wordSet, topic) {
			covered++
		}
	}
	return float64(covered) / float64(len(topics))
}

func containsAllWords(wordSet map[string]bool, phrase string) bool {
	phraseWords := tokenizeAndFilter(phrase)
	if len(phraseWords) == 0 {
		return false
	}
	for _, w := range phraseWords {
		if !wordSet[w] {
			return false
		}
	}
	return true
}
