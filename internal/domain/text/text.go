// Package text provides the shared text heuristics used across the pipeline:
// tokenization, sentence splitting, overlap similarity, and lightweight
// topic/entity extraction. Everything here is deterministic and local; no
// model calls.
package text

import (
	"sort"
	"strings"
	"unicode"
)

// stopWords are excluded from query optimization and term scoring.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"he": {}, "her": {}, "his": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "its": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {},
	"she": {}, "so": {}, "such": {}, "that": {}, "the": {}, "their": {},
	"them": {}, "then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"to": {}, "was": {}, "we": {}, "were": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "while": {}, "who": {}, "will": {}, "with": {},
	"would": {}, "you": {}, "your": {},
}

// IsStopWord reports whether a lowercased word is a stop word.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// Words splits s into lowercased word tokens, dropping punctuation.
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// ContentWords returns Words(s) minus stop words.
func ContentWords(s string) []string {
	words := Words(s)
	out := words[:0]
	for _, w := range words {
		if !IsStopWord(w) {
			out = append(out, w)
		}
	}
	return out
}

// EstimateTokens approximates the model-input token count of s.
// Uses the common ~4 characters per token heuristic, floored at the word count.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	byChars := (len(s) + 3) / 4
	byWords := len(strings.Fields(s))
	if byWords > byChars {
		return byWords
	}
	return byChars
}

// Sentences splits s into sentences on terminal punctuation. Whitespace-only
// fragments are dropped.
func Sentences(s string) []string {
	var out []string
	var b strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			// Avoid splitting decimals like "3.14".
			if r == '.' && i+1 < len(runes) && unicode.IsDigit(runes[i+1]) {
				continue
			}
			if sent := strings.TrimSpace(b.String()); sent != "" {
				out = append(out, sent)
			}
			b.Reset()
		}
	}
	if sent := strings.TrimSpace(b.String()); sent != "" {
		out = append(out, sent)
	}
	return out
}

// Overlap returns the Jaccard similarity of the content-word sets of a and b,
// in [0, 1].
func Overlap(a, b string) float64 {
	wa := ContentWords(a)
	wb := ContentWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	seen := make(map[string]struct{}, len(wa))
	for _, w := range wa {
		seen[w] = struct{}{}
	}

	inB := make(map[string]struct{}, len(wb))
	shared := 0
	for _, w := range wb {
		if _, dup := inB[w]; dup {
			continue
		}
		inB[w] = struct{}{}
		if _, ok := seen[w]; ok {
			shared++
		}
	}

	union := len(seen) + len(inB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// TermFrequencies counts content-word occurrences in s.
func TermFrequencies(s string) map[string]int {
	freq := make(map[string]int)
	for _, w := range ContentWords(s) {
		freq[w]++
	}
	return freq
}

// TopTerms returns the n most frequent content words of s, most frequent
// first with alphabetical tie-break.
func TopTerms(s string, n int) []string {
	freq := TermFrequencies(s)
	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// Entities extracts capitalized multi-letter words that are not sentence
// leads, a cheap named-entity heuristic good enough for memory tracking.
func Entities(s string) []string {
	var out []string
	seen := make(map[string]struct{})

	for _, sentence := range Sentences(s) {
		fields := strings.Fields(sentence)
		for i, f := range fields {
			w := strings.TrimFunc(f, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsNumber(r)
			})
			if len(w) < 2 || i == 0 {
				continue
			}
			r := []rune(w)
			if !unicode.IsUpper(r[0]) {
				continue
			}
			if IsStopWord(strings.ToLower(w)) {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	return out
}
