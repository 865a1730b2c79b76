// Package fingerprint reduces article titles to a compact clustering key and
// compares two titles by a bounded similarity score. Both functions are pure
// and deterministic: no I/O, no clock, no randomness.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"
)

// stopWords is the fixed list of articles, prepositions, and action-verb
// stems dropped before fingerprinting and similarity scoring. Action-verb
// stems are included because headlines about the same event are routinely
// paraphrased across these verbs ("X announces Y" vs "X reveals Y").
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"has": true, "have": true, "had": true, "it": true, "its": true,
	"this": true, "that": true, "these": true, "those": true, "into": true,
	"over": true, "after": true, "before": true, "about": true, "up": true,
	"announces": true, "reveals": true, "unveils": true, "says": true,
	"reports": true, "confirms": true, "denies": true, "plans": true,
}

// fingerprintTokenLimit is the number of sorted tokens concatenated before
// hashing, per §4.1: "take the first 5 remaining tokens sorted
// lexicographically."
const fingerprintTokenLimit = 5

// minTokenLength excludes short, low-signal tokens from both fingerprinting
// and similarity scoring.
const minTokenLength = 3

// Tokenize lowercases, strips punctuation, and splits on whitespace,
// dropping stop words and tokens of length <= minTokenLength. It is the
// shared tokenization T(x) referenced throughout §4.1.
func Tokenize(title string) []string {
	lower := strings.ToLower(title)

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= minTokenLength {
			continue
		}
		if stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Fingerprint reduces a title to an 8-hex-character key that collides across
// paraphrases of the same event: tokenize, keep the first 5 tokens sorted
// lexicographically (word order becomes irrelevant), concatenate with single
// spaces, and take the first 8 hex characters of the MD5 digest.
func Fingerprint(title string) string {
	tokens := Tokenize(title)
	sort.Strings(tokens)

	if len(tokens) > fingerprintTokenLimit {
		tokens = tokens[:fingerprintTokenLimit]
	}

	joined := strings.Join(tokens, " ")
	sum := md5.Sum([]byte(joined)) //nolint:gosec // content-addressing key, not a security boundary
	return hex.EncodeToString(sum[:])[:8]
}

// Similarity returns a bounded [0, 1] score blending Jaccard token overlap,
// keyword overlap, and substring overlap between two titles, per §4.1:
// 0.4*J + 0.4*K + 0.2*S. It is symmetric: Similarity(a, b) == Similarity(b, a).
func Similarity(a, b string) float64 {
	ta := Tokenize(a)
	tb := Tokenize(b)

	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}

	setA := toSet(ta)
	setB := toSet(tb)

	j := jaccard(setA, setB)
	k := keywordOverlap(setA, setB)
	s := substringOverlap(ta, tb)

	return 0.4*j + 0.4*k + 0.2*s
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// jaccard computes |A ∩ B| / |A ∪ B| over token sets; two empty sets are
// defined as fully similar (both titles reduced to nothing in common).
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	intersection := 0
	union := make(map[string]bool, len(a)+len(b))
	for t := range a {
		union[t] = true
		if b[t] {
			intersection++
		}
	}
	for t := range b {
		union[t] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}

// keywordOverlap returns the fraction of tokens in A ∪ B that appear in both
// sets — all tokens at this point already pass the minTokenLength filter.
func keywordOverlap(a, b map[string]bool) float64 {
	union := make(map[string]bool, len(a)+len(b))
	for t := range a {
		union[t] = true
	}
	for t := range b {
		union[t] = true
	}
	if len(union) == 0 {
		return 0
	}

	shared := 0
	for t := range union {
		if a[t] && b[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(union))
}

// substringOverlap returns the fraction of tokens in the smaller token list
// that appear as a substring of any token in the larger list.
func substringOverlap(a, b []string) float64 {
	smaller, larger := a, b
	if len(larger) < len(smaller) {
		smaller, larger = larger, smaller
	}
	if len(smaller) == 0 {
		return 0
	}

	matches := 0
	for _, s := range smaller {
		for _, l := range larger {
			if strings.Contains(l, s) {
				matches++
				break
			}
		}
	}
	return float64(matches) / float64(len(smaller))
}
