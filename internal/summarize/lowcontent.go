package summarize

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// fillerPhrases is the canonical low-content filler set. It is a
// heuristic compiled into the binary; no setting changes it. Multi-word entries
// (e.g. "thank you") are matched as a single unit, not token-by-token.
var fillerPhrases = []string{"thank you", "thanks", "you", "uh", "um"}

// fillerFuzzyThreshold is the Jaro-Winkler similarity above which a
// transcribed span is folded into the filler set, tolerating minor
// STT mis-transcription of short filler utterances.
const fillerFuzzyThreshold = 0.9

const lowContentMinWords = 30
const lowContentFillerFraction = 0.8

// LowContentPlaceholderSummary is synthesized in place of REDUCE when
// the guard trips.
const LowContentPlaceholderSummary = "No usable call audio was captured from the target app. Please check your capture configuration."

// fillerPhraseWords is fillerPhrases pre-split into per-word tokens,
// longest phrase first, so the greedy matcher in countFillerWords
// tries "thank you" before it tries "you" alone.
var fillerPhraseWords = buildFillerPhraseWords()

func buildFillerPhraseWords() [][]string {
	out := make([][]string, len(fillerPhrases))
	for i, p := range fillerPhrases {
		out[i] = strings.Fields(p)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// IsLowContent implements the low-content guard: trips when there are
// no chunk summaries at all, or when the transcript has fewer than 30
// words and is dominated (>=80%) by filler phrases.
func IsLowContent(chunkSummaryCount int, fullText string) bool {
	if chunkSummaryCount == 0 {
		return true
	}

	words := strings.Fields(fullText)
	if len(words) >= lowContentMinWords {
		return false
	}

	if len(words) == 0 {
		return true
	}

	fillerCount := countFillerWords(words)

	return float64(fillerCount)/float64(len(words)) >= lowContentFillerFraction
}

// countFillerWords scans the transcript greedily, matching the
// longest filler phrase available at each position so a two-word
// phrase like "thank you" is counted as both of its words rather than
// leaving "thank" stranded as a non-filler token.
func countFillerWords(words []string) int {
	normalized := make([]string, len(words))
	for i, w := range words {
		normalized[i] = strings.ToLower(strings.Trim(w, ".,!?;: "))
	}

	count := 0
	for i := 0; i < len(normalized); {
		if normalized[i] == "" {
			i++
			continue
		}
		if n := matchFillerSpan(normalized, i); n > 0 {
			count += n
			i += n
			continue
		}
		i++
	}
	return count
}

// matchFillerSpan returns the length of the filler phrase matching
// normalized[at:], or 0 if none matches.
func matchFillerSpan(normalized []string, at int) int {
	for _, phrase := range fillerPhraseWords {
		n := len(phrase)
		if at+n > len(normalized) {
			continue
		}
		span := strings.Join(normalized[at:at+n], " ")
		joined := strings.Join(phrase, " ")
		if span == joined || matchr.JaroWinkler(span, joined, true) >= fillerFuzzyThreshold {
			return n
		}
	}
	return 0
}
