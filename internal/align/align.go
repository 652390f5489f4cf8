// Package align maps word-level transcription timestamps back onto
// sentence boundaries. The transcript is produced from the concatenation
// of all sentence texts, so in the ideal case the recognized-word stream
// and the sentence token stream line up one to one. Recognizers merge
// contractions and drop fillers, so the package degrades through
// proportional allocation down to an even time split when no transcript
// exists at all.
package align

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// SentenceInput is one sentence of a section, in narration order.
type SentenceInput struct {
	SentenceID string
	Text       string
	Order      int
}

// Word is one recognized word from the transcription engine.
type Word struct {
	Text        string
	StartMs     int64
	EndMs       int64
	Probability float64
}

// Span is the timing produced for one sentence.
type Span struct {
	SentenceID string
	StartMs    int64
	EndMs      int64
	Confidence float64
	Words      []Word
}

// Options tunes the fallback behavior. Zero values take the defaults.
type Options struct {
	// MismatchPenalty scales a sentence's confidence when its boundary had
	// to be estimated proportionally instead of matched token for token.
	MismatchPenalty float64
	// DegradedConfidence is the fixed score attached to spans produced
	// without any transcript.
	DegradedConfidence float64
	// LowConfidenceThreshold is the advisory floor used by Validate.
	LowConfidenceThreshold float64
}

const (
	defaultMismatchPenalty    = 0.5
	defaultDegradedConfidence = 0.3
	defaultLowConfidence      = 0.5
)

func (o Options) withDefaults() Options {
	if o.MismatchPenalty <= 0 {
		o.MismatchPenalty = defaultMismatchPenalty
	}
	if o.DegradedConfidence <= 0 {
		o.DegradedConfidence = defaultDegradedConfidence
	}
	if o.LowConfidenceThreshold <= 0 {
		o.LowConfidenceThreshold = defaultLowConfidence
	}
	return o
}

var folder = cases.Fold()

// normalize case-folds a token and strips punctuation. Tokens that are
// pure punctuation normalize to the empty string and are dropped.
func normalize(token string) string {
	folded := folder.String(token)
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func tokenize(text string) []string {
	var tokens []string
	for _, field := range strings.Fields(text) {
		if normalized := normalize(field); normalized != "" {
			tokens = append(tokens, normalized)
		}
	}
	return tokens
}

// Align produces one span per sentence from the recognized-word stream.
// Sentences are processed in Order. With a token-for-token match the
// boundaries are exact; otherwise words are allocated proportionally to
// each sentence's token share and confidence is penalized. An empty word
// stream yields no spans; callers should fall back to DegradedSpans.
func Align(sentences []SentenceInput, words []Word, opts Options) []Span {
	opts = opts.withDefaults()
	if len(sentences) == 0 || len(words) == 0 {
		return nil
	}

	ordered := make([]SentenceInput, len(sentences))
	copy(ordered, sentences)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	tokenCounts := make([]int, len(ordered))
	totalTokens := 0
	for i, sentence := range ordered {
		tokenCounts[i] = len(tokenize(sentence.Text))
		totalTokens += tokenCounts[i]
	}

	exact := totalTokens == len(words)
	counts := tokenCounts
	if !exact {
		counts = proportionalCounts(tokenCounts, totalTokens, len(words))
	}

	spans := make([]Span, 0, len(ordered))
	cursor := 0
	boundary := words[0].StartMs
	for i, sentence := range ordered {
		take := counts[i]
		if take > len(words)-cursor {
			take = len(words) - cursor
		}
		consumed := words[cursor : cursor+take]
		cursor += take

		span := Span{SentenceID: sentence.SentenceID, StartMs: boundary, EndMs: boundary}
		if len(consumed) > 0 {
			span.StartMs = consumed[0].StartMs
			span.EndMs = consumed[len(consumed)-1].EndMs
			span.Words = append([]Word(nil), consumed...)
			span.Confidence = averageProbability(consumed)
			boundary = span.EndMs
		}
		if !exact {
			span.Confidence *= opts.MismatchPenalty
		}
		spans = append(spans, span)
	}
	return spans
}

// proportionalCounts splits wordCount across sentences in proportion to
// their token counts, using cumulative rounding so the allocation is
// contiguous and sums exactly to wordCount.
func proportionalCounts(tokenCounts []int, totalTokens, wordCount int) []int {
	counts := make([]int, len(tokenCounts))
	if totalTokens == 0 {
		// No usable sentence text; spread words as evenly as possible.
		for i := range counts {
			counts[i] = wordCount / len(counts)
		}
		counts[len(counts)-1] += wordCount % len(counts)
		return counts
	}
	cumTokens := 0
	prevBoundary := 0
	for i, tc := range tokenCounts {
		cumTokens += tc
		boundary := int(math.Round(float64(cumTokens) / float64(totalTokens) * float64(wordCount)))
		counts[i] = boundary - prevBoundary
		prevBoundary = boundary
	}
	return counts
}

func averageProbability(words []Word) float64 {
	if len(words) == 0 {
		return 0
	}
	sum := 0.0
	for _, word := range words {
		sum += word.Probability
	}
	return sum / float64(len(words))
}

// DegradedSpans divides a known total duration evenly across the sentences
// when no transcript is available. Every span carries the fixed degraded
// confidence and no word timings.
func DegradedSpans(sentences []SentenceInput, totalDurationMs int64, opts Options) []Span {
	opts = opts.withDefaults()
	if len(sentences) == 0 {
		return nil
	}

	ordered := make([]SentenceInput, len(sentences))
	copy(ordered, sentences)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	spans := make([]Span, 0, len(ordered))
	count := int64(len(ordered))
	for i, sentence := range ordered {
		start := totalDurationMs * int64(i) / count
		end := totalDurationMs * int64(i+1) / count
		spans = append(spans, Span{
			SentenceID: sentence.SentenceID,
			StartMs:    start,
			EndMs:      end,
			Confidence: opts.DegradedConfidence,
		})
	}
	return spans
}
