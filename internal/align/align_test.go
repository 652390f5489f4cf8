package align

import (
	"reflect"
	"testing"
)

// wordStream builds count words spaced spacing ms apart with no gaps.
func wordStream(texts []string, spacing int64, probability float64) []Word {
	words := make([]Word, len(texts))
	for i, text := range texts {
		words[i] = Word{
			Text:        text,
			StartMs:     int64(i) * spacing,
			EndMs:       int64(i+1) * spacing,
			Probability: probability,
		}
	}
	return words
}

func TestAlignExactLockStep(t *testing.T) {
	sentences := []SentenceInput{
		{SentenceID: "s1", Text: "Hello there.", Order: 1},
		{SentenceID: "s2", Text: "How are you?", Order: 2},
		{SentenceID: "s3", Text: "It is a test.", Order: 3},
	}
	words := wordStream([]string{"hello", "there", "how", "are", "you", "it", "is", "a", "test"}, 200, 0.9)

	spans := Align(sentences, words, Options{})
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}

	wantCounts := []int{2, 3, 4}
	for i, span := range spans {
		if len(span.Words) != wantCounts[i] {
			t.Fatalf("span %d has %d words, want %d", i, len(span.Words), wantCounts[i])
		}
		if i > 0 && span.StartMs != spans[i-1].EndMs {
			t.Fatalf("span %d start %dms != previous end %dms", i, span.StartMs, spans[i-1].EndMs)
		}
		if diff := span.Confidence - 0.9; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("span %d confidence = %f, want word probability 0.9", i, span.Confidence)
		}
	}
	if spans[0].StartMs != 0 || spans[2].EndMs != 1800 {
		t.Fatalf("outer bounds = [%d, %d], want [0, 1800]", spans[0].StartMs, spans[2].EndMs)
	}
}

func TestAlignMismatchFallsBackProportionally(t *testing.T) {
	sentences := []SentenceInput{
		{SentenceID: "s1", Text: "do not stop", Order: 1},
		{SentenceID: "s2", Text: "keep going now", Order: 2},
	}
	// Recognizer merged "do not" into "don't": 5 words for 6 tokens.
	words := wordStream([]string{"don't", "stop", "keep", "going", "now"}, 100, 0.8)

	spans := Align(sentences, words, Options{MismatchPenalty: 0.5})
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	total := 0
	for i, span := range spans {
		total += len(span.Words)
		if span.Confidence >= 0.8 {
			t.Fatalf("span %d confidence %f not penalized", i, span.Confidence)
		}
		if i > 0 && span.StartMs < spans[i-1].EndMs {
			t.Fatalf("span %d overlaps previous", i)
		}
	}
	if total != len(words) {
		t.Fatalf("allocated %d words, want all %d", total, len(words))
	}
}

func TestAlignEmptyInputs(t *testing.T) {
	if spans := Align(nil, wordStream([]string{"a"}, 100, 1), Options{}); spans != nil {
		t.Fatalf("spans for no sentences = %+v", spans)
	}
	sentences := []SentenceInput{{SentenceID: "s1", Text: "hello", Order: 1}}
	if spans := Align(sentences, nil, Options{}); spans != nil {
		t.Fatalf("spans for no words = %+v", spans)
	}
}

func TestAlignOrdersByOrderField(t *testing.T) {
	sentences := []SentenceInput{
		{SentenceID: "second", Text: "are you", Order: 2},
		{SentenceID: "first", Text: "hello there", Order: 1},
	}
	words := wordStream([]string{"hello", "there", "are", "you"}, 100, 1)

	spans := Align(sentences, words, Options{})
	got := []string{spans[0].SentenceID, spans[1].SentenceID}
	if !reflect.DeepEqual(got, []string{"first", "second"}) {
		t.Fatalf("span order = %v", got)
	}
}

func TestDegradedSpansEvenSplit(t *testing.T) {
	sentences := []SentenceInput{
		{SentenceID: "s1", Text: "one", Order: 1},
		{SentenceID: "s2", Text: "two", Order: 2},
		{SentenceID: "s3", Text: "three", Order: 3},
	}

	spans := DegradedSpans(sentences, 9000, Options{DegradedConfidence: 0.3})
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3", len(spans))
	}
	for i, span := range spans {
		if width := span.EndMs - span.StartMs; width != 3000 {
			t.Fatalf("span %d width = %dms, want 3000", i, width)
		}
		if span.Confidence != 0.3 {
			t.Fatalf("span %d confidence = %f, want degraded 0.3", i, span.Confidence)
		}
		if len(span.Words) != 0 {
			t.Fatalf("span %d carries %d words, want none", i, len(span.Words))
		}
		if i > 0 && span.StartMs != spans[i-1].EndMs {
			t.Fatalf("span %d not contiguous", i)
		}
	}
}

func TestNormalizeStripsPunctuationAndCase(t *testing.T) {
	cases := map[string]string{
		"Hello,":  "hello",
		"WORLD!":  "world",
		"—":       "",
		"it's":    "its",
		"Straße":  "strasse",
		"café.": "café",
	}
	for in, want := range cases {
		if got := normalize(in); got != want {
			t.Fatalf("normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateReportsAdvisories(t *testing.T) {
	spans := []Span{
		{SentenceID: "s1", StartMs: 0, EndMs: 1000, Confidence: 0.9},
		{SentenceID: "s2", StartMs: 1000, EndMs: 1000, Confidence: 0.9},
		{SentenceID: "s3", StartMs: 900, EndMs: 2000, Confidence: 0.2},
	}

	advisories := Validate(spans, Options{LowConfidenceThreshold: 0.5})
	kinds := make(map[AdvisoryKind][]string)
	for _, advisory := range advisories {
		kinds[advisory.Kind] = append(kinds[advisory.Kind], advisory.SentenceID)
	}
	if !reflect.DeepEqual(kinds[AdvisoryZeroDuration], []string{"s2"}) {
		t.Fatalf("zero-duration = %v", kinds[AdvisoryZeroDuration])
	}
	if !reflect.DeepEqual(kinds[AdvisoryOverlap], []string{"s3"}) {
		t.Fatalf("overlap = %v", kinds[AdvisoryOverlap])
	}
	if !reflect.DeepEqual(kinds[AdvisoryLowConfidence], []string{"s3"}) {
		t.Fatalf("low-confidence = %v", kinds[AdvisoryLowConfidence])
	}
}

func TestValidateCleanSpans(t *testing.T) {
	spans := []Span{
		{SentenceID: "s1", StartMs: 0, EndMs: 1000, Confidence: 0.9},
		{SentenceID: "s2", StartMs: 1000, EndMs: 2500, Confidence: 0.8},
	}
	if advisories := Validate(spans, Options{}); len(advisories) != 0 {
		t.Fatalf("advisories for clean spans: %+v", advisories)
	}
}
