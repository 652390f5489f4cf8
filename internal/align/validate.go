package align

import "fmt"

// AdvisoryKind classifies a quality issue found in produced spans.
type AdvisoryKind string

const (
	AdvisoryZeroDuration  AdvisoryKind = "zero-duration"
	AdvisoryOverlap       AdvisoryKind = "overlap"
	AdvisoryLowConfidence AdvisoryKind = "low-confidence"
)

// Advisory reports a non-fatal quality issue with one span. Advisories are
// data for the caller to log or surface; low-confidence timing is still
// usable, so validation never fails an alignment.
type Advisory struct {
	SentenceID string
	Kind       AdvisoryKind
	Detail     string
}

// Validate inspects spans in order for zero-duration sentences, overlaps
// with the preceding span, and confidence below the configured threshold.
func Validate(spans []Span, opts Options) []Advisory {
	opts = opts.withDefaults()
	var advisories []Advisory
	for i, span := range spans {
		if span.EndMs <= span.StartMs {
			advisories = append(advisories, Advisory{
				SentenceID: span.SentenceID,
				Kind:       AdvisoryZeroDuration,
				Detail:     fmt.Sprintf("span is %dms wide", span.EndMs-span.StartMs),
			})
		}
		if i > 0 && span.StartMs < spans[i-1].EndMs {
			advisories = append(advisories, Advisory{
				SentenceID: span.SentenceID,
				Kind:       AdvisoryOverlap,
				Detail:     fmt.Sprintf("starts %dms before previous span ends", spans[i-1].EndMs-span.StartMs),
			})
		}
		if span.Confidence < opts.LowConfidenceThreshold {
			advisories = append(advisories, Advisory{
				SentenceID: span.SentenceID,
				Kind:       AdvisoryLowConfidence,
				Detail:     fmt.Sprintf("confidence %.2f below %.2f", span.Confidence, opts.LowConfidenceThreshold),
			})
		}
	}
	return advisories
}
