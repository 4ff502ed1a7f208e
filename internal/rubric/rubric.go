// Package rubric normalizes evaluation scores coming back from the model.
// The upstream response schema is untrusted: fields may be missing, negative,
// above range, or carry excess precision. Everything downstream (display,
// certificates) relies on this package to hand it consistent numbers.
package rubric

import "math"

const (
	minScore = 0
	maxScore = 10
)

// Fields are the raw sub-scores as parsed from the model response. Pointers
// distinguish "absent" from a real zero.
type Fields struct {
	Pronunciation   *float64 `json:"pronunciation"`
	Fluency         *float64 `json:"fluency"`
	Intonation      *float64 `json:"intonation"`
	Vocabulary      *float64 `json:"vocabulary"`
	Grammar         *float64 `json:"grammar"`
	TaskFulfillment *float64 `json:"task_fulfillment"`
}

// Result holds the six normalized sub-scores plus the derived overall score.
// Every value is in [0,10] with one decimal of precision.
type Result struct {
	Pronunciation   float64 `json:"pronunciation"`
	Fluency         float64 `json:"fluency"`
	Intonation      float64 `json:"intonation"`
	Vocabulary      float64 `json:"vocabulary"`
	Grammar         float64 `json:"grammar"`
	TaskFulfillment float64 `json:"task_fulfillment"`
	Overall         float64 `json:"overall"`
}

// Normalize clamps and rounds each sub-score and recomputes the overall
// score as the mean of the normalized values. The overall score is never
// taken from the remote response, so it always agrees with what the
// sub-scores show.
func Normalize(f Fields) Result {
	r := Result{
		Pronunciation:   normalizeScore(f.Pronunciation),
		Fluency:         normalizeScore(f.Fluency),
		Intonation:      normalizeScore(f.Intonation),
		Vocabulary:      normalizeScore(f.Vocabulary),
		Grammar:         normalizeScore(f.Grammar),
		TaskFulfillment: normalizeScore(f.TaskFulfillment),
	}
	sum := r.Pronunciation + r.Fluency + r.Intonation + r.Vocabulary + r.Grammar + r.TaskFulfillment
	r.Overall = round1(clamp(sum / 6))
	return r
}

func normalizeScore(v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	return round1(clamp(*v))
}

func clamp(v float64) float64 {
	if v < minScore {
		return minScore
	}
	if v > maxScore {
		return maxScore
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
