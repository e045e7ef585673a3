package trends

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DetectedAtLayout is the wire format of detected_at: UTC with microseconds and a Z suffix.
const DetectedAtLayout = "2006-01-02T15:04:05.000000Z07:00"

// TrendObservation is one scored signal about a topic's prominence.
type TrendObservation struct {
	TrendID       string
	Topic         string
	TrendScore    float64
	Source        string
	SampleContent string
	DetectedAt    time.Time
}

// Validate checks the observation invariants.
func (o TrendObservation) Validate() error {
	switch {
	case o.TrendID == "":
		return errors.New("trend_id is required")
	case math.IsNaN(o.TrendScore) || o.TrendScore < 0 || o.TrendScore > 1:
		return errors.Errorf("trend_score %v is outside [0, 1]", o.TrendScore)
	case o.DetectedAt.IsZero():
		return errors.New("detected_at is required")
	}
	return nil
}

type observationWire struct {
	TrendID       string    `json:"trend_id"`
	Topic         string    `json:"topic"`
	TrendScore    jsonFloat `json:"trend_score"`
	Source        string    `json:"source"`
	SampleContent string    `json:"sample_content"`
	DetectedAt    string    `json:"detected_at"`
}

func (o TrendObservation) MarshalJSON() ([]byte, error) {
	return json.Marshal(observationWire{
		TrendID:       o.TrendID,
		Topic:         o.Topic,
		TrendScore:    jsonFloat(o.TrendScore),
		Source:        o.Source,
		SampleContent: o.SampleContent,
		DetectedAt:    o.DetectedAt.UTC().Format(DetectedAtLayout),
	})
}

func (o *TrendObservation) UnmarshalJSON(data []byte) error {
	var w struct {
		TrendID       string    `json:"trend_id"`
		Topic         string    `json:"topic"`
		TrendScore    float64   `json:"trend_score"`
		Source        string    `json:"source"`
		SampleContent string    `json:"sample_content"`
		DetectedAt    time.Time `json:"detected_at"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*o = TrendObservation{
		TrendID:       w.TrendID,
		Topic:         w.Topic,
		TrendScore:    w.TrendScore,
		Source:        w.Source,
		SampleContent: w.SampleContent,
		DetectedAt:    w.DetectedAt.UTC(),
	}
	return nil
}

// jsonFloat always encodes with a fractional part, so 1 is written as 1.0.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	s := strconv.FormatFloat(float64(f), 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return []byte(s), nil
}

// TrendResult is the answer to a trend query. The number of trends reported
// on the wire is always derived from the collection itself.
type TrendResult struct {
	trends []TrendObservation
}

// NewTrendResult builds a result from observations, rejecting any that breaks
// an observation invariant.
func NewTrendResult(observations []TrendObservation) (*TrendResult, error) {
	trends := make([]TrendObservation, len(observations))
	copy(trends, observations)
	r := &TrendResult{trends: trends}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Trends returns a copy of the observations. Their order is unspecified.
func (r *TrendResult) Trends() []TrendObservation {
	out := make([]TrendObservation, len(r.trends))
	copy(out, r.trends)
	return out
}

// TotalTrends is the number of observations.
func (r *TrendResult) TotalTrends() int {
	return len(r.trends)
}

// Validate re-checks every observation and that trend IDs are unique.
func (r *TrendResult) Validate() error {
	seen := make(map[string]struct{}, len(r.trends))
	for i, o := range r.trends {
		if err := o.Validate(); err != nil {
			return errors.Wrapf(err, "trend %d", i)
		}
		if _, dup := seen[o.TrendID]; dup {
			return errors.Errorf("trend %d: duplicate trend_id %s", i, o.TrendID)
		}
		seen[o.TrendID] = struct{}{}
	}
	return nil
}

// SortedByScore returns the observations ranked by descending score, ties
// broken by topic.
func (r *TrendResult) SortedByScore() []TrendObservation {
	out := r.Trends()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TrendScore != out[j].TrendScore {
			return out[i].TrendScore > out[j].TrendScore
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

type resultWire struct {
	Trends      []TrendObservation `json:"trends"`
	TotalTrends int                `json:"total_trends"`
}

func (r TrendResult) MarshalJSON() ([]byte, error) {
	trends := r.trends
	if trends == nil {
		trends = []TrendObservation{}
	}
	return json.Marshal(resultWire{Trends: trends, TotalTrends: len(trends)})
}

// UnmarshalJSON rejects payloads whose total_trends disagrees with the
// collection or whose observations are invalid.
func (r *TrendResult) UnmarshalJSON(data []byte) error {
	var w resultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.TotalTrends != len(w.Trends) {
		return errors.Errorf("total_trends %d does not match %d trends", w.TotalTrends, len(w.Trends))
	}
	parsed, err := NewTrendResult(w.Trends)
	if err != nil {
		return err
	}
	*r = *parsed
	return nil
}
