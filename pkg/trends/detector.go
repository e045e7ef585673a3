package trends

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/agentskills/skillkit/pkg/logger"
	"github.com/agentskills/skillkit/pkg/services"
	"github.com/agentskills/skillkit/pkg/telemetry"
	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// Config tunes a Detector.
type Config struct {
	// RelevanceThreshold drops observations scoring below it.
	RelevanceThreshold float64 `mapstructure:"relevance_threshold"`
	// DefaultQueries maps a platform to the query used when none is given.
	DefaultQueries map[string]string `mapstructure:"default_queries"`
	Timeout        time.Duration     `mapstructure:"timeout"`
	PollInterval   time.Duration     `mapstructure:"poll_interval"`
}

// DefaultTimeout bounds a single trend query.
const DefaultTimeout = 2 * time.Minute

// Detector answers trend queries through the detect_trends capability. It
// keeps no state between queries and is safe for concurrent use.
type Detector struct {
	svc            skilltypes.ServiceClient
	threshold      float64
	defaultQueries map[string]string
	timeout        time.Duration
	pollInterval   time.Duration
	now            func() time.Time
	newID          func() string
}

// NewDetector creates a Detector backed by svc.
func NewDetector(svc skilltypes.ServiceClient, cfg Config) *Detector {
	d := &Detector{
		svc:            svc,
		threshold:      cfg.RelevanceThreshold,
		defaultQueries: cfg.DefaultQueries,
		timeout:        cfg.Timeout,
		pollInterval:   cfg.PollInterval,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	return d
}

// DefaultQuery returns the query used for platform when the caller gives none.
func (d *Detector) DefaultQuery(platform Platform) string {
	if q := d.defaultQueries[string(platform)]; q != "" {
		return q
	}
	return "trending now on " + string(platform)
}

// DetectTrends validates the parameters and detects trends. An invalid
// platform or time window fails with a *skilltypes.ParameterError before the
// service is contacted.
func (d *Detector) DetectTrends(ctx context.Context, agentID, platform string, opts ...QueryOption) (*TrendResult, error) {
	raw := map[string]any{"agent_id": agentID, "platform": platform}
	for _, opt := range opts {
		opt(raw)
	}
	q, err := ParseTrendQuery(raw)
	if err != nil {
		return nil, err
	}
	return d.Detect(ctx, *q)
}

// Detect runs a trend query. No matching observations is a successful, empty result.
func (d *Detector) Detect(ctx context.Context, q TrendQuery) (*TrendResult, error) {
	if q.TimeWindow == "" {
		q.TimeWindow = DefaultTimeWindow
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if d.svc == nil {
		return nil, skilltypes.NewExternalServiceError(skilltypes.CapabilityDetectTrends, skilltypes.CodeUnsupported, "no trend source configured", nil)
	}

	query := d.DefaultQuery(q.Platform)
	if q.Query != nil && *q.Query != "" {
		query = *q.Query
	}

	ctx = logger.WithFields(ctx, logrus.Fields{
		"agent_id":    q.AgentID,
		"platform":    q.Platform,
		"time_window": q.TimeWindow,
	})

	var result *TrendResult
	err := telemetry.WithSpan(ctx, "trends.detect", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		job := skilltypes.Job{
			Capability: skilltypes.CapabilityDetectTrends,
			AgentID:    q.AgentID,
			TaskID:     d.newID(),
			Arguments: map[string]any{
				"agent_id":    q.AgentID,
				"platform":    string(q.Platform),
				"query":       query,
				"time_window": string(q.TimeWindow),
			},
		}
		jobResult, err := services.Await(ctx, d.svc, job, d.pollInterval)
		if err != nil {
			return err
		}

		observations, err := d.observations(ctx, q.Platform, jobResult.Output)
		if err != nil {
			return err
		}
		result, err = NewTrendResult(observations)
		if err != nil {
			return skilltypes.NewExternalServiceError(skilltypes.CapabilityDetectTrends, skilltypes.CodeMalformedResponse, "invalid trends", err)
		}
		return nil
	},
		attribute.String("trends.platform", string(q.Platform)),
		attribute.String("trends.time_window", string(q.TimeWindow)),
		attribute.String("skill.agent_id", q.AgentID),
	)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("trend detection failed")
		return nil, err
	}

	logger.G(ctx).WithField("total_trends", result.TotalTrends()).Info("trend detection completed")
	return result, nil
}

type providerTrend struct {
	TrendID       string   `mapstructure:"trend_id"`
	Topic         string   `mapstructure:"topic"`
	TrendScore    *float64 `mapstructure:"trend_score"`
	Source        string   `mapstructure:"source"`
	SampleContent string   `mapstructure:"sample_content"`
}

// observations normalizes provider output. Entries that cannot be trusted are
// dropped with a warning instead of failing the whole query.
func (d *Detector) observations(ctx context.Context, platform Platform, output map[string]any) ([]TrendObservation, error) {
	var payload struct {
		Trends []providerTrend `mapstructure:"trends"`
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &payload,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(output); err != nil {
		return nil, skilltypes.NewExternalServiceError(skilltypes.CapabilityDetectTrends, skilltypes.CodeMalformedResponse, "trends have unexpected shape", err)
	}

	log := logger.G(ctx)
	detectedAt := d.now().UTC()
	seen := make(map[string]struct{}, len(payload.Trends))
	observations := make([]TrendObservation, 0, len(payload.Trends))
	for i, t := range payload.Trends {
		entry := log.WithField("index", i).WithField("topic", t.Topic)
		switch {
		case t.Topic == "":
			entry.Warn("dropping trend without topic")
			continue
		case t.TrendScore == nil || math.IsNaN(*t.TrendScore) || *t.TrendScore < 0 || *t.TrendScore > 1:
			entry.WithField("trend_score", t.TrendScore).Warn("dropping trend with out of range score")
			continue
		case *t.TrendScore < d.threshold:
			entry.WithField("trend_score", *t.TrendScore).Debug("trend below relevance threshold")
			continue
		}

		id := t.TrendID
		if _, dup := seen[id]; id == "" || dup {
			id = d.newID()
		}
		seen[id] = struct{}{}

		source := t.Source
		if source == "" {
			source = string(platform)
		}
		observations = append(observations, TrendObservation{
			TrendID:       id,
			Topic:         t.Topic,
			TrendScore:    *t.TrendScore,
			Source:        source,
			SampleContent: t.SampleContent,
			DetectedAt:    detectedAt,
		})
	}
	return observations, nil
}
