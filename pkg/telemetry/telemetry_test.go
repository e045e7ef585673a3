package telemetry

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestGetSampler(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		contain string
	}{
		{name: "always", cfg: Config{SamplerType: "always"}, contain: "AlwaysOnSampler"},
		{name: "never", cfg: Config{SamplerType: "never"}, contain: "AlwaysOffSampler"},
		{name: "ratio", cfg: Config{SamplerType: "ratio", SamplerRatio: 0.5}, contain: "TraceIDRatioBased"},
		{name: "unknown falls back", cfg: Config{SamplerType: "sometimes"}, contain: "AlwaysOnSampler"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, getSampler(tt.cfg).Description(), tt.contain)
		})
	}
}

func TestWithSpan_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := WithSpan(context.Background(), "test", func(context.Context) error { return boom })
	assert.Equal(t, boom, err)

	assert.NoError(t, WithSpan(context.Background(), "test", func(context.Context) error { return nil }))
}

func TestIdentityAttributes(t *testing.T) {
	attrs := IdentityAttributes(skilltypes.Identity{AgentID: "a", TaskID: "t"})
	assert.Equal(t, []attribute.KeyValue{
		attribute.String("skill.agent_id", "a"),
		attribute.String("skill.task_id", "t"),
	}, attrs)

	campaign := "c"
	attrs = IdentityAttributes(skilltypes.Identity{AgentID: "a", TaskID: "t", CampaignID: &campaign})
	assert.Len(t, attrs, 3)
	assert.Equal(t, attribute.String("skill.campaign_id", "c"), attrs[2])
}

func TestCapabilityAttribute(t *testing.T) {
	assert.Equal(t, attribute.String("service.capability", "render_video"), CapabilityAttribute(skilltypes.CapabilityRenderVideo))
}
