package skills

import (
	"context"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// SkillRenderVideo is the registry name of the video rendering skill.
const SkillRenderVideo = "render_video"

// Tier is the quality class of a rendered video. It decides which fields are required.
type Tier string

const (
	// TierDaily is the cheap image-to-video tier; it animates a source image.
	TierDaily Tier = "tier_1_daily"
	// TierHero is the full text-to-video tier.
	TierHero Tier = "tier_2_hero"
)

// RenderVideoInput is the validated input of the render_video skill.
type RenderVideoInput struct {
	skilltypes.Identity `mapstructure:",squash"`

	Script          string         `json:"script" mapstructure:"script" validate:"required" jsonschema:"required"`
	Tier            Tier           `json:"tier" mapstructure:"tier" validate:"required,oneof=tier_1_daily tier_2_hero" jsonschema:"required,enum=tier_1_daily,enum=tier_2_hero"`
	SourceImage     *string        `json:"source_image,omitempty" mapstructure:"source_image" jsonschema:"description=Required for tier_1_daily"`
	Style           *string        `json:"style,omitempty" mapstructure:"style"`
	DurationSeconds *int           `json:"duration_seconds,omitempty" mapstructure:"duration_seconds" validate:"omitnil,gt=0"`
	AspectRatio     AspectRatio    `json:"aspect_ratio" mapstructure:"aspect_ratio" validate:"oneof=16:9 9:16 1:1" jsonschema:"enum=16:9,enum=9:16,enum=1:1,default=9:16"`
	Context         map[string]any `json:"context,omitempty" mapstructure:"context"`
}

func defaultRenderVideoInput() RenderVideoInput {
	return RenderVideoInput{AspectRatio: AspectPortrait}
}

// ParseRenderVideoInput validates raw parameters into a RenderVideoInput.
func ParseRenderVideoInput(raw map[string]any) (*RenderVideoInput, error) {
	return parseInput(SkillRenderVideo, raw, defaultRenderVideoInput())
}

func (in *RenderVideoInput) crossFieldErrors() []skilltypes.FieldError {
	if in.Tier == TierDaily && (in.SourceImage == nil || *in.SourceImage == "") {
		return []skilltypes.FieldError{{
			Field:   "source_image",
			Rule:    "required_for_tier",
			Message: "is required when tier is tier_1_daily",
		}}
	}
	return nil
}

func (in *RenderVideoInput) jobArguments() map[string]any {
	args := map[string]any{
		"script":       in.Script,
		"tier":         string(in.Tier),
		"aspect_ratio": string(in.AspectRatio),
	}
	if in.SourceImage != nil {
		args["source_image"] = *in.SourceImage
	}
	if in.Style != nil {
		args["style"] = *in.Style
	}
	if in.DurationSeconds != nil {
		args["duration_seconds"] = *in.DurationSeconds
	}
	if in.Context != nil {
		args["context"] = in.Context
	}
	return args
}

// RenderVideoOutput is the rendered video reference.
type RenderVideoOutput struct {
	skilltypes.Identity `mapstructure:",squash"`

	VideoURL        string      `json:"video_url" mapstructure:"video_url"`
	Tier            Tier        `json:"tier" mapstructure:"tier"`
	AspectRatio     AspectRatio `json:"aspect_ratio" mapstructure:"aspect_ratio"`
	DurationSeconds float64     `json:"duration_seconds,omitempty" mapstructure:"duration_seconds"`
	ThumbnailURL    string      `json:"thumbnail_url,omitempty" mapstructure:"thumbnail_url"`
}

// ExecuteRenderVideo renders a video from the script. Rendering is usually
// asynchronous, so the job is polled until it finishes or the dispatch times out.
func ExecuteRenderVideo(ctx context.Context, in *RenderVideoInput, svc skilltypes.ServiceClient, store skilltypes.Store, opts ...Option) (*RenderVideoOutput, error) {
	if in == nil {
		return nil, errNilInput(SkillRenderVideo)
	}
	return execute(ctx, dispatch[RenderVideoOutput]{
		skill:      SkillRenderVideo,
		capability: skilltypes.CapabilityRenderVideo,
		identity:   in.Identity,
		arguments:  in.jobArguments(),
		required:   []string{"video_url"},
		finalize: func(out *RenderVideoOutput) error {
			out.Tier = in.Tier
			out.AspectRatio = in.AspectRatio
			if out.DurationSeconds == 0 && in.DurationSeconds != nil {
				out.DurationSeconds = float64(*in.DurationSeconds)
			}
			return nil
		},
	}, svc, store, opts...)
}
