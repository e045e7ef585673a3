package skills

import (
	"context"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// SkillGenerateContent is the registry name of the text content skill.
const SkillGenerateContent = "generate_content"

// ContentType is the kind of text to produce.
type ContentType string

const (
	ContentPost    ContentType = "post"
	ContentReply   ContentType = "reply"
	ContentCaption ContentType = "caption"
	ContentArticle ContentType = "article"
	ContentThread  ContentType = "thread"
)

// Platform is a social platform content can target.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformOpenClaw  Platform = "openclaw"
)

// GenerateContentInput is the validated input of the generate_content skill.
type GenerateContentInput struct {
	skilltypes.Identity `mapstructure:",squash"`

	ContentType   ContentType    `json:"content_type" mapstructure:"content_type" validate:"required,oneof=post reply caption article thread" jsonschema:"required,enum=post,enum=reply,enum=caption,enum=article,enum=thread"`
	Platform      *Platform      `json:"platform,omitempty" mapstructure:"platform" validate:"omitnil,oneof=twitter instagram tiktok openclaw" jsonschema:"enum=twitter,enum=instagram,enum=tiktok,enum=openclaw"`
	Prompt        string         `json:"prompt" mapstructure:"prompt" validate:"required" jsonschema:"required"`
	Context       map[string]any `json:"context" mapstructure:"context" validate:"required" jsonschema:"required,description=Goal and persona constraints such as tone and max_length"`
	MemoryContext map[string]any `json:"memory_context,omitempty" mapstructure:"memory_context"`
}

// ParseGenerateContentInput validates raw parameters into a GenerateContentInput.
func ParseGenerateContentInput(raw map[string]any) (*GenerateContentInput, error) {
	return parseInput(SkillGenerateContent, raw, GenerateContentInput{})
}

func (in *GenerateContentInput) jobArguments() map[string]any {
	args := map[string]any{
		"content_type": string(in.ContentType),
		"prompt":       in.Prompt,
		"context":      in.Context,
	}
	if in.Platform != nil {
		args["platform"] = string(*in.Platform)
	}
	if in.MemoryContext != nil {
		args["memory_context"] = in.MemoryContext
	}
	return args
}

// GenerateContentOutput is the generated text.
type GenerateContentOutput struct {
	skilltypes.Identity `mapstructure:",squash"`

	Content     string      `json:"content" mapstructure:"content"`
	ContentType ContentType `json:"content_type" mapstructure:"content_type"`
	Platform    *Platform   `json:"platform,omitempty" mapstructure:"platform"`
	Model       string      `json:"model,omitempty" mapstructure:"model"`
}

// ExecuteGenerateContent generates text content for the given prompt and context.
func ExecuteGenerateContent(ctx context.Context, in *GenerateContentInput, svc skilltypes.ServiceClient, store skilltypes.Store, opts ...Option) (*GenerateContentOutput, error) {
	if in == nil {
		return nil, errNilInput(SkillGenerateContent)
	}
	return execute(ctx, dispatch[GenerateContentOutput]{
		skill:      SkillGenerateContent,
		capability: skilltypes.CapabilityGenerateContent,
		identity:   in.Identity,
		arguments:  in.jobArguments(),
		required:   []string{"content"},
		finalize: func(out *GenerateContentOutput) error {
			out.ContentType = in.ContentType
			out.Platform = in.Platform
			return nil
		},
	}, svc, store, opts...)
}
