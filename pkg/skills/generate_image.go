package skills

import (
	"context"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// SkillGenerateImage is the registry name of the character image skill.
const SkillGenerateImage = "generate_image"

// AspectRatio is a frame shape shared by image and video skills. Each skill
// accepts its own subset.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
	AspectClassic   AspectRatio = "4:3"
	AspectTall      AspectRatio = "3:4"
)

// Resolution selects the image detail level.
type Resolution string

const (
	ResolutionStandard Resolution = "standard"
	ResolutionHigh     Resolution = "high"
	ResolutionUltra    Resolution = "ultra"
)

// GenerateImageInput is the validated input of the generate_image skill.
type GenerateImageInput struct {
	skilltypes.Identity `mapstructure:",squash"`

	Prompt               string         `json:"prompt" mapstructure:"prompt" validate:"required" jsonschema:"required"`
	CharacterReferenceID string         `json:"character_reference_id" mapstructure:"character_reference_id" validate:"required" jsonschema:"required,description=Reference of the character to keep consistent"`
	Style                *string        `json:"style,omitempty" mapstructure:"style"`
	AspectRatio          AspectRatio    `json:"aspect_ratio" mapstructure:"aspect_ratio" validate:"oneof=1:1 16:9 9:16 4:3 3:4" jsonschema:"enum=1:1,enum=16:9,enum=9:16,enum=4:3,enum=3:4,default=1:1"`
	Resolution           Resolution     `json:"resolution" mapstructure:"resolution" validate:"oneof=standard high ultra" jsonschema:"enum=standard,enum=high,enum=ultra,default=standard"`
	NegativePrompt       *string        `json:"negative_prompt,omitempty" mapstructure:"negative_prompt"`
	Context              map[string]any `json:"context,omitempty" mapstructure:"context"`
}

func defaultGenerateImageInput() GenerateImageInput {
	return GenerateImageInput{
		AspectRatio: AspectSquare,
		Resolution:  ResolutionStandard,
	}
}

// ParseGenerateImageInput validates raw parameters into a GenerateImageInput.
func ParseGenerateImageInput(raw map[string]any) (*GenerateImageInput, error) {
	return parseInput(SkillGenerateImage, raw, defaultGenerateImageInput())
}

func (in *GenerateImageInput) jobArguments() map[string]any {
	args := map[string]any{
		"prompt":                 in.Prompt,
		"character_reference_id": in.CharacterReferenceID,
		"aspect_ratio":           string(in.AspectRatio),
		"resolution":             string(in.Resolution),
	}
	if in.Style != nil {
		args["style"] = *in.Style
	}
	if in.NegativePrompt != nil {
		args["negative_prompt"] = *in.NegativePrompt
	}
	if in.Context != nil {
		args["context"] = in.Context
	}
	return args
}

// GenerateImageOutput is the generated image reference.
type GenerateImageOutput struct {
	skilltypes.Identity `mapstructure:",squash"`

	ImageURL             string      `json:"image_url" mapstructure:"image_url"`
	CharacterReferenceID string      `json:"character_reference_id" mapstructure:"character_reference_id"`
	AspectRatio          AspectRatio `json:"aspect_ratio" mapstructure:"aspect_ratio"`
	Resolution           Resolution  `json:"resolution" mapstructure:"resolution"`
	RevisedPrompt        string      `json:"revised_prompt,omitempty" mapstructure:"revised_prompt"`
}

// ExecuteGenerateImage generates an image of the referenced character.
func ExecuteGenerateImage(ctx context.Context, in *GenerateImageInput, svc skilltypes.ServiceClient, store skilltypes.Store, opts ...Option) (*GenerateImageOutput, error) {
	if in == nil {
		return nil, errNilInput(SkillGenerateImage)
	}
	return execute(ctx, dispatch[GenerateImageOutput]{
		skill:      SkillGenerateImage,
		capability: skilltypes.CapabilityGenerateImage,
		identity:   in.Identity,
		arguments:  in.jobArguments(),
		required:   []string{"image_url"},
		finalize: func(out *GenerateImageOutput) error {
			out.CharacterReferenceID = in.CharacterReferenceID
			out.AspectRatio = in.AspectRatio
			out.Resolution = in.Resolution
			return nil
		},
	}, svc, store, opts...)
}
