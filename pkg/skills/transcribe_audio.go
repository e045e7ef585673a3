package skills

import (
	"context"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// SkillTranscribeAudio is the registry name of the transcription skill.
const SkillTranscribeAudio = "transcribe_audio"

// SourceType says where the audio to transcribe lives.
type SourceType string

const (
	SourceURL           SourceType = "url"
	SourceObjectStorage SourceType = "object_storage"
	SourceMCPResource   SourceType = "mcp_resource"
)

// TranscriptFormat is the output format of a transcript.
type TranscriptFormat string

const (
	TranscriptText TranscriptFormat = "text"
	TranscriptSRT  TranscriptFormat = "srt"
	TranscriptVTT  TranscriptFormat = "vtt"
)

// TranscribeAudioInput is the validated input of the transcribe_audio skill.
type TranscribeAudioInput struct {
	skilltypes.Identity `mapstructure:",squash"`

	AudioSource        string           `json:"audio_source" mapstructure:"audio_source" validate:"required" jsonschema:"required,description=URL or storage key of the audio"`
	SourceType         SourceType       `json:"source_type" mapstructure:"source_type" validate:"required,oneof=url object_storage mcp_resource" jsonschema:"required,enum=url,enum=object_storage,enum=mcp_resource"`
	Language           string           `json:"language" mapstructure:"language" jsonschema:"default=en"`
	Format             TranscriptFormat `json:"format" mapstructure:"format" validate:"oneof=text srt vtt" jsonschema:"enum=text,enum=srt,enum=vtt,default=text"`
	SpeakerDiarization bool             `json:"speaker_diarization" mapstructure:"speaker_diarization" jsonschema:"default=false"`
	Timestamps         bool             `json:"timestamps" mapstructure:"timestamps" jsonschema:"default=true"`
}

func defaultTranscribeAudioInput() TranscribeAudioInput {
	return TranscribeAudioInput{
		Language:           "en",
		Format:             TranscriptText,
		SpeakerDiarization: false,
		Timestamps:         true,
	}
}

// ParseTranscribeAudioInput validates raw parameters into a TranscribeAudioInput.
func ParseTranscribeAudioInput(raw map[string]any) (*TranscribeAudioInput, error) {
	return parseInput(SkillTranscribeAudio, raw, defaultTranscribeAudioInput())
}

func (in *TranscribeAudioInput) jobArguments() map[string]any {
	return map[string]any{
		"audio_source":        in.AudioSource,
		"source_type":         string(in.SourceType),
		"language":            in.Language,
		"format":              string(in.Format),
		"speaker_diarization": in.SpeakerDiarization,
		"timestamps":          in.Timestamps,
	}
}

// TranscriptSegment is one timed slice of a transcript.
type TranscriptSegment struct {
	Start   float64 `json:"start" mapstructure:"start"`
	End     float64 `json:"end" mapstructure:"end"`
	Text    string  `json:"text" mapstructure:"text"`
	Speaker string  `json:"speaker,omitempty" mapstructure:"speaker"`
}

// TranscribeAudioOutput is the result of a successful transcription.
type TranscribeAudioOutput struct {
	skilltypes.Identity `mapstructure:",squash"`

	Transcript      string              `json:"transcript" mapstructure:"transcript"`
	Format          TranscriptFormat    `json:"format" mapstructure:"format"`
	Language        string              `json:"language" mapstructure:"language"`
	Segments        []TranscriptSegment `json:"segments,omitempty" mapstructure:"segments"`
	DurationSeconds float64             `json:"duration_seconds,omitempty" mapstructure:"duration_seconds"`
}

// ExecuteTranscribeAudio transcribes the audio described by in.
func ExecuteTranscribeAudio(ctx context.Context, in *TranscribeAudioInput, svc skilltypes.ServiceClient, store skilltypes.Store, opts ...Option) (*TranscribeAudioOutput, error) {
	if in == nil {
		return nil, errNilInput(SkillTranscribeAudio)
	}
	return execute(ctx, dispatch[TranscribeAudioOutput]{
		skill:      SkillTranscribeAudio,
		capability: skilltypes.CapabilityTranscribeAudio,
		identity:   in.Identity,
		arguments:  in.jobArguments(),
		required:   []string{"transcript"},
		finalize: func(out *TranscribeAudioOutput) error {
			if out.Format == "" {
				out.Format = in.Format
			}
			if out.Language == "" {
				out.Language = in.Language
			}
			return nil
		},
	}, svc, store, opts...)
}
