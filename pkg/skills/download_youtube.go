package skills

import (
	"context"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// SkillDownloadYouTube is the registry name of the video download skill.
const SkillDownloadYouTube = "download_youtube"

// DownloadType selects which streams are fetched.
type DownloadType string

const (
	DownloadVideo DownloadType = "video"
	DownloadAudio DownloadType = "audio"
	DownloadBoth  DownloadType = "both"
)

// Quality selects the stream quality.
type Quality string

const (
	QualityHighest Quality = "highest"
	QualityMedium  Quality = "medium"
	QualityLowest  Quality = "lowest"
)

// AudioFormat is the container used when audio is extracted.
type AudioFormat string

const (
	AudioMP3 AudioFormat = "mp3"
	AudioWAV AudioFormat = "wav"
	AudioM4A AudioFormat = "m4a"
)

// DownloadYouTubeInput is the validated input of the download_youtube skill.
type DownloadYouTubeInput struct {
	skilltypes.Identity `mapstructure:",squash"`

	VideoURL           string       `json:"video_url" mapstructure:"video_url" validate:"required" jsonschema:"required"`
	DownloadType       DownloadType `json:"download_type" mapstructure:"download_type" validate:"oneof=video audio both" jsonschema:"enum=video,enum=audio,enum=both,default=video"`
	Quality            Quality      `json:"quality" mapstructure:"quality" validate:"oneof=highest medium lowest" jsonschema:"enum=highest,enum=medium,enum=lowest,default=medium"`
	Format             *string      `json:"format,omitempty" mapstructure:"format" jsonschema:"description=Preferred container for the video stream"`
	ExtractAudioFormat AudioFormat  `json:"extract_audio_format" mapstructure:"extract_audio_format" validate:"oneof=mp3 wav m4a" jsonschema:"enum=mp3,enum=wav,enum=m4a,default=mp3"`
	Purpose            *string      `json:"purpose,omitempty" mapstructure:"purpose"`
}

func defaultDownloadYouTubeInput() DownloadYouTubeInput {
	return DownloadYouTubeInput{
		DownloadType:       DownloadVideo,
		Quality:            QualityMedium,
		ExtractAudioFormat: AudioMP3,
	}
}

// ParseDownloadYouTubeInput validates raw parameters into a DownloadYouTubeInput.
func ParseDownloadYouTubeInput(raw map[string]any) (*DownloadYouTubeInput, error) {
	return parseInput(SkillDownloadYouTube, raw, defaultDownloadYouTubeInput())
}

func (in *DownloadYouTubeInput) jobArguments() map[string]any {
	args := map[string]any{
		"video_url":            in.VideoURL,
		"download_type":        string(in.DownloadType),
		"quality":              string(in.Quality),
		"extract_audio_format": string(in.ExtractAudioFormat),
	}
	if in.Format != nil {
		args["format"] = *in.Format
	}
	if in.Purpose != nil {
		args["purpose"] = *in.Purpose
	}
	return args
}

// DownloadYouTubeOutput is the result of a successful download.
type DownloadYouTubeOutput struct {
	skilltypes.Identity `mapstructure:",squash"`

	VideoURI        string       `json:"video_uri,omitempty" mapstructure:"video_uri"`
	AudioURI        string       `json:"audio_uri,omitempty" mapstructure:"audio_uri"`
	Title           string       `json:"title,omitempty" mapstructure:"title"`
	DurationSeconds float64      `json:"duration_seconds,omitempty" mapstructure:"duration_seconds"`
	DownloadType    DownloadType `json:"download_type" mapstructure:"download_type"`
	Quality         Quality      `json:"quality" mapstructure:"quality"`
}

// ExecuteDownloadYouTube downloads the video and/or audio streams of in.VideoURL.
func ExecuteDownloadYouTube(ctx context.Context, in *DownloadYouTubeInput, svc skilltypes.ServiceClient, store skilltypes.Store, opts ...Option) (*DownloadYouTubeOutput, error) {
	if in == nil {
		return nil, errNilInput(SkillDownloadYouTube)
	}
	return execute(ctx, dispatch[DownloadYouTubeOutput]{
		skill:      SkillDownloadYouTube,
		capability: skilltypes.CapabilityDownloadMedia,
		identity:   in.Identity,
		arguments:  in.jobArguments(),
		finalize: func(out *DownloadYouTubeOutput) error {
			out.DownloadType = in.DownloadType
			out.Quality = in.Quality
			wantVideo := in.DownloadType != DownloadAudio
			wantAudio := in.DownloadType != DownloadVideo
			if wantVideo && out.VideoURI == "" {
				return errMissingOutput("video_uri")
			}
			if wantAudio && out.AudioURI == "" {
				return errMissingOutput("audio_uri")
			}
			return nil
		},
	}, svc, store, opts...)
}
