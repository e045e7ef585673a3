package generative

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// ContentPrompt is a provider-neutral text generation request.
type ContentPrompt struct {
	System    string
	User      string
	MaxLength int
}

type contentRequest struct {
	ContentType   string         `mapstructure:"content_type"`
	Platform      string         `mapstructure:"platform"`
	Prompt        string         `mapstructure:"prompt"`
	Context       map[string]any `mapstructure:"context"`
	MemoryContext map[string]any `mapstructure:"memory_context"`
}

// context keys rendered as dedicated instructions, in this order
var contentContextKeys = []string{"persona", "tone", "goal", "audience"}

func decodeArguments(args map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(args)
}

func buildContentPrompt(args map[string]any) (ContentPrompt, error) {
	var req contentRequest
	if err := decodeArguments(args, &req); err != nil {
		return ContentPrompt{}, errors.Wrap(err, "invalid content arguments")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return ContentPrompt{}, errors.New("prompt is empty")
	}

	var system strings.Builder
	system.WriteString("You are a social media content writer.\n")
	contentType := req.ContentType
	if contentType == "" {
		contentType = "post"
	}
	if req.Platform != "" {
		fmt.Fprintf(&system, "Write a %s for %s.\n", contentType, req.Platform)
	} else {
		fmt.Fprintf(&system, "Write a %s.\n", contentType)
	}

	for _, key := range contentContextKeys {
		if v, ok := req.Context[key]; ok && v != nil {
			fmt.Fprintf(&system, "%s: %v\n", titleCase(key), v)
		}
	}

	maxLength := 0
	if v, ok := req.Context["max_length"]; ok {
		maxLength = toInt(v)
		if maxLength > 0 {
			fmt.Fprintf(&system, "Keep it under %d characters.\n", maxLength)
		}
	}

	extra := remainingKeys(req.Context, append([]string{"max_length"}, contentContextKeys...))
	if len(extra) > 0 {
		system.WriteString("Additional constraints:\n")
		for _, key := range extra {
			fmt.Fprintf(&system, "- %s: %v\n", key, req.Context[key])
		}
	}
	system.WriteString("Return only the content text.")

	user := req.Prompt
	if len(req.MemoryContext) > 0 {
		var b strings.Builder
		b.WriteString(user)
		b.WriteString("\n\nRelevant memory:\n")
		for _, key := range remainingKeys(req.MemoryContext, nil) {
			fmt.Fprintf(&b, "- %s: %v\n", key, req.MemoryContext[key])
		}
		user = strings.TrimRight(b.String(), "\n")
	}

	return ContentPrompt{System: system.String(), User: user, MaxLength: maxLength}, nil
}

// ImageRequest is a provider-neutral image generation request.
type ImageRequest struct {
	Prompt  string
	Size    string
	Quality string
}

type imageArguments struct {
	Prompt               string         `mapstructure:"prompt"`
	CharacterReferenceID string         `mapstructure:"character_reference_id"`
	Style                string         `mapstructure:"style"`
	AspectRatio          string         `mapstructure:"aspect_ratio"`
	Resolution           string         `mapstructure:"resolution"`
	NegativePrompt       string         `mapstructure:"negative_prompt"`
	Context              map[string]any `mapstructure:"context"`
}

func buildImageRequest(args map[string]any) (ImageRequest, error) {
	var req imageArguments
	if err := decodeArguments(args, &req); err != nil {
		return ImageRequest{}, errors.Wrap(err, "invalid image arguments")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return ImageRequest{}, errors.New("prompt is empty")
	}

	var b strings.Builder
	b.WriteString(req.Prompt)
	if req.CharacterReferenceID != "" {
		fmt.Fprintf(&b, "\nKeep the character consistent with reference %s.", req.CharacterReferenceID)
	}
	if req.Style != "" {
		fmt.Fprintf(&b, "\nStyle: %s.", req.Style)
	}
	if req.NegativePrompt != "" {
		fmt.Fprintf(&b, "\nAvoid: %s.", req.NegativePrompt)
	}
	for _, key := range remainingKeys(req.Context, nil) {
		fmt.Fprintf(&b, "\n%s: %v", key, req.Context[key])
	}

	return ImageRequest{
		Prompt:  b.String(),
		Size:    imageSize(req.AspectRatio),
		Quality: imageQuality(req.Resolution),
	}, nil
}

// imageSize maps an aspect ratio to the closest size the image API offers.
func imageSize(aspectRatio string) string {
	switch aspectRatio {
	case "16:9", "4:3":
		return "1792x1024"
	case "9:16", "3:4":
		return "1024x1792"
	}
	return "1024x1024"
}

func imageQuality(resolution string) string {
	switch resolution {
	case "high", "ultra":
		return "hd"
	}
	return "standard"
}

func remainingKeys(m map[string]any, skip []string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if !slices.Contains(skip, k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	}
	return 0
}
