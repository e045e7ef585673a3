// Package generative serves the content and image capabilities synchronously
// through LLM provider SDKs.
package generative

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/agentskills/skillkit/pkg/logger"
	"github.com/agentskills/skillkit/pkg/services"
	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"

	defaultMaxTokens = 4096
)

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key" json:"api_key"`
	BaseURL string `mapstructure:"base_url" json:"base_url"`
}

type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key" json:"api_key"`
	BaseURL string `mapstructure:"base_url" json:"base_url"`
}

type GoogleConfig struct {
	APIKey   string `mapstructure:"api_key" json:"api_key"`
	Project  string `mapstructure:"project" json:"project"`
	Location string `mapstructure:"location" json:"location"`
}

// Config selects the text provider. Images are always generated with OpenAI
// and are unsupported when no OpenAI key is available.
type Config struct {
	Provider   string          `mapstructure:"provider" json:"provider"`
	Model      string          `mapstructure:"model" json:"model"`
	ImageModel string          `mapstructure:"image_model" json:"image_model"`
	MaxTokens  int             `mapstructure:"max_tokens" json:"max_tokens"`
	OpenAI     OpenAIConfig    `mapstructure:"openai" json:"openai"`
	Anthropic  AnthropicConfig `mapstructure:"anthropic" json:"anthropic"`
	Google     GoogleConfig    `mapstructure:"google" json:"google"`
}

// TextGenerator produces text content for a prompt.
type TextGenerator interface {
	Name() string
	Model() string
	GenerateText(ctx context.Context, prompt ContentPrompt) (string, error)
}

// Image is a generated image reference.
type Image struct {
	URL           string
	RevisedPrompt string
}

// ImageGenerator produces an image for a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*Image, error)
}

// Client is a synchronous ServiceClient for generate_content and generate_image.
type Client struct {
	text  TextGenerator
	image ImageGenerator
	retry services.RetryConfig
	newID func() string
}

var _ skilltypes.ServiceClient = (*Client)(nil)

// NewClient builds the configured providers. API keys fall back to the
// provider's usual environment variable.
func NewClient(ctx context.Context, config Config, retryConfig services.RetryConfig) (*Client, error) {
	openaiKey := config.OpenAI.APIKey
	if openaiKey == "" {
		openaiKey = os.Getenv("OPENAI_API_KEY")
	}

	var openaiProvider *OpenAIProvider
	if openaiKey != "" {
		p, err := NewOpenAIProvider(openaiKey, config.OpenAI.BaseURL, config.Model, config.ImageModel, config.MaxTokens)
		if err != nil {
			return nil, err
		}
		openaiProvider = p
	}

	var text TextGenerator
	switch config.Provider {
	case ProviderOpenAI, "":
		if openaiProvider == nil {
			return nil, errors.New("OPENAI_API_KEY environment variable is required")
		}
		text = openaiProvider
	case ProviderAnthropic:
		text = NewAnthropicProvider(config.Anthropic.APIKey, config.Anthropic.BaseURL, config.Model, config.MaxTokens)
	case ProviderGoogle:
		googleConfig := config.Google
		if googleConfig.APIKey == "" {
			googleConfig.APIKey = os.Getenv("GEMINI_API_KEY")
		}
		p, err := NewGoogleProvider(ctx, googleConfig, config.Model, config.MaxTokens)
		if err != nil {
			return nil, err
		}
		text = p
	default:
		return nil, errors.Errorf("unsupported generative provider %q", config.Provider)
	}

	var image ImageGenerator
	if openaiProvider != nil {
		image = openaiProvider
	}
	return NewClientWithGenerators(text, image, retryConfig), nil
}

// NewClientWithGenerators wires explicit generators. A nil image generator
// makes generate_image unsupported.
func NewClientWithGenerators(text TextGenerator, image ImageGenerator, retryConfig services.RetryConfig) *Client {
	return &Client{
		text:  text,
		image: image,
		retry: retryConfig,
		newID: uuid.NewString,
	}
}

// Capabilities lists the capabilities this client can serve.
func (c *Client) Capabilities() []skilltypes.Capability {
	var caps []skilltypes.Capability
	if c.text != nil {
		caps = append(caps, skilltypes.CapabilityGenerateContent)
	}
	if c.image != nil {
		caps = append(caps, skilltypes.CapabilityGenerateImage)
	}
	return caps
}

// Submit generates synchronously and always returns a terminal result.
func (c *Client) Submit(ctx context.Context, job skilltypes.Job) (*skilltypes.JobResult, error) {
	var (
		output map[string]any
		err    error
	)
	switch {
	case job.Capability == skilltypes.CapabilityGenerateContent && c.text != nil:
		output, err = c.generateContent(ctx, job)
	case job.Capability == skilltypes.CapabilityGenerateImage && c.image != nil:
		output, err = c.generateImage(ctx, job)
	default:
		return nil, skilltypes.NewExternalServiceError(job.Capability, skilltypes.CodeUnsupported, "capability is not served by the generative client", nil)
	}
	if err != nil {
		return nil, err
	}
	return &skilltypes.JobResult{
		JobID:      c.newID(),
		Capability: job.Capability,
		Status:     skilltypes.JobSucceeded,
		Output:     output,
	}, nil
}

// Fetch always fails: generative jobs finish inside Submit.
func (c *Client) Fetch(_ context.Context, capability skilltypes.Capability, jobID string) (*skilltypes.JobResult, error) {
	return nil, skilltypes.NewExternalServiceError(capability, skilltypes.CodeNotFound, "job "+jobID+" is not tracked by the generative client", nil)
}

func (c *Client) generateContent(ctx context.Context, job skilltypes.Job) (map[string]any, error) {
	prompt, err := buildContentPrompt(job.Arguments)
	if err != nil {
		return nil, skilltypes.NewExternalServiceError(job.Capability, skilltypes.CodeInvalidRequest, "content arguments are incomplete", err)
	}

	var content string
	err = services.Retry(ctx, c.retry, job.Capability, func() error {
		var genErr error
		content, genErr = c.text.GenerateText(ctx, prompt)
		return classifyError(job.Capability, c.text.Name(), genErr)
	})
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, skilltypes.NewExternalServiceError(job.Capability, skilltypes.CodeMalformedResponse, c.text.Name()+" returned no content", nil)
	}

	logger.G(ctx).
		WithField("provider", c.text.Name()).
		WithField("model", c.text.Model()).
		WithField("length", len(content)).
		Debug("generated content")
	return map[string]any{
		"content": content,
		"model":   c.text.Model(),
	}, nil
}

func (c *Client) generateImage(ctx context.Context, job skilltypes.Job) (map[string]any, error) {
	req, err := buildImageRequest(job.Arguments)
	if err != nil {
		return nil, skilltypes.NewExternalServiceError(job.Capability, skilltypes.CodeInvalidRequest, "image arguments are incomplete", err)
	}

	var image *Image
	err = services.Retry(ctx, c.retry, job.Capability, func() error {
		var genErr error
		image, genErr = c.image.GenerateImage(ctx, req)
		return classifyError(job.Capability, ProviderOpenAI, genErr)
	})
	if err != nil {
		return nil, err
	}
	if image == nil || image.URL == "" {
		return nil, skilltypes.NewExternalServiceError(job.Capability, skilltypes.CodeMalformedResponse, "image provider returned no image", nil)
	}

	output := map[string]any{"image_url": image.URL}
	if image.RevisedPrompt != "" {
		output["revised_prompt"] = image.RevisedPrompt
	}
	return output, nil
}
