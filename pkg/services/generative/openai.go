package generative

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

// OpenAIProvider generates text through chat completions and images through
// the images API.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	imageModel string
	maxTokens  int
}

var (
	_ TextGenerator  = (*OpenAIProvider)(nil)
	_ ImageGenerator = (*OpenAIProvider)(nil)
)

// NewOpenAIProvider creates a provider from an API key and an optional base URL.
func NewOpenAIProvider(apiKey, baseURL, model, imageModel string, maxTokens int) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4Dot1
	}
	if imageModel == "" {
		imageModel = openai.CreateImageModelDallE3
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		imageModel: imageModel,
		maxTokens:  maxTokens,
	}, nil
}

func (p *OpenAIProvider) Name() string  { return ProviderOpenAI }
func (p *OpenAIProvider) Model() string { return p.model }

func (p *OpenAIProvider) GenerateText(ctx context.Context, prompt ContentPrompt) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt.User},
		},
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return "", classifyError(skilltypes.CapabilityGenerateContent, ProviderOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) GenerateImage(ctx context.Context, req ImageRequest) (*Image, error) {
	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          p.imageModel,
		N:              1,
		Size:           req.Size,
		Quality:        req.Quality,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return nil, classifyError(skilltypes.CapabilityGenerateImage, ProviderOpenAI, err)
	}
	if len(resp.Data) == 0 {
		return &Image{}, nil
	}
	return &Image{URL: resp.Data[0].URL, RevisedPrompt: resp.Data[0].RevisedPrompt}, nil
}
