package generative

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

const defaultAnthropicModel = "claude-sonnet-4-0"

// AnthropicProvider generates text through the messages API.
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

var _ TextGenerator = (*AnthropicProvider)(nil)

// NewAnthropicProvider creates a provider. With an empty apiKey the SDK reads
// ANTHROPIC_API_KEY.
func NewAnthropicProvider(apiKey, baseURL, model string, maxTokens int, opts ...option.RequestOption) *AnthropicProvider {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	clientOpts = append(clientOpts, opts...)
	if model == "" {
		model = defaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(clientOpts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (p *AnthropicProvider) Name() string  { return ProviderAnthropic }
func (p *AnthropicProvider) Model() string { return p.model }

func (p *AnthropicProvider) GenerateText(ctx context.Context, prompt ContentPrompt) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		MaxTokens: int64(p.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: prompt.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
		Model: anthropic.Model(p.model),
	})
	if err != nil {
		return "", classifyError(skilltypes.CapabilityGenerateContent, ProviderAnthropic, err)
	}

	var parts []string
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "")), nil
}
