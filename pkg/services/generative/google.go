package generative

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	skilltypes "github.com/agentskills/skillkit/pkg/types/skills"
)

const defaultGoogleModel = "gemini-2.5-flash"

// GoogleProvider generates text through the Gemini API or Vertex AI.
type GoogleProvider struct {
	client    *genai.Client
	model     string
	maxTokens int
}

var _ TextGenerator = (*GoogleProvider)(nil)

// NewGoogleProvider creates a provider. The Vertex AI backend is used when a
// project is configured.
func NewGoogleProvider(ctx context.Context, config GoogleConfig, model string, maxTokens int) (*GoogleProvider, error) {
	clientConfig := &genai.ClientConfig{}
	if config.Project != "" {
		clientConfig.Backend = genai.BackendVertexAI
		clientConfig.Project = config.Project
		clientConfig.Location = config.Location
	} else {
		clientConfig.Backend = genai.BackendGeminiAPI
		clientConfig.APIKey = config.APIKey
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Google GenAI client")
	}
	if model == "" {
		model = defaultGoogleModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &GoogleProvider{client: client, model: model, maxTokens: maxTokens}, nil
}

func (p *GoogleProvider) Name() string  { return ProviderGoogle }
func (p *GoogleProvider) Model() string { return p.model }

func (p *GoogleProvider) GenerateText(ctx context.Context, prompt ContentPrompt) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		MaxOutputTokens:   int32(p.maxTokens),
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt.User), config)
	if err != nil {
		return "", classifyError(skilltypes.CapabilityGenerateContent, ProviderGoogle, err)
	}
	return strings.TrimSpace(resp.Text()), nil
}
