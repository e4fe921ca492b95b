package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"libchat/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"google.golang.org/genai"
)

// ErrNoProvider is returned when no provider in the priority list has credentials.
var ErrNoProvider = errors.New("no language model provider configured")

const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

const groqBaseURL = "https://api.groq.com/openai/v1/"

var defaultModels = map[string]string{
	ProviderOpenAI: "gpt-4o-mini",
	ProviderClaude: "claude-3-5-haiku-latest",
	ProviderGemini: "gemini-2.5-flash",
	ProviderGroq:   "llama-3.3-70b-versatile",
}

// Provider is a black-box text-completion service.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// SelectProvider walks order and returns the first provider that has an API key and constructs cleanly.
// Selection happens once; callers never fall back to another provider per request.
func SelectProvider(ctx context.Context, providers map[string]config.ProviderConfig, order []string) (Provider, error) {
	if len(order) == 0 {
		order = config.DefaultProviderOrder
	}
	var errs []error
	for _, name := range order {
		name = strings.ToLower(strings.TrimSpace(name))
		provCfg, ok := providers[name]
		if !ok || strings.TrimSpace(provCfg.APIKey) == "" {
			continue
		}
		p, err := NewProvider(ctx, name, provCfg)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		return p, nil
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoProvider, errors.Join(errs...))
	}
	return nil, ErrNoProvider
}

// NewProvider builds a named provider from its configuration.
func NewProvider(ctx context.Context, name string, provCfg config.ProviderConfig) (Provider, error) {
	modelName := provCfg.Model
	if modelName == "" {
		modelName = defaultModels[name]
	}

	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch name {
	case ProviderOpenAI:
		chatModel, err = einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   modelName,
			APIKey:  provCfg.APIKey,
		})
	case ProviderGemini:
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  provCfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case ProviderClaude:
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: 1024,
		})
	case ProviderGroq:
		baseURL := provCfg.BaseURL
		if baseURL == "" {
			baseURL = groqBaseURL
		}
		return newOpenAICompatProvider(name, baseURL, provCfg.APIKey, modelName), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", name, err)
	}
	return &einoProvider{name: name, chatModel: chatModel}, nil
}

// einoProvider adapts an eino chat model to Provider.
type einoProvider struct {
	name      string
	chatModel model.BaseChatModel
}

func (p *einoProvider) Name() string { return p.name }

func (p *einoProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.chatModel.Generate(ctx, []*schema.Message{
		{
			Role:    schema.User,
			Content: prompt,
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", p.name, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%s generate: empty response", p.name)
	}
	return resp.Content, nil
}

// openAICompatProvider talks to OpenAI-compatible endpoints such as Groq.
type openAICompatProvider struct {
	name   string
	model  string
	client openai.Client
}

func newOpenAICompatProvider(name, baseURL, apiKey, modelName string, opts ...option.RequestOption) *openAICompatProvider {
	opts = append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	}, opts...)
	return &openAICompatProvider{
		name:   name,
		model:  modelName,
		client: openai.NewClient(opts...),
	}
}

func (p *openAICompatProvider) Name() string { return p.name }

func (p *openAICompatProvider) Complete(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(512),
	}
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat completion: no choices", p.name)
	}
	return resp.Choices[0].Message.Content, nil
}
