package llm

import (
	"context"
	"encoding/base64"
	"fitagent/app/config"
	"fmt"
	"net/http"
	"sync"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// maxCachedModels bounds the per-key client cache, sessions may each bring their own key.
const maxCachedModels = 64

type Message struct {
	Role    string
	Content string
}

// Client talks to an OpenAI compatible provider through langchaingo.
type Client struct {
	chat   config.ModelConfig
	vision config.ModelConfig

	mu     sync.Mutex
	models map[string]*openai.LLM
}

func New(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewClient(cfg.OpenAI.Chat, cfg.OpenAI.Vision), nil
}

func NewClient(chat, vision config.ModelConfig) *Client {
	return &Client{
		chat:   chat,
		vision: vision,
		models: make(map[string]*openai.LLM),
	}
}

// Chat sends the conversation and returns the full reply text.
// When onChunk is set the reply is streamed and every chunk is passed to it as it arrives.
func (c *Client) Chat(ctx context.Context, apiKey string, messages []Message, onChunk func(string)) (string, error) {
	model, err := c.model(c.chat, apiKey)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.chat.Timeout)
	defer cancel()

	opts := callOptions(c.chat)
	if onChunk != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			onChunk(string(chunk))
			return nil
		}))
	}

	resp, err := model.GenerateContent(ctx, pie.Map(messages, toMessageContent), opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	return firstChoice(resp)
}

// Vision sends a single prompt with an inline image.
func (c *Client) Vision(ctx context.Context, apiKey, prompt string, image []byte, mimeType string) (string, error) {
	model, err := c.model(c.vision, apiKey)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.vision.Timeout)
	defer cancel()

	content := []llms.MessageContent{
		{
			Role: schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
				llms.ImageURLPart(dataURL(mimeType, image)),
			},
		},
	}

	resp, err := model.GenerateContent(ctx, content, callOptions(c.vision)...)
	if err != nil {
		return "", fmt.Errorf("failed to create vision completion: %w", err)
	}

	return firstChoice(resp)
}

func (c *Client) model(cfg config.ModelConfig, apiKey string) (*openai.LLM, error) {
	key := cfg.BaseURL + "|" + cfg.Model + "|" + apiKey

	c.mu.Lock()
	defer c.mu.Unlock()

	if model, ok := c.models[key]; ok {
		return model, nil
	}

	model, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{
			Timeout: cfg.Timeout,
		}),
		openai.WithCallback(LogCallbackHandler{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	if len(c.models) >= maxCachedModels {
		clear(c.models)
	}
	c.models[key] = model

	return model, nil
}

func callOptions(cfg config.ModelConfig) []llms.CallOption {
	var opts []llms.CallOption

	if cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(cfg.Temperature))
	}

	return opts
}

func firstChoice(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("no chat completion found")
	}

	return resp.Choices[0].Content, nil
}

func toMessageContent(m Message) llms.MessageContent {
	return llms.TextParts(roleType(m.Role), m.Content)
}

func roleType(role string) schema.ChatMessageType {
	switch role {
	case "system":
		return schema.ChatMessageTypeSystem
	case "assistant":
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
