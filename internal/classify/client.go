package classify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/mlindner/mailsort/internal/category"
	"github.com/mlindner/mailsort/internal/faults"
)

const (
	// DefaultModel is the chat model used when none is configured
	DefaultModel = shared.ChatModelGPT4o

	// defaultMaxTokens bounds the completion; a category name needs far
	// fewer tokens than this
	defaultMaxTokens = 20
)

// secureHTTPClient is a configured HTTP client with proper timeouts and
// security settings
var secureHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableKeepAlives:     false,
	},
}

// Config holds the classifier settings
type Config struct {
	// APIKey authenticates against the OpenAI API. Required.
	APIKey string

	// Model selects the chat model. Defaults to DefaultModel.
	Model string

	// MaxTokens bounds the completion length. Defaults to 20.
	MaxTokens int64

	// Temperature controls sampling randomness. The zero value is
	// deliberate: classification wants deterministic answers.
	Temperature float64

	// Instructions replaces the default few-shot prompt with caller-supplied
	// classification instructions. Optional.
	Instructions string
}

// Client classifies email text into categories using the OpenAI chat API
type Client struct {
	llm          openai.Client
	model        string
	maxTokens    int64
	temperature  float64
	instructions string
}

// New creates a classifier client from the given configuration
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = string(DefaultModel)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	llm := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(secureHTTPClient),
	)

	return &Client{
		llm:          llm,
		model:        model,
		maxTokens:    maxTokens,
		temperature:  cfg.Temperature,
		instructions: cfg.Instructions,
	}, nil
}

// Classify asks the model to assign one of the allowed categories to the
// given email text. Non-empty instructions replace the configured ones for
// this call, so a single run can classify under its own prompt. The response
// is snapped to the allowed set by exact case-insensitive match; a response
// matching no allowed category fails with a ClassifierError rather than
// defaulting, so a misbehaving model never labels a message with a category
// nobody asked for.
func (c *Client) Classify(ctx context.Context, text string, allowed []category.Category, instructions string) (category.Category, error) {
	if len(allowed) == 0 {
		allowed = category.Stock()
	}
	if instructions == "" {
		instructions = c.instructions
	}

	prompt := BuildPrompt(text, allowed, instructions)

	completion, err := c.llm.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
		Model:       shared.ChatModel(c.model),
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", &faults.ProviderError{
			Op:       "chat completion",
			Provider: "openai",
			Err:      err,
		}
	}

	if len(completion.Choices) == 0 {
		return "", &faults.ClassifierError{
			Response: "",
			Allowed:  category.Names(allowed),
		}
	}

	return parseResponse(completion.Choices[0].Message.Content, allowed)
}

// parseResponse normalizes a raw model response into an allowed category.
// Only the first line of the response counts; anything after a newline is
// model chatter.
func parseResponse(raw string, allowed []category.Category) (category.Category, error) {
	answer := strings.TrimSpace(raw)
	if idx := strings.IndexByte(answer, '\n'); idx >= 0 {
		answer = strings.TrimSpace(answer[:idx])
	}

	cat, ok := category.Snap(answer, allowed)
	if !ok {
		return "", &faults.ClassifierError{
			Response: answer,
			Allowed:  category.Names(allowed),
		}
	}

	return cat, nil
}
