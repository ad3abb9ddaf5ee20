// Package translate normalizes multilingual user queries before retrieval.
//
// Catalogs index English text, shoppers write in whatever language they
// like. The LLM translator bridges that gap; Noop stands in when
// translation is disabled.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrInvalidConfig indicates invalid translator configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTranslationFailed indicates the model call failed or returned nothing
	ErrTranslationFailed = errors.New("translation failed")
)

// DefaultTimeout bounds a single translation call.
const DefaultTimeout = 10 * time.Second

const defaultTargetLanguage = "English"

// Translator converts free-form user text to the catalog language.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Noop returns the input unchanged. Used when translation is disabled
// and in tests.
type Noop struct{}

// Translate implements Translator.
func (Noop) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}

// Config holds configuration for the LLM translator.
type Config struct {
	// BaseURL is the chat completion API base URL. Empty means the
	// client library default (the OpenAI API).
	BaseURL string

	// APIKey authenticates the API (optional for local servers).
	APIKey string

	// Model is the chat model used for translation.
	Model string

	// TargetLanguage names the language queries are translated into.
	// Defaults to English, which is what catalogs index.
	TargetLanguage string

	// Timeout is the per-call ceiling. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// LLMTranslator rewrites queries into the target language with a chat
// model at temperature zero.
type LLMTranslator struct {
	llm     *openai.LLM
	system  string
	timeout time.Duration
}

// NewLLMTranslator creates a translator backed by an OpenAI-compatible
// chat completion API.
func NewLLMTranslator(cfg Config) (*LLMTranslator, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidConfig)
	}

	// langchaingo requires a token, use placeholder for servers that
	// do not check one.
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	lang := cfg.TargetLanguage
	if lang == "" {
		lang = defaultTargetLanguage
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	system := fmt.Sprintf(
		"You are a translation engine. Translate the user message into %s. "+
			"Reply with the translation only, no explanations. "+
			"If the message is already in %s, return it unchanged.", lang, lang)

	return &LLMTranslator{
		llm:     llm,
		system:  system,
		timeout: timeout,
	}, nil
}

// Translate returns the text rendered in the target language.
// Callers treat any error as "use the input unchanged"; the error is
// returned so they can log the cause.
func (t *LLMTranslator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, t.system),
			llms.TextParts(llms.ChatMessageTypeHuman, text),
		},
		llms.WithTemperature(0),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrTranslationFailed)
	}

	out := strings.TrimSpace(resp.Choices[0].Content)
	if out == "" {
		return "", fmt.Errorf("%w: empty translation", ErrTranslationFailed)
	}
	return out, nil
}
