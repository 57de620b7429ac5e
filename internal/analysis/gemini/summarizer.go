// Package gemini implements analysis.Summarizer on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/JakeFAU/company-signals/internal/analysis"
)

// Generation defaults.
const (
	DefaultModel            = "gemini-1.5-flash"
	DefaultTemperature      = 1.0
	DefaultTopP             = 0.95
	DefaultTopK             = 64
	DefaultMaxOutputTokens  = 8192
	DefaultResponseMIMEType = "text/plain"
)

// Config selects the model and generation parameters.
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Model) == "" {
		c.Model = DefaultModel
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.TopP == 0 {
		c.TopP = DefaultTopP
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	return c
}

type generator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Summarizer sends prompts to a Gemini model and returns its plain-text answer.
type Summarizer struct {
	models generator
	model  string
	config *genai.GenerateContentConfig
}

// New builds a Summarizer. The API key is fixed for the client's lifetime.
func New(ctx context.Context, cfg Config) (*Summarizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, analysis.ErrNoCredentials
	}
	cfg = cfg.withDefaults()

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return newWithGenerator(client.Models, cfg), nil
}

func newWithGenerator(models generator, cfg Config) *Summarizer {
	cfg = cfg.withDefaults()
	return &Summarizer{
		models: models,
		model:  strings.TrimSpace(cfg.Model),
		config: &genai.GenerateContentConfig{
			Temperature:      genai.Ptr(cfg.Temperature),
			TopP:             genai.Ptr(cfg.TopP),
			TopK:             genai.Ptr(cfg.TopK),
			MaxOutputTokens:  cfg.MaxOutputTokens,
			CandidateCount:   1,
			ResponseMIMEType: DefaultResponseMIMEType,
		},
	}
}

// Model returns the configured model name.
func (s *Summarizer) Model() string {
	return s.model
}

// Summarize implements analysis.Summarizer.
func (s *Summarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := s.models.GenerateContent(ctx, s.model, genai.Text(prompt), s.config)
	if err != nil {
		return "", classifyErr(err)
	}
	if resp == nil {
		return "", errors.New("gemini: empty response")
	}
	return resp.Text(), nil
}

func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	// Transient failures are retried by the analyzer with backoff.
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return &analysis.TransientError{Err: err}
		}
		return fmt.Errorf("gemini: %w", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &analysis.TransientError{Err: err}
	}
	return fmt.Errorf("gemini: %w", err)
}
