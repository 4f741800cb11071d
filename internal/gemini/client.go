// Package gemini wraps the Gemini APIs used for digest analysis and
// infographic generation.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const generateContentAction = "generateContent"

// Client talks to Gemini (or Vertex AI) through the genai SDK.
type Client struct {
	genai *genai.Client
}

type Option func(*genai.ClientConfig)

// WithBaseURL overrides the API root, for proxies and tests.
func WithBaseURL(u string) Option {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.BaseURL = u
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPClient = hc
	}
}

// New creates a Gemini API client authenticated with apiKey.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key not configured")
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{genai: c}, nil
}

// NewVertex creates a Vertex AI client using application default credentials.
func NewVertex(ctx context.Context, project, location string, opts ...Option) (*Client, error) {
	if project == "" || location == "" {
		return nil, errors.New("vertex project and location are required")
	}
	cfg := &genai.ClientConfig{
		Backend:  genai.BackendVertexAI,
		Project:  project,
		Location: location,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create vertex client: %w", err)
	}
	return &Client{genai: c}, nil
}

// GenerativeModels lists models that advertise content generation, with the
// "models/" prefix removed.
func (c *Client) GenerativeModels(ctx context.Context) ([]string, error) {
	var names []string
	for m, err := range c.genai.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		if !supports(m.SupportedActions, generateContentAction) {
			continue
		}
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}

func supports(actions []string, action string) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// GenerateText sends a single-turn prompt and returns the response text.
func (c *Client) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.genai.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w", model, err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from %s", model)
	}
	return text, nil
}

// GenerateImage asks model for an image of prompt. Imagen models use the
// image generation endpoint; other models return the image as inline data
// inside a content response.
func (c *Client) GenerateImage(ctx context.Context, model, prompt string) ([]byte, error) {
	if IsImagenModel(model) {
		resp, err := c.genai.Models.GenerateImages(ctx, model, prompt, nil)
		if err != nil {
			return nil, fmt.Errorf("generate images with %s: %w", model, err)
		}
		for _, img := range resp.GeneratedImages {
			if img != nil && img.Image != nil && len(img.Image.ImageBytes) > 0 {
				return img.Image.ImageBytes, nil
			}
		}
		return nil, fmt.Errorf("%s returned no images", model)
	}

	resp, err := c.genai.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("generate content with %s: %w", model, err)
	}
	if data := InlineImage(resp); data != nil {
		return data, nil
	}
	return nil, fmt.Errorf("%s returned no inline image", model)
}

// InlineImage returns the first inline data payload found under
// candidates, content and parts.
func InlineImage(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

func IsImagenModel(model string) bool {
	return strings.HasPrefix(strings.TrimPrefix(model, "models/"), "imagen")
}

// IsUnavailable reports whether err means the model id is not offered to
// this key, as opposed to a real failure.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "not supported")
}
