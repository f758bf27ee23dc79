package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"syllabusai/internal/config"
	"syllabusai/internal/metrics"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Client calls the Gemini REST API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client from configuration.
func NewClient(cfg config.AIConfig) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default(),
	}
}

// WithLogger replaces the logger used for cleanup warnings.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Available implements Analyzer.
func (c *Client) Available() bool { return true }

// Validate asks whether doc is a syllabus.
func (c *Client) Validate(ctx context.Context, doc Document) (bool, error) {
	reply, err := c.run(ctx, "validate", validatePrompt, doc, nil)
	if err != nil {
		return false, err
	}
	return IsAffirmative(reply), nil
}

// Summarize returns a deterministic summary.
func (c *Client) Summarize(ctx context.Context, doc Document) (string, error) {
	return c.run(ctx, "summarize", summarizePrompt, doc, zeroTemperature())
}

// Resources returns a markdown bullet list of course resources.
func (c *Client) Resources(ctx context.Context, doc Document) (string, error) {
	return c.run(ctx, "resources", resourcesPrompt, doc, zeroTemperature())
}

// Calendar returns the raw ICS reply; callers normalise it.
func (c *Client) Calendar(ctx context.Context, doc Document, req CalendarRequest) (string, error) {
	return c.run(ctx, "calendar", calendarPrompt(req), doc, nil)
}

type part struct {
	Text     string    `json:"text,omitempty"`
	FileData *fileData `json:"file_data,omitempty"`
}

type fileData struct {
	MIMEType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

func zeroTemperature() *generationConfig {
	t := 0.0
	return &generationConfig{Temperature: &t}
}

// run performs one generation. An uploaded file is removed before returning,
// whether or not generation succeeded.
func (c *Client) run(ctx context.Context, op, prompt string, doc Document, gen *generationConfig) (reply string, err error) {
	if doc.Empty() {
		return "", fmt.Errorf("ai %s: %w", op, ErrEmptyDocument)
	}

	start := time.Now()
	defer func() { metrics.ObserveAICall(op, start, err) }()

	parts := []part{{Text: prompt}}
	if doc.Inline() {
		parts = append(parts, part{Text: doc.Text})
	} else {
		file, err := c.uploadFile(ctx, doc)
		if err != nil {
			return "", err
		}
		defer func() {
			// The request context may already be cancelled.
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			if delErr := c.DeleteFile(cleanupCtx, file.Name); delErr != nil {
				c.logger.Warn("delete remote file",
					slog.String("file", file.Name),
					slog.String("error", delErr.Error()),
				)
			}
		}()
		parts = append(parts, part{FileData: &fileData{MIMEType: file.MIMEType, FileURI: file.URI}})
	}

	return c.generate(ctx, op, generateRequest{
		Contents:         []content{{Role: "user", Parts: parts}},
		GenerationConfig: gen,
	})
}

func (c *Client) generate(ctx context.Context, op string, body generateRequest) (string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respRaw, _, err := c.do(req, op)
	if err != nil {
		return "", err
	}

	if reason := gjson.GetBytes(respRaw, "promptFeedback.blockReason"); reason.Exists() {
		return "", fmt.Errorf("ai %s: prompt blocked: %s", op, reason.String())
	}

	var text strings.Builder
	for _, t := range gjson.GetBytes(respRaw, "candidates.0.content.parts.#.text").Array() {
		text.WriteString(t.String())
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("ai %s: %w", op, ErrEmptyResponse)
	}
	return text.String(), nil
}

// do sends req with the API key and turns non-2xx answers into *APIError.
func (c *Client) do(req *http.Request, op string) ([]byte, http.Header, error) {
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("ai %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(respRaw, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(respRaw))
		}
		return nil, nil, &APIError{Operation: op, StatusCode: resp.StatusCode, Message: msg}
	}
	return respRaw, resp.Header, nil
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
