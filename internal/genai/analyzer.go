// Package genai talks to the generative-AI service that reads syllabi.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"syllabusai/internal/config"
)

// ErrUnavailable is returned by every operation when no API key is configured.
var ErrUnavailable = errors.New("ai client not initialized")

// ErrEmptyDocument means there was nothing to send: no text and no bytes.
var ErrEmptyDocument = errors.New("document has no content")

// ErrEmptyResponse means the service answered without any text.
var ErrEmptyResponse = errors.New("ai response contained no text")

// APIError is a non-2xx answer from the service.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ai %s: http %d: %s", e.Operation, e.StatusCode, e.Message)
}

// Document is what the service reads. Text is embedded in the prompt when set;
// otherwise Data is uploaded as a remote file and referenced by URI.
type Document struct {
	DisplayName string
	MIMEType    string
	Text        string
	Data        []byte
}

// Inline reports whether the document travels inside the prompt.
func (d Document) Inline() bool {
	return d.Text != ""
}

// Empty reports whether the document carries neither text nor bytes.
func (d Document) Empty() bool {
	return strings.TrimSpace(d.Text) == "" && len(d.Data) == 0
}

// CalendarRequest carries the optional semester range for calendar generation.
type CalendarRequest struct {
	CourseName string
	Start      *time.Time
	End        *time.Time
}

// Analyzer is the set of AI operations the upload flow needs.
type Analyzer interface {
	Available() bool
	Validate(ctx context.Context, doc Document) (bool, error)
	Summarize(ctx context.Context, doc Document) (string, error)
	Resources(ctx context.Context, doc Document) (string, error)
	Calendar(ctx context.Context, doc Document, req CalendarRequest) (string, error)
}

// New returns a REST client, or Unavailable when cfg has no API key.
func New(cfg config.AIConfig) Analyzer {
	if cfg.APIKey == "" {
		return Unavailable{}
	}
	return NewClient(cfg)
}

// Unavailable stands in for the client when the service is not configured.
type Unavailable struct{}

// Available implements Analyzer.
func (Unavailable) Available() bool { return false }

// Validate implements Analyzer.
func (Unavailable) Validate(context.Context, Document) (bool, error) { return false, ErrUnavailable }

// Summarize implements Analyzer.
func (Unavailable) Summarize(context.Context, Document) (string, error) { return "", ErrUnavailable }

// Resources implements Analyzer.
func (Unavailable) Resources(context.Context, Document) (string, error) { return "", ErrUnavailable }

// Calendar implements Analyzer.
func (Unavailable) Calendar(context.Context, Document, CalendarRequest) (string, error) {
	return "", ErrUnavailable
}
