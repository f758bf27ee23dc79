package genai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"syllabusai/internal/config"
)

type fakeGemini struct {
	mu sync.Mutex

	generateStatus int
	generateReply  string
	deleteStatus   int
	uploadState    string
	getStatus      int

	uploads   []string
	deletes   []string
	generated []string
	apiKeys   []string
}

func (f *fakeGemini) handler(t *testing.T, srvURL func() string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		f.apiKeys = append(f.apiKeys, r.Header.Get("x-goog-api-key"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload/v1beta/files":
			assert.Equal(t, "resumable", r.Header.Get("X-Goog-Upload-Protocol"))
			assert.Equal(t, "start", r.Header.Get("X-Goog-Upload-Command"))
			w.Header().Set("X-Goog-Upload-URL", srvURL()+"/upload-session/1")
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/upload-session/1":
			assert.Equal(t, "upload, finalize", r.Header.Get("X-Goog-Upload-Command"))
			f.uploads = append(f.uploads, string(body))
			state := f.uploadState
			if state == "" {
				state = "ACTIVE"
			}
			_, _ = io.WriteString(w, `{"file":{"name":"files/abc123","uri":"https://files.example/abc123","mimeType":"application/pdf","state":"`+state+`"}}`)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1beta/files/"):
			status := f.getStatus
			if status == 0 {
				status = http.StatusOK
			}
			w.WriteHeader(status)
			if status != http.StatusOK {
				_, _ = io.WriteString(w, `{"error":{"code":503,"message":"busy"}}`)
				return
			}
			_, _ = io.WriteString(w, `{"name":"files/abc123","uri":"https://files.example/abc123","state":"ACTIVE"}`)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":generateContent"):
			f.generated = append(f.generated, string(body))
			status := f.generateStatus
			if status == 0 {
				status = http.StatusOK
			}
			w.WriteHeader(status)
			if status != http.StatusOK {
				_, _ = io.WriteString(w, `{"error":{"code":429,"message":"quota exceeded"}}`)
				return
			}
			_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":`+jsonString(f.generateReply)+`}]}}]}`)
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/v1beta/files/"):
			f.deletes = append(f.deletes, strings.TrimPrefix(r.URL.Path, "/v1beta/"))
			status := f.deleteStatus
			if status == 0 {
				status = http.StatusOK
			}
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotImplemented)
		}
	})
}

func jsonString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func newTestClient(t *testing.T, fake *fakeGemini) *Client {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(fake.handler(t, func() string { return srv.URL }))
	t.Cleanup(srv.Close)
	return NewClient(config.AIConfig{
		APIKey:  "test-key",
		Model:   "gemini-test",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	})
}

var pdfDoc = Document{DisplayName: "syllabus.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.4 body")}

func TestNewWithoutKeyIsUnavailable(t *testing.T) {
	a := New(config.AIConfig{})
	assert.False(t, a.Available())

	ctx := context.Background()
	_, err := a.Validate(ctx, pdfDoc)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = a.Summarize(ctx, pdfDoc)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = a.Resources(ctx, pdfDoc)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = a.Calendar(ctx, pdfDoc, CalendarRequest{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestValidateUploadsAndDeletesRemoteFile(t *testing.T) {
	fake := &fakeGemini{generateReply: "Yes, this is a course syllabus."}
	c := newTestClient(t, fake)

	ok, err := c.Validate(context.Background(), pdfDoc)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Equal(t, []string{"%PDF-1.4 body"}, fake.uploads)
	assert.Equal(t, []string{"files/abc123"}, fake.deletes)
	require.Len(t, fake.generated, 1)
	assert.Equal(t, "https://files.example/abc123",
		gjson.Get(fake.generated[0], "contents.0.parts.1.file_data.file_uri").String())
	for _, key := range fake.apiKeys {
		assert.Equal(t, "test-key", key)
	}
}

func TestValidateNegativeReply(t *testing.T) {
	fake := &fakeGemini{generateReply: "No."}
	c := newTestClient(t, fake)

	ok, err := c.Validate(context.Background(), pdfDoc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoteFileDeletedWhenGenerationFails(t *testing.T) {
	fake := &fakeGemini{generateStatus: http.StatusTooManyRequests}
	c := newTestClient(t, fake)

	_, err := c.Summarize(context.Background(), pdfDoc)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "quota exceeded", apiErr.Message)
	assert.Equal(t, []string{"files/abc123"}, fake.deletes)
}

func TestRemoteFileDeletedWhenPollingFails(t *testing.T) {
	fake := &fakeGemini{uploadState: "PROCESSING", getStatus: http.StatusServiceUnavailable}
	c := newTestClient(t, fake)

	_, err := c.Validate(context.Background(), pdfDoc)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, []string{"files/abc123"}, fake.deletes)
	assert.Empty(t, fake.generated)
}

func TestProcessingFileIsPolledUntilActive(t *testing.T) {
	fake := &fakeGemini{uploadState: "PROCESSING", generateReply: "yes"}
	c := newTestClient(t, fake)

	ok, err := c.Validate(context.Background(), pdfDoc)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, fake.generated, 1)
	assert.Equal(t, "application/pdf",
		gjson.Get(fake.generated[0], "contents.0.parts.1.file_data.mime_type").String())
	assert.Equal(t, []string{"files/abc123"}, fake.deletes)
}

func TestEmptyDocumentIsRejectedLocally(t *testing.T) {
	fake := &fakeGemini{generateReply: "yes"}
	c := newTestClient(t, fake)

	_, err := c.Summarize(context.Background(), Document{DisplayName: "blank.docx"})
	require.ErrorIs(t, err, ErrEmptyDocument)
	assert.Empty(t, fake.uploads)
	assert.Empty(t, fake.generated)
}

func TestDeleteAlreadyDeletedFileIsNotAnError(t *testing.T) {
	fake := &fakeGemini{deleteStatus: http.StatusNotFound}
	c := newTestClient(t, fake)

	require.NoError(t, c.DeleteFile(context.Background(), "files/abc123"))
	require.NoError(t, c.DeleteFile(context.Background(), "files/abc123"))
	require.NoError(t, c.DeleteFile(context.Background(), ""))
	assert.Len(t, fake.deletes, 2)
}

func TestDeleteFileSurfacesOtherErrors(t *testing.T) {
	fake := &fakeGemini{deleteStatus: http.StatusInternalServerError}
	c := newTestClient(t, fake)

	require.Error(t, c.DeleteFile(context.Background(), "files/abc123"))
}

func TestInlineDocumentSkipsUpload(t *testing.T) {
	fake := &fakeGemini{generateReply: "- Prof. Smith\n- Textbook\n- Tutoring"}
	c := newTestClient(t, fake)

	doc := Document{DisplayName: "notes.docx", Text: "Week 1: intro"}
	got, err := c.Resources(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "- Prof. Smith\n- Textbook\n- Tutoring", got)

	assert.Empty(t, fake.uploads)
	assert.Empty(t, fake.deletes)
	require.Len(t, fake.generated, 1)
	assert.Equal(t, "Week 1: intro", gjson.Get(fake.generated[0], "contents.0.parts.1.text").String())
}

func TestSummarizeUsesZeroTemperature(t *testing.T) {
	fake := &fakeGemini{generateReply: "Course covers X, Y, Z"}
	c := newTestClient(t, fake)

	got, err := c.Summarize(context.Background(), Document{Text: "body"})
	require.NoError(t, err)
	assert.Equal(t, "Course covers X, Y, Z", got)

	temp := gjson.Get(fake.generated[0], "generationConfig.temperature")
	require.True(t, temp.Exists())
	assert.Equal(t, 0.0, temp.Float())
}

func TestCalendarPromptCarriesDates(t *testing.T) {
	fake := &fakeGemini{generateReply: "BEGIN:VCALENDAR\nEND:VCALENDAR"}
	c := newTestClient(t, fake)

	start := time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.May, 3, 0, 0, 0, 0, time.UTC)
	_, err := c.Calendar(context.Background(), Document{Text: "body"}, CalendarRequest{CourseName: "CS 101", Start: &start, End: &end})
	require.NoError(t, err)

	prompt := gjson.Get(fake.generated[0], "contents.0.parts.0.text").String()
	assert.Contains(t, prompt, "Course name: CS 101")
	assert.Contains(t, prompt, "2024-01-08")
	assert.Contains(t, prompt, "2024-05-03")
}

func TestEmptyReplyIsAnError(t *testing.T) {
	fake := &fakeGemini{generateReply: "  "}
	c := newTestClient(t, fake)

	_, err := c.Summarize(context.Background(), Document{Text: "body"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestIsAffirmative(t *testing.T) {
	assert.True(t, IsAffirmative("YES"))
	assert.True(t, IsAffirmative("Yes, it is."))
	assert.False(t, IsAffirmative("no"))
	assert.False(t, IsAffirmative(""))
}
