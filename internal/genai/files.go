package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const filePollInterval = 500 * time.Millisecond

// RemoteFile is a document held by the AI service.
type RemoteFile struct {
	Name     string
	URI      string
	MIMEType string
	State    string
}

// uploadFile runs the two-step resumable upload and waits until the file is usable.
func (c *Client) uploadFile(ctx context.Context, doc Document) (*RemoteFile, error) {
	mimeType := doc.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	meta, err := json.Marshal(map[string]any{"file": map[string]string{"display_name": doc.DisplayName}})
	if err != nil {
		return nil, fmt.Errorf("marshal file metadata: %w", err)
	}

	startReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/v1beta/files", bytes.NewReader(meta))
	if err != nil {
		return nil, fmt.Errorf("build upload start request: %w", err)
	}
	startReq.Header.Set("Content-Type", "application/json")
	startReq.Header.Set("X-Goog-Upload-Protocol", "resumable")
	startReq.Header.Set("X-Goog-Upload-Command", "start")
	startReq.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(doc.Data)))
	startReq.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	_, header, err := c.do(startReq, "upload")
	if err != nil {
		return nil, err
	}
	uploadURL := header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return nil, fmt.Errorf("ai upload: response missing upload url")
	}

	dataReq, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(doc.Data))
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	dataReq.Header.Set("X-Goog-Upload-Offset", "0")
	dataReq.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	body, _, err := c.do(dataReq, "upload")
	if err != nil {
		return nil, err
	}
	file := parseRemoteFile(gjson.GetBytes(body, "file"))
	if file.Name == "" || file.URI == "" {
		return nil, fmt.Errorf("ai upload: response missing file name or uri")
	}
	if file.MIMEType == "" {
		file.MIMEType = mimeType
	}

	for file.State == "PROCESSING" {
		select {
		case <-ctx.Done():
			c.deleteQuietly(file.Name)
			return nil, ctx.Err()
		case <-time.After(filePollInterval):
		}
		polled, err := c.getFile(ctx, file.Name)
		if err != nil {
			c.deleteQuietly(file.Name)
			return nil, err
		}
		if polled.MIMEType == "" {
			polled.MIMEType = file.MIMEType
		}
		file = polled
	}
	if file.State == "FAILED" {
		c.deleteQuietly(file.Name)
		return nil, fmt.Errorf("ai upload: remote processing of %s failed", file.Name)
	}
	return file, nil
}

func (c *Client) getFile(ctx context.Context, name string) (*RemoteFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1beta/"+name, nil)
	if err != nil {
		return nil, fmt.Errorf("build get file request: %w", err)
	}
	body, _, err := c.do(req, "get_file")
	if err != nil {
		return nil, err
	}
	return parseRemoteFile(gjson.ParseBytes(body)), nil
}

// DeleteFile removes a remote file. A file that is already gone counts as deleted.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1beta/"+name, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	if _, _, err := c.do(req, "delete_file"); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) deleteQuietly(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = c.DeleteFile(ctx, name)
}

func parseRemoteFile(v gjson.Result) *RemoteFile {
	return &RemoteFile{
		Name:     v.Get("name").String(),
		URI:      v.Get("uri").String(),
		MIMEType: v.Get("mimeType").String(),
		State:    v.Get("state").String(),
	}
}
