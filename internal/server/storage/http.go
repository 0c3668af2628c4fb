package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"suratadmin/internal/core"
)

const maxResponseBytes = 8 << 20

// Config configures the HTTP store client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPStore talks to the format-surat endpoints of the portal API.
type HTTPStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPStore creates a client for the store at cfg.BaseURL.
func NewHTTPStore(cfg Config) *HTTPStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPStore{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListAll handles GET /format-surat.
func (s *HTTPStore) ListAll(ctx context.Context) ([]Template, error) {
	var out []Template
	if err := s.do(ctx, "list templates", http.MethodGet, "/format-surat", nil, "", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Template{}
	}
	return out, nil
}

// Upload handles POST /format-surat as multipart with "nama" and "file".
func (s *HTTPStore) Upload(ctx context.Context, name string, file *core.File) (*Template, error) {
	if file == nil {
		return nil, fmt.Errorf("upload template: file is required")
	}

	body, contentType, err := buildUploadBody(name, file)
	if err != nil {
		return nil, fmt.Errorf("upload template: %w", err)
	}

	var out Template
	if err := s.do(ctx, "upload template", http.MethodPost, "/format-surat", body, contentType, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Remove handles DELETE /format-surat/:id.
func (s *HTTPStore) Remove(ctx context.Context, id string) error {
	return s.do(ctx, "delete template", http.MethodDelete, "/format-surat/"+url.PathEscape(id), nil, "", nil)
}

// GetStats handles GET /format-surat/:id/stats. An empty history is valid.
func (s *HTTPStore) GetStats(ctx context.Context, id string) ([]DownloadStatPoint, error) {
	var out []DownloadStatPoint
	path := "/format-surat/" + url.PathEscape(id) + "/stats"
	if err := s.do(ctx, "get stats", http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []DownloadStatPoint{}
	}
	return out, nil
}

// RecordDownload handles POST /format-surat/:id/download.
func (s *HTTPStore) RecordDownload(ctx context.Context, id string) error {
	path := "/format-surat/" + url.PathEscape(id) + "/download"
	return s.do(ctx, "record download", http.MethodPost, path, nil, "", nil)
}

func (s *HTTPStore) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StoreError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody, resp.Status),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(unwrapData(respBody), out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// unwrapData accepts both bare payloads and {"data": ...} envelopes.
func unwrapData(body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return body
	}
	parsed := gjson.ParseBytes(body)
	if parsed.IsObject() {
		if data := parsed.Get("data"); data.Exists() {
			return []byte(data.Raw)
		}
	}
	return body
}

func errorMessage(body []byte, status string) string {
	if gjson.ValidBytes(body) {
		for _, key := range []string{"message", "error", "data.message"} {
			if v := gjson.GetBytes(body, key); v.Exists() && v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return status
	}
	if len(msg) > 200 {
		msg = msg[:200] + "...(truncated)"
	}
	return msg
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func buildUploadBody(name string, file *core.File) (io.Reader, string, error) {
	src, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open file: %w", err)
	}
	defer src.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField(core.FieldName, name); err != nil {
		return nil, "", fmt.Errorf("write name field: %w", err)
	}

	// CreateFormFile would force application/octet-stream; the store keys
	// the document type off the part's Content-Type.
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		core.FieldFile, quoteEscaper.Replace(file.Name)))
	header.Set("Content-Type", file.MimeType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, "", fmt.Errorf("copy file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
