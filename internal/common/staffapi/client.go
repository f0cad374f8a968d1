// Package staffapi is the typed client for the staff backend's public API:
// lender products, application creation, document upload and signature
// status.
package staffapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"

	"loan-intake/internal/common/httpclient"
	"loan-intake/internal/lending"
)

const maxErrorBody = 64 * 1024

// Config configures a Client. HTTPClient defaults to httpclient.New with
// the default transport settings.
type Config struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("staff api base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid staff api base url: %w", err)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpclient.New(httpclient.DefaultConfig())
	}

	return &Client{
		baseURL:    base,
		httpClient: httpclient.WithBearerToken(hc, cfg.BearerToken),
	}, nil
}

// ListLenderProducts fetches the full product catalog.
func (c *Client) ListLenderProducts(ctx context.Context) ([]lending.LenderProduct, error) {
	var out productsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/public/lenders", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("%w: list lenders: %s", ErrUnsuccessful, out.Message)
	}
	if out.Products == nil {
		out.Products = []lending.LenderProduct{}
	}
	return out.Products, nil
}

// CreateApplication submits the assembled application. A 409 that carries
// the existing application's id is returned as a duplicate result rather
// than an error.
func (c *Client) CreateApplication(ctx context.Context, payload ApplicationPayload) (*SubmissionResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal application: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/public/applications", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	status, data, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsed createResponse
	decodeErr := json.Unmarshal(data, &parsed)

	switch {
	case status >= 200 && status < 300:
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode application response: %w", decodeErr)
		}
		if parsed.id() == "" {
			return nil, fmt.Errorf("%w: application response has no id", ErrUnsuccessful)
		}
		return &SubmissionResult{ApplicationID: parsed.id(), Status: parsed.status()}, nil

	case status == http.StatusConflict && decodeErr == nil && parsed.id() != "":
		return &SubmissionResult{ApplicationID: parsed.id(), Status: parsed.status(), Duplicate: true}, nil
	}

	return nil, &APIError{StatusCode: status, Body: string(data)}
}

// UploadDocument sends one file as multipart form data.
func (c *Client) UploadDocument(ctx context.Context, applicationID string, upload UploadRequest) (*UploadResult, error) {
	if applicationID == "" {
		return nil, fmt.Errorf("application id is required")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="document"; filename=%q`, filepath.Base(upload.FileName)))
	header.Set("Content-Type", contentType(upload.FileName, upload.Data))
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}
	if err := mw.WriteField("documentType", upload.DocumentType); err != nil {
		return nil, fmt.Errorf("failed to write documentType: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/public/upload/"+url.PathEscape(applicationID), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResult
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("%w: upload %s: %s", ErrUnsuccessful, upload.FileName, out.Message)
	}
	return &out, nil
}

// SignatureStatus reads the current signing state once.
func (c *Client) SignatureStatus(ctx context.Context, applicationID string) (*SigningStatus, error) {
	if applicationID == "" {
		return nil, fmt.Errorf("application id is required")
	}

	var out SigningStatus
	path := "/api/public/applications/" + url.PathEscape(applicationID) + "/signature-status"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	status, data, err := c.do(req)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &APIError{StatusCode: status, Body: string(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to execute %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32*1024*1024))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 300 && len(data) > maxErrorBody {
		data = data[:maxErrorBody]
	}
	return resp.StatusCode, data, nil
}

func contentType(fileName string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
