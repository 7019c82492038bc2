package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client is the single point of contact with the drafting backend. It is
// stateless: every method executes one request and normalizes any failure
// into a *TransportError. Retry policy belongs to callers.
type Client struct {
	base *url.URL
	http *http.Client
	log  *zap.Logger
}

// New builds a client for the given base URL. timeout applies per request.
func New(baseURL string, timeout time.Duration, log *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base: u,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}, nil
}

// Chat sends a user message, optionally asking for diagram artifacts.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var out ChatResponse
	err := c.do(ctx, http.MethodPost, "/chat", nil, req, &out)
	return out, err
}

// RequestVariant asks for a reworked rendition of an existing diagram.
func (c *Client) RequestVariant(ctx context.Context, req VariantRequest) (VariantResponse, error) {
	var out VariantResponse
	err := c.do(ctx, http.MethodPost, "/variant", nil, req, &out)
	return out, err
}

// PresignUpload acquires a pre-authorized upload slot for a file.
func (c *Client) PresignUpload(ctx context.Context, filename, mime string) (Presign, error) {
	var out Presign
	err := c.do(ctx, http.MethodPost, "/uploads/presign", nil, PresignRequest{Filename: filename, MIME: mime}, &out)
	if err != nil {
		return Presign{}, err
	}
	if out.Method == "" {
		out.Method = http.MethodPut
	}
	return out, nil
}

// Transfer performs the raw binary upload described by a presign response.
// The body is sent as-is with the headers the server mandated.
func (c *Client) Transfer(ctx context.Context, p Presign, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, body)
	if err != nil {
		return &TransportError{Message: err.Error()}
	}
	if size > 0 {
		req.ContentLength = size
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// GenerateDraftFromDocument turns an uploaded document into a diagram draft.
func (c *Client) GenerateDraftFromDocument(ctx context.Context, docKey string, views []string) (GenerateDraftResponse, error) {
	var out GenerateDraftResponse
	err := c.do(ctx, http.MethodPost, "/drafts/generate", nil, GenerateDraftRequest{DocKey: docKey, Views: views}, &out)
	return out, err
}

// SaveDraft creates or updates a draft depending on req.DraftID.
func (c *Client) SaveDraft(ctx context.Context, req SaveDraftRequest) (SaveDraftResponse, error) {
	var out SaveDraftResponse
	err := c.do(ctx, http.MethodPost, "/drafts", nil, req, &out)
	return out, err
}

// ListDrafts fetches one page of draft summaries.
func (c *Client) ListDrafts(ctx context.Context, query string, page, pageSize int) (ListDraftsResponse, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))
	var out ListDraftsResponse
	err := c.do(ctx, http.MethodGet, "/drafts", q, nil, &out)
	return out, err
}

// GetDraft fetches a full draft record.
func (c *Client) GetDraft(ctx context.Context, id string) (Draft, error) {
	var out Draft
	err := c.do(ctx, http.MethodGet, "/drafts/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// DeleteDraft removes a draft record.
func (c *Client) DeleteDraft(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/drafts/"+url.PathEscape(id), nil, nil, nil)
}

// ShareDraft mints a time-limited public link for a draft.
func (c *Client) ShareDraft(ctx context.Context, id string) (ShareResponse, error) {
	var out ShareResponse
	err := c.do(ctx, http.MethodPost, "/drafts/"+url.PathEscape(id)+"/share", nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &TransportError{Message: fmt.Sprintf("encode request: %v", err)}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return &TransportError{Message: err.Error()}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		terr := readError(resp)
		c.log.Debug("request rejected", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return terr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// readError drains a non-2xx response into a TransportError, preferring the
// backend's own detail message when the body carries one.
func readError(resp *http.Response) *TransportError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	msg := strings.TrimSpace(string(raw))
	var envelope struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Detail != "" {
			msg = envelope.Detail
		} else if envelope.Error != "" {
			msg = envelope.Error
		}
	}
	if msg == "" {
		msg = resp.Status
	}
	return &TransportError{Status: resp.StatusCode, Message: msg}
}
