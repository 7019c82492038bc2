package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RenderError reports malformed diagram source. It is non-fatal: the engine
// keeps the previous output and the UI shows the message inline.
type RenderError struct {
	Message string
}

func (e *RenderError) Error() string { return "render: " + e.Message }

// AsRenderError unwraps err into a *RenderError if it is one.
func AsRenderError(err error) (*RenderError, bool) {
	var re *RenderError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Renderer converts diagram source text into SVG. Implementations are
// black boxes: the engine only cares about output or a syntax error.
type Renderer interface {
	Render(ctx context.Context, source string) (string, error)
}

// HTTPRenderer renders through the diagram rendering service:
// POST /render {"mermaid": ...} -> {"svg": ...}.
type HTTPRenderer struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func NewHTTPRenderer(baseURL string, timeout time.Duration, log *zap.Logger) *HTTPRenderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPRenderer{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

func (r *HTTPRenderer) Render(ctx context.Context, source string) (string, error) {
	payload, err := json.Marshal(map[string]string{"mermaid": source})
	if err != nil {
		return "", fmt.Errorf("encode render request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/render", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("renderer unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		var out struct {
			SVG string `json:"svg"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return "", fmt.Errorf("decode render response: %w", err)
		}
		return out.SVG, nil
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		// the renderer rejected the diagram source itself
		var out struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		msg := "invalid diagram source"
		if err := json.Unmarshal(body, &out); err == nil {
			if out.Error != "" {
				msg = out.Error
			} else if out.Detail != "" {
				msg = out.Detail
			}
		}
		r.log.Debug("renderer rejected source", zap.String("message", msg))
		return "", &RenderError{Message: msg}
	default:
		return "", fmt.Errorf("renderer: unexpected status %d", resp.StatusCode)
	}
}
