package render

import (
	"context"
	"errors"
	"sync"
)

// ErrNothingRendered is returned by exports before any successful render.
var ErrNothingRendered = errors.New("nothing rendered yet")

// Engine owns the canvas output. A failed render never discards the last
// good output; it is kept on screen until a successful re-render replaces
// it. Rendering the same source twice is idempotent.
type Engine struct {
	mu        sync.Mutex
	renderer  Renderer
	source    string
	output    string
	hasOutput bool
	errMsg    string
}

func NewEngine(r Renderer) *Engine {
	return &Engine{renderer: r}
}

// Render converts source to SVG. On a syntax failure the previous output
// stays in place and the error message is recorded for inline display; a
// later successful render clears it.
func (e *Engine) Render(ctx context.Context, source string) (string, error) {
	e.mu.Lock()
	if e.hasOutput && e.errMsg == "" && e.source == source {
		out := e.output
		e.mu.Unlock()
		return out, nil
	}
	e.mu.Unlock()

	svg, err := e.renderer.Render(ctx, source)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		if re, ok := AsRenderError(err); ok {
			e.errMsg = re.Message
		} else {
			e.errMsg = err.Error()
		}
		return "", err
	}
	e.source = source
	e.output = svg
	e.hasOutput = true
	e.errMsg = ""
	return svg, nil
}

// Output returns the last successfully rendered SVG.
func (e *Engine) Output() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.output, e.hasOutput
}

// Err returns the inline error message from the most recent render, or ""
// when the last render succeeded.
func (e *Engine) Err() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errMsg
}
