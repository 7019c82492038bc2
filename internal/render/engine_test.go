package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeRenderer counts calls and fails on demand.
type fakeRenderer struct {
	calls int
	fail  bool
}

func (f *fakeRenderer) Render(_ context.Context, source string) (string, error) {
	f.calls++
	if f.fail {
		return "", &RenderError{Message: "parse error near line 2"}
	}
	return "<svg>" + source + "</svg>", nil
}

func TestRenderFailureKeepsPreviousOutput(t *testing.T) {
	t.Parallel()

	fr := &fakeRenderer{}
	e := NewEngine(fr)

	out, err := e.Render(context.Background(), "graph TD\n A-->B")
	require.NoError(t, err)
	require.Contains(t, out, "A-->B")

	fr.fail = true
	_, err = e.Render(context.Background(), "graph TD\n A--><<broken")
	require.Error(t, err)
	re, ok := AsRenderError(err)
	require.True(t, ok)
	require.Equal(t, "parse error near line 2", re.Message)

	kept, has := e.Output()
	require.True(t, has)
	require.Contains(t, kept, "A-->B", "previous output must survive a failed render")
	require.NotEmpty(t, e.Err())
}

func TestSuccessfulRenderClearsErrorState(t *testing.T) {
	t.Parallel()

	fr := &fakeRenderer{fail: true}
	e := NewEngine(fr)

	_, err := e.Render(context.Background(), "bad")
	require.Error(t, err)
	require.NotEmpty(t, e.Err())

	fr.fail = false
	_, err = e.Render(context.Background(), "graph LR\n X-->Y")
	require.NoError(t, err)
	require.Empty(t, e.Err())
}

func TestRenderIsIdempotent(t *testing.T) {
	t.Parallel()

	fr := &fakeRenderer{}
	e := NewEngine(fr)

	first, err := e.Render(context.Background(), "graph TD\n A-->B")
	require.NoError(t, err)
	second, err := e.Render(context.Background(), "graph TD\n A-->B")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, fr.calls, "unchanged source must not re-invoke the renderer")
}

func TestExportBeforeRenderFails(t *testing.T) {
	t.Parallel()

	e := NewEngine(&fakeRenderer{})
	_, err := e.ExportSVG()
	require.ErrorIs(t, err, ErrNothingRendered)
	_, err = e.ExportPNG()
	require.ErrorIs(t, err, ErrNothingRendered)
}

func TestExportPNGProducesImage(t *testing.T) {
	t.Parallel()

	e := NewEngine(&staticRenderer{svg: `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 60" width="100" height="60"><rect x="10" y="10" width="80" height="40" fill="#336699"/></svg>`})
	_, err := e.Render(context.Background(), "graph TD\n A-->B")
	require.NoError(t, err)

	data, err := e.ExportPNG()
	require.NoError(t, err)
	// PNG magic bytes
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data[:4])
}

type staticRenderer struct{ svg string }

func (s *staticRenderer) Render(context.Context, string) (string, error) { return s.svg, nil }

func TestHTTPRendererSyntaxError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/render", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["mermaid"] == "bad" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unexpected token"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"svg": "<svg/>"})
	}))
	defer srv.Close()

	r := NewHTTPRenderer(srv.URL, time.Second, nil)

	svg, err := r.Render(context.Background(), "graph TD\n A-->B")
	require.NoError(t, err)
	require.Equal(t, "<svg/>", svg)

	_, err = r.Render(context.Background(), "bad")
	re, ok := AsRenderError(err)
	require.True(t, ok)
	require.Equal(t, "unexpected token", re.Message)
}
