package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, 2*time.Second, nil)
	require.NoError(t, err)
	return c, srv
}

func TestChatArtistMode(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat", r.URL.Path)
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.ArtistMode)
		require.Equal(t, "draw the login flow", req.Message)
		_ = json.NewEncoder(w).Encode(ChatResponse{
			Reply:  "here you go",
			Graphs: []DiagramArtifact{{Kind: KindFlowchart, Source: "graph TD\n A-->B"}},
		})
	}))

	resp, err := c.Chat(context.Background(), ChatRequest{Message: "draw the login flow", ArtistMode: true})
	require.NoError(t, err)
	require.Equal(t, "here you go", resp.Reply)
	require.Len(t, resp.Graphs, 1)
	require.Equal(t, KindFlowchart, resp.Graphs[0].Kind)
}

func TestErrorsNormalizeToTransportError(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "pipeline unavailable"})
	}))

	_, err := c.ListDrafts(context.Background(), "", 1, 20)
	require.Error(t, err)
	te, ok := AsTransport(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadGateway, te.Status)
	require.Equal(t, "pipeline unavailable", te.Message)
}

func TestDialFailureHasZeroStatus(t *testing.T) {
	t.Parallel()

	c, err := New("http://127.0.0.1:1", 200*time.Millisecond, nil)
	require.NoError(t, err)
	_, err = c.GetDraft(context.Background(), "d1")
	te, ok := AsTransport(err)
	require.True(t, ok)
	require.Zero(t, te.Status)
}

func TestPresignDefaultsToPut(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/uploads/presign", r.URL.Path)
		var req PresignRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "notes.md", req.Filename)
		require.Equal(t, "text/markdown", req.MIME)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"url":     "http://storage.local/uploads/abc",
			"key":     "uploads/abc/notes.md",
			"headers": map[string]string{"Content-Type": "text/markdown"},
		})
	}))

	p, err := c.PresignUpload(context.Background(), "notes.md", "text/markdown")
	require.NoError(t, err)
	require.Equal(t, http.MethodPut, p.Method)
	require.Equal(t, "uploads/abc/notes.md", p.Key)
}

func TestTransferHonorsPresign(t *testing.T) {
	t.Parallel()

	var gotMethod, gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		gotBody = buf.String()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL, time.Second, nil)
	require.NoError(t, err)

	p := Presign{
		URL:     srv.URL + "/bucket/uploads/abc",
		Method:  http.MethodPut,
		Headers: map[string]string{"Content-Type": "text/markdown"},
		Key:     "uploads/abc",
	}
	err = c.Transfer(context.Background(), p, strings.NewReader("# notes"), int64(len("# notes")))
	require.NoError(t, err)
	require.Equal(t, http.MethodPut, gotMethod)
	require.Equal(t, "text/markdown", gotContentType)
	require.Equal(t, "# notes", gotBody)
}

func TestListDraftsQueryEncoding(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "erd", r.URL.Query().Get("query"))
		require.Equal(t, "2", r.URL.Query().Get("page"))
		require.Equal(t, "25", r.URL.Query().Get("pageSize"))
		_ = json.NewEncoder(w).Encode(ListDraftsResponse{
			Items: []DraftSummary{{ID: "d1", Title: "Auth ERD", Tags: []string{"erd"}}},
			Total: 1,
		})
	}))

	resp, err := c.ListDrafts(context.Background(), "erd", 2, 25)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	require.Equal(t, "Auth ERD", resp.Items[0].Title)
}

func TestShareDraftPath(t *testing.T) {
	t.Parallel()

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/drafts/d42/share", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ShareResponse{URL: "https://share.local/d42", ExpiresAt: expires})
	}))

	resp, err := c.ShareDraft(context.Background(), "d42")
	require.NoError(t, err)
	require.Equal(t, "https://share.local/d42", resp.URL)
	require.True(t, expires.Equal(resp.ExpiresAt))
}
