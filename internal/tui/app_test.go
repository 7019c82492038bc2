package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/inkdraft/inkdraft/internal/config"
	"github.com/inkdraft/inkdraft/internal/conversation"
	"github.com/inkdraft/inkdraft/internal/drafts"
	"github.com/inkdraft/inkdraft/internal/render"
	"github.com/inkdraft/inkdraft/internal/state"
	"github.com/inkdraft/inkdraft/internal/upload"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	store := state.NewStore()
	services := Services{
		Chat:    conversation.NewOrchestrator(nil, store, nil, nil),
		Uploads: upload.NewPipeline(nil, store, 1, nil),
		Drafts:  drafts.NewManager(nil, store, nil, nil),
		Render:  render.NewEngine(nil),
	}
	return New(context.Background(), config.Config{}, store, services, nil)
}

func key(s string) tea.KeyMsg {
	if len(s) == 1 {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	return tea.KeyMsg{Type: tea.KeyTab}
}

func TestTabCyclesThroughAllViews(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)

	seen := map[viewState]bool{a.view: true}
	for i := 0; i < 3; i++ {
		m, _ := a.Update(key("tab"))
		a = m.(*App)
		seen[a.view] = true
	}
	require.Len(t, seen, 4)

	m, _ := a.Update(key("tab"))
	require.Equal(t, viewChat, m.(*App).view)
}

func TestInvalidUploadPathShowsErrorWithoutQueueEntry(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)

	m, _ := a.startUpload("/does/not/exist.md")
	a = m.(*App)
	require.Contains(t, a.status, "error:")
	require.Empty(t, a.store.Uploads())
}

func TestTagInputFeedsWorkingCopy(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)

	m, _ := a.submitInput(modeTag, "Infra")
	a = m.(*App)
	require.Equal(t, []string{"infra"}, a.services.Drafts.Working().Tags)
}

func TestComposeRejectsEmptyMessage(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)

	m, cmd := a.submitInput(modeCompos, "")
	a = m.(*App)
	require.Nil(t, cmd)
	require.Empty(t, a.store.Messages())
}

func TestEscLeavesInputMode(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)
	a.enterInput(modeSearch, "search", "")

	m, _ := a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, modeBrowse, m.(*App).mode)
}

func TestViewRendersEachState(t *testing.T) {
	t.Parallel()
	a := newTestApp(t)
	a.store.AppendMessage(state.Message{ID: "m1", Role: state.RoleUser, Text: "hello"})
	a.store.AddUpload(state.UploadItem{ID: "u1", Filename: "doc.pdf", Status: state.UploadPending})

	for _, v := range []viewState{viewChat, viewUploads, viewDrafts, viewCanvas} {
		a.view = v
		require.NotEmpty(t, a.View())
	}
}
