package tui

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/inkdraft/inkdraft/internal/config"
	"github.com/inkdraft/inkdraft/internal/conversation"
	"github.com/inkdraft/inkdraft/internal/drafts"
	"github.com/inkdraft/inkdraft/internal/gateway"
	"github.com/inkdraft/inkdraft/internal/render"
	"github.com/inkdraft/inkdraft/internal/state"
	"github.com/inkdraft/inkdraft/internal/upload"
)

// Services ties the orchestration layer into the UI.
type Services struct {
	Chat    *conversation.Orchestrator
	Uploads *upload.Pipeline
	Drafts  *drafts.Manager
	Render  *render.Engine
}

type viewState string

const (
	viewChat    viewState = "chat"
	viewUploads viewState = "uploads"
	viewDrafts  viewState = "drafts"
	viewCanvas  viewState = "canvas"
)

type inputMode string

const (
	modeBrowse inputMode = "browse"
	modeCompos inputMode = "compose"
	modePath   inputMode = "path"
	modeSearch inputMode = "search"
	modeTitle  inputMode = "title"
	modeTag    inputMode = "tag"
)

// App drives the terminal client. All I/O happens in commands; the update
// loop applies results as single-step state changes.
type App struct {
	ctx      context.Context
	cfg      config.Config
	store    *state.Store
	services Services
	log      *zap.Logger

	view  viewState
	mode  inputMode
	input textinput.Model

	status       string
	width        int
	height       int
	msgCursor    int
	artCursor    int
	uploadCursor int
	draftCursor  int
	lastQuery    string
}

func New(ctx context.Context, cfg config.Config, store *state.Store, services Services, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	ti := textinput.New()
	ti.CharLimit = 2000
	return &App{
		ctx:      ctx,
		cfg:      cfg,
		store:    store,
		services: services,
		log:      log,
		view:     viewChat,
		mode:     modeBrowse,
		input:    ti,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.listDraftsCmd(""), a.rerenderCmd())
}

// messages

type errMsg struct{ err error }
type statusMsg string
type chatRepliedMsg struct{}
type uploadDoneMsg struct{ id string }
type generateDoneMsg struct{ draftID string }
type draftsLoadedMsg struct{ count int }
type draftSavedMsg struct{ id string }
type draftLoadedMsg struct{ id string }
type sharedMsg struct {
	url     string
	expires time.Time
}
type renderedMsg struct{ ok bool }
type exportedMsg struct{ path string }
type refreshMsg struct{}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = m.Width
		a.height = m.Height
	case tea.KeyMsg:
		return a.handleKey(m)
	case errMsg:
		a.status = "error: " + m.err.Error()
	case statusMsg:
		a.status = string(m)
	case chatRepliedMsg:
		a.status = ""
		a.msgCursor = len(a.store.Messages()) - 1
		a.artCursor = 0
		return a, a.rerenderCmd()
	case uploadDoneMsg:
		item, ok := a.store.Upload(m.id)
		switch {
		case !ok:
			a.status = ""
		case item.Status == state.UploadComplete:
			a.status = fmt.Sprintf("%s ready - press g to generate a draft", item.Filename)
		case item.Status == state.UploadError:
			a.status = fmt.Sprintf("%s failed: %s (r to retry)", item.Filename, item.Err)
		}
	case generateDoneMsg:
		a.status = "draft generated"
		return a, a.rerenderCmd()
	case draftsLoadedMsg:
		a.status = fmt.Sprintf("%d drafts", m.count)
		if items, _ := a.store.Drafts(); a.draftCursor >= len(items) {
			a.draftCursor = 0
		}
	case draftSavedMsg:
		a.status = "saved as " + m.id
		return a, a.listDraftsCmd(a.lastQuery)
	case draftLoadedMsg:
		a.status = "opened " + m.id
		return a, a.rerenderCmd()
	case sharedMsg:
		a.status = fmt.Sprintf("share link %s (expires %s)", m.url, m.expires.Format(time.RFC822))
	case renderedMsg:
		if !m.ok {
			a.status = "render failed: " + a.services.Render.Err()
		}
	case exportedMsg:
		a.status = "exported " + m.path
	case refreshMsg:
		if a.uploadsInFlight() {
			return a, a.tickCmd()
		}
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.mode != modeBrowse {
		return a.handleInputKey(m)
	}

	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "tab":
		a.view = nextView(a.view)
		a.status = ""
	case "shift+tab":
		a.view = prevView(a.view)
		a.status = ""
	case "a":
		on := a.services.Chat.ToggleArtistMode()
		if on {
			a.status = "artist mode on"
		} else {
			a.status = "artist mode off"
		}
	}

	switch a.view {
	case viewChat:
		return a.handleChatKey(m)
	case viewUploads:
		return a.handleUploadsKey(m)
	case viewDrafts:
		return a.handleDraftsKey(m)
	case viewCanvas:
		return a.handleCanvasKey(m)
	}
	return a, nil
}

func (a *App) handleChatKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	msgs := a.store.Messages()
	switch m.String() {
	case "i", "enter":
		a.enterInput(modeCompos, "message", "")
	case "up", "k":
		if a.msgCursor > 0 {
			a.msgCursor--
			a.artCursor = 0
		}
	case "down", "j":
		if a.msgCursor < len(msgs)-1 {
			a.msgCursor++
			a.artCursor = 0
		}
	case "left", "h":
		if a.artCursor > 0 {
			a.artCursor--
		}
	case "right", "l":
		if a.msgCursor < len(msgs) && a.artCursor < len(msgs[a.msgCursor].Artifacts)-1 {
			a.artCursor++
		}
	case "v":
		if a.msgCursor < len(msgs) && len(msgs[a.msgCursor].Artifacts) > 0 {
			if err := a.services.Chat.SelectArtifact(msgs[a.msgCursor].ID, a.artCursor); err != nil {
				a.status = "error: " + err.Error()
				return a, nil
			}
			a.view = viewCanvas
			return a, a.rerenderCmd()
		}
	}
	return a, nil
}

func (a *App) handleUploadsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := a.store.Uploads()
	switch m.String() {
	case "u":
		a.enterInput(modePath, "path to .pdf or .md", "")
	case "up", "k":
		if a.uploadCursor > 0 {
			a.uploadCursor--
		}
	case "down", "j":
		if a.uploadCursor < len(items)-1 {
			a.uploadCursor++
		}
	case "r":
		if a.uploadCursor < len(items) {
			return a, tea.Batch(a.retryCmd(items[a.uploadCursor].ID), a.tickCmd())
		}
	case "x":
		if a.uploadCursor < len(items) {
			a.services.Uploads.Remove(items[a.uploadCursor].ID)
			if a.uploadCursor > 0 {
				a.uploadCursor--
			}
		}
	case "g":
		if a.uploadCursor < len(items) {
			a.status = "generating draft..."
			return a, a.generateCmd(items[a.uploadCursor].ID)
		}
	}
	return a, nil
}

func (a *App) handleDraftsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	items, _ := a.store.Drafts()
	switch m.String() {
	case "/":
		a.enterInput(modeSearch, "search title or tags", a.lastQuery)
	case "up", "k":
		if a.draftCursor > 0 {
			a.draftCursor--
		}
	case "down", "j":
		if a.draftCursor < len(items)-1 {
			a.draftCursor++
		}
	case "enter":
		if a.draftCursor < len(items) {
			return a, a.loadDraftCmd(items[a.draftCursor].ID)
		}
	case "R":
		return a, a.listDraftsCmd(a.lastQuery)
	case "d":
		if a.draftCursor < len(items) {
			return a, a.deleteDraftCmd(items[a.draftCursor].ID)
		}
	case "y":
		if a.draftCursor < len(items) {
			return a, a.shareCmd(items[a.draftCursor].ID)
		}
	}
	return a, nil
}

func (a *App) handleCanvasKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "s":
		a.enterInput(modeTitle, "draft title", a.services.Drafts.Working().Title)
	case "t":
		a.enterInput(modeTag, "add tag", "")
	case "T":
		w := a.services.Drafts.Working()
		if len(w.Tags) > 0 {
			a.services.Drafts.RemoveTag(w.Tags[len(w.Tags)-1])
			a.status = "tags: " + strings.Join(a.services.Drafts.Working().Tags, ", ")
		}
	case "N":
		a.services.Drafts.StartNew()
		a.store.ClearActiveDiagram()
		a.status = "new draft"
	case "e":
		return a, a.exportCmd("svg")
	case "E":
		return a, a.exportCmd("png")
	case "f", "c", "m", "o", "n":
		kind := map[string]gateway.DiagramKind{
			"f": gateway.KindFlowchart,
			"c": gateway.KindConcept,
			"m": gateway.KindSequence,
			"o": gateway.KindERD,
			"n": gateway.KindTimeline,
		}[m.String()]
		a.status = "requesting " + string(kind) + " variant..."
		return a, a.variantCmd(kind)
	}
	return a, nil
}

func (a *App) handleInputKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.mode = modeBrowse
		a.input.Blur()
		return a, nil
	case "enter":
		value := strings.TrimSpace(a.input.Value())
		mode := a.mode
		a.mode = modeBrowse
		a.input.Blur()
		return a.submitInput(mode, value)
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(m)
	return a, cmd
}

func (a *App) submitInput(mode inputMode, value string) (tea.Model, tea.Cmd) {
	switch mode {
	case modeCompos:
		if value == "" {
			return a, nil
		}
		turn, err := a.services.Chat.Send(a.ctx, value)
		if err != nil {
			a.status = "error: " + err.Error()
			return a, nil
		}
		a.status = "thinking..."
		a.msgCursor = len(a.store.Messages()) - 1
		return a, a.awaitChatCmd(turn, value)
	case modePath:
		if value == "" {
			return a, nil
		}
		return a.startUpload(value)
	case modeSearch:
		a.lastQuery = value
		return a, a.listDraftsCmd(value)
	case modeTitle:
		if value == "" {
			return a, nil
		}
		a.services.Drafts.SetTitle(value)
		a.status = "saving..."
		return a, a.saveDraftCmd()
	case modeTag:
		if value != "" {
			a.services.Drafts.AddTag(value)
			a.status = "tags: " + strings.Join(a.services.Drafts.Working().Tags, ", ")
		}
	}
	return a, nil
}

func (a *App) startUpload(path string) (tea.Model, tea.Cmd) {
	info, err := os.Stat(path)
	if err != nil {
		a.status = "error: " + err.Error()
		return a, nil
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	item, err := a.services.Uploads.Admit(upload.File{
		Name: filepath.Base(path),
		Path: path,
		MIME: mimeType,
		Size: info.Size(),
	})
	if err != nil {
		a.status = "rejected: " + err.Error()
		return a, nil
	}
	a.view = viewUploads
	a.status = "uploading " + item.Filename
	return a, tea.Batch(a.runUploadCmd(item.ID), a.tickCmd())
}

func (a *App) enterInput(mode inputMode, placeholder, value string) {
	a.mode = mode
	a.input.Placeholder = placeholder
	a.input.SetValue(value)
	a.input.CursorEnd()
	a.input.Focus()
}

// commands

func (a *App) awaitChatCmd(turn uint64, text string) tea.Cmd {
	return func() tea.Msg {
		if _, err := a.services.Chat.Await(a.ctx, turn, text); err != nil {
			return errMsg{err}
		}
		return chatRepliedMsg{}
	}
}

func (a *App) runUploadCmd(id string) tea.Cmd {
	return func() tea.Msg {
		_ = a.services.Uploads.Run(a.ctx, id)
		return uploadDoneMsg{id: id}
	}
}

func (a *App) retryCmd(id string) tea.Cmd {
	return func() tea.Msg {
		_ = a.services.Uploads.Retry(a.ctx, id)
		return uploadDoneMsg{id: id}
	}
}

func (a *App) generateCmd(id string) tea.Cmd {
	return func() tea.Msg {
		resp, err := a.services.Uploads.GenerateDraft(a.ctx, id, nil)
		if err != nil {
			return errMsg{err}
		}
		return generateDoneMsg{draftID: resp.DraftID}
	}
}

func (a *App) listDraftsCmd(query string) tea.Cmd {
	return func() tea.Msg {
		items, err := a.services.Drafts.List(a.ctx, query, 1, drafts.DefaultPageSize)
		if err != nil {
			return errMsg{err}
		}
		return draftsLoadedMsg{count: len(items)}
	}
}

func (a *App) saveDraftCmd() tea.Cmd {
	return func() tea.Msg {
		resp, err := a.services.Drafts.Save(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return draftSavedMsg{id: resp.DraftID}
	}
}

func (a *App) loadDraftCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if _, err := a.services.Drafts.Load(a.ctx, id); err != nil {
			return errMsg{err}
		}
		return draftLoadedMsg{id: id}
	}
}

func (a *App) deleteDraftCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := a.services.Drafts.Delete(a.ctx, id); err != nil {
			return errMsg{err}
		}
		return statusMsg("draft deleted")
	}
}

func (a *App) shareCmd(id string) tea.Cmd {
	return func() tea.Msg {
		resp, err := a.services.Drafts.Share(a.ctx, id)
		if err != nil {
			return errMsg{err}
		}
		return sharedMsg{url: resp.URL, expires: resp.ExpiresAt}
	}
}

func (a *App) variantCmd(kind gateway.DiagramKind) tea.Cmd {
	return func() tea.Msg {
		if err := a.services.Drafts.Variant(a.ctx, kind, gateway.StyleCompact, gateway.ComplexityMedium); err != nil {
			return errMsg{err}
		}
		return draftLoadedMsg{id: "variant"}
	}
}

// rerenderCmd renders the active diagram source, if any. The engine is
// idempotent, so re-issuing it for an unchanged source is free.
func (a *App) rerenderCmd() tea.Cmd {
	active, ok := a.store.ActiveDiagram()
	if !ok || active.Source == "" {
		return nil
	}
	source := active.Source
	return func() tea.Msg {
		svg, err := a.services.Render.Render(a.ctx, source)
		if err != nil {
			return renderedMsg{ok: false}
		}
		a.store.SetActiveRendered(source, svg)
		return renderedMsg{ok: true}
	}
}

func (a *App) exportCmd(format string) tea.Cmd {
	return func() tea.Msg {
		var (
			data []byte
			err  error
		)
		if format == "png" {
			data, err = a.services.Render.ExportPNG()
		} else {
			data, err = a.services.Render.ExportSVG()
		}
		if err != nil {
			return errMsg{err}
		}
		path := fmt.Sprintf("inkdraft-%s.%s", time.Now().Format("20060102-150405"), format)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errMsg{err}
		}
		return exportedMsg{path: path}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg { return refreshMsg{} })
}

func (a *App) uploadsInFlight() bool {
	for _, it := range a.store.Uploads() {
		switch it.Status {
		case state.UploadPending, state.UploadUploading, state.UploadProcessing:
			return true
		}
	}
	return false
}

func nextView(v viewState) viewState {
	switch v {
	case viewChat:
		return viewUploads
	case viewUploads:
		return viewDrafts
	case viewDrafts:
		return viewCanvas
	default:
		return viewChat
	}
}

func prevView(v viewState) viewState {
	switch v {
	case viewChat:
		return viewCanvas
	case viewCanvas:
		return viewDrafts
	case viewDrafts:
		return viewUploads
	default:
		return viewChat
	}
}
