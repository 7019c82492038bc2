package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/inkdraft/inkdraft/internal/state"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	tabStyle      = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("241"))
	tabActive     = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("205"))
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	canvasBorder  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (a *App) View() string {
	var b strings.Builder

	header := titleStyle.Render("inkdraft")
	if a.store.ArtistMode() {
		header += "  " + okStyle.Render("[artist]")
	}
	b.WriteString(header + "\n")
	b.WriteString(a.renderTabs() + "\n\n")

	switch a.view {
	case viewChat:
		b.WriteString(a.renderChat())
	case viewUploads:
		b.WriteString(a.renderUploads())
	case viewDrafts:
		b.WriteString(a.renderDrafts())
	case viewCanvas:
		b.WriteString(a.renderCanvas())
	}

	b.WriteString("\n")
	if a.mode != modeBrowse {
		b.WriteString(a.input.View() + "\n")
	}
	if a.status != "" {
		if strings.HasPrefix(a.status, "error:") || strings.HasPrefix(a.status, "rejected:") {
			b.WriteString(errStyle.Render(a.status) + "\n")
		} else {
			b.WriteString(statusStyle.Render(a.status) + "\n")
		}
	}
	b.WriteString(dimStyle.Render(a.helpLine()))
	return b.String()
}

func (a *App) renderTabs() string {
	parts := make([]string, 0, 4)
	for _, v := range []viewState{viewChat, viewUploads, viewDrafts, viewCanvas} {
		if v == a.view {
			parts = append(parts, tabActive.Render(string(v)))
		} else {
			parts = append(parts, tabStyle.Render(string(v)))
		}
	}
	return strings.Join(parts, "|")
}

func (a *App) renderChat() string {
	msgs := a.store.Messages()
	if len(msgs) == 0 {
		return dimStyle.Render("no messages yet - press i to compose")
	}

	var b strings.Builder
	start := 0
	if max := a.visibleRows(); len(msgs) > max {
		start = len(msgs) - max
		if a.msgCursor < start {
			start = a.msgCursor
		}
	}
	for i := start; i < len(msgs); i++ {
		m := msgs[i]
		cursor := "  "
		if i == a.msgCursor {
			cursor = selectedStyle.Render("> ")
		}
		style := botStyle
		label := "assistant"
		if m.Role == state.RoleUser {
			style = userStyle
			label = "you"
		}
		b.WriteString(cursor + style.Render(label+": "+m.Text) + "\n")
		for j, art := range m.Artifacts {
			marker := "  "
			if i == a.msgCursor && j == a.artCursor {
				marker = selectedStyle.Render("* ")
			}
			b.WriteString("    " + marker + dimStyle.Render(fmt.Sprintf("[%s diagram]", art.Kind)) + "\n")
		}
	}
	return b.String()
}

func (a *App) renderUploads() string {
	items := a.store.Uploads()
	if len(items) == 0 {
		return dimStyle.Render("queue empty - press u to add a document")
	}

	var b strings.Builder
	for i, it := range items {
		cursor := "  "
		if i == a.uploadCursor {
			cursor = selectedStyle.Render("> ")
		}
		line := fmt.Sprintf("%-28s %s %s", truncate(it.Filename, 28), progressBar(it.Progress), it.Status)
		switch it.Status {
		case state.UploadError:
			line = errStyle.Render(line + "  " + it.Err)
		case state.UploadComplete:
			line = okStyle.Render(line)
		}
		b.WriteString(cursor + line + "\n")
	}
	return b.String()
}

func (a *App) renderDrafts() string {
	items, total := a.store.Drafts()
	var b strings.Builder
	if a.lastQuery != "" {
		b.WriteString(dimStyle.Render("filter: "+a.lastQuery) + "\n")
	}
	if len(items) == 0 {
		b.WriteString(dimStyle.Render("no drafts - save one from the canvas with s"))
		return b.String()
	}
	for i, d := range items {
		cursor := "  "
		if i == a.draftCursor {
			cursor = selectedStyle.Render("> ")
		}
		tags := ""
		if len(d.Tags) > 0 {
			tags = dimStyle.Render(" #" + strings.Join(d.Tags, " #"))
		}
		b.WriteString(cursor + fmt.Sprintf("%-32s %s", truncate(d.Title, 32), d.LastUpdated.Format("2006-01-02 15:04")) + tags + "\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("\n%d of %d", len(items), total)))
	return b.String()
}

func (a *App) renderCanvas() string {
	active, ok := a.store.ActiveDiagram()
	if !ok {
		return dimStyle.Render("nothing selected - pick an artifact in chat with v, or open a draft")
	}

	var b strings.Builder
	title := active.Title
	if title == "" {
		title = "(untitled)"
	}
	b.WriteString(selectedStyle.Render(title))
	if active.Kind != "" {
		b.WriteString(dimStyle.Render("  " + string(active.Kind)))
	}
	if active.DraftID != "" {
		b.WriteString(dimStyle.Render("  draft " + active.DraftID))
	}
	b.WriteString("\n")
	if w := a.services.Drafts.Working(); len(w.Tags) > 0 {
		b.WriteString(dimStyle.Render("#"+strings.Join(w.Tags, " #")) + "\n")
	}

	if active.SVG != "" {
		b.WriteString(okStyle.Render("rendered") + "\n")
	} else if msg := a.services.Render.Err(); msg != "" {
		b.WriteString(errStyle.Render("render failed: "+msg) + "\n")
	}

	body := active.Source
	if lines := strings.Split(body, "\n"); len(lines) > a.visibleRows() {
		body = strings.Join(lines[:a.visibleRows()], "\n") + "\n" + dimStyle.Render("...")
	}
	b.WriteString(canvasBorder.Render(body))
	return b.String()
}

func (a *App) helpLine() string {
	common := "tab views  a artist  q quit"
	switch {
	case a.mode != modeBrowse:
		return "enter submit  esc cancel"
	case a.view == viewChat:
		return "i compose  j/k move  h/l artifact  v view  " + common
	case a.view == viewUploads:
		return "u add  r retry  g generate  x remove  " + common
	case a.view == viewDrafts:
		return "/ search  enter open  y share  d delete  R refresh  " + common
	default:
		return "s save  t/T tag  N new  f/c/m/o/n variant  e/E export svg/png  " + common
	}
}

func (a *App) visibleRows() int {
	if a.height <= 10 {
		return 12
	}
	return a.height - 8
}

func progressBar(pct int) string {
	const width = 10
	filled := pct * width / 100
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat("-", width-filled), pct)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
