package drafts

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/inkdraft/inkdraft/internal/database/repository"
	"github.com/inkdraft/inkdraft/internal/domain"
	"github.com/inkdraft/inkdraft/internal/gateway"
	"github.com/inkdraft/inkdraft/internal/state"
)

// DefaultPageSize for draft listings.
const DefaultPageSize = 50

// Gateway is the slice of the API client the manager needs.
type Gateway interface {
	SaveDraft(ctx context.Context, req gateway.SaveDraftRequest) (gateway.SaveDraftResponse, error)
	ListDrafts(ctx context.Context, query string, page, pageSize int) (gateway.ListDraftsResponse, error)
	GetDraft(ctx context.Context, id string) (gateway.Draft, error)
	DeleteDraft(ctx context.Context, id string) error
	ShareDraft(ctx context.Context, id string) (gateway.ShareResponse, error)
	RequestVariant(ctx context.Context, req gateway.VariantRequest) (gateway.VariantResponse, error)
}

// Working is the draft currently being edited: identity and naming only,
// the diagram source itself lives on the canvas.
type Working struct {
	ID    string
	Title string
	Tags  []string
}

// Manager owns draft lifecycle: save/list/load/share/delete plus local tag
// editing. The drafts index in the store and the sqlite cache are replaced
// wholesale on every list fetch.
type Manager struct {
	gw    Gateway
	store *state.Store
	cache *repository.DraftCacheRepo
	log   *zap.Logger

	mu        sync.Mutex
	working   Working
	lastQuery string
}

func NewManager(gw Gateway, store *state.Store, cache *repository.DraftCacheRepo, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{gw: gw, store: store, cache: cache, log: log}
}

// NormalizeTag trims and lowercases a raw tag. Empty result means the tag
// is unusable.
func NormalizeTag(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// SetTitle names the working draft.
func (m *Manager) SetTitle(title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.working.Title = strings.TrimSpace(title)
}

// AddTag normalizes at add time so duplicates cannot occur.
func (m *Manager) AddTag(raw string) {
	tag := NormalizeTag(raw)
	if tag == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.working.Tags {
		if existing == tag {
			return
		}
	}
	m.working.Tags = append(m.working.Tags, tag)
}

// RemoveTag drops a tag from the working set.
func (m *Manager) RemoveTag(raw string) {
	tag := NormalizeTag(raw)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.working.Tags {
		if existing == tag {
			m.working.Tags = append(m.working.Tags[:i], m.working.Tags[i+1:]...)
			return
		}
	}
}

// Working returns a copy of the draft being edited.
func (m *Manager) Working() Working {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.working
	w.Tags = append([]string(nil), m.working.Tags...)
	return w
}

// StartNew clears the working draft so the next save creates a record.
func (m *Manager) StartNew() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.working = Working{}
}

// Save persists the working draft with the current canvas source. The first
// save creates; the returned id is adopted so every later save updates the
// same record.
func (m *Manager) Save(ctx context.Context) (gateway.SaveDraftResponse, error) {
	w := m.Working()
	active, hasActive := m.store.ActiveDiagram()

	source := ""
	if hasActive {
		source = active.Source
	}
	err := validation.Errors{
		"title":  validation.Validate(w.Title, validation.Required.Error("title must not be empty")),
		"source": validation.Validate(source, validation.Required.Error("nothing on canvas to save")),
	}.Filter()
	if err != nil {
		return gateway.SaveDraftResponse{}, &domain.ValidationError{Message: err.Error()}
	}

	resp, err := m.gw.SaveDraft(ctx, gateway.SaveDraftRequest{
		DraftID: w.ID,
		Title:   w.Title,
		Tags:    w.Tags,
		Mermaid: source,
	})
	if err != nil {
		return gateway.SaveDraftResponse{}, err
	}

	m.mu.Lock()
	m.working.ID = resp.DraftID
	m.mu.Unlock()
	m.log.Info("draft saved", zap.String("draft_id", resp.DraftID), zap.String("title", w.Title))
	return resp, nil
}

// List fetches one page of summaries, filters them case-insensitively
// against title and tags, and replaces the local index wholesale. For a
// non-empty query, results are ranked by edit distance of query to title
// so near-typos surface first; an empty query keeps most-recent first.
func (m *Manager) List(ctx context.Context, query string, page, pageSize int) ([]gateway.DraftSummary, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	resp, err := m.gw.ListDrafts(ctx, query, page, pageSize)
	if err != nil {
		return nil, err
	}

	items := filterSummaries(resp.Items, query)
	if strings.TrimSpace(query) == "" {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].LastUpdated.After(items[j].LastUpdated)
		})
	} else {
		q := strings.ToLower(strings.TrimSpace(query))
		sort.SliceStable(items, func(i, j int) bool {
			return levenshtein.ComputeDistance(q, strings.ToLower(items[i].Title)) <
				levenshtein.ComputeDistance(q, strings.ToLower(items[j].Title))
		})
	}

	m.store.SetDrafts(items, resp.Total)
	m.mu.Lock()
	m.lastQuery = query
	m.mu.Unlock()

	if m.cache != nil {
		if err := m.cache.Replace(ctx, items); err != nil {
			m.log.Warn("draft cache update failed", zap.Error(err))
		}
	}
	return items, nil
}

func filterSummaries(items []gateway.DraftSummary, query string) []gateway.DraftSummary {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]gateway.DraftSummary(nil), items...)
	}
	var out []gateway.DraftSummary
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Title), q) {
			out = append(out, it)
			continue
		}
		for _, tag := range it.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// Load fetches a draft and puts it on canvas, replacing the active diagram
// wholesale and adopting the record for editing.
func (m *Manager) Load(ctx context.Context, id string) (gateway.Draft, error) {
	d, err := m.gw.GetDraft(ctx, id)
	if err != nil {
		return gateway.Draft{}, err
	}

	tags := make([]string, 0, len(d.Tags))
	for _, raw := range d.Tags {
		if t := NormalizeTag(raw); t != "" {
			tags = appendUnique(tags, t)
		}
	}
	m.mu.Lock()
	m.working = Working{ID: d.ID, Title: d.Title, Tags: tags}
	m.mu.Unlock()

	m.store.SetActiveDiagram(state.ActiveDiagram{
		Source:  d.Mermaid,
		Title:   d.Title,
		DraftID: d.ID,
	})
	return d, nil
}

func appendUnique(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}

// Variant asks the backend to rework the canvas diagram into another kind,
// style or complexity and puts the result on canvas.
func (m *Manager) Variant(ctx context.Context, target gateway.DiagramKind, style gateway.LayoutStyle, complexity gateway.Complexity) error {
	active, ok := m.store.ActiveDiagram()
	if !ok || active.Source == "" {
		return &domain.ValidationError{Message: "nothing on canvas to rework"}
	}
	resp, err := m.gw.RequestVariant(ctx, gateway.VariantRequest{
		Mermaid:    active.Source,
		DraftID:    active.DraftID,
		TargetType: target,
		Style:      style,
		Complexity: complexity,
	})
	if err != nil {
		return err
	}
	m.store.SetActiveDiagram(state.ActiveDiagram{
		Source:  resp.Mermaid,
		Kind:    target,
		Title:   active.Title,
		DraftID: active.DraftID,
	})
	return nil
}

// Share returns a public link for display. Expiry is not cached or
// validated locally.
func (m *Manager) Share(ctx context.Context, id string) (gateway.ShareResponse, error) {
	return m.gw.ShareDraft(ctx, id)
}

// Delete removes a draft, dropping it from the local index optimistically.
// If the server refuses, the index is re-fetched rather than leaving the
// optimistic removal in place.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.store.RemoveDraft(id)
	if m.cache != nil {
		if err := m.cache.Delete(ctx, id); err != nil {
			m.log.Warn("draft cache delete failed", zap.Error(err))
		}
	}

	if err := m.gw.DeleteDraft(ctx, id); err != nil {
		m.mu.Lock()
		q := m.lastQuery
		m.mu.Unlock()
		if _, lerr := m.List(ctx, q, 1, DefaultPageSize); lerr != nil {
			m.log.Warn("index refresh after failed delete", zap.Error(lerr))
		}
		return err
	}
	return nil
}

// WarmFromCache seeds the store index from the sqlite cache for instant
// display before the first fetch. Silently does nothing without a cache.
func (m *Manager) WarmFromCache(ctx context.Context) {
	if m.cache == nil {
		return
	}
	items, err := m.cache.List(ctx)
	if err != nil || len(items) == 0 {
		return
	}
	m.store.SetDrafts(items, len(items))
}
