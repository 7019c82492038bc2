package state

import (
	"sync"
	"time"

	"github.com/inkdraft/inkdraft/internal/gateway"
)

// Role of a conversation message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the conversation log. Immutable once appended.
type Message struct {
	ID        string
	Role      Role
	Text      string
	Artifacts []gateway.DiagramArtifact
	CreatedAt time.Time
}

// ActiveDiagram is what is currently shown on canvas. It is replaced
// wholesale on selection change; SVG is filled in by the render engine
// only while the source it rendered is still current.
type ActiveDiagram struct {
	Source  string
	SVG     string
	Kind    gateway.DiagramKind
	Title   string
	DraftID string
}

// UploadStatus of a queued document.
type UploadStatus string

const (
	UploadPending    UploadStatus = "pending"
	UploadUploading  UploadStatus = "uploading"
	UploadProcessing UploadStatus = "processing"
	UploadComplete   UploadStatus = "complete"
	UploadError      UploadStatus = "error"
)

var statusRank = map[UploadStatus]int{
	UploadPending:    0,
	UploadUploading:  1,
	UploadProcessing: 2,
	UploadComplete:   3,
}

// CanTransition reports whether an upload may move from one status to the
// next: forward-only along the pipeline, with error terminal once entered.
// Error is reachable from every other state; a complete item can still fail
// during draft generation.
func CanTransition(from, to UploadStatus) bool {
	if from == UploadError {
		return false
	}
	if to == UploadError {
		return true
	}
	if from == UploadComplete {
		return false
	}
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	return tr == fr+1
}

// UploadItem is one entry in the upload queue. Version increments on every
// reset so in-flight work started against an older incarnation can detect
// it is stale and drop its result.
type UploadItem struct {
	ID       string
	Filename string
	Path     string
	MIME     string
	Size     int64
	Progress int
	Status   UploadStatus
	Key      string
	Err      string
	Version  uint64
}

// Store is the application's single shared mutable resource. It is created
// once per app instance and passed to components explicitly. Every mutation
// is a single atomic assignment under the lock; readers receive copies.
type Store struct {
	mu          sync.RWMutex
	messages    []Message
	active      *ActiveDiagram
	uploads     []UploadItem
	drafts      []gateway.DraftSummary
	draftsTotal int
	artistMode  bool
}

func NewStore() *Store {
	return &Store{}
}

// LoadMessages hydrates the conversation log at startup. It must not be
// used after messages have been appended.
func (s *Store) LoadMessages(ms []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append([]Message(nil), ms...)
}

// AppendMessage adds one message to the end of the log.
func (s *Store) AppendMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
}

// Messages returns a copy of the conversation log in append order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...)
}

// SetActiveDiagram replaces the canvas content wholesale.
func (s *Store) SetActiveDiagram(d ActiveDiagram) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = &d
}

// SetActiveRendered attaches rendered output, but only while the source it
// was produced from is still the active one. Returns false for stale output.
func (s *Store) SetActiveRendered(source, svg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.Source != source {
		return false
	}
	d := *s.active
	d.SVG = svg
	s.active = &d
	return true
}

// ActiveDiagram returns the current canvas content, if any.
func (s *Store) ActiveDiagram() (ActiveDiagram, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return ActiveDiagram{}, false
	}
	return *s.active, true
}

func (s *Store) ClearActiveDiagram() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
}

// AddUpload appends a new item to the upload queue.
func (s *Store) AddUpload(item UploadItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads = append(s.uploads, item)
}

// Upload returns a snapshot of one queue entry.
func (s *Store) Upload(id string) (UploadItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.uploads {
		if s.uploads[i].ID == id {
			return s.uploads[i], true
		}
	}
	return UploadItem{}, false
}

// Uploads returns a copy of the queue in insertion order.
func (s *Store) Uploads() []UploadItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]UploadItem(nil), s.uploads...)
}

// AdvanceUpload moves an item to the next status, applying the optional
// extra mutation in the same step. It refuses when the item is gone, the
// version is stale (a late completion from an orphaned request), or the
// transition would violate the pipeline's forward-only order.
func (s *Store) AdvanceUpload(id string, version uint64, next UploadStatus, progress int, mutate func(*UploadItem)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.uploads {
		if s.uploads[i].ID != id {
			continue
		}
		if s.uploads[i].Version != version {
			return false
		}
		if !CanTransition(s.uploads[i].Status, next) {
			return false
		}
		item := s.uploads[i]
		item.Status = next
		item.Progress = progress
		if mutate != nil {
			mutate(&item)
		}
		s.uploads[i] = item
		return true
	}
	return false
}

// ProgressUpload bumps the coarse progress milestone without changing
// status. Subject to the same staleness checks as AdvanceUpload.
func (s *Store) ProgressUpload(id string, version uint64, progress int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.uploads {
		if s.uploads[i].ID != id {
			continue
		}
		if s.uploads[i].Version != version {
			return false
		}
		item := s.uploads[i]
		item.Progress = progress
		s.uploads[i] = item
		return true
	}
	return false
}

// ResetUpload re-admits a failed item for retry: fresh version, pending
// status, no partial state carried over. Returns the new snapshot.
func (s *Store) ResetUpload(id string) (UploadItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.uploads {
		if s.uploads[i].ID != id {
			continue
		}
		item := s.uploads[i]
		item.Version++
		item.Status = UploadPending
		item.Progress = 0
		item.Key = ""
		item.Err = ""
		s.uploads[i] = item
		return item, true
	}
	return UploadItem{}, false
}

// RemoveUpload deletes a queue entry. Any in-flight work keyed to the old
// id simply finds nothing to update afterwards.
func (s *Store) RemoveUpload(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.uploads {
		if s.uploads[i].ID == id {
			s.uploads = append(s.uploads[:i], s.uploads[i+1:]...)
			return
		}
	}
}

// SetDrafts replaces the drafts index wholesale with the latest fetch.
func (s *Store) SetDrafts(items []gateway.DraftSummary, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts = append([]gateway.DraftSummary(nil), items...)
	s.draftsTotal = total
}

// Drafts returns the current index copy and the server-side total.
func (s *Store) Drafts() ([]gateway.DraftSummary, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]gateway.DraftSummary(nil), s.drafts...), s.draftsTotal
}

// RemoveDraft optimistically drops one entry from the local index.
func (s *Store) RemoveDraft(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.drafts {
		if s.drafts[i].ID == id {
			s.drafts = append(s.drafts[:i], s.drafts[i+1:]...)
			s.draftsTotal--
			return
		}
	}
}

func (s *Store) SetArtistMode(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artistMode = on
}

func (s *Store) ArtistMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artistMode
}
