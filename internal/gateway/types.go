package gateway

import (
	"encoding/json"
	"time"
)

// DiagramKind enumerates the diagram flavours the backend can produce.
type DiagramKind string

const (
	KindFlowchart DiagramKind = "flowchart"
	KindSequence  DiagramKind = "sequence"
	KindConcept   DiagramKind = "concept"
	KindERD       DiagramKind = "erd"
	KindTimeline  DiagramKind = "timeline"
)

// Valid reports whether k is one of the known diagram kinds.
func (k DiagramKind) Valid() bool {
	switch k {
	case KindFlowchart, KindSequence, KindConcept, KindERD, KindTimeline:
		return true
	}
	return false
}

// LayoutStyle and Complexity tune variant generation.
type LayoutStyle string

const (
	StyleCompact    LayoutStyle = "compact"
	StyleSpacious   LayoutStyle = "spacious"
	StyleOrthogonal LayoutStyle = "orthogonal"
)

type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// DiagramArtifact is a diagram returned alongside a chat reply. Value
// object: no identity, compared by content.
type DiagramArtifact struct {
	Kind   DiagramKind `json:"type"`
	Source string      `json:"mermaid"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message    string `json:"message"`
	ArtistMode bool   `json:"artist_mode"`
	ContextID  string `json:"context_id,omitempty"`
}

// ChatResponse carries the assistant reply and any diagram artifacts
// produced in artist mode. Unknown fields are ignored.
type ChatResponse struct {
	Reply     string            `json:"reply"`
	Graphs    []DiagramArtifact `json:"graphs,omitempty"`
	Sources   []string          `json:"sources,omitempty"`
	Score     *float64          `json:"score,omitempty"`
	DraftID   string            `json:"draft_id,omitempty"`
	DraftName string            `json:"draft_name,omitempty"`
}

// VariantRequest asks the backend to rework a diagram into another kind,
// style or complexity. Exactly one of Mermaid or DraftID should be set.
type VariantRequest struct {
	Mermaid    string      `json:"mermaid,omitempty"`
	DraftID    string      `json:"draft_id,omitempty"`
	TargetType DiagramKind `json:"target_type"`
	Style      LayoutStyle `json:"style,omitempty"`
	Complexity Complexity  `json:"complexity,omitempty"`
}

type VariantResponse struct {
	Mermaid string `json:"mermaid"`
}

// PresignRequest is the body of POST /uploads/presign.
type PresignRequest struct {
	Filename string `json:"filename"`
	MIME     string `json:"mime"`
}

// Presign is a time-limited, pre-authorized upload slot. Method defaults
// to PUT when the server omits it.
type Presign struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Key     string            `json:"key"`
}

// GenerateDraftRequest is the body of POST /drafts/generate.
type GenerateDraftRequest struct {
	DocKey string   `json:"doc_key"`
	Views  []string `json:"views,omitempty"`
}

type GenerateDraftResponse struct {
	DraftID string `json:"draft_id"`
	Mermaid string `json:"mermaid"`
	Summary string `json:"summary,omitempty"`
}

// SaveDraftRequest is the body of POST /drafts. An empty DraftID creates,
// a present one updates.
type SaveDraftRequest struct {
	DraftID   string          `json:"draft_id,omitempty"`
	Title     string          `json:"title"`
	Tags      []string        `json:"tags,omitempty"`
	Mermaid   string          `json:"mermaid"`
	GraphJSON json.RawMessage `json:"graph_json,omitempty"`
}

type SaveDraftResponse struct {
	DraftID string `json:"draft_id"`
}

// DraftSummary is the read-only listing projection.
type DraftSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Tags        []string  `json:"tags"`
	LastUpdated time.Time `json:"lastUpdated"`
}

type ListDraftsResponse struct {
	Items []DraftSummary `json:"items"`
	Total int            `json:"total"`
}

// Draft is the full persisted record returned by GET /drafts/{id}.
type Draft struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Tags        []string        `json:"tags"`
	Mermaid     string          `json:"mermaid"`
	GraphJSON   json.RawMessage `json:"graph_json,omitempty"`
	LastUpdated *time.Time      `json:"lastUpdated,omitempty"`
}

type ShareResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
