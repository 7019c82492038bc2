package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkdraft/inkdraft/internal/domain"
	"github.com/inkdraft/inkdraft/internal/gateway"
	"github.com/inkdraft/inkdraft/internal/state"
)

// MaxFileSize is the client-side admission cap.
const MaxFileSize = 20 << 20 // 20 MiB

var allowedMIME = map[string]bool{
	"application/pdf": true,
	"text/markdown":   true,
}

// Gateway is the slice of the API client the pipeline needs.
type Gateway interface {
	PresignUpload(ctx context.Context, filename, mime string) (gateway.Presign, error)
	Transfer(ctx context.Context, p gateway.Presign, body io.Reader, size int64) error
	GenerateDraftFromDocument(ctx context.Context, docKey string, views []string) (gateway.GenerateDraftResponse, error)
}

// File describes a document selected for upload.
type File struct {
	Name string
	Path string
	MIME string
	Size int64
}

// Validate enforces the admission rules: pdf or markdown, at most 20 MiB.
// Rejection happens before any queue entry or network call exists.
func (f File) Validate() error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Name, validation.Required),
		validation.Field(&f.Size, validation.Required, validation.Min(int64(1)), validation.Max(int64(MaxFileSize)).Error("file exceeds 20 MiB")),
		validation.Field(&f.MIME, validation.By(func(any) error {
			if allowedMIME[f.MIME] {
				return nil
			}
			switch strings.ToLower(filepath.Ext(f.Name)) {
			case ".md", ".markdown":
				return nil
			}
			return fmt.Errorf("unsupported file type %q", f.MIME)
		})),
	)
	if err != nil {
		return &domain.ValidationError{Message: err.Error()}
	}
	return nil
}

// Pipeline drives each queued document through presign, transfer and
// readiness. Items progress independently; only the binary transfers share
// a bounded slot pool.
type Pipeline struct {
	gw    Gateway
	store *state.Store
	log   *zap.Logger
	slots chan struct{}
}

func NewPipeline(gw Gateway, store *state.Store, maxConcurrent int, log *zap.Logger) *Pipeline {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		gw:    gw,
		store: store,
		log:   log,
		slots: make(chan struct{}, maxConcurrent),
	}
}

// Admit validates a file and, when accepted, creates a pending queue entry.
// Invalid files produce a *domain.ValidationError and no UploadItem.
func (p *Pipeline) Admit(f File) (state.UploadItem, error) {
	if err := f.Validate(); err != nil {
		return state.UploadItem{}, err
	}
	item := state.UploadItem{
		ID:       uuid.NewString(),
		Filename: f.Name,
		Path:     f.Path,
		MIME:     f.MIME,
		Size:     f.Size,
		Status:   state.UploadPending,
	}
	p.store.AddUpload(item)
	p.log.Info("upload admitted", zap.String("id", item.ID), zap.String("file", f.Name))
	return item, nil
}

// Run executes one upload attempt for a pending item: presign, binary
// transfer, then readiness. Every state write goes through the store's
// versioned transitions, so a result arriving after the item was removed
// or retried is silently dropped.
func (p *Pipeline) Run(ctx context.Context, id string) error {
	item, ok := p.store.Upload(id)
	if !ok || item.Status != state.UploadPending {
		return nil
	}
	v := item.Version

	if !p.store.AdvanceUpload(id, v, state.UploadUploading, 10, nil) {
		return nil
	}

	presign, err := p.gw.PresignUpload(ctx, item.Filename, item.MIME)
	if err != nil {
		p.fail(id, v, 10, err)
		return err
	}

	p.slots <- struct{}{}
	err = p.transfer(ctx, id, v, item, presign)
	<-p.slots
	if err != nil {
		p.fail(id, v, 30, err)
		return err
	}

	if !p.store.AdvanceUpload(id, v, state.UploadProcessing, 70, func(it *state.UploadItem) {
		it.Key = presign.Key
	}) {
		return nil
	}
	p.store.AdvanceUpload(id, v, state.UploadComplete, 100, nil)
	p.log.Info("upload complete", zap.String("id", id), zap.String("key", presign.Key))
	return nil
}

func (p *Pipeline) transfer(ctx context.Context, id string, v uint64, item state.UploadItem, presign gateway.Presign) error {
	if !p.store.ProgressUpload(id, v, 30) {
		return nil
	}
	f, err := os.Open(item.Path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return p.gw.Transfer(ctx, presign, f, item.Size)
}

// Retry re-enters a failed item at the presign step with no partial state
// carried over.
func (p *Pipeline) Retry(ctx context.Context, id string) error {
	item, ok := p.store.Upload(id)
	if !ok || item.Status != state.UploadError {
		return nil
	}
	if _, ok := p.store.ResetUpload(id); !ok {
		return nil
	}
	return p.Run(ctx, id)
}

// Remove drops an item from the queue. In-flight work keyed to the item
// finds nothing to update afterwards.
func (p *Pipeline) Remove(id string) {
	p.store.RemoveUpload(id)
}

// GenerateDraft turns a complete item into a diagram draft. Success
// replaces the active diagram and removes the queue entry; failure marks
// the item for inspection but leaves it visible.
func (p *Pipeline) GenerateDraft(ctx context.Context, id string, views []string) (gateway.GenerateDraftResponse, error) {
	item, ok := p.store.Upload(id)
	if !ok {
		return gateway.GenerateDraftResponse{}, fmt.Errorf("upload %s not found", id)
	}
	if item.Status != state.UploadComplete {
		return gateway.GenerateDraftResponse{}, &domain.ValidationError{Message: "document is not ready for draft generation"}
	}

	resp, err := p.gw.GenerateDraftFromDocument(ctx, item.Key, views)
	if err != nil {
		p.fail(id, item.Version, item.Progress, err)
		return gateway.GenerateDraftResponse{}, err
	}

	p.store.SetActiveDiagram(state.ActiveDiagram{
		Source:  resp.Mermaid,
		Title:   resp.Summary,
		DraftID: resp.DraftID,
	})
	p.store.RemoveUpload(id)
	p.log.Info("draft generated from document", zap.String("draft_id", resp.DraftID))
	return resp, nil
}

func (p *Pipeline) fail(id string, v uint64, progress int, err error) {
	applied := p.store.AdvanceUpload(id, v, state.UploadError, progress, func(it *state.UploadItem) {
		it.Err = err.Error()
	})
	if applied {
		p.log.Warn("upload failed", zap.String("id", id), zap.Error(err))
	}
}
