package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkdraft/inkdraft/internal/domain"
	"github.com/inkdraft/inkdraft/internal/gateway"
	"github.com/inkdraft/inkdraft/internal/state"
)

// TurnStatus tracks the lifecycle of the current conversation turn.
type TurnStatus string

const (
	TurnIdle     TurnStatus = "idle"
	TurnAwaiting TurnStatus = "awaitingReply"
	TurnReplied  TurnStatus = "replied"
	TurnFailed   TurnStatus = "failed"
)

// Gateway is the slice of the API client the orchestrator needs.
type Gateway interface {
	Chat(ctx context.Context, req gateway.ChatRequest) (gateway.ChatResponse, error)
}

// Log persists messages across sessions. Optional.
type Log interface {
	Append(ctx context.Context, m state.Message) error
}

// Orchestrator manages the conversation: optimistic user messages, chat
// dispatch with the current artist-mode flag, and artifact activation.
// The message history is append-only; a user's own input is never rolled
// back, even when the backend fails.
type Orchestrator struct {
	gw      Gateway
	store   *state.Store
	logRepo Log
	log     *zap.Logger

	mu        sync.Mutex
	turn      uint64
	status    TurnStatus
	lastErr   string
	contextID string
}

func NewOrchestrator(gw Gateway, store *state.Store, logRepo Log, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{gw: gw, store: store, logRepo: logRepo, log: log, status: TurnIdle}
}

// SetContextID scopes subsequent chat calls to a backend conversation.
func (o *Orchestrator) SetContextID(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.contextID = id
}

// Send appends the user's message optimistically and opens a new turn.
// The returned turn token must be passed to Await; a later Send supersedes
// any turn still in flight.
func (o *Orchestrator) Send(ctx context.Context, text string) (uint64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, &domain.ValidationError{Message: "message must not be empty"}
	}

	msg := state.Message{
		ID:        uuid.NewString(),
		Role:      state.RoleUser,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	o.store.AppendMessage(msg)
	o.persist(ctx, msg)

	o.mu.Lock()
	o.turn++
	turn := o.turn
	o.status = TurnAwaiting
	o.lastErr = ""
	o.mu.Unlock()
	return turn, nil
}

// Await performs the chat exchange for a turn. Replies for superseded
// turns are dropped without touching state. On success the assistant
// message is appended and the first artifact, if any, becomes the active
// diagram automatically.
func (o *Orchestrator) Await(ctx context.Context, turn uint64, text string) (gateway.ChatResponse, error) {
	o.mu.Lock()
	contextID := o.contextID
	o.mu.Unlock()

	resp, err := o.gw.Chat(ctx, gateway.ChatRequest{
		Message:    text,
		ArtistMode: o.store.ArtistMode(),
		ContextID:  contextID,
	})

	o.mu.Lock()
	current := o.turn == turn
	if current {
		if err != nil {
			o.status = TurnFailed
			o.lastErr = err.Error()
		} else {
			o.status = TurnReplied
			o.lastErr = ""
		}
	}
	o.mu.Unlock()

	if !current {
		o.log.Debug("dropping reply for superseded turn", zap.Uint64("turn", turn))
		return gateway.ChatResponse{}, err
	}
	if err != nil {
		return gateway.ChatResponse{}, err
	}

	msg := state.Message{
		ID:        uuid.NewString(),
		Role:      state.RoleAssistant,
		Text:      resp.Reply,
		Artifacts: resp.Graphs,
		CreatedAt: time.Now().UTC(),
	}
	o.store.AppendMessage(msg)
	o.persist(ctx, msg)

	if len(resp.Graphs) > 0 {
		first := resp.Graphs[0]
		o.store.SetActiveDiagram(state.ActiveDiagram{
			Source: first.Source,
			Kind:   first.Kind,
			Title:  resp.DraftName,
		})
	}
	return resp, nil
}

// SelectArtifact puts one artifact from a past message on canvas, replacing
// the active diagram wholesale. Selecting the same artifact again has the
// same effect.
func (o *Orchestrator) SelectArtifact(messageID string, index int) error {
	for _, m := range o.store.Messages() {
		if m.ID != messageID {
			continue
		}
		if index < 0 || index >= len(m.Artifacts) {
			return fmt.Errorf("message %s has no artifact %d", messageID, index)
		}
		art := m.Artifacts[index]
		o.store.SetActiveDiagram(state.ActiveDiagram{
			Source: art.Source,
			Kind:   art.Kind,
		})
		return nil
	}
	return fmt.Errorf("message %s not found", messageID)
}

// Status reports the current turn state and, when failed, the transient
// error to show the user.
func (o *Orchestrator) Status() (TurnStatus, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status, o.lastErr
}

// ToggleArtistMode flips the flag for future chat calls only.
func (o *Orchestrator) ToggleArtistMode() bool {
	next := !o.store.ArtistMode()
	o.store.SetArtistMode(next)
	return next
}

func (o *Orchestrator) persist(ctx context.Context, m state.Message) {
	if o.logRepo == nil {
		return
	}
	if err := o.logRepo.Append(ctx, m); err != nil {
		o.log.Warn("message log append failed", zap.String("id", m.ID), zap.Error(err))
	}
}
