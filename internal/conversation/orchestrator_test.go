package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkdraft/inkdraft/internal/domain"
	"github.com/inkdraft/inkdraft/internal/gateway"
	"github.com/inkdraft/inkdraft/internal/state"
)

type fakeChat struct {
	calls   int
	lastReq gateway.ChatRequest
	resp    gateway.ChatResponse
	err     error
}

func (f *fakeChat) Chat(_ context.Context, req gateway.ChatRequest) (gateway.ChatResponse, error) {
	f.calls++
	f.lastReq = req
	return f.resp, f.err
}

func TestArtistModeChatActivatesFirstArtifact(t *testing.T) {
	t.Parallel()

	gw := &fakeChat{resp: gateway.ChatResponse{
		Reply: "here is the login flow",
		Graphs: []gateway.DiagramArtifact{
			{Kind: gateway.KindFlowchart, Source: "graph TD\n U-->L[Login]"},
			{Kind: gateway.KindSequence, Source: "sequenceDiagram\n U->>S: creds"},
		},
	}}
	store := state.NewStore()
	store.SetArtistMode(true)
	o := NewOrchestrator(gw, store, nil, nil)

	turn, err := o.Send(context.Background(), "draw the login flow")
	require.NoError(t, err)

	status, _ := o.Status()
	require.Equal(t, TurnAwaiting, status)

	resp, err := o.Await(context.Background(), turn, "draw the login flow")
	require.NoError(t, err)
	require.True(t, gw.lastReq.ArtistMode)
	require.Len(t, resp.Graphs, 2)

	msgs := store.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, state.RoleUser, msgs[0].Role)
	require.Equal(t, state.RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].Artifacts, 2)

	active, ok := store.ActiveDiagram()
	require.True(t, ok)
	require.Equal(t, "graph TD\n U-->L[Login]", active.Source, "first artifact auto-activates")
	require.Equal(t, gateway.KindFlowchart, active.Kind)

	status, _ = o.Status()
	require.Equal(t, TurnReplied, status)
}

func TestFailureKeepsOptimisticUserMessage(t *testing.T) {
	t.Parallel()

	gw := &fakeChat{err: &gateway.TransportError{Status: 502, Message: "backend down"}}
	store := state.NewStore()
	o := NewOrchestrator(gw, store, nil, nil)

	turn, err := o.Send(context.Background(), "hello?")
	require.NoError(t, err)
	_, err = o.Await(context.Background(), turn, "hello?")
	require.Error(t, err)

	msgs := store.Messages()
	require.Len(t, msgs, 1, "the user's own input is never rolled back")
	require.Equal(t, "hello?", msgs[0].Text)

	status, msg := o.Status()
	require.Equal(t, TurnFailed, status)
	require.Contains(t, msg, "backend down")
}

func TestEmptyMessageRejectedLocally(t *testing.T) {
	t.Parallel()

	gw := &fakeChat{}
	o := NewOrchestrator(gw, state.NewStore(), nil, nil)
	_, err := o.Send(context.Background(), "   ")
	require.True(t, domain.IsValidation(err))
	require.Zero(t, gw.calls)
}

func TestSupersededTurnReplyIsDropped(t *testing.T) {
	t.Parallel()

	store := state.NewStore()
	gw := &fakeChat{resp: gateway.ChatResponse{Reply: "late answer"}}
	o := NewOrchestrator(gw, store, nil, nil)

	turn1, err := o.Send(context.Background(), "first")
	require.NoError(t, err)

	// a second send lands before the first reply arrives
	_, err = o.Send(context.Background(), "second")
	require.NoError(t, err)

	_, err = o.Await(context.Background(), turn1, "first")
	require.NoError(t, err)

	for _, m := range store.Messages() {
		require.NotEqual(t, "late answer", m.Text, "stale reply must not be appended")
	}
	status, _ := o.Status()
	require.Equal(t, TurnAwaiting, status, "the live turn stays in flight")
}

func TestSelectArtifactReplacesWholesale(t *testing.T) {
	t.Parallel()

	store := state.NewStore()
	o := NewOrchestrator(&fakeChat{}, store, nil, nil)

	store.AppendMessage(state.Message{
		ID:   "m1",
		Role: state.RoleAssistant,
		Artifacts: []gateway.DiagramArtifact{
			{Kind: gateway.KindFlowchart, Source: "flow"},
			{Kind: gateway.KindERD, Source: "erd"},
		},
	})

	require.NoError(t, o.SelectArtifact("m1", 0))
	store.SetActiveRendered("flow", "<svg>flow</svg>")

	require.NoError(t, o.SelectArtifact("m1", 1))
	active, ok := store.ActiveDiagram()
	require.True(t, ok)
	require.Equal(t, "erd", active.Source)
	require.Empty(t, active.SVG, "the first artifact's rendered state is discarded entirely")

	// idempotent
	require.NoError(t, o.SelectArtifact("m1", 1))
	again, _ := store.ActiveDiagram()
	require.Equal(t, active, again)

	require.Error(t, o.SelectArtifact("m1", 5))
	require.Error(t, o.SelectArtifact("nope", 0))
}

func TestToggleArtistModeAffectsFutureCallsOnly(t *testing.T) {
	t.Parallel()

	store := state.NewStore()
	gw := &fakeChat{resp: gateway.ChatResponse{Reply: "ok"}}
	o := NewOrchestrator(gw, store, nil, nil)

	turn, err := o.Send(context.Background(), "plain question")
	require.NoError(t, err)
	_, err = o.Await(context.Background(), turn, "plain question")
	require.NoError(t, err)
	require.False(t, gw.lastReq.ArtistMode)

	require.True(t, o.ToggleArtistMode())

	turn, err = o.Send(context.Background(), "now draw it")
	require.NoError(t, err)
	_, err = o.Await(context.Background(), turn, "now draw it")
	require.NoError(t, err)
	require.True(t, gw.lastReq.ArtistMode)

	// past messages are untouched
	msgs := store.Messages()
	require.Equal(t, "plain question", msgs[0].Text)
}
