package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkdraft/inkdraft/internal/database"
	"github.com/inkdraft/inkdraft/internal/gateway"
	"github.com/inkdraft/inkdraft/internal/state"
)

func openTestDB(t *testing.T) *testDB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("../migrations")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dbPath, migrations))

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &testDB{Messages: NewMessageRepo(db), Drafts: NewDraftCacheRepo(db)}
}

type testDB struct {
	Messages *MessageRepo
	Drafts   *DraftCacheRepo
}

func TestMessageLogAppendAndReload(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d := openTestDB(t)

	base := database.Now()
	require.NoError(t, d.Messages.Append(ctx, state.Message{
		ID: "m1", Role: state.RoleUser, Text: "draw the login flow", CreatedAt: base,
	}))
	require.NoError(t, d.Messages.Append(ctx, state.Message{
		ID: "m2", Role: state.RoleAssistant, Text: "here you go",
		Artifacts: []gateway.DiagramArtifact{{Kind: gateway.KindFlowchart, Source: "graph TD\n A-->B"}},
		CreatedAt: base.Add(time.Second),
	}))

	msgs, err := d.Messages.List(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "m1", msgs[0].ID)
	require.Empty(t, msgs[0].Artifacts)
	require.Equal(t, state.RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].Artifacts, 1)
	require.Equal(t, gateway.KindFlowchart, msgs[1].Artifacts[0].Kind)
}

func TestDraftCacheReplaceIsWholesale(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d := openTestDB(t)

	now := database.Now()
	require.NoError(t, d.Drafts.Replace(ctx, []gateway.DraftSummary{
		{ID: "d1", Title: "Payment flow", Tags: []string{"payments"}, LastUpdated: now},
		{ID: "d2", Title: "Auth ERD", Tags: []string{"erd", "auth"}, LastUpdated: now.Add(-time.Hour)},
	}))

	require.NoError(t, d.Drafts.Replace(ctx, []gateway.DraftSummary{
		{ID: "d3", Title: "Deploy timeline", Tags: nil, LastUpdated: now},
	}))

	items, err := d.Drafts.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1, "stale entries must not survive a list fetch")
	require.Equal(t, "d3", items[0].ID)
}

func TestDraftCacheOrderedByUpdatedAt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d := openTestDB(t)

	now := database.Now()
	require.NoError(t, d.Drafts.Replace(ctx, []gateway.DraftSummary{
		{ID: "old", Title: "Old", LastUpdated: now.Add(-48 * time.Hour)},
		{ID: "new", Title: "New", LastUpdated: now},
	}))

	items, err := d.Drafts.List(ctx)
	require.NoError(t, err)
	require.Equal(t, "new", items[0].ID)
	require.Equal(t, "old", items[1].ID)

	require.NoError(t, d.Drafts.Delete(ctx, "new"))
	items, err = d.Drafts.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
}
