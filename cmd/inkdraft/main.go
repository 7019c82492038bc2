package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/inkdraft/inkdraft/internal/config"
	"github.com/inkdraft/inkdraft/internal/conversation"
	"github.com/inkdraft/inkdraft/internal/database"
	"github.com/inkdraft/inkdraft/internal/database/repository"
	"github.com/inkdraft/inkdraft/internal/drafts"
	"github.com/inkdraft/inkdraft/internal/gateway"
	"github.com/inkdraft/inkdraft/internal/prefs"
	"github.com/inkdraft/inkdraft/internal/render"
	"github.com/inkdraft/inkdraft/internal/state"
	"github.com/inkdraft/inkdraft/internal/tui"
	"github.com/inkdraft/inkdraft/internal/upload"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.UI.LogPath)
	defer logger.Sync()

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatalf("mkdir db dir: %v", err)
	}

	if err := database.RunMigrations(cfg.Database.Path, cfg.Database.MigrationsPath); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	msgRepo := repository.NewMessageRepo(db)
	cacheRepo := repository.NewDraftCacheRepo(db)

	client, err := gateway.New(cfg.Server.BaseURL, time.Duration(cfg.Server.TimeoutSeconds)*time.Second, logger)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}
	renderer := render.NewHTTPRenderer(cfg.Renderer.BaseURL, time.Duration(cfg.Renderer.TimeoutSeconds)*time.Second, logger)

	store := state.NewStore()
	if msgs, err := msgRepo.List(ctx); err == nil {
		store.LoadMessages(msgs)
	} else {
		logger.Warn("message history unavailable", zap.Error(err))
	}

	// session prefs override the config default when present
	store.SetArtistMode(cfg.UI.ArtistMode)
	if sess, err := prefs.LoadSession(); err == nil {
		store.SetArtistMode(sess.ArtistMode)
	}

	services := tui.Services{
		Chat:    conversation.NewOrchestrator(client, store, msgRepo, logger),
		Uploads: upload.NewPipeline(client, store, cfg.Upload.MaxConcurrent, logger),
		Drafts:  drafts.NewManager(client, store, cacheRepo, logger),
		Render:  render.NewEngine(renderer),
	}
	services.Drafts.WarmFromCache(ctx)

	p := tea.NewProgram(tui.New(ctx, cfg, store, services, logger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}

	sess := prefs.Session{ArtistMode: store.ArtistMode()}
	if active, ok := store.ActiveDiagram(); ok {
		sess.LastDraftID = active.DraftID
	}
	_ = prefs.SaveSession(sess)
}

// newLogger writes to the configured file so log lines never corrupt the
// alternate screen. Falls back to a no-op logger.
func newLogger(path string) *zap.Logger {
	if path == "" {
		return zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zap.NewNop()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
