package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/inkdraft/inkdraft/internal/database"
	"github.com/inkdraft/inkdraft/internal/gateway"
)

// DraftCacheRepo mirrors the last listed draft summaries locally so the
// drafts view has content before the first fetch completes. The server
// response is always authoritative: every successful list replaces the
// whole table in one transaction.
type DraftCacheRepo struct {
	db *sql.DB
}

func NewDraftCacheRepo(db *sql.DB) *DraftCacheRepo { return &DraftCacheRepo{db: db} }

// Replace swaps the cached index for the given summaries.
func (r *DraftCacheRepo) Replace(ctx context.Context, items []gateway.DraftSummary) error {
	return database.WithTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM draft_cache`); err != nil {
			return err
		}
		now := database.Now()
		for _, it := range items {
			tags, err := json.Marshal(it.Tags)
			if err != nil {
				return fmt.Errorf("encode tags for %s: %w", it.ID, err)
			}
			var updated sql.NullTime
			if !it.LastUpdated.IsZero() {
				updated = sql.NullTime{Time: it.LastUpdated, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO draft_cache(id, title, tags_json, updated_at, fetched_at)
			VALUES(?, ?, ?, ?, ?);
			`, it.ID, it.Title, string(tags), updated, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns the cached summaries, most recently updated first.
func (r *DraftCacheRepo) List(ctx context.Context) ([]gateway.DraftSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, title, tags_json, updated_at
	FROM draft_cache ORDER BY updated_at DESC, title ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []gateway.DraftSummary
	for rows.Next() {
		var (
			it      gateway.DraftSummary
			tags    string
			updated sql.NullTime
		)
		if err := rows.Scan(&it.ID, &it.Title, &tags, &updated); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tags), &it.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for %s: %w", it.ID, err)
		}
		if updated.Valid {
			it.LastUpdated = updated.Time
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Delete drops a single cached entry, used for optimistic removals.
func (r *DraftCacheRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM draft_cache WHERE id = ?`, id)
	return err
}
