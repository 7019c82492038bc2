package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inkdraft/inkdraft/internal/gateway"
	"github.com/inkdraft/inkdraft/internal/state"
)

// MessageRepo persists the conversation log so history survives restarts.
// The table is append-only: rows are never updated or deleted.
type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

func (r *MessageRepo) Append(ctx context.Context, m state.Message) error {
	var artifacts sql.NullString
	if len(m.Artifacts) > 0 {
		data, err := json.Marshal(m.Artifacts)
		if err != nil {
			return fmt.Errorf("encode artifacts: %w", err)
		}
		artifacts = sql.NullString{String: string(data), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO messages(id, role, text, artifacts_json, created_at)
	VALUES(?, ?, ?, ?, ?);
	`, m.ID, string(m.Role), m.Text, artifacts, m.CreatedAt)
	return err
}

// List returns the full log in append order.
func (r *MessageRepo) List(ctx context.Context) ([]state.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, role, text, artifacts_json, created_at
	FROM messages ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []state.Message
	for rows.Next() {
		var (
			m         state.Message
			role      string
			artifacts sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&m.ID, &role, &m.Text, &artifacts, &createdAt); err != nil {
			return nil, err
		}
		m.Role = state.Role(role)
		m.CreatedAt = createdAt
		if artifacts.Valid {
			var arts []gateway.DiagramArtifact
			if err := json.Unmarshal([]byte(artifacts.String), &arts); err != nil {
				return nil, fmt.Errorf("decode artifacts for %s: %w", m.ID, err)
			}
			m.Artifacts = arts
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
