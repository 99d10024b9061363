package session

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/util/dbutil"
)

// Index is a small SQLite table mirroring meta.json for every session,
// giving ListSessions(sortKey, limit) a real query path instead of a
// directory scan. The per-session JSON files remain the source of truth;
// the index is rebuilt from disk on startup (see Rebuild) and kept in
// sync on every SaveState/CreateSession/DeleteSession.
//
// Grounded on the teacher's pkg/textfs/store.go dbutil.Database usage and
// its ON CONFLICT DO UPDATE upsert pattern.
type Index struct {
	db *dbutil.Database
}

// OpenIndex opens (creating if necessary) a SQLite database at dsn and
// ensures the sessions_meta table exists. dsn is passed straight to
// database/sql's sqlite3 driver, e.g. "file:/var/lib/turnengine/index.db".
func OpenIndex(ctx context.Context, dsn string) (*Index, error) {
	raw, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open index db: %w", err)
	}
	db, err := dbutil.NewWithDB(raw, "sqlite3")
	if err != nil {
		return nil, fmt.Errorf("session: wrap index db: %w", err)
	}
	idx := &Index{db: db}
	if err := idx.migrate(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) migrate(ctx context.Context) error {
	_, err := idx.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sessions_meta (
			session_id    TEXT PRIMARY KEY,
			name          TEXT NOT NULL DEFAULT '',
			description   TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL,
			last_accessed TEXT NOT NULL,
			turn_count    INTEGER NOT NULL DEFAULT 0,
			player_alive  INTEGER NOT NULL DEFAULT 1,
			version       TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return fmt.Errorf("session: create sessions_meta table: %w", err)
	}
	return nil
}

// Upsert inserts or updates the index row for meta.SessionID.
func (idx *Index) Upsert(meta SessionMetadata) error {
	ctx := context.Background()
	alive := 0
	if meta.PlayerAlive {
		alive = 1
	}
	_, err := idx.db.Exec(ctx, `
		INSERT INTO sessions_meta
			(session_id, name, description, created_at, last_accessed, turn_count, player_alive, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
			name=excluded.name, description=excluded.description,
			last_accessed=excluded.last_accessed, turn_count=excluded.turn_count,
			player_alive=excluded.player_alive, version=excluded.version`,
		meta.SessionID, meta.Name, meta.Description, meta.CreatedAt,
		meta.LastAccessed, meta.TurnCount, alive, meta.Version,
	)
	if err != nil {
		return fmt.Errorf("session: upsert index row for %s: %w", meta.SessionID, err)
	}
	return nil
}

// Delete removes the index row for id. Deleting a nonexistent row is a
// silent no-op, matching SaveState's best-effort indexing semantics.
func (idx *Index) Delete(id string) error {
	_, err := idx.db.Exec(context.Background(),
		`DELETE FROM sessions_meta WHERE session_id=$1`, id)
	if err != nil {
		return fmt.Errorf("session: delete index row for %s: %w", id, err)
	}
	return nil
}

// List returns metadata rows ordered by sortKey ("created_at"; any other
// value orders by "last_accessed"), descending, capped at limit (0 means
// unbounded).
func (idx *Index) List(sortKey string, limit int) ([]SessionMetadata, error) {
	orderCol := "last_accessed"
	if sortKey == "created_at" {
		orderCol = "created_at"
	}
	query := fmt.Sprintf(`
		SELECT session_id, name, description, created_at, last_accessed, turn_count, player_alive, version
		FROM sessions_meta ORDER BY %s DESC`, orderCol)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := idx.db.Query(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("session: list index rows: %w", err)
	}
	defer rows.Close()

	var out []SessionMetadata
	for rows.Next() {
		var m SessionMetadata
		var alive int
		if err := rows.Scan(&m.SessionID, &m.Name, &m.Description, &m.CreatedAt,
			&m.LastAccessed, &m.TurnCount, &alive, &m.Version); err != nil {
			return nil, fmt.Errorf("session: scan index row: %w", err)
		}
		m.PlayerAlive = alive != 0
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: iterate index rows: %w", err)
	}
	if out == nil {
		out = []SessionMetadata{}
	}
	return out, nil
}

// Rebuild truncates and repopulates the index from a fresh scan of
// metadata records, used at process startup and by the maintenance
// sweep so the index never drifts
// permanently from the JSON files that remain the source of truth.
func (idx *Index) Rebuild(ctx context.Context, metas []SessionMetadata) error {
	if _, err := idx.db.Exec(ctx, `DELETE FROM sessions_meta`); err != nil {
		return fmt.Errorf("session: truncate index before rebuild: %w", err)
	}
	for _, m := range metas {
		if err := idx.Upsert(m); err != nil {
			return err
		}
	}
	return nil
}
