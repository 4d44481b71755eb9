package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all Aria tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username        TEXT PRIMARY KEY,
		password_hash   TEXT NOT NULL,
		profile_picture TEXT NOT NULL DEFAULT '',
		is_admin        INTEGER NOT NULL DEFAULT 0,
		is_banned       INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL,
		last_seen       TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS playlists (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		username    TEXT NOT NULL REFERENCES users(username) ON DELETE CASCADE,
		created_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS playlist_songs (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
		song_id     TEXT NOT NULL,
		title       TEXT NOT NULL,
		artist      TEXT NOT NULL,
		image       TEXT NOT NULL DEFAULT '',
		duration    REAL NOT NULL,
		url         TEXT NOT NULL DEFAULT '',
		added_at    TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_playlists_username ON playlists(username)`,
	`CREATE INDEX IF NOT EXISTS idx_playlist_songs_playlist_id ON playlist_songs(playlist_id)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
