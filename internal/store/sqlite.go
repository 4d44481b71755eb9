package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/me/aria/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, username, password string, isAdmin bool) error {
	s.logger.Debug("sql", "op", "insert", "table", "users", "username", username)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, is_admin, created_at, last_seen)
		 VALUES (?, ?, ?, ?, ?)`,
		username, string(hash), boolToInt(isAdmin), now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, username string) (*model.User, error) {
	s.logger.Debug("sql", "op", "select", "table", "users", "username", username)

	var u model.User
	var isAdmin, isBanned int
	var createdAt, lastSeen string

	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash, profile_picture, is_admin, is_banned, created_at, last_seen
		 FROM users WHERE username = ?`, username,
	).Scan(&u.Username, &u.PasswordHash, &u.ProfilePicture, &isAdmin, &isBanned, &createdAt, &lastSeen)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	u.IsAdmin = isAdmin != 0
	u.IsBanned = isBanned != 0
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	u.LastSeen, _ = time.Parse(time.RFC3339Nano, lastSeen)
	return &u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*model.User, error) {
	s.logger.Debug("sql", "op", "select_all", "table", "users")

	rows, err := s.db.QueryContext(ctx,
		`SELECT username, profile_picture, is_admin, is_banned, created_at, last_seen
		 FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var u model.User
		var isAdmin, isBanned int
		var createdAt, lastSeen string
		if err := rows.Scan(&u.Username, &u.ProfilePicture, &isAdmin, &isBanned, &createdAt, &lastSeen); err != nil {
			return nil, err
		}
		u.IsAdmin = isAdmin != 0
		u.IsBanned = isBanned != 0
		u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		u.LastSeen, _ = time.Parse(time.RFC3339Nano, lastSeen)
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) SetBanned(ctx context.Context, username string, banned bool) error {
	s.logger.Debug("sql", "op", "update", "table", "users", "username", username, "banned", banned)
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_banned = ? WHERE username = ?`, boolToInt(banned), username)
	return err
}

func (s *SQLiteStore) SetAdmin(ctx context.Context, username string, admin bool) error {
	s.logger.Debug("sql", "op", "update", "table", "users", "username", username, "admin", admin)
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_admin = ? WHERE username = ?`, boolToInt(admin), username)
	return err
}

func (s *SQLiteStore) TouchLastSeen(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_seen = ? WHERE username = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), username)
	return err
}

// Authenticate verifies credentials with a constant response shape: unknown
// user, wrong password, and banned account all come back (nil, nil).
func (s *SQLiteStore) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil || u.IsBanned {
		return nil, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}
	return u, nil
}

// --- Playlists ---

func (s *SQLiteStore) CreatePlaylist(ctx context.Context, owner, name, description string) (string, error) {
	id := newPlaylistID()
	s.logger.Debug("sql", "op", "insert", "table", "playlists", "id", id)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playlists (id, name, description, username, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, description, owner, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert playlist: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) ListPlaylists(ctx context.Context, owner string) ([]*model.Playlist, error) {
	s.logger.Debug("sql", "op", "select_all", "table", "playlists", "owner", owner)

	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.description, p.created_at, COUNT(ps.id)
		 FROM playlists p
		 LEFT JOIN playlist_songs ps ON p.id = ps.playlist_id
		 WHERE p.username = ?
		 GROUP BY p.id
		 ORDER BY p.created_at DESC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	playlists := []*model.Playlist{}
	for rows.Next() {
		var p model.Playlist
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &createdAt, &p.SongCount); err != nil {
			return nil, err
		}
		p.Owner = owner
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		p.Songs = []*model.Song{}
		playlists = append(playlists, &p)
	}
	return playlists, rows.Err()
}

// GetPlaylist loads a playlist with its songs in added order. Returns
// (nil, nil) when the playlist does not exist or belongs to someone else.
func (s *SQLiteStore) GetPlaylist(ctx context.Context, id, owner string) (*model.Playlist, error) {
	s.logger.Debug("sql", "op", "select", "table", "playlists", "id", id)

	var p model.Playlist
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, username, created_at FROM playlists WHERE id = ? AND username = ?`,
		id, owner,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Owner, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT song_id, title, artist, image, duration, url, added_at
		 FROM playlist_songs WHERE playlist_id = ? ORDER BY added_at ASC, id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	p.Songs = []*model.Song{}
	for rows.Next() {
		var song model.Song
		var addedAt string
		if err := rows.Scan(&song.ID, &song.Title, &song.Artist, &song.Image, &song.Duration, &song.URL, &addedAt); err != nil {
			return nil, err
		}
		song.AddedAt, _ = time.Parse(time.RFC3339Nano, addedAt)
		p.Songs = append(p.Songs, &song)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	p.SongCount = len(p.Songs)
	return &p, nil
}

func (s *SQLiteStore) AddSong(ctx context.Context, playlistID, owner string, song *model.Song) error {
	s.logger.Debug("sql", "op", "insert", "table", "playlist_songs", "playlist_id", playlistID)

	if err := s.requireOwnership(ctx, playlistID, owner); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playlist_songs (playlist_id, song_id, title, artist, image, duration, url, added_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		playlistID, song.ID, song.Title, song.Artist, song.Image, song.Duration, song.URL,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert song: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveSong(ctx context.Context, playlistID, owner, songID string) error {
	s.logger.Debug("sql", "op", "delete", "table", "playlist_songs", "playlist_id", playlistID, "song_id", songID)

	if err := s.requireOwnership(ctx, playlistID, owner); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM playlist_songs WHERE playlist_id = ? AND song_id = ?`, playlistID, songID)
	return err
}

func (s *SQLiteStore) DeletePlaylist(ctx context.Context, id, owner string) error {
	s.logger.Debug("sql", "op", "delete", "table", "playlists", "id", id)

	if err := s.requireOwnership(ctx, id, owner); err != nil {
		return err
	}
	// Songs go with the playlist even when foreign keys are off.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM playlist_songs WHERE playlist_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	return err
}

// requireOwnership fails with ErrPlaylistNotFound unless playlistID exists
// and belongs to owner.
func (s *SQLiteStore) requireOwnership(ctx context.Context, playlistID, owner string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM playlists WHERE id = ? AND username = ?`, playlistID, owner).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrPlaylistNotFound
	}
	return err
}

// --- Backups ---

// Backup writes a consistent snapshot of the database to destPath.
func (s *SQLiteStore) Backup(ctx context.Context, destPath string) error {
	s.logger.Info("backing up database", "dest", destPath)
	_, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, destPath)
	if err != nil {
		return fmt.Errorf("vacuum into %s: %w", destPath, err)
	}
	return nil
}

// Restore replaces all table contents with those from the snapshot at
// srcPath, without reopening the live connection. The wipe and the copy
// run in one transaction: a bad snapshot rolls back instead of leaving
// the live tables empty.
func (s *SQLiteStore) Restore(ctx context.Context, srcPath string) error {
	s.logger.Info("restoring database", "src", srcPath)

	// ATTACH is per-connection state; pin one connection so the whole
	// sequence cannot fan out across the pool.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `ATTACH DATABASE ? AS restore_src`, srcPath); err != nil {
		return fmt.Errorf("attach %s: %w", srcPath, err)
	}
	defer conn.ExecContext(ctx, `DETACH DATABASE restore_src`)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM playlist_songs`,
		`DELETE FROM playlists`,
		`DELETE FROM users`,
		`INSERT INTO users SELECT * FROM restore_src.users`,
		`INSERT INTO playlists SELECT * FROM restore_src.playlists`,
		`INSERT INTO playlist_songs SELECT * FROM restore_src.playlist_songs`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("restore step %q: %w", stmt, err)
		}
	}
	return tx.Commit()
}

func newPlaylistID() string {
	return uuid.New().String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
