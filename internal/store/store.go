package store

import (
	"context"
	"errors"

	"github.com/me/aria/pkg/model"
)

var (
	// ErrUserExists is returned by CreateUser for a duplicate username.
	ErrUserExists = errors.New("user already exists")
	// ErrPlaylistNotFound covers both a missing playlist and a playlist
	// owned by another user; callers cannot distinguish the two.
	ErrPlaylistNotFound = errors.New("playlist not found")
)

// Store defines the persistence layer for Aria entities.
//
// Get* methods return (nil, nil) when the row does not exist. Playlist
// methods scoped by owner fold "not found" and "not yours" into the same
// nil result so handlers cannot leak playlist existence across users.
type Store interface {
	// Users. CreateUser hashes the password before it is stored.
	CreateUser(ctx context.Context, username, password string, isAdmin bool) error
	GetUser(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	CountUsers(ctx context.Context) (int, error)
	SetBanned(ctx context.Context, username string, banned bool) error
	SetAdmin(ctx context.Context, username string, admin bool) error
	TouchLastSeen(ctx context.Context, username string) error

	// Authenticate verifies a username/password pair. Unknown user, wrong
	// password, and banned account all return (nil, nil): the caller must
	// not be able to tell them apart.
	Authenticate(ctx context.Context, username, password string) (*model.User, error)

	// Playlists
	CreatePlaylist(ctx context.Context, owner, name, description string) (string, error)
	ListPlaylists(ctx context.Context, owner string) ([]*model.Playlist, error)
	GetPlaylist(ctx context.Context, id, owner string) (*model.Playlist, error)
	AddSong(ctx context.Context, playlistID, owner string, song *model.Song) error
	RemoveSong(ctx context.Context, playlistID, owner, songID string) error
	DeletePlaylist(ctx context.Context, id, owner string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error

	// Backups (admin surface)
	Backup(ctx context.Context, destPath string) error
	Restore(ctx context.Context, srcPath string) error
}
