package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/me/aria/internal/store"
	"github.com/me/aria/pkg/model"
)

const errPlaylistDenied = "Playlist not found or access denied"

func (s *Server) handleCreatePlaylist(ctx context.Context, sess *Session, req payload) map[string]any {
	owner := sess.Identity().Username
	id, err := s.store.CreatePlaylist(ctx, owner, req.str("name"), req.str("description"))
	if err != nil {
		s.logger.Error("create playlist", "owner", owner, "error", err)
		return fail(ActionCreatePlaylist, "Failed to create playlist")
	}
	return ok(ActionCreatePlaylist, map[string]any{
		"message":     "Playlist created",
		"playlist_id": id,
	})
}

func (s *Server) handleGetPlaylists(ctx context.Context, sess *Session, req payload) map[string]any {
	owner := sess.Identity().Username
	playlists, err := s.store.ListPlaylists(ctx, owner)
	if err != nil {
		s.logger.Error("list playlists", "owner", owner, "error", err)
		return fail(ActionGetPlaylists, "Failed to get playlists")
	}
	if playlists == nil {
		playlists = []*model.Playlist{}
	}
	return ok(ActionGetPlaylists, map[string]any{"playlists": playlists})
}

func (s *Server) handleGetPlaylistSongs(ctx context.Context, sess *Session, req payload) map[string]any {
	owner := sess.Identity().Username
	pl, err := s.store.GetPlaylist(ctx, req.str("playlist_id"), owner)
	if err != nil {
		s.logger.Error("get playlist", "owner", owner, "error", err)
		return fail(ActionGetPlaylistSongs, "Failed to get playlist")
	}
	if pl == nil {
		return fail(ActionGetPlaylistSongs, errPlaylistDenied)
	}
	if pl.Songs == nil {
		pl.Songs = []*model.Song{}
	}
	return ok(ActionGetPlaylistSongs, map[string]any{"playlist": pl})
}

// songFromRequest validates the embedded song object a client sends with
// add_song_to_playlist. Every defect is reported in one message.
func songFromRequest(req payload) (*model.Song, string) {
	obj := req.object("song")
	if obj == nil {
		return nil, "Missing or invalid fields: song"
	}

	var bad []string
	song := &model.Song{
		ID:     obj.str("song_id"),
		Title:  obj.str("title"),
		Artist: obj.str("artist"),
		Image:  obj.str("image"),
		URL:    obj.str("url"),
	}
	if song.ID == "" {
		bad = append(bad, "song.song_id")
	}
	if song.Title == "" {
		bad = append(bad, "song.title")
	}
	if song.Artist == "" {
		bad = append(bad, "song.artist")
	}
	if d, ok := obj.num("duration"); ok && d > 0 {
		song.Duration = d
	} else {
		bad = append(bad, "song.duration")
	}
	if len(bad) > 0 {
		return nil, "Missing or invalid fields: " + strings.Join(bad, ", ")
	}
	return song, ""
}

func (s *Server) handleAddSongToPlaylist(ctx context.Context, sess *Session, req payload) map[string]any {
	song, msg := songFromRequest(req)
	if msg != "" {
		return fail(ActionAddSongToPlaylist, msg)
	}

	owner := sess.Identity().Username
	err := s.store.AddSong(ctx, req.str("playlist_id"), owner, song)
	if errors.Is(err, store.ErrPlaylistNotFound) {
		return fail(ActionAddSongToPlaylist, errPlaylistDenied)
	}
	if err != nil {
		s.logger.Error("add song", "owner", owner, "error", err)
		return fail(ActionAddSongToPlaylist, "Failed to add song to playlist")
	}
	return ok(ActionAddSongToPlaylist, map[string]any{"message": "Song added to playlist"})
}

func (s *Server) handleRemoveSongFromPlaylist(ctx context.Context, sess *Session, req payload) map[string]any {
	owner := sess.Identity().Username
	err := s.store.RemoveSong(ctx, req.str("playlist_id"), owner, req.str("song_id"))
	if errors.Is(err, store.ErrPlaylistNotFound) {
		return fail(ActionRemoveSongFromPlaylist, errPlaylistDenied)
	}
	if err != nil {
		s.logger.Error("remove song", "owner", owner, "error", err)
		return fail(ActionRemoveSongFromPlaylist, "Failed to remove song from playlist")
	}
	return ok(ActionRemoveSongFromPlaylist, map[string]any{"message": "Song removed from playlist"})
}

func (s *Server) handleDeletePlaylist(ctx context.Context, sess *Session, req payload) map[string]any {
	owner := sess.Identity().Username
	err := s.store.DeletePlaylist(ctx, req.str("playlist_id"), owner)
	if errors.Is(err, store.ErrPlaylistNotFound) {
		return fail(ActionDeletePlaylist, errPlaylistDenied)
	}
	if err != nil {
		s.logger.Error("delete playlist", "owner", owner, "error", err)
		return fail(ActionDeletePlaylist, "Failed to delete playlist")
	}
	return ok(ActionDeletePlaylist, map[string]any{"message": "Playlist deleted"})
}

func (s *Server) handlePlayPlaylist(ctx context.Context, sess *Session, req payload) map[string]any {
	owner := sess.Identity().Username
	pl, err := s.store.GetPlaylist(ctx, req.str("playlist_id"), owner)
	if err != nil {
		s.logger.Error("play playlist", "owner", owner, "error", err)
		return fail(ActionPlayPlaylist, "Failed to play playlist")
	}
	if pl == nil {
		return fail(ActionPlayPlaylist, errPlaylistDenied)
	}
	songs := pl.Songs
	if songs == nil {
		songs = []*model.Song{}
	}
	return ok(ActionPlayPlaylist, map[string]any{"songs": songs})
}
