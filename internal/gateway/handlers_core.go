package gateway

import (
	"context"

	"github.com/me/aria/internal/media"
	"github.com/me/aria/pkg/model"
)

const errInvalidCredentials = "Invalid credentials"

// handleLogin verifies credentials against the identity store and, on
// success, transitions the session to authenticated. Unknown user, wrong
// password, and banned account are indistinguishable from outside.
func (s *Server) handleLogin(ctx context.Context, sess *Session, req payload) map[string]any {
	username := req.str("username")
	password := req.str("password")

	user, err := s.store.Authenticate(ctx, username, password)
	if err != nil {
		s.logger.Error("authenticate", "username", username, "error", err)
		return fail(ActionLogin, errInternal)
	}
	if user == nil {
		return fail(ActionLogin, errInvalidCredentials)
	}

	sess.setIdentity(&model.Identity{Username: user.Username, IsAdmin: user.IsAdmin})
	if err := s.store.TouchLastSeen(ctx, user.Username); err != nil {
		s.logger.Warn("touch last_seen", "username", user.Username, "error", err)
	}
	s.recordEvent("user %s logged in", user.Username)

	return ok(ActionLogin, map[string]any{
		"message":           "Login successful",
		"username":          user.Username,
		"profilePictureUrl": user.ProfilePicture,
		"isAdmin":           user.IsAdmin,
	})
}

// handleHeartbeat keeps the connection warm. It still answers, like every
// other dispatch.
func (s *Server) handleHeartbeat(ctx context.Context, sess *Session, req payload) map[string]any {
	return ok(ActionHeartbeat, nil)
}

// handleStreamResource resolves (or acquires) the requested song and
// mints a short-lived token for the plain fetch surface. The client then
// streams the bytes without touching the encrypted protocol.
func (s *Server) handleStreamResource(ctx context.Context, sess *Session, req payload) map[string]any {
	title := req.str("title")
	artist := req.str("artist")
	image := req.str("image")

	songPath := s.library.SongPath(title, artist)
	if !s.library.Exists(title, artist) {
		if s.fetcher == nil {
			return fail(ActionStreamResource, "Failed to download song.")
		}
		s.logger.Warn("song not in library, fetching", "title", title, "artist", artist)
		if err := s.fetcher.FetchSong(ctx, title, artist, songPath); err != nil {
			s.logger.Error("fetch song", "title", title, "artist", artist, "error", err)
			return fail(ActionStreamResource, "Failed to download song.")
		}
	}

	duration, err := media.EstimateDuration(songPath)
	if err != nil {
		s.logger.Error("read song duration", "path", songPath, "error", err)
		return fail(ActionStreamResource, "Unable to read song metadata.")
	}

	token := s.resources.Register(songPath, s.config.ResourceTTL)
	url := s.config.PublicBaseURL + "/resource/" + token
	s.logger.Info("resource registered", "title", title, "artist", artist, "token", token)

	return ok(ActionStreamResource, map[string]any{
		"type":     "url",
		"url":      url,
		"title":    title,
		"artist":   artist,
		"image":    image,
		"duration": duration,
	})
}
