package gateway

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/me/aria/internal/resource"
)

// handleResourceFetch redeems an ephemeral token and streams the backing
// file. This surface is deliberately plain HTTP: the token is the whole
// credential, so a bare audio element can play it.
//
// Completion fires when the copy returns, success or not, making the
// token single-use. Two fetches overlapping before either completes may
// both stream; the store does not promise single delivery across that
// race.
func (s *Server) handleResourceFetch(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	locator, err := s.resources.Redeem(token)
	switch {
	case errors.Is(err, resource.ErrNotFound):
		http.Error(w, "Invalid or expired URL", http.StatusNotFound)
		return
	case errors.Is(err, resource.ErrExpired):
		http.Error(w, "URL has expired", http.StatusGone)
		return
	case err != nil:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer s.resources.Complete(token)

	f, err := os.Open(locator)
	if err != nil {
		s.logger.Error("open resource", "token", token, "locator", locator, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(locator))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		// Headers are long gone; nothing to do for the client but log.
		s.logger.Warn("stream interrupted", "token", token, "error", err)
	}
}

// contentTypeFor maps the locator's extension to a MIME type, defaulting
// to audio/mpeg for the song library's files.
func contentTypeFor(locator string) string {
	if t := mime.TypeByExtension(filepath.Ext(locator)); t != "" {
		return t
	}
	return "audio/mpeg"
}
