package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Action names one gateway operation selected by a request's "action" field.
type Action string

const (
	ActionLogin          Action = "login"
	ActionHeartbeat      Action = "heartbeat"
	ActionStreamResource Action = "stream-resource"

	ActionCheckAdmin      Action = "check_admin"
	ActionAdminStats      Action = "admin_stats"
	ActionGetUserList     Action = "get_user_list"
	ActionBanUser         Action = "ban_user"
	ActionUnbanUser       Action = "unban_user"
	ActionPromoteUser     Action = "promote_user"
	ActionDemoteUser      Action = "demote_user"
	ActionGetSystemLogs   Action = "get_system_logs"
	ActionRestartServer   Action = "restart_server"
	ActionBackupDatabase  Action = "backup_database"
	ActionRestoreDatabase Action = "restore_database"
	ActionCreateUser      Action = "create_user"

	ActionCreatePlaylist         Action = "create_playlist"
	ActionGetPlaylists           Action = "get_playlists"
	ActionGetPlaylistSongs       Action = "get_playlist_songs"
	ActionAddSongToPlaylist      Action = "add_song_to_playlist"
	ActionRemoveSongFromPlaylist Action = "remove_song_from_playlist"
	ActionDeletePlaylist         Action = "delete_playlist"
	ActionPlayPlaylist           Action = "play_playlist"
)

// authLevel is the minimum authentication a connection needs for an action.
type authLevel int

const (
	authNone authLevel = iota
	authUser
	authAdmin
)

const (
	errNotAuthenticated = "Not authenticated. Please login first."
	errNotAuthorized    = "Unauthorized access. Admin privileges required."
	errUnknownAction    = "Unknown action"
	errInternal         = "Internal server error"
	errBadMessage       = "Invalid message format"
)

// payload is a decoded request body. Typed getters return the zero value
// for absent or mistyped fields; validation decides what that means.
type payload map[string]any

func (p payload) str(key string) string {
	s, _ := p[key].(string)
	return s
}

func (p payload) num(key string) (float64, bool) {
	n, ok := p[key].(float64)
	return n, ok
}

func (p payload) boolean(key string) bool {
	b, _ := p[key].(bool)
	return b
}

func (p payload) object(key string) payload {
	m, _ := p[key].(map[string]any)
	return payload(m)
}

// handlerFunc executes one action. It returns the full response body;
// the session layer encrypts and delivers it.
type handlerFunc func(ctx context.Context, sess *Session, req payload) map[string]any

// actionSpec is one row of the static dispatch table: the gate, the
// generically-checked required string fields, and the handler.
type actionSpec struct {
	level    authLevel
	required []string
	handle   handlerFunc
}

// actions builds the dispatch table. Every recognised action appears here;
// anything else is answered with errUnknownAction.
func (s *Server) actions() map[Action]actionSpec {
	return map[Action]actionSpec{
		ActionLogin:          {authNone, []string{"username", "password"}, s.handleLogin},
		ActionHeartbeat:      {authNone, nil, s.handleHeartbeat},
		ActionStreamResource: {authNone, []string{"title", "artist"}, s.handleStreamResource},

		ActionCheckAdmin:      {authUser, nil, s.handleCheckAdmin},
		ActionAdminStats:      {authAdmin, nil, s.handleAdminStats},
		ActionGetUserList:     {authAdmin, nil, s.handleGetUserList},
		ActionBanUser:         {authAdmin, nil, s.handleBanUser},
		ActionUnbanUser:       {authAdmin, nil, s.handleUnbanUser},
		ActionPromoteUser:     {authAdmin, nil, s.handlePromoteUser},
		ActionDemoteUser:      {authAdmin, nil, s.handleDemoteUser},
		ActionGetSystemLogs:   {authAdmin, nil, s.handleGetSystemLogs},
		ActionRestartServer:   {authAdmin, nil, s.handleRestartServer},
		ActionBackupDatabase:  {authAdmin, nil, s.handleBackupDatabase},
		ActionRestoreDatabase: {authAdmin, []string{"backup_path"}, s.handleRestoreDatabase},
		ActionCreateUser:      {authAdmin, []string{"username", "password"}, s.handleCreateUser},

		ActionCreatePlaylist:         {authUser, []string{"name"}, s.handleCreatePlaylist},
		ActionGetPlaylists:           {authUser, nil, s.handleGetPlaylists},
		ActionGetPlaylistSongs:       {authUser, []string{"playlist_id"}, s.handleGetPlaylistSongs},
		ActionAddSongToPlaylist:      {authUser, []string{"playlist_id"}, s.handleAddSongToPlaylist},
		ActionRemoveSongFromPlaylist: {authUser, []string{"playlist_id", "song_id"}, s.handleRemoveSongFromPlaylist},
		ActionDeletePlaylist:         {authUser, []string{"playlist_id"}, s.handleDeletePlaylist},
		ActionPlayPlaylist:           {authUser, []string{"playlist_id"}, s.handlePlayPlaylist},
	}
}

// dispatch decodes a decrypted request and runs it through the table:
// action lookup, auth gate, field validation, handler. Every path returns
// exactly one response body; none of them closes the connection.
func (s *Server) dispatch(ctx context.Context, sess *Session, plaintext []byte) map[string]any {
	var req payload
	if err := json.Unmarshal(plaintext, &req); err != nil {
		return fail("", errBadMessage)
	}

	name := Action(req.str("action"))
	spec, ok := s.table[name]
	if !ok {
		return fail("", errUnknownAction)
	}

	// The identity read and the handler run on the same goroutine as the
	// read loop, so the gate and the action see one consistent state.
	identity := sess.Identity()
	switch spec.level {
	case authUser:
		if identity == nil {
			return fail(name, errNotAuthenticated)
		}
	case authAdmin:
		if identity == nil {
			return fail(name, errNotAuthenticated)
		}
		if !identity.IsAdmin {
			return fail(name, errNotAuthorized)
		}
	}

	if msg := missingFields(req, spec.required); msg != "" {
		return fail(name, msg)
	}

	return s.invoke(ctx, sess, name, spec, req)
}

// invoke runs the handler, converting a panic into a generic internal
// error response. The cause stays in the server log.
func (s *Server) invoke(ctx context.Context, sess *Session, name Action, spec actionSpec, req payload) (resp map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panic", "action", name, "cause", fmt.Sprint(r))
			resp = fail(name, errInternal)
		}
	}()
	return spec.handle(ctx, sess, req)
}

// missingFields checks that every required field is a non-empty string,
// reporting all offenders at once.
func missingFields(req payload, required []string) string {
	var missing []string
	for _, field := range required {
		if req.str(field) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return ""
	}
	sort.Strings(missing)
	return "Missing or invalid fields: " + strings.Join(missing, ", ")
}

// ok builds a success response body. Handlers add their fields on top.
func ok(action Action, fields map[string]any) map[string]any {
	resp := map[string]any{"success": true}
	if action != "" {
		resp["action"] = string(action)
	}
	for k, v := range fields {
		resp[k] = v
	}
	return resp
}

// fail builds a failure response body.
func fail(action Action, msg string) map[string]any {
	resp := map[string]any{"success": false, "error": msg}
	if action != "" {
		resp["action"] = string(action)
	}
	return resp
}
