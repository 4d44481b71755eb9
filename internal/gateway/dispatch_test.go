package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/aria/internal/config"
	"github.com/me/aria/internal/logging"
	"github.com/me/aria/internal/media"
	"github.com/me/aria/internal/resource"
	"github.com/me/aria/internal/store"
	"github.com/me/aria/pkg/model"
)

// testGateway builds a server over a throwaway sqlite database and song
// directory, with logging silenced.
func testGateway(t *testing.T) (*Server, store.Store) {
	t.Helper()

	logger := logging.NewLoggerWithWriter(slog.LevelError, "text", &bytes.Buffer{})

	dir := t.TempDir()
	st, err := store.NewSQLiteStore(filepath.Join(dir, "aria.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	lib, err := media.NewLibrary(filepath.Join(dir, "songs"))
	if err != nil {
		t.Fatalf("library: %v", err)
	}

	cfg := config.DefaultServerConfig()
	cfg.BackupsDir = filepath.Join(dir, "backups")

	srv := New(cfg, st, resource.NewStore(logger), lib, logger)
	return srv, st
}

// send runs one decoded request through the full dispatch path.
func send(t *testing.T, srv *Server, sess *Session, req map[string]any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return srv.dispatch(context.Background(), sess, raw)
}

func mustSucceed(t *testing.T, resp map[string]any) {
	t.Helper()
	if resp["success"] != true {
		t.Fatalf("expected success, got %v", resp)
	}
}

func mustFail(t *testing.T, resp map[string]any, wantErr string) {
	t.Helper()
	if resp["success"] != false {
		t.Fatalf("expected failure, got %v", resp)
	}
	if resp["error"] != wantErr {
		t.Fatalf("error = %q, want %q", resp["error"], wantErr)
	}
}

func asUser(username string) *Session {
	sess := &Session{}
	sess.setIdentity(&model.Identity{Username: username})
	return sess
}

func asAdmin(username string) *Session {
	sess := &Session{}
	sess.setIdentity(&model.Identity{Username: username, IsAdmin: true})
	return sess
}

func TestDispatchUnknownAction(t *testing.T) {
	srv, _ := testGateway(t)
	resp := send(t, srv, &Session{}, map[string]any{"action": "transmogrify"})
	mustFail(t, resp, errUnknownAction)
}

func TestDispatchInvalidJSON(t *testing.T) {
	srv, _ := testGateway(t)
	resp := srv.dispatch(context.Background(), &Session{}, []byte("not json"))
	mustFail(t, resp, errBadMessage)
}

func TestDispatchAuthGate(t *testing.T) {
	srv, st := testGateway(t)
	if err := st.CreateUser(context.Background(), "mallory", "pw", false); err != nil {
		t.Fatalf("create user: %v", err)
	}

	tests := []struct {
		name    string
		action  string
		sess    *Session
		wantErr string
	}{
		{"user action unauthenticated", "check_admin", &Session{}, errNotAuthenticated},
		{"admin action unauthenticated", "ban_user", &Session{}, errNotAuthenticated},
		{"admin action as regular user", "ban_user", asUser("bob"), errNotAuthorized},
		{"playlist action unauthenticated", "get_playlists", &Session{}, errNotAuthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := send(t, srv, tt.sess, map[string]any{"action": tt.action, "targetUsername": "mallory"})
			mustFail(t, resp, tt.wantErr)
		})
	}

	resp := send(t, srv, asAdmin("root"), map[string]any{"action": "ban_user", "targetUsername": "mallory"})
	mustSucceed(t, resp)
}

func TestDispatchMissingFieldsEnumerated(t *testing.T) {
	srv, _ := testGateway(t)

	resp := send(t, srv, &Session{}, map[string]any{"action": "login"})
	mustFail(t, resp, "Missing or invalid fields: password, username")

	// A non-string value counts as missing.
	resp = send(t, srv, &Session{}, map[string]any{"action": "login", "username": 42, "password": "pw"})
	mustFail(t, resp, "Missing or invalid fields: username")
}

func TestLoginFlow(t *testing.T) {
	srv, st := testGateway(t)
	ctx := context.Background()
	if err := st.CreateUser(ctx, "alice", "s3cret", false); err != nil {
		t.Fatalf("create user: %v", err)
	}

	sess := &Session{}
	resp := send(t, srv, sess, map[string]any{"action": "login", "username": "alice", "password": "wrong"})
	mustFail(t, resp, errInvalidCredentials)
	if sess.Identity() != nil {
		t.Fatal("failed login must not authenticate the session")
	}

	resp = send(t, srv, sess, map[string]any{"action": "login", "username": "alice", "password": "s3cret"})
	mustSucceed(t, resp)
	if resp["isAdmin"] != false {
		t.Fatalf("isAdmin = %v, want false", resp["isAdmin"])
	}
	id := sess.Identity()
	if id == nil || id.Username != "alice" {
		t.Fatalf("identity = %v, want alice", id)
	}

	resp = send(t, srv, sess, map[string]any{"action": "check_admin"})
	mustSucceed(t, resp)
	if resp["is_admin"] != false {
		t.Fatalf("is_admin = %v, want false", resp["is_admin"])
	}
}

func TestHeartbeatBeforeLogin(t *testing.T) {
	srv, _ := testGateway(t)
	resp := send(t, srv, &Session{}, map[string]any{"action": "heartbeat"})
	mustSucceed(t, resp)
}

func TestPlaylistLifecycle(t *testing.T) {
	srv, st := testGateway(t)
	ctx := context.Background()
	if err := st.CreateUser(ctx, "alice", "pw", false); err != nil {
		t.Fatalf("create user: %v", err)
	}
	sess := asUser("alice")

	resp := send(t, srv, sess, map[string]any{"action": "create_playlist", "name": "Road Trip"})
	mustSucceed(t, resp)
	playlistID, _ := resp["playlist_id"].(string)
	if playlistID == "" {
		t.Fatalf("missing playlist_id in %v", resp)
	}

	song := map[string]any{
		"song_id": "yt:abc123", "title": "Highway Song", "artist": "The Drivers",
		"duration": 214.5,
	}
	resp = send(t, srv, sess, map[string]any{"action": "add_song_to_playlist", "playlist_id": playlistID, "song": song})
	mustSucceed(t, resp)

	resp = send(t, srv, sess, map[string]any{"action": "get_playlist_songs", "playlist_id": playlistID})
	mustSucceed(t, resp)
	pl, ok := resp["playlist"].(*model.Playlist)
	if !ok {
		t.Fatalf("playlist has type %T", resp["playlist"])
	}
	if len(pl.Songs) != 1 || pl.Songs[0].Title != "Highway Song" {
		t.Fatalf("unexpected songs: %+v", pl.Songs)
	}

	resp = send(t, srv, sess, map[string]any{"action": "play_playlist", "playlist_id": playlistID})
	mustSucceed(t, resp)
	songs, ok := resp["songs"].([]*model.Song)
	if !ok || len(songs) != 1 {
		t.Fatalf("unexpected songs payload: %v", resp["songs"])
	}

	resp = send(t, srv, sess, map[string]any{"action": "remove_song_from_playlist", "playlist_id": playlistID, "song_id": "yt:abc123"})
	mustSucceed(t, resp)

	resp = send(t, srv, sess, map[string]any{"action": "delete_playlist", "playlist_id": playlistID})
	mustSucceed(t, resp)

	resp = send(t, srv, sess, map[string]any{"action": "get_playlist_songs", "playlist_id": playlistID})
	mustFail(t, resp, errPlaylistDenied)
}

func TestPlaylistCrossUserDenied(t *testing.T) {
	srv, st := testGateway(t)
	ctx := context.Background()
	for _, u := range []string{"alice", "bob"} {
		if err := st.CreateUser(ctx, u, "pw", false); err != nil {
			t.Fatalf("create user %s: %v", u, err)
		}
	}

	resp := send(t, srv, asUser("alice"), map[string]any{"action": "create_playlist", "name": "Private"})
	mustSucceed(t, resp)
	playlistID := resp["playlist_id"].(string)

	bob := asUser("bob")
	for _, req := range []map[string]any{
		{"action": "get_playlist_songs", "playlist_id": playlistID},
		{"action": "play_playlist", "playlist_id": playlistID},
		{"action": "delete_playlist", "playlist_id": playlistID},
		{"action": "remove_song_from_playlist", "playlist_id": playlistID, "song_id": "x"},
	} {
		resp := send(t, srv, bob, req)
		mustFail(t, resp, errPlaylistDenied)
	}
}

func TestAddSongValidation(t *testing.T) {
	srv, st := testGateway(t)
	ctx := context.Background()
	if err := st.CreateUser(ctx, "alice", "pw", false); err != nil {
		t.Fatalf("create user: %v", err)
	}
	sess := asUser("alice")

	resp := send(t, srv, sess, map[string]any{"action": "create_playlist", "name": "Mix"})
	mustSucceed(t, resp)
	playlistID := resp["playlist_id"].(string)

	resp = send(t, srv, sess, map[string]any{"action": "add_song_to_playlist", "playlist_id": playlistID})
	mustFail(t, resp, "Missing or invalid fields: song")

	// Every invalid song field is reported at once.
	resp = send(t, srv, sess, map[string]any{
		"action": "add_song_to_playlist", "playlist_id": playlistID,
		"song": map[string]any{"title": "Lonely", "duration": -3},
	})
	errMsg, _ := resp["error"].(string)
	for _, want := range []string{"song.song_id", "song.artist", "song.duration"} {
		if !strings.Contains(errMsg, want) {
			t.Errorf("error %q does not mention %s", errMsg, want)
		}
	}
	if strings.Contains(errMsg, "song.title") {
		t.Errorf("error %q mentions the valid title field", errMsg)
	}
}

func TestModeration(t *testing.T) {
	srv, st := testGateway(t)
	ctx := context.Background()
	if err := st.CreateUser(ctx, "carol", "pw", false); err != nil {
		t.Fatalf("create user: %v", err)
	}
	admin := asAdmin("root")

	resp := send(t, srv, admin, map[string]any{"action": "ban_user", "targetUsername": "carol"})
	mustSucceed(t, resp)
	if resp["message"] != "User carol has been banned" {
		t.Fatalf("message = %v", resp["message"])
	}

	// A banned account cannot log in.
	resp = send(t, srv, &Session{}, map[string]any{"action": "login", "username": "carol", "password": "pw"})
	mustFail(t, resp, errInvalidCredentials)

	// Legacy clients address the target via user_id.
	resp = send(t, srv, admin, map[string]any{"action": "unban_user", "user_id": "carol"})
	mustSucceed(t, resp)
	resp = send(t, srv, &Session{}, map[string]any{"action": "login", "username": "carol", "password": "pw"})
	mustSucceed(t, resp)

	resp = send(t, srv, admin, map[string]any{"action": "promote_user", "targetUsername": "carol"})
	mustSucceed(t, resp)
	u, err := st.GetUser(ctx, "carol")
	if err != nil || u == nil || !u.IsAdmin {
		t.Fatalf("carol not promoted: %v %v", u, err)
	}

	resp = send(t, srv, admin, map[string]any{"action": "ban_user"})
	mustFail(t, resp, "Missing or invalid fields: targetUsername")
}

func TestCreateUserAction(t *testing.T) {
	srv, st := testGateway(t)
	admin := asAdmin("root")

	resp := send(t, srv, admin, map[string]any{"action": "create_user", "username": "dave", "password": "pw", "is_admin": true})
	mustSucceed(t, resp)
	u, err := st.GetUser(context.Background(), "dave")
	if err != nil || u == nil || !u.IsAdmin {
		t.Fatalf("dave not created as admin: %v %v", u, err)
	}

	resp = send(t, srv, admin, map[string]any{"action": "create_user", "username": "dave", "password": "pw"})
	mustFail(t, resp, "User already exists")
}

func TestAdminStats(t *testing.T) {
	srv, st := testGateway(t)
	ctx := context.Background()
	for _, u := range []string{"a", "b", "c"} {
		if err := st.CreateUser(ctx, u, "pw", false); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	resp := send(t, srv, asAdmin("root"), map[string]any{"action": "admin_stats"})
	mustSucceed(t, resp)
	stats, ok := resp["stats"].(model.AdminStats)
	if !ok {
		t.Fatalf("stats has type %T", resp["stats"])
	}
	if stats.TotalUsers != 3 {
		t.Fatalf("TotalUsers = %d, want 3", stats.TotalUsers)
	}
}

func TestBackupAndRestore(t *testing.T) {
	srv, st := testGateway(t)
	ctx := context.Background()
	admin := asAdmin("root")

	if err := st.CreateUser(ctx, "keeper", "pw", false); err != nil {
		t.Fatalf("create user: %v", err)
	}

	resp := send(t, srv, admin, map[string]any{"action": "backup_database"})
	mustSucceed(t, resp)
	backupPath, _ := resp["backup_path"].(string)
	if backupPath == "" {
		t.Fatalf("missing backup_path in %v", resp)
	}

	if err := st.SetAdmin(ctx, "keeper", true); err != nil {
		t.Fatalf("mutate after backup: %v", err)
	}

	resp = send(t, srv, admin, map[string]any{"action": "restore_database", "backup_path": backupPath})
	mustSucceed(t, resp)
	u, err := st.GetUser(ctx, "keeper")
	if err != nil || u == nil {
		t.Fatalf("keeper missing after restore: %v %v", u, err)
	}
	if u.IsAdmin {
		t.Fatal("restore did not roll back the admin flag")
	}

	// Paths outside the backups directory are rejected, valid or not.
	resp = send(t, srv, admin, map[string]any{"action": "restore_database", "backup_path": "/etc/passwd"})
	mustFail(t, resp, "Backup file not found")
}

func TestGetSystemLogs(t *testing.T) {
	srv, _ := testGateway(t)
	srv.recordEvent("test event %d", 1)

	resp := send(t, srv, asAdmin("root"), map[string]any{"action": "get_system_logs"})
	mustSucceed(t, resp)
	logs, ok := resp["logs"].(map[string]any)
	if !ok {
		t.Fatalf("logs has type %T", resp["logs"])
	}
	events, ok := logs["recent_events"].([]string)
	if !ok || len(events) == 0 {
		t.Fatalf("recent_events = %v", logs["recent_events"])
	}
}

func TestActionTableComplete(t *testing.T) {
	srv, _ := testGateway(t)
	for name, spec := range srv.table {
		if spec.handle == nil {
			t.Errorf("action %s has no handler", name)
		}
	}
	if len(srv.table) != 22 {
		t.Errorf("table has %d actions, want 22", len(srv.table))
	}
}
