package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/me/aria/internal/store"
	"github.com/me/aria/pkg/model"
)

func (s *Server) handleCheckAdmin(ctx context.Context, sess *Session, req payload) map[string]any {
	identity := sess.Identity()
	return ok(ActionCheckAdmin, map[string]any{
		"is_admin": identity != nil && identity.IsAdmin,
	})
}

func (s *Server) handleAdminStats(ctx context.Context, sess *Session, req payload) map[string]any {
	total, err := s.store.CountUsers(ctx)
	if err != nil {
		s.logger.Error("count users", "error", err)
		return fail(ActionAdminStats, "Failed to get admin stats")
	}

	songs, err := s.library.Count()
	if err != nil {
		s.logger.Warn("count songs", "error", err)
		songs = 0
	}

	stats := model.AdminStats{
		TotalUsers: total,
		// Active-user tracking is not implemented; mirror the total.
		ActiveUsers: total,
		TotalSongs:  songs,
		Uptime:      time.Since(s.startTime).Seconds(),
	}
	return ok(ActionAdminStats, map[string]any{"stats": stats})
}

func (s *Server) handleGetUserList(ctx context.Context, sess *Session, req payload) map[string]any {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.logger.Error("list users", "error", err)
		return fail(ActionGetUserList, "Failed to get user list")
	}

	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		out = append(out, map[string]any{
			"id":       u.Username,
			"username": u.Username,
			"isAdmin":  u.IsAdmin,
			"isBanned": u.IsBanned,
			"lastSeen": u.LastSeen.UTC().Format("2006-01-02 15:04:05"),
			"joinDate": u.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	return ok(ActionGetUserList, map[string]any{"users": out})
}

// targetUsername accepts the modern field name with the legacy user_id
// alias older clients still send.
func targetUsername(req payload) string {
	if u := req.str("targetUsername"); u != "" {
		return u
	}
	return req.str("user_id")
}

func (s *Server) handleBanUser(ctx context.Context, sess *Session, req payload) map[string]any {
	return s.setUserFlag(ctx, req, ActionBanUser, "banned",
		func(username string) error { return s.store.SetBanned(ctx, username, true) })
}

func (s *Server) handleUnbanUser(ctx context.Context, sess *Session, req payload) map[string]any {
	return s.setUserFlag(ctx, req, ActionUnbanUser, "unbanned",
		func(username string) error { return s.store.SetBanned(ctx, username, false) })
}

func (s *Server) handlePromoteUser(ctx context.Context, sess *Session, req payload) map[string]any {
	return s.setUserFlag(ctx, req, ActionPromoteUser, "promoted to admin",
		func(username string) error { return s.store.SetAdmin(ctx, username, true) })
}

func (s *Server) handleDemoteUser(ctx context.Context, sess *Session, req payload) map[string]any {
	return s.setUserFlag(ctx, req, ActionDemoteUser, "demoted from admin",
		func(username string) error { return s.store.SetAdmin(ctx, username, false) })
}

// setUserFlag is the shared shape of the four moderation actions.
func (s *Server) setUserFlag(ctx context.Context, req payload, action Action, verb string, apply func(string) error) map[string]any {
	username := targetUsername(req)
	if username == "" {
		return fail(action, "Missing or invalid fields: targetUsername")
	}
	if err := apply(username); err != nil {
		s.logger.Error("moderate user", "action", action, "username", username, "error", err)
		return fail(action, fmt.Sprintf("Failed to update user %s", username))
	}
	s.recordEvent("user %s %s", username, verb)
	return ok(action, map[string]any{
		"username": username,
		"message":  fmt.Sprintf("User %s has been %s", username, verb),
	})
}

func (s *Server) handleGetSystemLogs(ctx context.Context, sess *Session, req payload) map[string]any {
	lines := 100
	if n, ok := req.num("lines"); ok && n > 0 {
		lines = int(n)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	logs := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"server_info": map[string]any{
			"go_version": runtime.Version(),
			"platform":   runtime.GOOS,
			"arch":       runtime.GOARCH,
			"uptime":     time.Since(s.startTime).Seconds(),
			"goroutines": runtime.NumGoroutine(),
			"heap_bytes": mem.HeapAlloc,
		},
		"recent_events": s.recentEvents(lines),
	}
	return ok(ActionGetSystemLogs, map[string]any{"logs": logs})
}

func (s *Server) handleRestartServer(ctx context.Context, sess *Session, req payload) map[string]any {
	if s.shutdown == nil {
		return fail(ActionRestartServer, "Restart is not enabled on this server")
	}
	s.recordEvent("restart requested by %s", sess.Identity().Username)
	s.logger.Warn("restart requested", "by", sess.Identity().Username)

	// Give the response time to reach the client before the listener dies.
	go func() {
		time.Sleep(time.Second)
		s.shutdown()
	}()
	return ok(ActionRestartServer, map[string]any{"message": "Server restart initiated"})
}

func (s *Server) handleBackupDatabase(ctx context.Context, sess *Session, req payload) map[string]any {
	if err := os.MkdirAll(s.config.BackupsDir, 0o755); err != nil {
		s.logger.Error("create backups dir", "error", err)
		return fail(ActionBackupDatabase, "Failed to create database backup")
	}

	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	dest := filepath.Join(s.config.BackupsDir, "aria_backup_"+stamp+".db")
	if err := s.store.Backup(ctx, dest); err != nil {
		s.logger.Error("backup database", "dest", dest, "error", err)
		return fail(ActionBackupDatabase, "Failed to create database backup")
	}
	s.recordEvent("database backed up to %s", dest)

	return ok(ActionBackupDatabase, map[string]any{
		"message":     "Database backup created",
		"backup_path": dest,
	})
}

func (s *Server) handleRestoreDatabase(ctx context.Context, sess *Session, req payload) map[string]any {
	backupPath := req.str("backup_path")

	// Only paths inside the backups directory are restorable; an admin
	// session must not become an arbitrary-file read primitive.
	cleaned := filepath.Clean(backupPath)
	dir := filepath.Clean(s.config.BackupsDir)
	if rel, err := filepath.Rel(dir, cleaned); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fail(ActionRestoreDatabase, "Backup file not found")
	}
	if _, err := os.Stat(cleaned); err != nil {
		return fail(ActionRestoreDatabase, "Backup file not found")
	}

	if err := s.store.Restore(ctx, cleaned); err != nil {
		s.logger.Error("restore database", "src", cleaned, "error", err)
		return fail(ActionRestoreDatabase, "Failed to restore database")
	}
	s.recordEvent("database restored from %s", cleaned)

	return ok(ActionRestoreDatabase, map[string]any{"message": "Database restored successfully"})
}

func (s *Server) handleCreateUser(ctx context.Context, sess *Session, req payload) map[string]any {
	username := req.str("username")
	password := req.str("password")
	isAdmin := req.boolean("is_admin")

	err := s.store.CreateUser(ctx, username, password, isAdmin)
	if errors.Is(err, store.ErrUserExists) {
		return fail(ActionCreateUser, "User already exists")
	}
	if err != nil {
		s.logger.Error("create user", "username", username, "error", err)
		return fail(ActionCreateUser, "Failed to create user")
	}
	s.recordEvent("user %s created (admin=%t)", username, isAdmin)

	return ok(ActionCreateUser, map[string]any{
		"message": fmt.Sprintf("User %s has been created successfully", username),
	})
}
