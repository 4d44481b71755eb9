package model

import "time"

// User represents an Aria account as stored in the users table.
// PasswordHash is a bcrypt hash and never leaves the server.
type User struct {
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	IsAdmin        bool      `json:"is_admin"`
	IsBanned       bool      `json:"is_banned"`
	CreatedAt      time.Time `json:"created_at"`
	LastSeen       time.Time `json:"last_seen"`
}

// Identity is the authenticated side of a connection's auth state.
// A nil *Identity means the connection is unauthenticated; the only
// transition to non-nil is a successful login, and the only way back
// is disconnect.
type Identity struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// AdminStats is the payload returned by the admin_stats action.
type AdminStats struct {
	TotalUsers  int     `json:"totalUsers"`
	ActiveUsers int     `json:"activeUsers"`
	TotalSongs  int     `json:"totalSongs"`
	Uptime      float64 `json:"serverUptime"` // seconds
}
