package cli

import (
	"path/filepath"
	"testing"
)

// runCmd executes the root command against a throwaway database.
func runCmd(t *testing.T, db string, args ...string) error {
	t.Helper()
	root := NewRootCmd()
	root.SetArgs(append([]string{"--db", db}, args...))
	root.SetOut(&discard{})
	root.SetErr(&discard{})
	return root.Execute()
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestCreateAndListUsers(t *testing.T) {
	db := filepath.Join(t.TempDir(), "aria.db")

	if err := runCmd(t, db, "create-user", "alice", "s3cret"); err != nil {
		t.Fatalf("create-user: %v", err)
	}
	if err := runCmd(t, db, "create-user", "alice", "s3cret"); err == nil {
		t.Fatal("duplicate create-user should fail")
	}
	if err := runCmd(t, db, "list-users"); err != nil {
		t.Fatalf("list-users: %v", err)
	}
}

func TestSetAdminAndBan(t *testing.T) {
	db := filepath.Join(t.TempDir(), "aria.db")

	if err := runCmd(t, db, "create-user", "bob", "pw"); err != nil {
		t.Fatalf("create-user: %v", err)
	}
	if err := runCmd(t, db, "set-admin", "bob"); err != nil {
		t.Fatalf("set-admin: %v", err)
	}
	if err := runCmd(t, db, "ban", "bob"); err != nil {
		t.Fatalf("ban: %v", err)
	}
	if err := runCmd(t, db, "ban", "--lift", "bob"); err != nil {
		t.Fatalf("lift ban: %v", err)
	}
	if err := runCmd(t, db, "set-admin", "nobody"); err == nil {
		t.Fatal("set-admin on missing user should fail")
	}
}
