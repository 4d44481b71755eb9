package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/aria/internal/store"
)

func newCreateUserCmd() *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "create-user <username> <password>",
		Short: "Create a user account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			username := args[0]
			err = st.CreateUser(cmd.Context(), username, args[1], admin)
			if errors.Is(err, store.ErrUserExists) {
				return fmt.Errorf("user %s already exists", username)
			}
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			fmt.Printf("Created user %s (admin=%t)\n", username, admin)
			return nil
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant admin privileges")
	return cmd
}

func newListUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-users",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			users, err := st.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			if len(users) == 0 {
				fmt.Println("No users found.")
				return nil
			}

			fmt.Printf("%-24s  %-6s  %-6s  %s\n", "USERNAME", "ADMIN", "BANNED", "LAST SEEN")
			fmt.Printf("%-24s  %-6s  %-6s  %s\n", "--------", "-----", "------", "---------")
			for _, u := range users {
				lastSeen := "-"
				if !u.LastSeen.IsZero() {
					lastSeen = u.LastSeen.UTC().Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%-24s  %-6t  %-6t  %s\n", u.Username, u.IsAdmin, u.IsBanned, lastSeen)
			}
			return nil
		},
	}
}

func newSetAdminCmd() *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "set-admin <username>",
		Short: "Grant or revoke admin privileges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			username := args[0]
			if err := requireUser(cmd, st, username); err != nil {
				return err
			}
			if err := st.SetAdmin(cmd.Context(), username, !revoke); err != nil {
				return fmt.Errorf("set admin: %w", err)
			}
			fmt.Printf("User %s admin=%t\n", username, !revoke)
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "Revoke instead of grant")
	return cmd
}

func newSetBannedCmd() *cobra.Command {
	var lift bool
	cmd := &cobra.Command{
		Use:   "ban <username>",
		Short: "Ban or unban a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			username := args[0]
			if err := requireUser(cmd, st, username); err != nil {
				return err
			}
			if err := st.SetBanned(cmd.Context(), username, !lift); err != nil {
				return fmt.Errorf("set banned: %w", err)
			}
			fmt.Printf("User %s banned=%t\n", username, !lift)
			return nil
		},
	}
	cmd.Flags().BoolVar(&lift, "lift", false, "Lift the ban instead")
	return cmd
}

func requireUser(cmd *cobra.Command, st store.Store, username string) error {
	u, err := st.GetUser(cmd.Context(), username)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if u == nil {
		return fmt.Errorf("no such user: %s", username)
	}
	return nil
}
