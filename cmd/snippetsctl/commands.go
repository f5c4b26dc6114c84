package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/charlesng35/snippets/internal/database"
	"github.com/charlesng35/snippets/internal/models"
	"github.com/charlesng35/snippets/internal/security"
	"github.com/charlesng35/snippets/internal/services"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and apply pending upgrade steps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.services(cmd)
			if err != nil {
				return err
			}
			version, err := database.SchemaVersion(cmd.Context(), svc.DB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d of %d\n", version, len(database.UpgradeSteps()))
			return nil
		},
	}
}

func newPurgeOrphansCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-orphans",
		Short: "Delete private snippets whose owner no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.services(cmd)
			if err != nil {
				return err
			}
			removed, err := svc.Snippets.DeleteOrphans(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned snippets\n", removed)
			return nil
		},
	}
}

func newSecurityAuditCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "security-audit",
		Short: "Run the configuration security audit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.services(cmd)
			if err != nil {
				return err
			}
			result := svc.Security.Run(cmd.Context())
			out := cmd.OutOrStdout()
			for _, check := range result.Checks {
				fmt.Fprintf(out, "%-5s %-24s %s\n", check.Status, check.ID, check.Message)
				if check.Remediation != "" && check.Status != security.StatusPass {
					fmt.Fprintf(out, "      %s\n", check.Remediation)
				}
			}
			if failed := result.Summary[string(security.StatusFail)]; failed > 0 {
				return fmt.Errorf("%d security checks failed", failed)
			}
			return nil
		},
	}
}

func newUserCmd(c *cli) *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var (
		username    string
		email       string
		password    string
		realName    string
		accessLevel string
		root        bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, err := models.ParseAccessLevel(accessLevel)
			if err != nil {
				return err
			}
			svc, err := c.services(cmd)
			if err != nil {
				return err
			}
			created, err := svc.Users.Create(cmd.Context(), services.CreateUserInput{
				Username:    username,
				Email:       email,
				Password:    password,
				RealName:    realName,
				AccessLevel: &level,
				IsRoot:      root,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s, %s)\n", created.Username, created.ID, created.AccessLevel)
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "login name")
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringVar(&password, "password", "", "initial password")
	create.Flags().StringVar(&realName, "real-name", "", "display name")
	create.Flags().StringVar(&accessLevel, "access-level", "reporter", "access level name or number")
	create.Flags().BoolVar(&root, "root", false, "grant root privileges")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("password")
	_ = create.MarkFlagRequired("email")

	user.AddCommand(create, newResetPasswordCmd(c), newUnlockCmd(c))
	return user
}

func newResetPasswordCmd(c *cli) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password and revoke the account's sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.services(cmd)
			if err != nil {
				return err
			}
			account, err := svc.Users.GetByUsername(cmd.Context(), username)
			if err != nil {
				return fmt.Errorf("lookup user %q: %w", username, err)
			}
			if err := svc.Users.ResetPassword(cmd.Context(), account.ID, password); err != nil {
				return err
			}
			if err := svc.Sessions.RevokeUserSessions(cmd.Context(), account.ID); err != nil {
				return fmt.Errorf("revoke sessions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password reset for %s\n", account.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUnlockCmd(c *cli) *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Clear a failed-login lockout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.services(cmd)
			if err != nil {
				return err
			}
			account, err := svc.Users.GetByUsername(cmd.Context(), username)
			if err != nil {
				return fmt.Errorf("lookup user %q: %w", username, err)
			}
			if err := svc.Users.Unlock(cmd.Context(), account.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unlocked %s\n", account.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// ownerFromFlags maps --global / --user onto a snippet owner.
func ownerFromFlags(cmd *cobra.Command, c *cli, global bool, username string) (services.SnippetOwner, string, error) {
	username = strings.TrimSpace(username)
	switch {
	case global && username != "":
		return services.SnippetOwner{}, "", fmt.Errorf("--global and --user are mutually exclusive")
	case global:
		return services.GlobalOwner(), "", nil
	case username == "":
		return services.SnippetOwner{}, "", fmt.Errorf("one of --global or --user is required")
	}
	svc, err := c.services(cmd)
	if err != nil {
		return services.SnippetOwner{}, "", err
	}
	user, err := svc.Users.GetByUsername(cmd.Context(), username)
	if err != nil {
		return services.SnippetOwner{}, "", fmt.Errorf("lookup user %q: %w", username, err)
	}
	return services.UserOwner(user.ID), user.Username, nil
}
