package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/noah-isme/research-library-api/internal/models"
	"github.com/noah-isme/research-library-api/internal/repository"
	"github.com/noah-isme/research-library-api/internal/service"
	"github.com/noah-isme/research-library-api/pkg/cache"
	"github.com/noah-isme/research-library-api/pkg/password"
)

const minPasswordLength = 6

var (
	userName     string
	userFullName string
	userRole     string
	userPassword string
	keepSessions bool
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage library accounts",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account without going through the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		role := models.UserRole(strings.ToLower(userRole))
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", userRole)
		}
		if len(userPassword) < minPasswordLength {
			return fmt.Errorf("password must be at least %d characters", minPasswordLength)
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		users := repository.NewUserRepository(e.db)
		taken, err := users.UsernameTaken(ctx, userName, "")
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("username %q already exists", userName)
		}

		hash, err := password.NewHasher(e.cfg.Security.BcryptCost, 1).Hash(ctx, userPassword)
		if err != nil {
			return err
		}
		user := &models.User{
			ID:           uuid.NewString(),
			Username:     userName,
			PasswordHash: hash,
			FullName:     userFullName,
			Role:         role,
		}
		if err := users.Create(ctx, user); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) with id %s\n", user.Username, user.Role, user.ID)
		return nil
	},
}

var usersResetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Set a new password and sign the account out everywhere",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(userPassword) < minPasswordLength {
			return fmt.Errorf("password must be at least %d characters", minPasswordLength)
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		users := repository.NewUserRepository(e.db)
		user, err := users.FindByUsername(ctx, userName)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %q not found", userName)
		}
		if err != nil {
			return err
		}

		hash, err := password.NewHasher(e.cfg.Security.BcryptCost, 1).Hash(ctx, userPassword)
		if err != nil {
			return err
		}
		if err := users.UpdatePassword(ctx, user.ID, hash); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", user.Username)

		if keepSessions {
			return nil
		}
		client, err := cache.NewRedis(e.cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()

		sessions := service.NewSessionService(repository.NewRedisSessionStore(client, e.cfg.Session.KeyPrefix), e.cfg.Session.IdleTimeout, nil, e.logger)
		revoked, err := sessions.DestroyAllForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revoked %d active session(s)\n", revoked)
		return nil
	},
}

func init() {
	usersCreateCmd.Flags().StringVar(&userName, "username", "", "login name")
	usersCreateCmd.Flags().StringVar(&userFullName, "full-name", "", "display name")
	usersCreateCmd.Flags().StringVar(&userRole, "role", string(models.RoleViewer), "admin, editor or viewer")
	usersCreateCmd.Flags().StringVar(&userPassword, "password", "", "initial password")
	_ = usersCreateCmd.MarkFlagRequired("username")
	_ = usersCreateCmd.MarkFlagRequired("full-name")
	_ = usersCreateCmd.MarkFlagRequired("password")

	usersResetPasswordCmd.Flags().StringVar(&userName, "username", "", "login name")
	usersResetPasswordCmd.Flags().StringVar(&userPassword, "password", "", "new password")
	usersResetPasswordCmd.Flags().BoolVar(&keepSessions, "keep-sessions", false, "leave existing sessions signed in")
	_ = usersResetPasswordCmd.MarkFlagRequired("username")
	_ = usersResetPasswordCmd.MarkFlagRequired("password")

	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersResetPasswordCmd)
}
