// Command admin provides operator utilities: account unlock and admin role
// management.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"socialhub/internal/config"
	"socialhub/internal/database"
	"socialhub/internal/middleware"
	"socialhub/internal/models"
	"socialhub/internal/repository"
	"socialhub/internal/service"
)

const usage = `Usage:
  admin unlock <username>        - Clear a login lockout
  admin lock-status <username>   - Show lockout state
  admin promote <user_id>        - Promote user to admin
  admin demote <user_id>         - Demote user from admin
  admin list-admins              - List all admins`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	users := repository.NewUserRepository(db)
	tokens := middleware.NewJWTAuth(cfg.JWTSecret, cfg.TokenTTL(), nil)
	auth := service.NewAuthService(users, tokens, cfg.LockoutThreshold)

	if err := run(context.Background(), auth, users, os.Args[1:]); err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			fmt.Println(err)
			os.Exit(1)
		}
		log.Fatal(err)
	}
}

func run(ctx context.Context, auth *service.AuthService, users repository.UserRepository, args []string) error {
	needArg := func() (string, error) {
		if len(args) < 2 {
			return "", errors.New(usage)
		}
		return args[1], nil
	}

	switch args[0] {
	case "unlock":
		username, err := needArg()
		if err != nil {
			return err
		}
		user, err := auth.UnlockByUsername(ctx, username)
		if err != nil {
			return err
		}
		fmt.Printf("Unlocked %s (ID: %d)\n", user.Username, user.ID)

	case "lock-status":
		username, err := needArg()
		if err != nil {
			return err
		}
		user, err := auth.LockStatus(ctx, username)
		if err != nil {
			return err
		}
		fmt.Printf("%s (ID: %d) locked=%t failed_attempts=%d", user.Username, user.ID, user.Locked, user.FailedLoginAttempts)
		if user.LockedAt != nil {
			fmt.Printf(" locked_at=%s", user.LockedAt.Format("2006-01-02 15:04:05Z07:00"))
		}
		fmt.Println()

	case "promote", "demote":
		raw, err := needArg()
		if err != nil {
			return err
		}
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid user id %q", raw)
		}
		user, err := users.GetByID(ctx, uint(id))
		if err != nil {
			return err
		}
		promote := args[0] == "promote"
		if user.IsAdmin == promote {
			fmt.Printf("User %s (ID: %d) already has admin=%t\n", user.Username, user.ID, promote)
			return nil
		}
		if err := users.SetAdmin(ctx, user.ID, promote); err != nil {
			return err
		}
		fmt.Printf("Set admin=%t for %s (ID: %d)\n", promote, user.Username, user.ID)

	case "list-admins":
		admins, err := users.ListAdmins(ctx)
		if err != nil {
			return err
		}
		if len(admins) == 0 {
			fmt.Println("No admins found in the system")
			return nil
		}
		for _, admin := range admins {
			fmt.Printf("ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
		}

	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
	return nil
}
