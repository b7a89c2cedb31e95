package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/gamestore-backend/internal/auth"
	"github.com/angelmondragon/gamestore-backend/internal/users"
	"github.com/angelmondragon/gamestore-backend/pkg/config"
	"github.com/angelmondragon/gamestore-backend/pkg/db"
	"github.com/angelmondragon/gamestore-backend/pkg/enums"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
	"github.com/angelmondragon/gamestore-backend/pkg/security"
)

const generatedPasswordLength = 20

// operator provisions an admin-surface account. Without -password a random one is printed once.
func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "operator"})

	_ = godotenv.Load()

	email := flag.String("email", "", "operator email")
	name := flag.String("name", "", "display name")
	role := flag.String("role", string(enums.UserRoleOperator), "admin|operator")
	password := flag.String("password", "", "initial password (generated when empty)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.FromConfig("operator", cfg.App)

	parsedRole, err := enums.ParseUserRole(*role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	secret := *password
	generated := secret == ""
	if generated {
		secret, err = security.GeneratePassword(generatedPasswordLength)
		if err != nil {
			logg.Error(ctx, "failed to generate password", err)
			os.Exit(1)
		}
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	svc, err := auth.NewService(auth.ServiceParams{
		Users:    users.NewRepository(dbClient.DB()),
		JWT:      cfg.JWT,
		Password: cfg.Password,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	op, err := svc.CreateOperator(ctx, auth.CreateOperatorInput{
		Email:    *email,
		Name:     *name,
		Role:     parsedRole,
		Password: secret,
	})
	if err != nil {
		logg.Error(ctx, "failed to create operator", err)
		os.Exit(1)
	}

	fmt.Printf("created %s %s (id %d)\n", op.Role, op.Email, op.ID)
	if generated {
		fmt.Printf("password: %s\n", secret)
	}
}
