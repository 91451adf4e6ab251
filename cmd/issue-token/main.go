package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dimitrije/gamevault-api/internal/config"
	"github.com/dimitrije/gamevault-api/internal/database"
	"github.com/dimitrije/gamevault-api/internal/services"
	"github.com/google/uuid"
)

const usage = `Usage:
  issue-token <user-id> [email]          print a signed access token
  issue-token api-key <user-id> <name>   create a personal api key`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if os.Args[1] == "api-key" {
		if len(os.Args) != 4 {
			fmt.Println(usage)
			os.Exit(1)
		}
		createAPIKey(cfg, parseUserID(os.Args[2]), os.Args[3])
		return
	}

	if len(os.Args) > 3 {
		fmt.Println(usage)
		os.Exit(1)
	}
	email := ""
	if len(os.Args) == 3 {
		email = os.Args[2]
	}

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry)
	token, err := jwtService.IssueAccessToken(parseUserID(os.Args[1]), email)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Println(token.Token)
	fmt.Fprintf(os.Stderr, "expires in %ds\n", token.ExpiresIn)
}

func parseUserID(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		log.Fatalf("Invalid user id: %s", raw)
	}
	return id
}

func createAPIKey(cfg *config.Config, userID uuid.UUID, name string) {
	if cfg.UsesMemoryStore() {
		log.Fatal("API keys need a Postgres DATABASE_URL")
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	key, plain, err := services.NewAPIKeyService(db).Create(ctx, userID, name, nil)
	if err != nil {
		log.Fatalf("Failed to create api key: %v", err)
	}

	fmt.Println(plain)
	fmt.Fprintf(os.Stderr, "created key %s (%s)\n", key.ID, key.KeyPrefix)
}
