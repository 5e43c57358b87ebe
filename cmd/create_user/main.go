package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/sjperalta/fintera-contracts/internal/config"
	"github.com/sjperalta/fintera-contracts/internal/database"
	"github.com/sjperalta/fintera-contracts/internal/models"
	"github.com/sjperalta/fintera-contracts/internal/repository"
	"github.com/sjperalta/fintera-contracts/internal/services"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

// create_user bootstraps an operator account, typically the first admin:
//
//	USER_EMAIL=ops@example.com USER_PASSWORD=... go run ./cmd/create_user
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Setup(cfg.Environment, cfg.LogLevel)

	email := os.Getenv("USER_EMAIL")
	password := os.Getenv("USER_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("USER_EMAIL and USER_PASSWORD are required")
	}
	role := os.Getenv("USER_ROLE")
	if role == "" {
		role = models.RoleAdmin
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	repos := repository.NewRepositories(db)
	userService := services.NewUserService(repos.User, services.NewAuditService(repos.Audit))

	user, err := userService.Create(context.Background(), &services.UserInput{
		Email:    email,
		Password: password,
		FullName: os.Getenv("USER_NAME"),
		Role:     role,
	}, services.Actor{Email: "create_user"})
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}
	log.Printf("Created %s user %s (id %d)", user.Role, user.Email, user.ID)
}
