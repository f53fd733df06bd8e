package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/destone28/aureavia/internal/shared/auth"
	"github.com/destone28/aureavia/internal/shared/config"
)

// Утилита для разработки: генерирует JWT для ручных запросов к API.
func main() {
	userID := flag.String("user", "550e8400-e29b-41d4-a716-446655440000", "User ID (UUID)")
	email := flag.String("email", "test@example.com", "Email address")
	role := flag.String("role", "admin", "Role (admin|assistant|driver)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	token, err := jwtService.GenerateToken(*userID, *email, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating JWT token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("User ID: %s\n", *userID)
	fmt.Printf("Email:   %s\n", *email)
	fmt.Printf("Role:    %s\n", *role)
	fmt.Printf("\nAuthorization: Bearer %s\n", token)
	fmt.Printf("\nExample:\n")
	fmt.Printf("curl http://localhost:%d/api/rides -H 'Authorization: Bearer %s'\n",
		cfg.Services.DispatchPort, token)
}
