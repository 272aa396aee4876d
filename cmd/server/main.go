package main

import (
	"log"

	_ "teamsync/docs"
	"teamsync/internal/config"
	"teamsync/internal/server"
)

// @title           TeamSync API
// @version         1.0
// @description     API for team projects, tasks and completion feedback.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @schemes http
func main() {
	cfg := config.Load()

	s, err := server.Init(cfg)
	if err != nil {
		log.Fatalf("❌ Server initialization failed: %v", err)
	}

	s.Run()
}
