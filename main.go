package main

import (
	"log"

	"github.com/mawulik/togomart/config"
	"github.com/mawulik/togomart/routes"
	"github.com/mawulik/togomart/utils"
)

func main() {
	// Initialize logger
	if err := utils.InitLogger(); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	// Load environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("Error loading config: %v", err)
		log.Fatal("Error loading config:", err)
	}

	// Initialize database
	config.InitDB(cfg)

	// Set up router with global middleware
	router := routes.SetupRouter(cfg)

	utils.LogInfo("Server starting on port %s", cfg.Port)
	// Start server
	if err := router.Run(":" + cfg.Port); err != nil {
		utils.LogError("Error starting server: %v", err)
		log.Fatal("Error starting server:", err)
	}
}
