package config_test

import (
	"fmt"

	"github.com/Andreicr1/Hedge-Control-Alcast-Backend-sub000/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	// Access configuration values
	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Pipeline version: %s\n", cfg.Pipeline.Version)
	fmt.Printf("Feed symbol: %s\n", cfg.Feed.Symbol)
	fmt.Printf("DB Max Connections: %d\n", cfg.Database.MaxConns)
}
