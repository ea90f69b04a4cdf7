package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"SahakariChat/internal/chat"
	"SahakariChat/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	// Best-effort; the flags below are the real interface.
	_ = godotenv.Load()

	baseURL := os.Getenv("SAHAKARI_API_URL")
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}

	var cfg config.Config
	flag.StringVar(&cfg.BaseURL, "base-url", baseURL, "Backend base URL")
	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	flag.IntVar(&cfg.TopK, "top-k", config.DefaultTopK, "Retrieval results requested per query")
	flag.DurationVar(&cfg.Timeout, "timeout", 60*time.Second, "HTTP client timeout")
	flag.StringVar(&cfg.CredentialsPath, "credentials-db", config.DefaultCredentialsPath, "Path to the credential database")
	flag.Parse()

	client, err := chat.NewClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize client: %v\n", err)
		os.Exit(1)
	}

	if err := client.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
