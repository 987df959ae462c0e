package main

import (
	"log"
	"net"

	"github.com/joho/godotenv"

	"phonostat/adapters/api"
	"phonostat/internal/config"
	"phonostat/internal/container"
)

func main() {
	// Missing .env is fine; environment variables win either way
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	c, err := container.New(cfg, nil)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer c.Close()

	server := api.NewServer(c.Service, c.Logger)
	addr := net.JoinHostPort("", cfg.Server.Port)
	if err := server.ListenAndServe(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
