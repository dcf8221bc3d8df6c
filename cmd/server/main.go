package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"timeline-arena/internal/config"
	"timeline-arena/internal/db"
	"timeline-arena/internal/deck"
	"timeline-arena/internal/server"
	"timeline-arena/internal/store"

	"gorm.io/gorm"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	var conn *gorm.DB
	if os.Getenv("DATABASE_URL") != "" {
		opened, err := db.Open(cfg)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		if err := db.Migrate(opened); err != nil {
			log.Fatalf("database migration failed: %v", err)
		}
		conn = opened
	} else {
		log.Println("DATABASE_URL not set, running without persistence")
	}

	catalog := deck.NewCatalog(cfg.CatalogPath)
	if cfg.CatalogURL != "" {
		refresh := time.Duration(cfg.CatalogRefreshSeconds) * time.Second
		catalog.SetRemote(cfg.CatalogURL, refresh)
		go refreshCatalog(catalog, refresh)
	}

	addr := ":8080"
	if env := os.Getenv("PORT"); env != "" {
		addr = ":" + env
	}

	srv := server.New(conn, store.NewMemory(), catalog, cfg)
	log.Printf("timeline-arena server listening on %s cards=%d", addr, len(catalog.Cards()))
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatal(err)
	}
}

func refreshCatalog(catalog *deck.Catalog, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := catalog.Refresh(ctx); err != nil {
			log.Printf("catalog refresh failed: %v", err)
		}
		cancel()
	}
}
