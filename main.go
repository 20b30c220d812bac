package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"briefbot/ai"
	"briefbot/api"
	"briefbot/audit"
	"briefbot/config"
	"briefbot/dedup"
	"briefbot/events"
	"briefbot/storage"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	store, err := storage.Open(config.GetEnvOrDefault("DB_PATH", "briefbot.db"))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	completer := ai.NewCohereFromEnv()
	if completer == nil {
		log.Println("COHERE_API_KEY not set; semantic stage disabled")
	}

	bloom, err := dedup.NewBloomFromEnv()
	if err != nil {
		log.Printf("Warning: bloom fast-path disabled: %v", err)
	}
	if bloom != nil {
		defer bloom.Close()
	}

	uploader, err := audit.NewUploaderFromEnv(context.Background())
	if err != nil {
		log.Printf("Warning: audit uploads disabled: %v", err)
	}

	publisher, err := events.NewPublisherFromEnv()
	if err != nil {
		log.Printf("Warning: event publishing disabled: %v", err)
	}
	if publisher != nil {
		defer publisher.Close()
	}

	pipeline := &dedup.Pipeline{History: store, Bloom: bloom}
	if completer != nil {
		pipeline.Completer = completer
	}

	ctrl := &api.DedupController{
		Store:    store,
		Pipeline: pipeline,
		Audit:    uploader,
		Events:   publisher,
	}

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	r := api.NewRouter(ctrl)
	log.Printf("Starting API server on %s", addr)
	log.Println("API endpoints available:")
	log.Println("  GET  /api/health")
	log.Println("  POST /api/dedup/run/:issueID")
	log.Println("  POST /api/dedup/rerun/:issueID")
	log.Println("  GET  /api/dedup/report/:issueID")

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
