package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/captionworks/backend/internal/api"
	"github.com/captionworks/backend/internal/auth"
	"github.com/captionworks/backend/internal/batch"
	"github.com/captionworks/backend/internal/config"
	"github.com/captionworks/backend/internal/db"
	"github.com/captionworks/backend/internal/deepgram"
	"github.com/captionworks/backend/internal/keytermgen"
	"github.com/captionworks/backend/internal/library"
	"github.com/captionworks/backend/internal/metadata"
	"github.com/captionworks/backend/internal/watcher"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Ensure data directories exist
	os.MkdirAll(cfg.DataPath, 0755)
	os.MkdirAll(cfg.SpeakerMaps, 0755)

	// Initialize database
	database, err := db.NewSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Ensure admin user exists
	if err := database.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}
	log.Printf("Admin user ensured: %s", cfg.AdminUsername)

	// Initialize JWT service
	jwtService := auth.NewJWTService(cfg.JWTSecret)

	resolver := &library.Resolver{
		MediaRoot:       cfg.MediaPath,
		SpeakerMapsRoot: cfg.SpeakerMaps,
	}
	meta := metadata.NewStore()

	coord := batch.NewCoordinator(batch.Config{
		Workers:         cfg.Workers,
		CallTimeout:     cfg.CallTimeout,
		Model:           cfg.Model,
		Language:        cfg.Language,
		ProfanityFilter: cfg.ProfanityFilter,
	}, batch.Deps{
		Resolver:    resolver,
		Metadata:    meta,
		Transcriber: deepgram.NewClient(cfg.DeepgramAPIKey, cfg.CallTimeout),
		Keyterms:    defaultKeytermGenerator(cfg),
		Store:       database,
		Settings:    database,
	})
	defer coord.Stop()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional watch folder. Empty options pick up the configured and stored
	// defaults at submission time.
	if cfg.WatchPath != "" {
		w := watcher.New(cfg.WatchPath, coord, batch.Options{})
		go func() {
			if err := w.Run(rootCtx); err != nil && err != context.Canceled {
				log.Printf("Watcher stopped: %v", err)
			}
		}()
	}

	// Create router
	router := api.NewRouter(database, jwtService, cfg, coord, resolver, meta)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: router}

	log.Printf("Starting server on %s", addr)
	log.Printf("Media path: %s", cfg.MediaPath)

	// Graceful shutdown
	go func() {
		<-rootCtx.Done()
		log.Println("Shutting down...")
		server.Shutdown(context.Background())
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}

// defaultKeytermGenerator picks the LLM used for in-batch keyterm generation.
// Anthropic wins when both keys are configured; nil disables generation.
func defaultKeytermGenerator(cfg *config.Config) batch.KeytermGenerator {
	if cfg.AnthropicKey != "" {
		gen, err := keytermgen.New(keytermgen.ProviderAnthropic, "", cfg.AnthropicKey)
		if err == nil {
			return gen
		}
	}
	if cfg.OpenAIKey != "" {
		gen, err := keytermgen.New(keytermgen.ProviderOpenAI, "", cfg.OpenAIKey)
		if err == nil {
			return gen
		}
	}
	return nil
}
