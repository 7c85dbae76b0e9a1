package main

import (
	"context"
	"log"

	"fittrack-be/internal/bootstrap"
	"fittrack-be/internal/config"
	"fittrack-be/internal/server"
	"fittrack-be/internal/tracer"
	"fittrack-be/pkg/database"

	"github.com/fatih/color"
)

func main() {
	// 0. Tracing (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load configuration
	cfg := config.Load()

	// 2. Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap dependencies
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Background workers
	go func() {
		log.Println("Background: Starting goal evaluation worker...")
		if err := container.ConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background consumer error: %v", err)
		}
	}()

	// 5. HTTP server
	srv := server.New(cfg, container)

	color.Green("FitTrack backend starting")
	color.Cyan("  env:      %s", cfg.App.Environment)
	color.Cyan("  port:     %s", cfg.App.Port)
	color.Cyan("  provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	log.Fatal(srv.Run())
}
