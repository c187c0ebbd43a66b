package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"image_gateway/internal/config"
	"image_gateway/internal/httpapi"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create router with all dependencies
	mux, deps, err := httpapi.NewRouter(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	// Create HTTP server
	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the nightly quota reset scheduler
	if err := deps.ResetJob.Start(); err != nil {
		log.Fatalf("Failed to start quota reset job: %v", err)
	}

	// Start server in goroutine
	go func() {
		log.Printf("Image Gateway listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Stop the reset scheduler and wait for an in-flight sweep
	deps.ResetJob.Stop()

	// Flush remaining audit records
	if err := deps.Audit.Close(ctx); err != nil {
		log.Printf("Failed to close audit sink: %v", err)
	}

	// Close the upstream provider
	if err := deps.Provider.Close(); err != nil {
		log.Printf("Failed to close provider: %v", err)
	}

	log.Println("Server exited")
}
