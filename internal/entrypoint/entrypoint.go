package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/mapimport/internal/config"
)

// ShutdownFunc stops background work before the HTTP server goes down.
type ShutdownFunc func(ctx context.Context)

// Serve listens until SIGINT or SIGTERM, then gives in-flight imports the
// configured shutdown timeout to finish.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	stop, release := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer release()

	go func() {
		log.Printf("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-stop.Done()
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second
	log.Printf("Shutting down, waiting up to %v for running imports", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// No new ingest or refresh tasks may be queued once the server stops
	if onShutdown != nil {
		onShutdown(ctx)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	log.Println("Server exiting")
}

// Run validates cfg, wires the application and serves it until a signal
// arrives.
func Run(cfg *config.Config, version string) {
	log.Printf("Starting Map Import v%s", version)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	app, err := NewApp(cfg, version)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer app.Close()

	app.Start(context.Background())
	Serve(app.Router, cfg, app.Stop)
}
