package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-client/config"
	"storefront-client/internal/api"
	"storefront-client/internal/cache"
	"storefront-client/internal/identity"
	"storefront-client/internal/models"
	"storefront-client/internal/query"
	"storefront-client/internal/remote"
	"storefront-client/internal/util"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront client gateway")

	tp, err := util.InitTracer("storefront-client", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	var snapshots cache.SnapshotStore
	if cfg.Snapshot.Addr != "" {
		redisSnapshots, err := cache.NewRedisSnapshots(
			cfg.Snapshot.Addr, cfg.Snapshot.Password, cfg.Snapshot.DB, cfg.Snapshot.TTL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisSnapshots.Close()
		snapshots = redisSnapshots
		log.Println("Snapshot store connected")
	}

	ident := identity.NewContext(models.Identity(cfg.Remote.IdentityToken))
	svc := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout, func() string {
		return ident.Current().String()
	})

	store := cache.New(snapshots)
	queries := query.New(store, svc, ident, cfg.Remote.ReadRetries)
	mutations := query.NewMutations(store, svc)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(queries, mutations, ident)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
