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
	"storefront-client/internal/devserver"
	"storefront-client/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront devserver")

	tp, err := util.InitTracer("storefront-devserver", cfg.Observ.JaegerEndpoint)
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

	var store devserver.Store
	if cfg.Database.URL != "" {
		pg, err := devserver.NewPGStore(cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		store = pg
		log.Println("Database connected")
	} else {
		store = devserver.NewMemStore()
		log.Println("Using in-memory store")
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var fulfiller devserver.Fulfiller
	var worker *devserver.FulfillmentWorker
	if len(cfg.Kafka.Brokers) > 0 {
		producer := devserver.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrders)
		defer producer.Close()
		fulfiller = devserver.NewKafkaFulfiller(producer)

		consumer := devserver.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrders, cfg.Kafka.ConsumerGroup)
		worker = devserver.NewFulfillmentWorker(consumer, store, cfg.Fulfill.Delay)
		go func() {
			if err := worker.Start(workerCtx); err != nil {
				log.Printf("Fulfillment worker error: %v", err)
			}
		}()
		log.Println("Kafka fulfillment pipeline initialized")
	} else {
		fulfiller = devserver.NewDelayedFulfiller(store, cfg.Fulfill.Delay)
		log.Println("No Kafka brokers configured, using in-process fulfillment")
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handler := devserver.NewHandler(store, fulfiller, cfg.AdminList)
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

	workerCancel()
	if worker != nil {
		worker.Stop()
	}

	log.Println("Server exited")
}
