package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"notion-lite/workspace/broker"
	"notion-lite/workspace/config"
	"notion-lite/workspace/database"
	"notion-lite/workspace/middleware"
	"notion-lite/workspace/routes"
	"notion-lite/workspace/services"
	"notion-lite/workspace/store"
)

func addServe(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(config.Load())
		},
	}
	topLevel.AddCommand(cmd)
}

// setupBroker connects to NATS, or falls back to an in-process broker when no
// URL is configured.
func setupBroker(url string) (broker.Producer, broker.Consumer, error) {
	if url == "" {
		log.Println("NATS_URL empty, using in-process broker")
		bus := broker.NewMemoryBroker()
		consumer, err := bus.Subscribe(broker.BlockEventsSubject, "")
		if err != nil {
			return nil, nil, err
		}
		return bus, consumer, nil
	}

	conn, err := broker.Connect(url)
	if err != nil {
		return nil, nil, err
	}
	consumer, err := broker.NewNatsConsumer(conn, broker.BlockEventsSubject, "")
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return broker.NewNatsProducer(conn), consumer, nil
}

func serve(cfg config.Config) error {
	db, err := database.Setup(cfg)
	if err != nil {
		log.Printf("Failed to initialize database: %v", err)
		return err
	}
	defer db.Close()

	producer, consumer, err := setupBroker(cfg.NatsURL)
	if err != nil {
		log.Printf("Failed to initialize broker: %v", err)
		return err
	}
	defer producer.Close()
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blockStore := store.NewGormStore(db)

	blockService := services.NewBlockService(blockStore, cfg.WorkflowPages, services.WithOperationCooldown(cfg.OperationCooldown))
	services.BlockServiceInstance = blockService

	captureService := services.NewCaptureService(blockService, cfg.InboxPageID)
	services.CaptureServiceInstance = captureService

	eventHandlerService := services.NewEventHandlerService(db, producer, cfg.EventPollInterval)
	services.EventHandlerServiceInstance = eventHandlerService
	eventHandlerService.Start()
	defer eventHandlerService.Stop()

	subscriptionService := services.NewSubscriptionService(blockStore, consumer)
	services.SubscriptionServiceInstance = subscriptionService

	enforcer := services.NewStatusEnforcer(blockStore, subscriptionService, cfg.WorkflowPages,
		services.WithStatusCooldown(cfg.StatusCooldown),
		services.WithStatusDebounce(cfg.StatusDebounce),
		services.WithSweepSchedule(cfg.StatusSweepSchedule),
	)
	services.StatusEnforcerInstance = enforcer
	if err := enforcer.Start(); err != nil {
		log.Printf("Failed to start status enforcer: %v", err)
		return err
	}
	defer enforcer.Stop()

	// Workflow pages are watched from the first change seen on them.
	subscriptionService.OnChange(func(userID uuid.UUID, pageID string) {
		if _, ok := cfg.WorkflowPages.StatusForPage(pageID); !ok {
			return
		}
		if err := enforcer.Watch(ctx, userID, pageID); err != nil {
			log.Printf("Failed to watch page %s: %v", pageID, err)
		}
	})
	subscriptionService.Start(ctx)

	webSocketService := services.NewWebSocketService(subscriptionService)
	services.WebSocketServiceInstance = webSocketService
	webSocketService.Start()
	defer webSocketService.Stop()

	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	api := router.Group("/api/v1")
	routes.RegisterBlockRoutes(api, blockService)
	routes.RegisterPageRoutes(api, enforcer)
	routes.RegisterCaptureRoutes(router, captureService)
	routes.RegisterWebSocketRoutes(router, webSocketService)
	if cfg.AppEnv == "development" {
		routes.SetupDebugRoutes(router, eventHandlerService, webSocketService)
	}

	server := &http.Server{Addr: ":" + cfg.AppPort, Handler: router}
	errs := make(chan error, 1)
	go func() {
		log.Printf("API server is running on port %s", cfg.AppPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errs:
		log.Printf("Failed to start server: %v", err)
		return err
	}

	log.Println("Shutting down server...")
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	return server.Shutdown(shutdownCtx)
}
