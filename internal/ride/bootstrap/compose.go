package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/destone28/aureavia/internal/assignment"
	"github.com/destone28/aureavia/internal/monitor"
	"github.com/destone28/aureavia/internal/ride/adapter/in/transport"
	"github.com/destone28/aureavia/internal/ride/adapter/out/notify"
	"github.com/destone28/aureavia/internal/ride/adapter/out/out_amqp"
	"github.com/destone28/aureavia/internal/ride/adapter/out/out_ws"
	"github.com/destone28/aureavia/internal/ride/adapter/out/repo"
	"github.com/destone28/aureavia/internal/ride/application/usecase"
	"github.com/destone28/aureavia/internal/shared/auth"
	"github.com/destone28/aureavia/internal/shared/config"
	db_conn "github.com/destone28/aureavia/internal/shared/db"
	"github.com/destone28/aureavia/internal/shared/mq"
	sharedredis "github.com/destone28/aureavia/internal/shared/redis"
	"github.com/destone28/aureavia/internal/shared/user"
	"github.com/destone28/aureavia/internal/shared/ws"
)

// RunDispatch запускает диспетчерский сервис: REST API, WebSocket,
// движок назначений и монитор критических поездок.
func RunDispatch(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	log.Info().Msg("initializing dispatch service")

	// инфраструктура
	dbPool, err := db_conn.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db_conn.Close(dbPool, log)

	if err := db_conn.Migrate(ctx, dbPool, log); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	mqConn, err := mq.NewRabbitMQ(ctx, cfg.RabbitMQ, log)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(mqConn, log); err != nil {
		return fmt.Errorf("setup rabbitmq topology: %w", err)
	}

	redisClient, err := sharedredis.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	jwtService := auth.NewJWTService(cfg.JWT)

	// websocket hub для живых уведомлений операторам и водителям
	hub := ws.NewHub(jwtService.ExtractUserID, log)
	go hub.Run(ctx)

	// репозитории
	rideRepo := repo.NewRidePgRepository(dbPool, log)
	userRepo := user.NewPgRepository(dbPool, log)
	ruleRepo := assignment.NewPgRuleRepository(dbPool, log)

	// исходящие адаптеры
	eventPublisher := out_amqp.NewRideEventPublisher(mqConn, log)
	dispatcher := notify.NewCompositeDispatcher(
		out_ws.NewWsNotifier(hub, log),
		out_amqp.NewNotificationPublisher(mqConn, log),
	)

	// use cases
	lifecycle := usecase.NewLifecycleService(rideRepo, userRepo, dispatcher, eventPublisher, log)
	queries := usecase.NewQueryService(rideRepo)
	engine := assignment.NewEngine(rideRepo, userRepo, ruleRepo, userRepo, dispatcher, eventPublisher, log)

	// монитор критических поездок
	scanLock := sharedredis.NewScanLock(redisClient, "aureavia:critical_scan", cfg.Monitor.Interval)
	criticalMonitor := monitor.New(rideRepo, lifecycle, scanLock, cfg.Monitor.Interval, cfg.Monitor.CriticalWindow, log)
	go criticalMonitor.Run(ctx)

	// HTTP
	authHandler := transport.NewAuthHandler(userRepo, jwtService, log)
	apiHandler := transport.NewAPIHandler(engine, lifecycle, lifecycle, lifecycle, queries, log)
	router := transport.NewDispatchRouter(authHandler, apiHandler, hub, jwtService, log)

	return serve(ctx, fmt.Sprintf(":%d", cfg.Services.DispatchPort), router, log)
}

// RunWebhook запускает сервис приема вебхуков внешних платформ.
func RunWebhook(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	log.Info().Msg("initializing webhook service")

	dbPool, err := db_conn.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db_conn.Close(dbPool, log)

	if err := db_conn.Migrate(ctx, dbPool, log); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	mqConn, err := mq.NewRabbitMQ(ctx, cfg.RabbitMQ, log)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(mqConn, log); err != nil {
		return fmt.Errorf("setup rabbitmq topology: %w", err)
	}

	redisClient, err := sharedredis.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	rideRepo := repo.NewRidePgRepository(dbPool, log)
	userRepo := user.NewPgRepository(dbPool, log)
	dedup := sharedredis.NewDedupCache(redisClient, "aureavia:webhook")
	eventPublisher := out_amqp.NewRideEventPublisher(mqConn, log)
	dispatcher := out_amqp.NewNotificationPublisher(mqConn, log)

	lifecycle := usecase.NewLifecycleService(rideRepo, userRepo, dispatcher, eventPublisher, log)
	ingest := usecase.NewIngestService(rideRepo, dedup, eventPublisher, lifecycle, log)

	webhookHandler := transport.NewWebhookHandler(ingest, log)
	router := transport.NewWebhookRouter(webhookHandler, cfg.Webhook, log)

	return serve(ctx, fmt.Sprintf(":%d", cfg.Services.WebhookPort), router, log)
}

// serve запускает HTTP сервер и ждет отмены контекста.
func serve(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	log.Info().Msg("http server stopped gracefully")
	return nil
}
