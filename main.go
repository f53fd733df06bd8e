package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/destone28/aureavia/internal/ride/bootstrap"
	"github.com/destone28/aureavia/internal/shared/config"
	"github.com/destone28/aureavia/internal/shared/logger"
)

func main() {
	svc := flag.String("service", "dispatch", "dispatch|webhook|all")
	flag.Parse()

	bootLog := logger.New("bootstrap", "info")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("load config failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	go func() { <-quit; cancel() }()

	switch *svc {
	case "dispatch":
		log := logger.New("dispatch-service", cfg.App.LogLevel)
		if err := bootstrap.RunDispatch(ctx, cfg, log); err != nil {
			log.Fatal().Err(err).Msg("dispatch service failed")
		}

	case "webhook":
		log := logger.New("webhook-service", cfg.App.LogLevel)
		if err := bootstrap.RunWebhook(ctx, cfg, log); err != nil {
			log.Fatal().Err(err).Msg("webhook service failed")
		}

	case "all":
		dispatchLog := logger.New("dispatch-service", cfg.App.LogLevel)
		webhookLog := logger.New("webhook-service", cfg.App.LogLevel)

		go func() {
			if err := bootstrap.RunDispatch(ctx, cfg, dispatchLog); err != nil {
				dispatchLog.Error().Err(err).Msg("dispatch service failed")
				cancel()
			}
		}()
		go func() {
			if err := bootstrap.RunWebhook(ctx, cfg, webhookLog); err != nil {
				webhookLog.Error().Err(err).Msg("webhook service failed")
				cancel()
			}
		}()
		<-ctx.Done()

	default:
		bootLog.Fatal().Str("service", *svc).Msg("unknown service")
	}
}
