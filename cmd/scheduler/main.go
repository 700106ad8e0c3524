package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"crm_assistant_backend/internal/scheduler"
	"crm_assistant_backend/internal/whatsapp"
	"crm_assistant_backend/platform/config"
	"crm_assistant_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting reply worker", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.IsWhatsAppEnabled() {
		log.Warn("WhatsApp credentials not configured; reply tasks will fail until they are set")
	}

	worker, err := scheduler.NewWorker(cfg, whatsapp.NewClient(cfg, log), log)
	if err != nil {
		log.Error("failed to initialize reply worker", "error", err)
		panic("failed to initialize reply worker: " + err.Error())
	}

	worker.Run(ctx)
}
