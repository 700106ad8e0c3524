package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm_assistant_backend/platform/config"
	"crm_assistant_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Sender performs the actual delivery of a reply.
type Sender interface {
	Send(ctx context.Context, userID, text string) error
}

const (
	defaultConcurrency = 10
	shutdownTimeout    = 15 * time.Second
)

// Worker consumes reply tasks and hands them to the Sender.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	sender Sender
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sender Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}

	w := &Worker{
		mux:    asynq.NewServeMux(),
		sender: sender,
		log:    log,
	}
	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		ErrorHandler:    asynq.ErrorHandlerFunc(w.reportFailure),
		ShutdownTimeout: shutdownTimeout,
		LogLevel:        asynq.WarnLevel,
	})

	w.mux.Use(w.logTask)
	w.mux.HandleFunc(TaskSendReply, w.handleSendReply)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// logTask records the duration and attempt of every processed task.
func (w *Worker) logTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
		start := time.Now()
		attempt, _ := asynq.GetRetryCount(ctx)
		err := next.ProcessTask(ctx, task)
		w.log.Debug("task processed",
			"type", task.Type(),
			"attempt", attempt+1,
			"elapsed", time.Since(start),
			"failed", err != nil,
		)
		return err
	})
}

// reportFailure logs a reply that will not be retried again.
func (w *Worker) reportFailure(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if retried < maxRetry && !errors.Is(err, asynq.SkipRetry) {
		return
	}
	id, _ := asynq.GetTaskID(ctx)
	w.log.Error("reply dropped after final attempt", "task_id", id, "type", task.Type(), "error", err)
}

func (w *Worker) handleSendReply(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSendReplyPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if err := w.sender.Send(ctx, payload.UserID, payload.Text); err != nil {
		w.log.WithUserID(payload.UserID).Warn("reply delivery failed", "error", err)
		return err
	}
	return nil
}
