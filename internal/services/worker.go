package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/models"
	"github.com/tokengate/tokengate/pkg/logger"
)

// Worker drains access-log tasks from the Redis queue.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor func(context.Context, *models.AccessLog) error
	running   bool
	mu        sync.Mutex
}

// NewWorker creates a worker instance; nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Errorf("[Worker] Error processing task %s: %v", task.Type(), err)
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

// SetProcessor sets the function that persists access-log entries.
func (w *Worker) SetProcessor(processor func(context.Context, *models.AccessLog) error) {
	w.processor = processor
}

// Start begins processing tasks in the background.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeAccessLog, w.handleAccessLogTask)
	w.running = true

	go func() {
		logger.Infof("[Worker] Starting access log worker")
		if err := w.server.Run(w.mux); err != nil {
			logger.Errorf("[Worker] Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.server.Shutdown()
	w.running = false
	logger.Infof("[Worker] Stopped")
}

func (w *Worker) handleAccessLogTask(ctx context.Context, task *asynq.Task) error {
	var entry models.AccessLog
	if err := json.Unmarshal(task.Payload(), &entry); err != nil {
		return err
	}
	if w.processor == nil {
		logger.Warnf("[Worker] No processor set, dropping access log entry")
		return nil
	}
	return w.processor(ctx, &entry)
}
