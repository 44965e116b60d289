package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/storage"
)

const (
	cleanupPopTimeout = 5 * time.Second
	cleanupRetryDelay = time.Second
)

// ImageCleanupWorker deletes image files that tickets no longer reference.
// References are queued on a Redis list and drained by Run. Without Redis,
// or when a push fails, the file is removed in a background goroutine.
// Removal failures are logged and otherwise ignored.
type ImageCleanupWorker struct {
	client   *redis.Client
	queueKey string
	images   storage.ImageStore
	logger   *zap.Logger

	inflight sync.WaitGroup
}

// NewImageCleanupWorker builds the worker. client may be nil.
func NewImageCleanupWorker(client *redis.Client, queueKey string, images storage.ImageStore, logger *zap.Logger) *ImageCleanupWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueKey == "" {
		queueKey = "helpdesk:image-cleanup"
	}
	return &ImageCleanupWorker{
		client:   client,
		queueKey: queueKey,
		images:   images,
		logger:   logger,
	}
}

// Enqueue schedules refs for removal without waiting for it.
func (w *ImageCleanupWorker) Enqueue(ctx context.Context, refs ...string) {
	if len(refs) == 0 {
		return
	}
	if w.client != nil {
		values := make([]any, len(refs))
		for i, ref := range refs {
			values[i] = ref
		}
		err := w.client.LPush(ctx, w.queueKey, values...).Err()
		if err == nil {
			return
		}
		w.logger.Warn("image cleanup enqueue failed; removing in-process", zap.Error(err), zap.Int("count", len(refs)))
	}

	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		for _, ref := range refs {
			w.remove(context.WithoutCancel(ctx), ref)
		}
	}()
}

// Run drains the Redis queue until ctx is cancelled. It returns immediately
// when no Redis client is configured.
func (w *ImageCleanupWorker) Run(ctx context.Context) {
	if w.client == nil {
		return
	}
	w.logger.Info("image cleanup worker started", zap.String("queue", w.queueKey))
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := w.client.BRPop(ctx, cleanupPopTimeout, w.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("image cleanup dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(cleanupRetryDelay):
			}
			continue
		}
		// BRPOP replies with [key, value].
		if len(res) == 2 {
			w.remove(ctx, res[1])
		}
	}
}

// Wait blocks until in-process removals started by Enqueue have finished.
func (w *ImageCleanupWorker) Wait() {
	w.inflight.Wait()
}

func (w *ImageCleanupWorker) remove(ctx context.Context, ref string) {
	if err := w.images.Remove(ctx, ref); err != nil {
		w.logger.Warn("image cleanup failed", zap.String("ref", ref), zap.Error(err))
		return
	}
	w.logger.Debug("image removed", zap.String("ref", ref))
}
