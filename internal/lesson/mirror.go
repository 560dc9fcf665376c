package lesson

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type mirrorKey struct {
	uid    string
	itemID string
}

type mirrorOp struct {
	favorite bool
	attempts int
}

// MirrorQueue pushes favorite changes to the remote mirror after the local
// store has been written. Changes for the same (uid, item) coalesce, only the
// latest state is sent. Failed pushes are retried up to maxAttempts.
type MirrorQueue struct {
	mirror        FavoriteMirror
	logger        *zap.Logger
	retryInterval time.Duration
	maxAttempts   int

	mu      sync.Mutex
	pending map[mirrorKey]*mirrorOp
	wake    chan struct{}
}

// NewMirrorQueue .
func NewMirrorQueue(mirror FavoriteMirror, logger *zap.Logger, retryInterval time.Duration, maxAttempts int) *MirrorQueue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if retryInterval <= 0 {
		retryInterval = 30 * time.Second
	}
	return &MirrorQueue{
		mirror:        mirror,
		logger:        logger,
		retryInterval: retryInterval,
		maxAttempts:   maxAttempts,
		pending:       make(map[mirrorKey]*mirrorOp),
		wake:          make(chan struct{}, 1),
	}
}

// Enqueue records the desired remote state, replacing any queued one
func (mq *MirrorQueue) Enqueue(uid, itemID string, favorite bool) {
	mq.mu.Lock()
	mq.pending[mirrorKey{uid, itemID}] = &mirrorOp{favorite: favorite}
	mq.mu.Unlock()

	select {
	case mq.wake <- struct{}{}:
	default:
	}
}

// Pending number of queued changes
func (mq *MirrorQueue) Pending() int {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	return len(mq.pending)
}

// Flush pushes every queued change once. Failures stay queued until they
// exhaust their attempts, the combined error is returned.
func (mq *MirrorQueue) Flush(ctx context.Context) error {
	mq.mu.Lock()
	batch := make(map[mirrorKey]*mirrorOp, len(mq.pending))
	for k, op := range mq.pending {
		batch[k] = op
	}
	mq.mu.Unlock()

	var errs error
	for k, op := range batch {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		err := mq.mirror.SetFavorite(ctx, k.uid, k.itemID, op.favorite)

		mq.mu.Lock()
		if mq.pending[k] != op {
			// superseded while in flight, the newer op is still queued
			mq.mu.Unlock()
			continue
		}
		if err == nil {
			delete(mq.pending, k)
			mq.mu.Unlock()
			continue
		}
		op.attempts++
		attempts := op.attempts
		dropped := attempts >= mq.maxAttempts
		if dropped {
			delete(mq.pending, k)
		}
		mq.mu.Unlock()

		fields := []zap.Field{
			zap.String("uid", k.uid),
			zap.String("lesson.id", k.itemID),
			zap.Bool("favorite", op.favorite),
			zap.Int("attempts", attempts),
			zap.Error(err),
		}
		if dropped {
			mq.logger.Error("giving up on favorite mirror", fields...)
		} else {
			mq.logger.Warn("favorite mirror failed, will retry", fields...)
		}
		errs = multierr.Append(errs, err)
	}
	return errs
}

// Run flushes on every Enqueue and every retry interval until ctx is done
func (mq *MirrorQueue) Run(ctx context.Context) {
	ticker := time.NewTicker(mq.retryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-mq.wake:
		case <-ticker.C:
		}
		if mq.Pending() > 0 {
			mq.Flush(ctx)
		}
	}
}
