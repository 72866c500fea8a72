package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Mailbox runs jobs in arrival order per key. Each key with pending work has
// one drain goroutine; it exits when the queue is empty, so idle users cost
// nothing. Jobs of different keys run concurrently.
type Mailbox struct {
	ctx    context.Context
	logger *slog.Logger

	mu     sync.Mutex
	queues map[string][]func(ctx context.Context)
	wg     sync.WaitGroup
}

// NewMailbox binds jobs to ctx. Jobs still see ctx after it is cancelled and
// are expected to give up on their own.
func NewMailbox(ctx context.Context, logger *slog.Logger) *Mailbox {
	return &Mailbox{
		ctx:    ctx,
		logger: logger,
		queues: make(map[string][]func(ctx context.Context)),
	}
}

// Submit enqueues job behind every earlier job of the same key.
func (mb *Mailbox) Submit(key string, job func(ctx context.Context)) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	q, running := mb.queues[key]
	mb.queues[key] = append(q, job)
	if running {
		return
	}

	mb.wg.Add(1)
	go mb.drain(key)
}

// Wait blocks until every submitted job has finished.
func (mb *Mailbox) Wait() {
	mb.wg.Wait()
}

func (mb *Mailbox) drain(key string) {
	defer mb.wg.Done()

	for {
		mb.mu.Lock()
		q := mb.queues[key]
		if len(q) == 0 {
			delete(mb.queues, key)
			mb.mu.Unlock()
			return
		}
		job := q[0]
		mb.queues[key] = q[1:]
		mb.mu.Unlock()

		mb.run(key, job)
	}
}

func (mb *Mailbox) run(key string, job func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			mb.logger.Error("mailbox job panicked",
				slog.String("key", key),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	job(mb.ctx)
}
