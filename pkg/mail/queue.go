/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package mail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/equitraccion/site/pkg/metrics"
)

const (
	DefaultQueueAttempts  = 5
	DefaultQueueBackoffMs = 10000
	DefaultQueueSize      = 1000

	maxQueueBackoff = 30 * time.Minute
	retryTick       = 50 * time.Millisecond
)

var (
	ErrQueueFull     = errors.New("mail queue is full")
	ErrQueueStopping = errors.New("mail queue is shutting down")
	ErrNoReceivers   = errors.New("cannot enqueue email with no receivers")
)

// QueueItem is a queued email together with its delivery state.
type QueueItem struct {
	ID        string
	Message   Message
	Attempt   int
	CreatedAt time.Time
	NextRetry time.Time
	Succeeded bool
}

type QueueOptions struct {
	// MaxAttempts is the number of delivery attempts before an item is given up
	MaxAttempts      int
	InitialBackoffMs int
	MaxQueueSize     int
}

// Queue delivers notification emails in the background.
// Delivery is best effort: items are kept in memory only.
type Queue struct {
	sender Sender
	log    *zap.SugaredLogger
	opts   QueueOptions
	items  chan *QueueItem

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewQueue(sender Sender, log *zap.SugaredLogger, opts QueueOptions) *Queue {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultQueueAttempts
	}
	if opts.InitialBackoffMs <= 0 {
		opts.InitialBackoffMs = DefaultQueueBackoffMs
	}
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = DefaultQueueSize
	}

	log.Infow("Initializing mail queue",
		"maxAttempts", opts.MaxAttempts,
		"initialBackoffMs", opts.InitialBackoffMs,
		"maxQueueSize", opts.MaxQueueSize)

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		sender: sender,
		log:    log,
		opts:   opts,
		items:  make(chan *QueueItem, opts.MaxQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the background worker.
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
	q.log.Info("Mail queue worker started")
}

// Enqueue accepts msg for background delivery and returns its id.
func (q *Queue) Enqueue(msg Message) (string, error) {
	host := q.sender.GetHost()
	if len(msg.To) == 0 {
		metrics.MailQueueDropped.WithLabelValues(host).Inc()
		q.log.Errorw("Cannot enqueue email: empty receivers list", "subject", msg.Subject)
		return "", ErrNoReceivers
	}
	if q.ctx.Err() != nil {
		metrics.MailQueueDropped.WithLabelValues(host).Inc()
		return "", ErrQueueStopping
	}

	now := time.Now()
	item := &QueueItem{
		ID:        uuid.NewString(),
		Message:   msg,
		CreatedAt: now,
		NextRetry: now,
	}

	select {
	case q.items <- item:
		metrics.MailQueued.WithLabelValues(host).Inc()
		q.log.Debugw("Email queued for sending", "id", item.ID, "receivers", len(msg.To), "subject", msg.Subject)
		return item.ID, nil
	default:
		metrics.MailQueueDropped.WithLabelValues(host).Inc()
		q.log.Errorw("Mail queue is full, dropping message", "receivers", len(msg.To), "queueSize", q.opts.MaxQueueSize)
		return "", fmt.Errorf("%w (capacity: %d)", ErrQueueFull, q.opts.MaxQueueSize)
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorw("panic in mail queue worker recovered", "panic", r)
			metrics.MailFailed.WithLabelValues(q.sender.GetHost()).Inc()
			if q.ctx.Err() == nil {
				q.wg.Add(1)
				go q.worker()
			}
		}
	}()

	var pending []*QueueItem
	ticker := time.NewTicker(retryTick)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			q.drain(pending)
			return

		case item := <-q.items:
			if q.deliver(item) {
				pending = append(pending, item)
			}

		case now := <-ticker.C:
			kept := pending[:0]
			for _, item := range pending {
				if now.Before(item.NextRetry) || q.deliver(item) {
					kept = append(kept, item)
				}
			}
			pending = kept
		}
	}
}

// deliver makes one attempt and reports whether the item needs another.
func (q *Queue) deliver(item *QueueItem) bool {
	item.Attempt++
	host := q.sender.GetHost()

	err := q.sender.Send(item.Message)
	if err == nil {
		item.Succeeded = true
		q.log.Infow("Queued email sent", "id", item.ID, "attempt", item.Attempt, "subject", item.Message.Subject)
		return false
	}

	if item.Attempt >= q.opts.MaxAttempts {
		q.log.Errorw("Email send failed after all retries",
			"id", item.ID,
			"attempts", item.Attempt,
			"subject", item.Message.Subject,
			"error", err)
		metrics.MailFailed.WithLabelValues(host).Inc()
		return false
	}

	backoff := q.backoff(item.Attempt)
	item.NextRetry = time.Now().Add(backoff)
	q.log.Warnw("Email send failed, scheduling retry",
		"id", item.ID,
		"attempt", item.Attempt,
		"retryIn", backoff.String(),
		"error", err)
	metrics.MailRetryScheduled.WithLabelValues(host).Inc()
	return true
}

// drain gives every item still in memory one last attempt.
func (q *Queue) drain(pending []*QueueItem) {
	for len(q.items) > 0 {
		pending = append(pending, <-q.items)
	}
	q.log.Infow("Processing pending mail on shutdown", "count", len(pending))
	for _, item := range pending {
		q.deliver(item)
	}
}

// backoff doubles the initial delay per failed attempt, capped at 30 minutes.
func (q *Queue) backoff(attempt int) time.Duration {
	d := time.Duration(q.opts.InitialBackoffMs) * time.Millisecond
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxQueueBackoff {
			return maxQueueBackoff
		}
	}
	return d
}

// Stop stops accepting mail, flushes what is queued and waits for the worker.
func (q *Queue) Stop(ctx context.Context) error {
	q.log.Info("Stopping mail queue")
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.log.Info("Mail queue stopped gracefully")
		return nil
	case <-ctx.Done():
		q.log.Warnw("Mail queue shutdown timeout, some items may not have been processed")
		return ctx.Err()
	}
}

// Length returns the number of items waiting for their first attempt.
func (q *Queue) Length() int {
	return len(q.items)
}
