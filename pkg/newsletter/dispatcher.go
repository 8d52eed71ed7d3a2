package newsletter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/equitraccion/site/pkg/mail"
	"github.com/equitraccion/site/pkg/metrics"
)

// DefaultInterval is the pause after each send attempt.
const DefaultInterval = 100 * time.Millisecond

// ErrNoRecipients is returned by a campaign when there is nobody to send to.
var ErrNoRecipients = errors.New("no active subscribers")

// Sender delivers a single rendered message. mail.Sender satisfies it.
type Sender interface {
	Send(msg mail.Message) error
}

// Template is the rendered newsletter. HTML and Text may each contain the
// mail.EmailPlaceholder, which is replaced per recipient.
type Template struct {
	Subject string
	HTML    string
	Text    string
}

// Result summarizes a batch. It is built per run and never persisted.
type Result struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors"`
}

// Success reports whether at least one mail went out.
func (r Result) Success() bool {
	return r.Sent > 0
}

func (r *Result) record(email string, err error) {
	if err == nil {
		r.Sent++
		metrics.NewsletterRecipients.WithLabelValues("sent").Inc()
		return
	}
	r.Failed++
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", email, err.Error()))
	metrics.NewsletterRecipients.WithLabelValues("failed").Inc()
}

// Dispatcher sends tpl to every recipient and reports per-recipient outcomes.
// It never returns early on a delivery error.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipients []string, tpl Template) Result
}

// NewDispatcher returns a Sequential dispatcher for workers <= 1 and a Pooled one otherwise.
func NewDispatcher(sender Sender, workers int, interval time.Duration, log *zap.SugaredLogger) Dispatcher {
	if workers <= 1 {
		return &Sequential{Sender: sender, Interval: interval, Log: log}
	}
	return NewPooled(sender, workers, interval, log)
}

// personalize builds the message for one recipient.
func personalize(email string, tpl Template) mail.Message {
	escaped := mail.EscapeEmail(email)
	return mail.Message{
		To:      []string{email},
		Subject: tpl.Subject,
		HTML:    mail.Personalize(tpl.HTML, escaped),
		Text:    mail.Personalize(tpl.Text, escaped),
	}
}

// sendOne calls the sender and turns a panic into an error.
func sendOne(sender Sender, msg mail.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while sending: %v", r)
		}
	}()
	return sender.Send(msg)
}

// pause waits d or until ctx is done. It returns false when ctx ended first.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Sequential sends in recipient order, one at a time, pausing Interval after
// every attempt. A zero Interval disables the pause.
type Sequential struct {
	Sender   Sender
	Interval time.Duration
	Log      *zap.SugaredLogger
}

func (s *Sequential) Dispatch(ctx context.Context, recipients []string, tpl Template) Result {
	res := Result{Errors: []string{}}
	log := s.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	for i, email := range recipients {
		if err := ctx.Err(); err != nil {
			log.Warnw("Newsletter dispatch cancelled", "remaining", len(recipients)-i, "error", err)
			for _, rest := range recipients[i:] {
				res.record(rest, err)
			}
			break
		}

		err := sendOne(s.Sender, personalize(email, tpl))
		if err != nil {
			log.Warnw("Failed to send newsletter", "recipient", email, "error", err)
		}
		res.record(email, err)

		pause(ctx, s.Interval)
	}
	return res
}

// Pooled sends with a bounded number of workers. All workers draw from one
// token bucket refilled once per Interval, so the aggregate pace matches the
// sequential dispatcher while slow sends overlap. Results keep recipient order.
type Pooled struct {
	sender  Sender
	workers int
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

func NewPooled(sender Sender, workers int, interval time.Duration, log *zap.SugaredLogger) *Pooled {
	if workers < 1 {
		workers = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pooled{
		sender:  sender,
		workers: workers,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

func (p *Pooled) Dispatch(ctx context.Context, recipients []string, tpl Template) Result {
	outcomes := make([]error, len(recipients))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := p.limiter.Wait(ctx); err != nil {
					if ctxErr := ctx.Err(); ctxErr != nil {
						err = ctxErr
					}
					outcomes[i] = err
					continue
				}
				outcomes[i] = sendOne(p.sender, personalize(recipients[i], tpl))
				if outcomes[i] != nil {
					p.log.Warnw("Failed to send newsletter", "recipient", recipients[i], "error", outcomes[i])
				}
			}
		}()
	}

	for i := range recipients {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	res := Result{Errors: []string{}}
	for i, email := range recipients {
		res.record(email, outcomes[i])
	}
	return res
}
