package ticket

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"

	"github.com/trezcool/masomo-dashboard/core"
)

const (
	DefaultPollInterval = 5 * time.Second
	defaultPollRetries  = 3
	defaultPollBackoff  = 200 * time.Millisecond
)

// Poller refreshes a thread by fetching it again every Interval.
type Poller struct {
	Fetcher  Fetcher
	Logger   core.Logger
	Interval time.Duration
	Retries  uint64        // per poll; 0: defaultPollRetries
	Backoff  time.Duration // first retry delay, doubled on each retry
}

var _ Source = (*Poller)(nil)

func NewPoller(fetcher Fetcher, logger core.Logger, interval time.Duration) *Poller {
	return &Poller{Fetcher: fetcher, Logger: logger, Interval: interval}
}

// Run polls until ctx is done. Failed polls are logged and the thread keeps its last messages.
func (p *Poller) Run(ctx context.Context, ticketID string, sink Sink) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.poll(ctx, ticketID, sink); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.Logger.Warn("polling ticket messages", err, map[string]interface{}{"ticket": ticketID})
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context, ticketID string, sink Sink) error {
	retries, backoff := p.Retries, p.Backoff
	if retries == 0 {
		retries = defaultPollRetries
	}
	if backoff <= 0 {
		backoff = defaultPollBackoff
	}

	return retry.Do(ctx, retry.WithMaxRetries(retries, retry.NewExponential(backoff)), func(ctx context.Context) error {
		messages, err := p.Fetcher.Messages(ctx, ticketID)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(errors.Wrapf(err, "fetching messages of ticket %s", ticketID))
		}
		sink.Initialize(messages)
		return nil
	})
}
