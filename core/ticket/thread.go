package ticket

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core"
	"github.com/trezcool/masomo-dashboard/core/listing"
)

const (
	SortKey         = "created_at"
	DefaultPageSize = 20
)

var (
	// errors
	ErrEmptyReply = errors.New("reply body is empty")
	ErrRunning    = errors.New("thread already started")
)

// Thread is the message list of one ticket, oldest first.
type Thread struct {
	ticketID string
	poster   Poster
	logger   core.Logger

	mu   sync.Mutex
	ctrl *listing.Controller

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Sink = (*Thread)(nil)

func NewThread(ticketID string, poster Poster, logger core.Logger, pageSize int) *Thread {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	ctrl := listing.NewController(pageSize, "body", "sender")
	ctrl.SetSort(SortKey)
	return &Thread{
		ticketID: ticketID,
		poster:   poster,
		logger:   logger,
		ctrl:     ctrl,
	}
}

func (t *Thread) TicketID() string {
	return t.ticketID
}

func (t *Thread) Initialize(messages []listing.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Initialize resets the page; keep the reader where they were
	page := t.ctrl.View().CurrentPage
	t.ctrl.Initialize(messages)
	t.ctrl.SetPage(page)
}

func (t *Thread) Upsert(msg listing.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ctrl.Upsert(msg)
}

func (t *Thread) View() listing.View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ctrl.View()
}

func (t *Thread) Search(term string) listing.View {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ctrl.SetSearchTerm(term)
	return t.ctrl.View()
}

func (t *Thread) Page(n int) listing.View {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ctrl.SetPage(n)
	return t.ctrl.View()
}

// Reply posts `body` on the ticket and adds the stored message to the thread.
func (t *Thread) Reply(ctx context.Context, body string) (listing.Record, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, core.NewValidationError(ErrEmptyReply, core.FieldError{Field: "body", Error: "this field is required"})
	}

	msg, err := t.poster.PostMessage(ctx, t.ticketID, body)
	if err != nil {
		return nil, errors.Wrapf(err, "replying on ticket %s", t.ticketID)
	}
	if !msg.HasID() {
		return nil, errors.Errorf("replying on ticket %s: message has no id", t.ticketID)
	}
	t.Upsert(msg)
	return msg.Copy(), nil
}

// Start feeds the thread from `source` in the background until Stop is called.
func (t *Thread) Start(ctx context.Context, source Source) error {
	t.runMu.Lock()
	defer t.runMu.Unlock()
	if t.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel, t.done = cancel, done

	go func() {
		defer close(done)
		if err := source.Run(ctx, t.ticketID, t); err != nil {
			t.logger.Error("ticket source stopped", errors.Wrapf(err, "ticket %s", t.ticketID))
		}
	}()
	return nil
}

// Stop stops the source started by Start and waits for it to return.
func (t *Thread) Stop() {
	t.runMu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.runMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
