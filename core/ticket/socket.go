package ticket

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"

	"github.com/trezcool/masomo-dashboard/core"
	"github.com/trezcool/masomo-dashboard/core/listing"
)

// Event types pushed by the backend on a ticket socket.
const (
	EventSnapshot = "snapshot" // the whole thread, sent on connect
	EventMessage  = "message"  // one new or edited message
)

type Event struct {
	Type     string           `json:"type"`
	Message  listing.Record   `json:"message,omitempty"`
	Messages []listing.Record `json:"messages,omitempty"`
}

// Socket feeds a thread from the backend's ticket websocket, reconnecting when the connection drops.
type Socket struct {
	URL    string
	Token  func(ctx context.Context) (string, error)
	Logger core.Logger
	Dialer *websocket.Dialer

	Retries uint64        // dial attempts after the first one
	Backoff time.Duration // first redial delay, doubled on each retry
}

var _ Source = (*Socket)(nil)

func NewSocket(rawURL string, token func(ctx context.Context) (string, error), logger core.Logger) *Socket {
	return &Socket{
		URL:     rawURL,
		Token:   token,
		Logger:  logger,
		Dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		Retries: 5,
		Backoff: 250 * time.Millisecond,
	}
}

// Run returns nil once ctx is done, or an error when the socket cannot be (re)opened.
// Redials after a drop are spaced by the exponential backoff, which starts over
// once a connection has delivered an event.
func (s *Socket) Run(ctx context.Context, ticketID string, sink Sink) error {
	redial := retry.NewExponential(s.backoff())
	for {
		conn, err := s.dialRetrying(ctx, ticketID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		delivered, err := s.read(ctx, conn, sink)
		if ctx.Err() != nil {
			return nil
		}
		s.Logger.Warn("ticket socket dropped", err, map[string]interface{}{"ticket": ticketID})

		if delivered {
			redial = retry.NewExponential(s.backoff())
		}
		wait, _ := redial.Next()
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (s *Socket) dialRetrying(ctx context.Context, ticketID string) (*websocket.Conn, error) {
	var conn *websocket.Conn
	backoff := retry.WithMaxRetries(s.Retries, retry.NewExponential(s.backoff()))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, resp, err := s.dial(ctx, ticketID)
		if err != nil {
			// auth and request errors will not go away by retrying
			if resp != nil && resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
				return errors.Wrapf(err, "dialing ticket socket: %s", resp.Status)
			}
			return retry.RetryableError(errors.Wrap(err, "dialing ticket socket"))
		}
		conn = c
		return nil
	})
	return conn, err
}

func (s *Socket) dial(ctx context.Context, ticketID string) (*websocket.Conn, *http.Response, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parsing socket URL")
	}
	q := u.Query()
	q.Set("ticket", ticketID)
	u.RawQuery = q.Encode()

	header := make(http.Header)
	if s.Token != nil {
		token, err := s.Token(ctx)
		if err != nil {
			return nil, nil, errors.Wrap(err, "getting token")
		}
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return dialer.DialContext(ctx, u.String(), header)
}

// read applies the events of conn to sink until the connection fails.
// It reports whether at least one event was received.
func (s *Socket) read(ctx context.Context, conn *websocket.Conn, sink Sink) (bool, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	var delivered bool
	for {
		var evt Event
		if err := conn.ReadJSON(&evt); err != nil {
			return delivered, errors.Wrap(err, "reading ticket event")
		}
		delivered = true
		switch evt.Type {
		case EventSnapshot:
			sink.Initialize(evt.Messages)
		case EventMessage:
			if !evt.Message.HasID() {
				s.Logger.Warn("ticket message without id dropped", map[string]interface{}{"message": evt.Message})
				continue
			}
			sink.Upsert(evt.Message)
		default:
			s.Logger.Debug("unknown ticket event", map[string]interface{}{"type": evt.Type})
		}
	}
}

func (s *Socket) backoff() time.Duration {
	if s.Backoff <= 0 {
		return 250 * time.Millisecond
	}
	return s.Backoff
}
