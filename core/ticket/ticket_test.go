package ticket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-dashboard/core"
	"github.com/trezcool/masomo-dashboard/core/listing"
	"github.com/trezcool/masomo-dashboard/services/restclient"
	testutil "github.com/trezcool/masomo-dashboard/tests"
)

const backendToken = "token"

func newClient(t *testing.T, backend *testutil.Backend) *restclient.Client {
	t.Helper()
	client, err := restclient.New(restclient.Config{
		BaseURL: backend.URL, Timeout: time.Second, Tokens: restclient.StaticToken(backendToken),
	})
	require.NoError(t, err)
	return client
}

func staticToken(context.Context) (string, error) {
	return backendToken, nil
}

func bodies(view listing.View) []string {
	res := make([]string, 0, len(view.PageItems))
	for _, msg := range view.PageItems {
		res = append(res, msg.Field("body"))
	}
	return res
}

type flakyFetcher struct {
	mu       sync.Mutex
	failures int
	calls    int
	messages []listing.Record
}

func (f *flakyFetcher) Messages(context.Context, string) ([]listing.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.messages, nil
}

func (f *flakyFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestThread(t *testing.T) {
	th := NewThread("7", nil, testutil.NewLogger(), 2)
	th.Initialize([]listing.Record{
		{"id": 3, "sender": "amy", "body": "third", "created_at": "2020-01-03T00:00:00Z"},
		{"id": 1, "sender": "admin", "body": "first", "created_at": "2020-01-01T00:00:00Z"},
		{"id": 2, "sender": "amy", "body": "second", "created_at": "2020-01-02T00:00:00Z"},
	})

	view := th.View()
	assert.Equal(t, SortKey, view.SortKey)
	assert.Equal(t, []string{"first", "second"}, bodies(view))

	view = th.Page(2)
	assert.Equal(t, []string{"third"}, bodies(view))

	// a new snapshot keeps the current page
	th.Initialize([]listing.Record{
		{"id": 1, "body": "first", "created_at": "2020-01-01T00:00:00Z"},
		{"id": 2, "body": "second", "created_at": "2020-01-02T00:00:00Z"},
		{"id": 3, "body": "third (edited)", "created_at": "2020-01-03T00:00:00Z"},
	})
	assert.Equal(t, []string{"third (edited)"}, bodies(th.View()))

	th.Upsert(listing.Record{"id": 2, "body": "second (edited)", "created_at": "2020-01-02T00:00:00Z"})
	assert.Equal(t, 3, th.View().TotalCount)

	view = th.Search("EDITED")
	assert.Equal(t, 1, view.CurrentPage)
	assert.Equal(t, []string{"second (edited)", "third (edited)"}, bodies(view))

	view = th.Search("amy")
	assert.Zero(t, view.FilteredCount, "the new snapshot has no sender")
}

func TestThread_Reply(t *testing.T) {
	backend := testutil.NewBackend(backendToken)
	defer backend.Close()

	th := NewThread("7", newClient(t, backend), testutil.NewLogger(), 0)
	ctx := context.Background()

	_, err := th.Reply(ctx, "   ")
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, map[string]string{"body": "this field is required"}, vErr.FieldMap())

	msg, err := th.Reply(ctx, " hello ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Field("body"))
	assert.Equal(t, []string{"hello"}, bodies(th.View()))

	backend.Fail("tickets", 500)
	_, err = th.Reply(ctx, "again")
	assert.Error(t, err)
	assert.Equal(t, 1, th.View().TotalCount)
}

func TestThread_StartStop(t *testing.T) {
	fetcher := &flakyFetcher{messages: []listing.Record{{"id": 1, "body": "hello"}}}
	th := NewThread("7", nil, testutil.NewLogger(), 0)
	poller := NewPoller(fetcher, testutil.NewLogger(), 10*time.Millisecond)

	require.NoError(t, th.Start(context.Background(), poller))
	assert.Equal(t, ErrRunning, th.Start(context.Background(), poller))

	require.True(t, testutil.WaitFor(time.Second, func() bool { return fetcher.Calls() >= 3 }))
	th.Stop()
	calls := fetcher.Calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, fetcher.Calls(), "no poll after Stop")
	assert.Equal(t, []string{"hello"}, bodies(th.View()))

	th.Stop() // no-op
	require.NoError(t, th.Start(context.Background(), poller), "a stopped thread can start again")
	th.Stop()
}

func TestPoller_retries(t *testing.T) {
	fetcher := &flakyFetcher{failures: 2, messages: []listing.Record{{"id": 1, "body": "hello"}}}
	logger := testutil.NewLogger()
	poller := &Poller{Fetcher: fetcher, Logger: logger, Interval: time.Hour, Retries: 3, Backoff: time.Millisecond}
	th := NewThread("7", nil, logger, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx, "7", th) }()

	require.True(t, testutil.WaitFor(time.Second, func() bool { return th.View().TotalCount == 1 }))
	assert.Equal(t, 3, fetcher.Calls())
	assert.Empty(t, logger.Entries("warning"))

	cancel()
	assert.NoError(t, <-done)
}

func TestPoller_givesUp(t *testing.T) {
	fetcher := &flakyFetcher{failures: 100}
	logger := testutil.NewLogger()
	poller := &Poller{Fetcher: fetcher, Logger: logger, Interval: time.Hour, Retries: 1, Backoff: time.Millisecond}
	th := NewThread("7", nil, logger, 0)
	th.Initialize([]listing.Record{{"id": 1, "body": "kept"}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx, "7", th) }()

	require.True(t, testutil.WaitFor(time.Second, func() bool { return len(logger.Entries("warning")) == 1 }))
	assert.Equal(t, 2, fetcher.Calls())
	assert.Equal(t, []string{"kept"}, bodies(th.View()))

	cancel()
	assert.NoError(t, <-done)
}

func TestPoller_withBackend(t *testing.T) {
	backend := testutil.NewBackend(backendToken)
	defer backend.Close()
	backend.SeedMessages("7", listing.Record{"body": "hello", "created_at": "2020-01-01T00:00:00Z"})

	client := newClient(t, backend)
	th := NewThread("7", client, testutil.NewLogger(), 0)
	require.NoError(t, th.Start(context.Background(), NewPoller(client, testutil.NewLogger(), 10*time.Millisecond)))
	defer th.Stop()

	require.True(t, testutil.WaitFor(time.Second, func() bool { return th.View().TotalCount == 1 }))

	backend.SeedMessages("7", listing.Record{"body": "anyone?", "created_at": "2020-01-02T00:00:00Z"})
	require.True(t, testutil.WaitFor(time.Second, func() bool { return th.View().TotalCount == 2 }))
	assert.Equal(t, []string{"hello", "anyone?"}, bodies(th.View()))
}

func TestSocket(t *testing.T) {
	backend := testutil.NewBackend(backendToken)
	defer backend.Close()
	backend.SeedMessages("7", listing.Record{"body": "hello", "created_at": "2020-01-01T00:00:00Z"})

	client := newClient(t, backend)
	logger := testutil.NewLogger()
	th := NewThread("7", client, logger, 0)
	socket := NewSocket(backend.SocketURL(), staticToken, logger)

	require.NoError(t, th.Start(context.Background(), socket))
	require.True(t, backend.WaitSubscribers("7", 1, time.Second))
	require.True(t, testutil.WaitFor(time.Second, func() bool { return th.View().TotalCount == 1 }))

	backend.Push("7", listing.Record{"id": 100, "body": "pushed", "created_at": "2020-01-02T00:00:00Z"})
	require.True(t, testutil.WaitFor(time.Second, func() bool { return th.View().TotalCount == 2 }))

	backend.Push("7", listing.Record{"body": "no id"})
	backend.Push("7", listing.Record{"id": 100, "body": "pushed (edited)", "created_at": "2020-01-02T00:00:00Z"})
	require.True(t, testutil.WaitFor(time.Second, func() bool {
		msg, ok := th.View().PageItems[1], th.View().TotalCount == 2
		return ok && msg.Field("body") == "pushed (edited)"
	}))

	// replies come back on the socket too; the thread holds them once
	_, err := th.Reply(context.Background(), "hi")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"hello", "pushed (edited)", "hi"}, bodies(th.View()))

	th.Stop()
	assert.True(t, testutil.WaitFor(time.Second, func() bool { return backend.Subscribers("7") == 0 }))
	assert.Len(t, logger.Entries("warning"), 1, "the message without id is dropped")
}

func TestSocket_unauthorized(t *testing.T) {
	backend := testutil.NewBackend(backendToken)
	defer backend.Close()

	socket := NewSocket(backend.SocketURL(), func(context.Context) (string, error) { return "lol", nil }, testutil.NewLogger())
	err := socket.Run(context.Background(), "7", NewThread("7", nil, testutil.NewLogger(), 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSocket_stopWhileDialing(t *testing.T) {
	socket := NewSocket("ws://127.0.0.1:1/tickets/ws", staticToken, testutil.NewLogger())
	socket.Backoff = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.NoError(t, socket.Run(ctx, "7", NewThread("7", nil, testutil.NewLogger(), 0)))
}

// droppingServer upgrades every connection, optionally sends a snapshot, then closes it.
func droppingServer(t *testing.T, snapshot bool) (string, *int64) {
	t.Helper()
	var conns int64
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt64(&conns, 1)
		if snapshot {
			_ = conn.WriteJSON(Event{Type: EventSnapshot, Messages: []listing.Record{{"id": 1, "body": "hello"}}})
		}
		_ = conn.Close()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), &conns
}

func TestSocket_redialBackoff(t *testing.T) {
	tests := []struct {
		name     string
		snapshot bool
		min, max int64
	}{
		// dials at ~0, 100, 300ms: the delay doubles while nothing is received
		{name: "silent drops", min: 2, max: 4},
		// the delay starts over after each snapshot: a dial every ~100ms
		{name: "drops after an event", snapshot: true, min: 4, max: 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			socketURL, conns := droppingServer(t, tt.snapshot)
			logger := testutil.NewLogger()
			socket := NewSocket(socketURL, staticToken, logger)
			socket.Backoff = 100 * time.Millisecond

			ctx, cancel := context.WithTimeout(context.Background(), 550*time.Millisecond)
			defer cancel()
			assert.NoError(t, socket.Run(ctx, "7", NewThread("7", nil, logger, 0)))

			n := atomic.LoadInt64(conns)
			assert.GreaterOrEqual(t, n, tt.min)
			assert.LessOrEqual(t, n, tt.max)
		})
	}
}
