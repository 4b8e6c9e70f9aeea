package echoapi

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core"
	"github.com/trezcool/masomo-dashboard/core/dashboard"
	"github.com/trezcool/masomo-dashboard/core/ticket"
	"github.com/trezcool/masomo-dashboard/services/restclient"
)

// Sessions keeps one Dashboard per signed-in admin, keyed by the token subject.
type Sessions struct {
	conf   *core.Config
	logger core.Logger
	auth   *restclient.Client // token-less, for Login only

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu    sync.RWMutex
	token string // latest token the admin used; forwarded to the backend
	dash  *dashboard.Dashboard
}

func NewSessions(conf *core.Config, logger core.Logger) (*Sessions, error) {
	auth, err := restclient.New(clientConfig(conf, nil))
	if err != nil {
		return nil, errors.Wrap(err, "creating backend client")
	}
	return &Sessions{
		conf:     conf,
		logger:   logger,
		auth:     auth,
		sessions: make(map[string]*session),
	}, nil
}

func clientConfig(conf *core.Config, tokens restclient.TokenProvider) restclient.Config {
	return restclient.Config{
		BaseURL:    conf.Backend.BaseURL,
		Timeout:    conf.Backend.Timeout,
		RetryCount: conf.Backend.RetryCount,
		Tokens:     tokens,
		Debug:      conf.Debug && !conf.TestMode,
	}
}

// Login exchanges the admin credentials for a backend token.
func (s *Sessions) Login(ctx context.Context, username, password string) (string, error) {
	return s.auth.Login(ctx, username, password)
}

// Open returns the dashboard of `subject`, creating it on first use. `token` replaces the session token.
func (s *Sessions) Open(subject, token string) (*dashboard.Dashboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[subject]; ok {
		sess.setToken(token)
		return sess.dash, nil
	}

	sess := &session{token: token}
	client, err := restclient.New(clientConfig(s.conf, restclient.TokenFunc(sess.Token)))
	if err != nil {
		return nil, errors.Wrap(err, "creating backend client")
	}
	sess.dash = dashboard.New(dashboard.Options{
		Client:   client,
		Poster:   client,
		Source:   s.ticketSource(client, sess),
		Logger:   s.logger,
		PageSize: s.conf.Dashboard.PageSize,
	})
	s.sessions[subject] = sess
	return sess.dash, nil
}

func (s *Sessions) ticketSource(client *restclient.Client, sess *session) ticket.Source {
	if s.conf.Tickets.Transport == core.TicketTransportSocket {
		return ticket.NewSocket(s.conf.Tickets.SocketURL, sess.Token, s.logger)
	}
	return ticket.NewPoller(client, s.logger, s.conf.Tickets.PollInterval)
}

// End closes the dashboard of `subject`. It reports whether there was one.
func (s *Sessions) End(subject string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[subject]
	delete(s.sessions, subject)
	s.mu.Unlock()

	if ok {
		sess.dash.Close()
	}
	return ok
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CloseAll ends every session.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.dash.Close()
	}
}

func (sess *session) Token(context.Context) (string, error) {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	if sess.token == "" {
		return "", restclient.ErrNoToken
	}
	return sess.token, nil
}

func (sess *session) setToken(token string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.token = token
}
