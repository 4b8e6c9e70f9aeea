// Package restclient talks to the Masomo REST backend on behalf of the dashboard.
package restclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core/listing"
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	// Tokens provides the bearer token of each request. Only Login may be called without it.
	Tokens TokenProvider
	Debug  bool
}

type Client struct {
	http   *resty.Client
	tokens TokenProvider
}

type (
	loginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	loginResponse struct {
		Token string `json:"token"`
	}

	messageRequest struct {
		Body string `json:"body"`
	}
)

func New(conf Config) (*Client, error) {
	u, err := url.Parse(conf.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing base URL")
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Errorf("base URL must be an absolute http(s) URL, got %q", conf.BaseURL)
	}

	c := resty.New().
		SetBaseURL(conf.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(conf.RetryCount).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryCondition).
		SetDebug(conf.Debug)
	if conf.Timeout > 0 {
		c.SetTimeout(conf.Timeout)
	}
	return &Client{http: c, tokens: conf.Tokens}, nil
}

// retryCondition retries idempotent requests on network errors, 5xx and 429.
func retryCondition(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method == http.MethodPost {
		return false
	}
	if err != nil {
		return true
	}
	code := r.StatusCode()
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if c.tokens == nil {
		return nil, ErrNoToken
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting token")
	}
	if err = checkExpiry(token); err != nil {
		return nil, err
	}
	return c.http.R().SetContext(ctx).SetAuthToken(token), nil
}

func (c *Client) do(req *resty.Request, method, path string) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if resp.IsError() {
		return parseError(resp)
	}
	return nil
}

// Login exchanges credentials for an auth token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var res loginResponse
	req := c.http.R().
		SetContext(ctx).
		SetBody(loginRequest{Username: username, Password: password}).
		SetResult(&res)
	if err := c.do(req, http.MethodPost, "/users/login"); err != nil {
		return "", err
	}
	if res.Token == "" {
		return "", ErrNoToken
	}
	return res.Token, nil
}

// List fetches all records of the collection at `path`.
func (c *Client) List(ctx context.Context, path string) ([]listing.Record, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var records []listing.Record
	req.SetResult(&records)
	if err = c.do(req, http.MethodGet, "/"+path); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) Create(ctx context.Context, path string, rec listing.Record) (listing.Record, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var created listing.Record
	req.SetBody(rec).SetResult(&created)
	if err = c.do(req, http.MethodPost, "/"+path); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) Update(ctx context.Context, path, id string, rec listing.Record) (listing.Record, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var updated listing.Record
	req.SetBody(rec).SetResult(&updated).SetPathParam("id", id)
	if err = c.do(req, http.MethodPut, "/"+path+"/{id}"); err != nil {
		return nil, err
	}
	return updated, nil
}

func (c *Client) Delete(ctx context.Context, path, id string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	req.SetPathParam("id", id)
	return c.do(req, http.MethodDelete, "/"+path+"/{id}")
}

// Messages fetches the whole message thread of a ticket.
func (c *Client) Messages(ctx context.Context, ticketID string) ([]listing.Record, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var messages []listing.Record
	req.SetResult(&messages).SetPathParam("id", ticketID)
	if err = c.do(req, http.MethodGet, "/tickets/{id}/messages"); err != nil {
		return nil, err
	}
	return messages, nil
}

// PostMessage replies on a ticket thread and returns the stored message.
func (c *Client) PostMessage(ctx context.Context, ticketID, body string) (listing.Record, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var msg listing.Record
	req.SetBody(messageRequest{Body: body}).SetResult(&msg).SetPathParam("id", ticketID)
	if err = c.do(req, http.MethodPost, "/tickets/{id}/messages"); err != nil {
		return nil, err
	}
	return msg, nil
}
