package restclient

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-dashboard/core"
	"github.com/trezcool/masomo-dashboard/core/listing"
	testutil "github.com/trezcool/masomo-dashboard/tests"
)

const backendToken = "backend-token"

func newClient(t *testing.T, backend *testutil.Backend, tokens TokenProvider) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: backend.URL, Timeout: 2 * time.Second, RetryCount: 2, Tokens: tokens})
	require.NoError(t, err)
	return c
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{ExpiresAt: exp.Unix()})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)
	return signed
}

func TestNew(t *testing.T) {
	tests := []struct {
		baseURL string
		wantErr bool
	}{
		{baseURL: "http://localhost:8080"},
		{baseURL: "https://api.masomo.cd/v1"},
		{baseURL: "localhost:8080", wantErr: true},
		{baseURL: "/v1", wantErr: true},
		{baseURL: "ftp://files.masomo.cd", wantErr: true},
		{baseURL: "http://%zz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.baseURL, func(t *testing.T) {
			_, err := New(Config{BaseURL: tt.baseURL})
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestClient_Login(t *testing.T) {
	backend := testutil.NewBackend(backendToken)
	defer backend.Close()
	backend.Credentials["admin"] = "pwd"

	c := newClient(t, backend, nil)

	token, err := c.Login(context.Background(), "admin", "pwd")
	require.NoError(t, err)
	assert.Equal(t, backendToken, token)

	_, err = c.Login(context.Background(), "admin", "lol")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "authentication failed", apiErr.Message)
}

func TestClient_CRUD(t *testing.T) {
	backend := testutil.NewBackend(backendToken)
	defer backend.Close()
	seeded := backend.Seed("customers",
		listing.Record{"name": "Acme", "status": "lead"},
		listing.Record{"name": "Globex", "status": "active"},
	)

	c := newClient(t, backend, StaticToken(backendToken))
	ctx := context.Background()

	records, err := c.List(ctx, "customers")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, seeded[0].ID(), records[0].ID())
	assert.Equal(t, "Globex", records[1].Field("name"))

	created, err := c.Create(ctx, "customers", listing.Record{"name": "Initech", "status": "lead"})
	require.NoError(t, err)
	assert.True(t, created.HasID())
	assert.Equal(t, "Initech", created.Field("name"))

	updated, err := c.Update(ctx, "customers", created.ID(), listing.Record{"name": "Initech Ltd", "status": "active"})
	require.NoError(t, err)
	assert.Equal(t, created.ID(), updated.ID())
	assert.Equal(t, "active", updated.Field("status"))

	require.NoError(t, c.Delete(ctx, "customers", seeded[0].ID()))
	err = c.Delete(ctx, "customers", seeded[0].ID())
	assert.True(t, IsNotFound(err))

	records, err = c.List(ctx, "customers")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestClient_fieldErrors(t *testing.T) {
	backend := testutil.NewBackend(backendToken)
	defer backend.Close()

	c := newClient(t, backend, StaticToken(backendToken))
	_, err := c.Create(context.Background(), "channels", listing.Record{"name": "taken"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, []core.FieldError{{Field: "name", Error: "this name is already taken"}}, apiErr.Fields)
	assert.Equal(t, "backend: 400 Bad Request", apiErr.Error())
}

func TestClient_auth(t *testing.T) {
	backend := testutil.NewBackend(backendToken)
	defer backend.Close()
	ctx := context.Background()

	_, err := newClient(t, backend, nil).List(ctx, "users")
	assert.Equal(t, ErrNoToken, errors.Cause(err))

	_, err = newClient(t, backend, StaticToken("")).List(ctx, "users")
	assert.Equal(t, ErrNoToken, errors.Cause(err))

	_, err = newClient(t, backend, StaticToken("lol")).List(ctx, "users")
	assert.True(t, IsUnauthorized(err))

	expired := signedToken(t, time.Now().Add(-time.Hour))
	_, err = newClient(t, backend, StaticToken(expired)).List(ctx, "users")
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, ErrTokenExpired, errors.Cause(err))
	assert.Zero(t, backend.Calls(http.MethodGet, "users"))

	calls := 0
	tokens := TokenFunc(func(context.Context) (string, error) {
		calls++
		return backendToken, nil
	})
	_, err = newClient(t, backend, tokens).List(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCheckExpiry(t *testing.T) {
	defer func() { nowFunc = time.Now }()
	nowFunc = func() time.Time { return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC) }

	assert.NoError(t, checkExpiry("not-a-jwt"))
	assert.NoError(t, checkExpiry(signedToken(t, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC))))
	assert.Equal(t, ErrTokenExpired, checkExpiry(signedToken(t, time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC))))
}

func TestClient_retries(t *testing.T) {
	backend := testutil.NewBackend(backendToken)
	defer backend.Close()
	backend.Fail("projects", http.StatusServiceUnavailable)

	c := newClient(t, backend, StaticToken(backendToken))
	ctx := context.Background()

	_, err := c.List(ctx, "projects")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, 3, backend.Calls(http.MethodGet, "projects"))

	_, err = c.Create(ctx, "projects", listing.Record{"name": "LMS"})
	require.Error(t, err)
	assert.Equal(t, 1, backend.Calls(http.MethodPost, "projects"))
}

func TestClient_messages(t *testing.T) {
	backend := testutil.NewBackend(backendToken)
	defer backend.Close()
	backend.SeedMessages("7", listing.Record{"sender": "amy", "body": "hello"})

	c := newClient(t, backend, StaticToken(backendToken))
	ctx := context.Background()

	msgs, err := c.Messages(ctx, "7")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Field("body"))

	msg, err := c.PostMessage(ctx, "7", "hi amy")
	require.NoError(t, err)
	assert.True(t, msg.HasID())
	assert.Equal(t, "hi amy", msg.Field("body"))

	msgs, err = c.Messages(ctx, "7")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}
