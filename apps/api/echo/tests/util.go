package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/masomo-dashboard/apps/api/echo"
	"github.com/trezcool/masomo-dashboard/core"
	"github.com/trezcool/masomo-dashboard/core/resource"
	"github.com/trezcool/masomo-dashboard/tests"
)

const secretKey = "dashboard-test-secret"

var (
	errMissingToken  = httpErr{Error: "missing or malformed jwt"}
	errInvalidToken  = httpErr{Error: "invalid or expired jwt"}
	errForbidden     = httpErr{Error: "permission denied"}
	errNotFound      = httpErr{Error: "not found"}
	errSessionExpire = httpErr{Error: "session expired, log in again"}

	admin   = core.Person{ID: "1", Username: "admin", Email: "admin@test.cd"}
	student = core.Person{ID: "2", Username: "student", Email: "student@test.cd"}
)

type env struct {
	app        *Server
	backend    *testutil.Backend
	logger     *testutil.Logger
	adminToken string
}

func newConfig(backendURL string) *core.Config {
	return &core.Config{
		Env:       "TEST",
		TestMode:  true,
		AppName:   "Masomo",
		SecretKey: secretKey,
		Server:    core.ServerConfig{DisableReqLogs: true},
		Backend:   core.BackendConfig{BaseURL: backendURL, Timeout: 2 * time.Second},
		Dashboard: core.DashboardConfig{PageSize: 2},
		Tickets:   core.TicketsConfig{Transport: core.TicketTransportPoll, PollInterval: 20 * time.Millisecond},
	}
}

// setup starts a fake backend accepting the admin token, and a server talking to it.
func setup(t *testing.T) *env {
	t.Helper()
	adminToken := getToken(t, admin, []string{resource.RoleAdmin})

	backend := testutil.NewBackend(adminToken)
	t.Cleanup(backend.Close)

	conf := newConfig(backend.URL)
	logger := testutil.NewLogger()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	resource.InitValidators(validate, translator)

	sessions, err := NewSessions(conf, logger)
	require.NoError(t, err)

	app := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Sessions:   sessions,
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(sessions.CloseAll)

	return &env{app: app, backend: backend, logger: logger, adminToken: adminToken}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, person core.Person, roles []string) string {
	claims := GetUserClaims(newConfig(""), person, roles, time.Hour)
	token, err := GenerateToken(secretKey, claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// runSequence runs `tests` in order against the same server; each one sees the state left by the previous ones.
func runSequence(t *testing.T, app *Server, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
