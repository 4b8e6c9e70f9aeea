package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-dashboard/core/listing"
	"github.com/trezcool/masomo-dashboard/core/resource"
)

// Backend is an in-memory stand-in for the Masomo REST API.
type Backend struct {
	*httptest.Server

	// Token is the bearer token the backend accepts. Empty disables auth.
	Token string
	// Credentials maps usernames to passwords for login.
	Credentials map[string]string
	// OmitIDs makes create calls answer without the record id.
	OmitIDs bool

	mu       sync.RWMutex
	pkCount  int
	tables   map[string]*table
	messages map[string][]listing.Record
	failures map[string]int
	calls    map[string]int

	hubMu sync.Mutex
	hub   map[string][]*socketConn
}

type table struct {
	ids  []string
	rows map[string]listing.Record
}

type socketConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// SocketEvent is the payload pushed on ticket sockets.
type SocketEvent struct {
	Type     string           `json:"type"` // "snapshot" or "message"
	Message  listing.Record   `json:"message,omitempty"`
	Messages []listing.Record `json:"messages,omitempty"`
}

const collectionKey = "collection"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewBackend starts a Backend; it is closed when the test server is.
func NewBackend(token string) *Backend {
	b := &Backend{
		Token:       token,
		Credentials: make(map[string]string),
		tables:      make(map[string]*table),
		messages:    make(map[string][]listing.Record),
		failures:    make(map[string]int),
		calls:       make(map[string]int),
		hub:         make(map[string][]*socketConn),
	}

	e := echo.New()
	e.HideBanner = true
	e.POST("/users/login", b.login)
	e.GET("/tickets/ws", b.socket, b.auth)
	e.GET("/tickets/:id/messages", b.listMessages, b.auth, b.on(resource.Tickets))
	e.POST("/tickets/:id/messages", b.postMessage, b.auth, b.on(resource.Tickets))
	for _, name := range resource.Names() {
		e.GET("/"+name, b.list, b.auth, b.on(name))
		e.POST("/"+name, b.create, b.auth, b.on(name))
		e.PUT("/"+name+"/:id", b.update, b.auth, b.on(name))
		e.DELETE("/"+name+"/:id", b.destroy, b.auth, b.on(name))
	}

	b.Server = httptest.NewServer(e)
	return b
}

// URL of the socket endpoint, with the ws scheme.
func (b *Backend) SocketURL() string {
	return "ws" + strings.TrimPrefix(b.Server.URL, "http") + "/tickets/ws"
}

// Seed stores records in `collection`, assigning ids to those without one.
func (b *Backend) Seed(collection string, records ...listing.Record) []listing.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	seeded := make([]listing.Record, 0, len(records))
	for _, r := range records {
		seeded = append(seeded, b.insert(collection, r))
	}
	return seeded
}

// SeedMessages appends messages to a ticket thread.
func (b *Backend) SeedMessages(ticketID string, messages ...listing.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, msg := range messages {
		b.pkCount++
		m := msg.Copy()
		if !m.HasID() {
			m[listing.IDField] = b.pkCount
		}
		b.messages[ticketID] = append(b.messages[ticketID], m)
	}
}

// Records returns the stored records of `collection`, in insertion order.
func (b *Backend) Records(collection string) []listing.Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tbl, ok := b.tables[collection]
	if !ok {
		return []listing.Record{}
	}
	res := make([]listing.Record, 0, len(tbl.ids))
	for _, id := range tbl.ids {
		res = append(res, tbl.rows[id].Copy())
	}
	return res
}

// Fail makes every request on `collection` answer `code`; 0 clears it.
func (b *Backend) Fail(collection string, code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if code == 0 {
		delete(b.failures, collection)
		return
	}
	b.failures[collection] = code
}

// Calls returns how many requests were made with `method` on `collection`.
func (b *Backend) Calls(method, collection string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.calls[method+" "+collection]
}

// Push sends a message event to the sockets watching `ticketID`.
func (b *Backend) Push(ticketID string, msg listing.Record) {
	b.broadcast(ticketID, SocketEvent{Type: "message", Message: msg})
}

// Subscribers returns how many sockets watch `ticketID`.
func (b *Backend) Subscribers(ticketID string) int {
	b.hubMu.Lock()
	defer b.hubMu.Unlock()
	return len(b.hub[ticketID])
}

// WaitSubscribers waits until `n` sockets watch `ticketID`.
func (b *Backend) WaitSubscribers(ticketID string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b.Subscribers(ticketID) >= n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func (b *Backend) insert(collection string, r listing.Record) listing.Record {
	tbl, ok := b.tables[collection]
	if !ok {
		tbl = &table{rows: make(map[string]listing.Record)}
		b.tables[collection] = tbl
	}
	rec := r.Copy()
	if !rec.HasID() {
		b.pkCount++
		rec[listing.IDField] = b.pkCount
	}
	id := rec.ID()
	if _, exists := tbl.rows[id]; !exists {
		tbl.ids = append(tbl.ids, id)
	}
	tbl.rows[id] = rec
	return rec.Copy()
}

// Middlewares

func (b *Backend) auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if b.Token == "" || ctx.Request().Header.Get(echo.HeaderAuthorization) == "Bearer "+b.Token {
			return next(ctx)
		}
		return ctx.JSON(http.StatusUnauthorized, echo.Map{"error": "missing or malformed jwt"})
	}
}

// on records the call on `collection` and answers the configured failure, if any.
func (b *Backend) on(collection string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			b.mu.Lock()
			b.calls[ctx.Request().Method+" "+collection]++
			code := b.failures[collection]
			b.mu.Unlock()

			if code != 0 {
				return ctx.JSON(code, echo.Map{"error": strings.ToLower(http.StatusText(code))})
			}
			ctx.Set(collectionKey, collection)
			return next(ctx)
		}
	}
}

func collectionOf(ctx echo.Context) string {
	collection, _ := ctx.Get(collectionKey).(string)
	return collection
}

// Handlers

func (b *Backend) login(ctx echo.Context) error {
	var data struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := ctx.Bind(&data); err != nil {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if pwd, ok := b.Credentials[data.Username]; !ok || pwd != data.Password {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "authentication failed"})
	}
	return ctx.JSON(http.StatusOK, echo.Map{"token": b.Token})
}

func (b *Backend) list(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, b.Records(collectionOf(ctx)))
}

func (b *Backend) create(ctx echo.Context) error {
	rec := make(listing.Record)
	if err := json.NewDecoder(ctx.Request().Body).Decode(&rec); err != nil {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if name, ok := rec["name"].(string); ok && name == "taken" {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"name": "this name is already taken"})
	}
	delete(rec, listing.IDField)

	b.mu.Lock()
	created := b.insert(collectionOf(ctx), rec)
	b.mu.Unlock()

	if b.OmitIDs {
		delete(created, listing.IDField)
	}
	return ctx.JSON(http.StatusCreated, created)
}

func (b *Backend) update(ctx echo.Context) error {
	rec := make(listing.Record)
	if err := json.NewDecoder(ctx.Request().Body).Decode(&rec); err != nil {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tbl, ok := b.tables[collectionOf(ctx)]
	if !ok {
		return ctx.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	orig, ok := tbl.rows[ctx.Param("id")]
	if !ok {
		return ctx.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	updated := rec.Copy()
	updated[listing.IDField] = orig[listing.IDField]
	tbl.rows[ctx.Param("id")] = updated
	return ctx.JSON(http.StatusOK, updated)
}

func (b *Backend) destroy(ctx echo.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := ctx.Param("id")
	tbl, ok := b.tables[collectionOf(ctx)]
	if !ok {
		return ctx.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	if _, ok = tbl.rows[id]; !ok {
		return ctx.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	delete(tbl.rows, id)
	for i, tid := range tbl.ids {
		if tid == id {
			tbl.ids = append(tbl.ids[:i], tbl.ids[i+1:]...)
			break
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (b *Backend) listMessages(ctx echo.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	msgs := make([]listing.Record, 0, len(b.messages[ctx.Param("id")]))
	for _, m := range b.messages[ctx.Param("id")] {
		msgs = append(msgs, m.Copy())
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (b *Backend) postMessage(ctx echo.Context) error {
	var data struct {
		Body string `json:"body"`
	}
	if err := ctx.Bind(&data); err != nil || strings.TrimSpace(data.Body) == "" {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"body": "this field is required"})
	}

	ticketID := ctx.Param("id")
	b.mu.Lock()
	b.pkCount++
	msg := listing.Record{
		listing.IDField: b.pkCount,
		"ticket":        ticketID,
		"sender":        "admin",
		"body":          data.Body,
		"created_at":    time.Now().UTC().Format(time.RFC3339Nano),
	}
	b.messages[ticketID] = append(b.messages[ticketID], msg)
	b.mu.Unlock()

	b.Push(ticketID, msg)
	return ctx.JSON(http.StatusCreated, msg)
}

func (b *Backend) socket(ctx echo.Context) error {
	ticketID := ctx.QueryParam("ticket")
	if _, err := strconv.Atoi(ticketID); err != nil {
		return ctx.JSON(http.StatusBadRequest, echo.Map{"ticket": "invalid ticket"})
	}
	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return nil
	}
	sc := &socketConn{conn: conn}

	b.mu.RLock()
	snapshot := make([]listing.Record, 0, len(b.messages[ticketID]))
	for _, m := range b.messages[ticketID] {
		snapshot = append(snapshot, m.Copy())
	}
	b.mu.RUnlock()
	if err = sc.write(SocketEvent{Type: "snapshot", Messages: snapshot}); err != nil {
		_ = conn.Close()
		return nil
	}

	b.hubMu.Lock()
	b.hub[ticketID] = append(b.hub[ticketID], sc)
	b.hubMu.Unlock()

	// block until the client goes away
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}

	b.hubMu.Lock()
	conns := b.hub[ticketID]
	for i, c := range conns {
		if c == sc {
			b.hub[ticketID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	b.hubMu.Unlock()
	_ = conn.Close()
	return nil
}

func (b *Backend) broadcast(ticketID string, evt SocketEvent) {
	b.hubMu.Lock()
	conns := append([]*socketConn(nil), b.hub[ticketID]...)
	b.hubMu.Unlock()

	for _, sc := range conns {
		_ = sc.write(evt)
	}
}

func (sc *socketConn) write(evt SocketEvent) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.conn.WriteJSON(evt)
}
