// Package features provides shared test utilities for dashboard feature tests.
package features

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/gridview/internal/config"
	"github.com/leapstack-labs/gridview/internal/grid"
	"github.com/leapstack-labs/gridview/internal/state"
	"github.com/leapstack-labs/gridview/internal/testutil"
	gridFeature "github.com/leapstack-labs/gridview/internal/ui/features/grid"
	"github.com/leapstack-labs/gridview/pkg/adapters/duckdb"
	"github.com/leapstack-labs/gridview/pkg/core"
)

// TestFixture holds all dependencies needed for dashboard handler tests.
type TestFixture struct {
	DB       *duckdb.Adapter
	Store    *state.SQLiteStore
	Registry *gridFeature.Registry
	Server   *httptest.Server

	// Client keeps the session cookie between requests.
	Client *http.Client
}

// SetupTestFixture serves the grid feature over an in-memory DuckDB with a
// quotes table of rows rows: Id 0..rows-1, Exchange alternating NYSE/LSE,
// Stock "S<id>", Price id*1.5-10.
func SetupTestFixture(t *testing.T, rows int) *TestFixture {
	t.Helper()
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)

	db := duckdb.New(logger)
	require.NoError(t, db.Connect(ctx, core.AdapterConfig{Path: ":memory:"}))
	require.NoError(t, db.Exec(ctx, `CREATE TABLE quotes (Id BIGINT, Exchange VARCHAR, Stock VARCHAR, Price DOUBLE)`))
	require.NoError(t, db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO quotes
		SELECT i, CASE WHEN i %% 2 = 0 THEN 'NYSE' ELSE 'LSE' END, concat('S', i), i * 1.5 - 10
		FROM range(%d) t(i)`, rows)))

	store, err := state.Open(":memory:")
	require.NoError(t, err)

	registry := gridFeature.NewRegistry(db, grid.Options{
		Viewport: config.ViewportConfig{Debounce: time.Millisecond, BufferPages: 0},
		Store:    store,
		Logger:   logger,
	})
	handlers := gridFeature.NewHandlers(db, registry, NewTestSessionStore(), logger, false)

	r := chi.NewMux()
	require.NoError(t, gridFeature.SetupRoutes(r, handlers))
	srv := httptest.NewServer(r)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		srv.Close()
		_ = registry.CloseAll()
		_ = store.Close()
		_ = db.Close()
	})

	return &TestFixture{
		DB:       db,
		Store:    store,
		Registry: registry,
		Server:   srv,
		Client:   &http.Client{Jar: jar, Timeout: 10 * time.Second},
	}
}

// Post sends signals as a datastar request and returns the response body.
func (f *TestFixture) Post(t *testing.T, path string, signals any) string {
	t.Helper()
	body, err := json.Marshal(signals)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, f.Server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Datastar-Request", "true")
	return f.do(t, req)
}

// Get returns the response body of a GET request.
func (f *TestFixture) Get(t *testing.T, path string) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.Server.URL+path, nil)
	require.NoError(t, err)
	return f.do(t, req)
}

// Delete sends a DELETE request and returns the status code.
func (f *TestFixture) Delete(t *testing.T, path string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, f.Server.URL+path, nil)
	require.NoError(t, err)
	resp, err := f.Client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func (f *TestFixture) do(t *testing.T, req *http.Request) string {
	t.Helper()
	resp, err := f.Client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// ReadEvents opens an SSE stream and returns the data lines of the first
// event whose data contains want.
func (f *TestFixture) ReadEvents(t *testing.T, path, want string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Server.URL+path, nil)
	require.NoError(t, err)
	resp, err := f.Client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var event strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if strings.Contains(event.String(), want) {
				return event.String()
			}
			event.Reset()
			continue
		}
		event.WriteString(line)
		event.WriteString("\n")
	}
	require.Failf(t, "event not received", "no event containing %q: %v", want, scanner.Err())
	return ""
}

// DialWebsocket connects to a websocket endpoint with the client's cookies.
func (f *TestFixture) DialWebsocket(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.Server.URL, "http") + path
	dialer := websocket.Dialer{Jar: f.Client.Jar, HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() sessions.Store {
	return sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!"))
}
