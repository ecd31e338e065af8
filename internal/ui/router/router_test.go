package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReloader(t *testing.T) {
	rl := newReloader()
	r := chi.NewMux()
	r.Get("/reload", rl.wait)
	r.Get("/hotreload", rl.trigger)

	// first connection reloads immediately, then waits for a trigger
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reload", nil))
		done <- rec
	}()

	time.Sleep(20 * time.Millisecond)
	trig := httptest.NewRecorder()
	r.ServeHTTP(trig, httptest.NewRequest(http.MethodGet, "/hotreload", nil))
	assert.Equal(t, http.StatusNoContent, trig.Code)

	select {
	case rec := <-done:
		assert.Contains(t, rec.Body.String(), "window.location.reload()")
	case <-time.After(5 * time.Second):
		require.FailNow(t, "reload stream did not finish after trigger")
	}

	// triggers without a listener do not block
	for range 3 {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hotreload", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}
