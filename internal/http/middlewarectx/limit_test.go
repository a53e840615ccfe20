package middlewarectx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"203.0.113.7:51423", "203.0.113.7"},
		{"203.0.113.7:40000", "203.0.113.7"},
		{"[2001:db8::1]:51423", "2001:db8::1"},
		{"203.0.113.7", "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.remoteAddr, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	newHandler := func() http.Handler {
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		return RateLimitMiddleware(newNoopLogger(), rate.Limit(1), 1)(next)
	}

	do := func(h http.Handler, remoteAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("same host shares bucket across connections", func(t *testing.T) {
		handler := newHandler()

		assert.Equal(t, http.StatusOK, do(handler, "203.0.113.7:50001"))
		assert.Equal(t, http.StatusTooManyRequests, do(handler, "203.0.113.7:50002"))
	})

	t.Run("different hosts limited independently", func(t *testing.T) {
		handler := newHandler()

		assert.Equal(t, http.StatusOK, do(handler, "203.0.113.7:50001"))
		assert.Equal(t, http.StatusOK, do(handler, "198.51.100.9:50001"))
	})
}
