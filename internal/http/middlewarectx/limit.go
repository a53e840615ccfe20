package middlewarectx

import (
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/a8n-tools/platform/internal/http/response"
)

// ClientIP возвращает IP клиента без эфемерного порта из RemoteAddr.
// Значение без порта возвращается как есть.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ipLimiters хранит отдельный лимитер на каждый IP-адрес.
type ipLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newIPLimiters(r rate.Limit, burst int) *ipLimiters {
	return &ipLimiters{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		burst:    burst,
	}
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.burst)
		l.limiters[ip] = limiter
	}
	return limiter
}

// RateLimitMiddleware ограничивает частоту запросов по IP. Используется
// на чувствительных маршрутах: вход, регистрация, magic link, сброс пароля.
func RateLimitMiddleware(log *slog.Logger, r rate.Limit, burst int) func(http.Handler) http.Handler {
	limiters := newIPLimiters(r, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ip := ClientIP(req)
			if !limiters.get(ip).Allow() {
				log.Warn("too many requests", slog.String("remote", ip))
				response.Err(w, req, http.StatusTooManyRequests, response.CodeRateLimited, "too many requests")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
