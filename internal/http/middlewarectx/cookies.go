package middlewarectx

import (
	"net/http"
	"time"

	"github.com/a8n-tools/platform/internal/config"
)

// CookieWriter выставляет и очищает auth-cookies с настройками платформы.
type CookieWriter struct {
	domain     string
	secure     bool
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewCookieWriter создает CookieWriter из конфига.
func NewCookieWriter(cfg *config.Config) *CookieWriter {
	return &CookieWriter{
		domain:     cfg.App.CookieDomain,
		secure:     cfg.App.SecureCookies,
		accessTTL:  cfg.JWTToken.AccessTTL,
		refreshTTL: cfg.JWTToken.RefreshTTL,
	}
}

// SetAuthCookies выставляет access и refresh cookies. При remember=false
// refresh cookie живет до закрытия браузера, серверная сессия при этом
// сохраняет свой срок.
func (c *CookieWriter) SetAuthCookies(w http.ResponseWriter, accessToken, refreshToken string, remember bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   int(c.accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})

	refreshCookie := &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    refreshToken,
		Path:     "/",
		Domain:   c.domain,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		refreshCookie.MaxAge = int(c.refreshTTL.Seconds())
	}
	http.SetCookie(w, refreshCookie)
}

// ClearAuthCookies удаляет обе auth-cookies.
func (c *CookieWriter) ClearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   c.domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
