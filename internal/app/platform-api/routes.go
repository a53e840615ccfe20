package platformapi

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	adminapplications "github.com/a8n-tools/platform/internal/http/handlers/admin/applications"
	"github.com/a8n-tools/platform/internal/http/handlers/admin/auditlogs"
	adminmemberships "github.com/a8n-tools/platform/internal/http/handlers/admin/memberships"
	"github.com/a8n-tools/platform/internal/http/handlers/admin/notifications"
	"github.com/a8n-tools/platform/internal/http/handlers/admin/stats"
	adminusers "github.com/a8n-tools/platform/internal/http/handlers/admin/users"
	appla "github.com/a8n-tools/platform/internal/http/handlers/application/launch"
	applist "github.com/a8n-tools/platform/internal/http/handlers/application/list"
	appread "github.com/a8n-tools/platform/internal/http/handlers/application/read"
	"github.com/a8n-tools/platform/internal/http/handlers/auth/login"
	"github.com/a8n-tools/platform/internal/http/handlers/auth/logout"
	"github.com/a8n-tools/platform/internal/http/handlers/auth/magiclink"
	"github.com/a8n-tools/platform/internal/http/handlers/auth/passwordreset"
	"github.com/a8n-tools/platform/internal/http/handlers/auth/refresh"
	"github.com/a8n-tools/platform/internal/http/handlers/auth/register"
	"github.com/a8n-tools/platform/internal/http/handlers/membership/cancel"
	"github.com/a8n-tools/platform/internal/http/handlers/membership/checkout"
	"github.com/a8n-tools/platform/internal/http/handlers/membership/current"
	"github.com/a8n-tools/platform/internal/http/handlers/membership/payments"
	"github.com/a8n-tools/platform/internal/http/handlers/membership/portal"
	"github.com/a8n-tools/platform/internal/http/handlers/user/me"
	"github.com/a8n-tools/platform/internal/http/handlers/webhook/stripewebhook"
	"github.com/a8n-tools/platform/internal/http/middlewarectx"
	libjwt "github.com/a8n-tools/platform/internal/lib/jwt"

	"github.com/a8n-tools/platform/internal/config"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, jwtMaker libjwt.Maker, svc Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
		middlewarectx.SecurityHeaders,
		middlewarectx.MetricsMiddleware,
	)

	cookies := middlewarectx.NewCookieWriter(cfg)

	r.Route("/v1", func(r chi.Router) {
		// Открытые конечные точки аутентификации с лимитом по IP
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, rate.Limit(5), 10))
			r.Post("/auth/register", register.New(logger, svc.Auth, cookies).ServeHTTP)
			r.Post("/auth/login", login.New(logger, svc.Auth, cookies).ServeHTTP)
			r.Post("/auth/refresh", refresh.New(logger, svc.Auth, cookies).ServeHTTP)
			r.Post("/auth/magic-link", magiclink.NewRequest(logger, svc.Auth).ServeHTTP)
			r.Post("/auth/magic-link/verify", magiclink.NewVerify(logger, svc.Auth, cookies).ServeHTTP)
			r.Post("/auth/password-reset", passwordreset.NewRequest(logger, svc.Auth).ServeHTTP)
			r.Post("/auth/password-reset/confirm", passwordreset.NewConfirm(logger, svc.Auth).ServeHTTP)
		})

		// Logout работает и с истекшим access-токеном
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.OptionalAuthMiddleware(jwtMaker))
			r.Post("/auth/logout", logout.New(logger, svc.Auth, cookies).ServeHTTP)
		})

		// Каталог публичный, но признак доступности зависит от пользователя
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.OptionalAuthMiddleware(jwtMaker))
			r.Get("/applications", applist.New(logger, svc.Application).ServeHTTP)
			r.Get("/applications/{slug}", appread.New(logger, svc.Application).ServeHTTP)
		})

		// Запуск приложений только для действующих подписчиков
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.MembershipMiddleware(logger))
			r.Get("/applications/{slug}/launch", appla.New(logger, svc.Application).ServeHTTP)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))

			r.Post("/auth/logout-all", logout.NewAll(logger, svc.Auth, cookies).ServeHTTP)

			r.Get("/me", me.New(logger, svc.Auth).ServeHTTP)
			r.Put("/me/password", me.NewPassword(logger, svc.Auth).ServeHTTP)
			r.Get("/me/sessions", me.NewSessions(logger, svc.Auth).ServeHTTP)
			r.Delete("/me/sessions/{id}", me.NewRevokeSession(logger, svc.Auth).ServeHTTP)

			r.Get("/membership", current.New(logger, svc.Membership).ServeHTTP)
			r.Post("/membership/checkout", checkout.New(logger, svc.Membership).ServeHTTP)
			r.Post("/membership/cancel", cancel.New(logger, svc.Membership).ServeHTTP)
			r.Post("/membership/cancel-now", cancel.NewNow(logger, svc.Membership).ServeHTTP)
			r.Post("/membership/reactivate", cancel.NewReactivate(logger, svc.Membership).ServeHTTP)
			r.Post("/membership/portal", portal.New(logger, svc.Membership).ServeHTTP)
			r.Get("/membership/payments", payments.New(logger, svc.Membership).ServeHTTP)
		})

		// Админка
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.AdminMiddleware(logger))

			usersHandler := adminusers.New(logger, svc.Admin)
			membershipsHandler := adminmemberships.New(logger, svc.Admin)
			applicationsHandler := adminapplications.New(logger, svc.Admin, svc.Application)
			notificationsHandler := notifications.New(logger, svc.Admin)

			r.Get("/admin/stats", stats.New(logger, svc.Admin).ServeHTTP)

			r.Get("/admin/users", usersHandler.List)
			r.Get("/admin/users/{id}", usersHandler.Get)
			r.Delete("/admin/users/{id}", usersHandler.Delete)
			r.Put("/admin/users/{id}/role", usersHandler.ChangeRole)
			r.Put("/admin/users/{id}/password", usersHandler.ResetPassword)
			r.Post("/admin/users/{id}/impersonate", usersHandler.Impersonate)

			r.Get("/admin/memberships", membershipsHandler.List)
			r.Post("/admin/users/{id}/membership", membershipsHandler.Grant)
			r.Delete("/admin/users/{id}/membership", membershipsHandler.Revoke)

			r.Get("/admin/applications", applicationsHandler.List)
			r.Put("/admin/applications/{slug}", applicationsHandler.Update)

			r.Get("/admin/audit-logs", auditlogs.New(logger, svc.Admin).ServeHTTP)

			r.Get("/admin/notifications", notificationsHandler.List)
			r.Post("/admin/notifications/{id}/read", notificationsHandler.MarkRead)
			r.Post("/admin/notifications/read-all", notificationsHandler.MarkAllRead)
		})

		// Webhook endpoint (без аутентификации)
		r.Post("/webhooks/stripe", stripewebhook.New(logger, svc.Billing, svc.Membership).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
