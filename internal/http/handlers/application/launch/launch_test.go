package launch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/a8n-tools/platform/internal/http/middlewarectx"
	libjwt "github.com/a8n-tools/platform/internal/lib/jwt"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/application"
)

type CatalogMock struct {
	mock.Mock
}

func (m *CatalogMock) Get(ctx context.Context, slug string, status models.MembershipStatus) (*application.View, error) {
	args := m.Called(ctx, slug, status)
	view, _ := args.Get(0).(*application.View)
	return view, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func doLaunch(t *testing.T, catalog *CatalogMock, slug string) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.Get("/applications/{slug}/launch", New(newNoopLogger(), catalog).ServeHTTP)

	req := httptest.NewRequest(http.MethodGet, "/applications/"+slug+"/launch", nil)
	claims := &libjwt.CustomClaims{
		UserID:           "user-1",
		MembershipStatus: string(models.MembershipActive),
	}
	req = req.WithContext(context.WithValue(req.Context(), middlewarectx.Claims, claims))
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)
	return rec
}

func TestLaunchHandler_RedirectsToApplication(t *testing.T) {
	catalog := new(CatalogMock)
	catalog.On("Get", mock.Anything, "notes", models.MembershipActive).
		Return(&application.View{
			Slug:         "notes",
			IsAccessible: true,
			LaunchURL:    "https://notes.a8n.tools",
		}, nil).Once()

	rec := doLaunch(t, catalog, "notes")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://notes.a8n.tools", rec.Header().Get("Location"))
	catalog.AssertExpectations(t)
}

func TestLaunchHandler_ForbiddenWhenInaccessible(t *testing.T) {
	catalog := new(CatalogMock)
	catalog.On("Get", mock.Anything, "editor", models.MembershipActive).
		Return(&application.View{
			Slug:         "editor",
			IsAccessible: false,
			AccessReason: "under_maintenance",
		}, nil).Once()

	rec := doLaunch(t, catalog, "editor")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "under_maintenance")
}

func TestLaunchHandler_NotFound(t *testing.T) {
	catalog := new(CatalogMock)
	catalog.On("Get", mock.Anything, "ghost", models.MembershipActive).
		Return(nil, application.ErrNotFound).Once()

	rec := doLaunch(t, catalog, "ghost")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
