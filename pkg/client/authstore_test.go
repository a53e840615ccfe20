package client

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userPayload() map[string]any {
	return map[string]any{
		"id":                "user-1",
		"email":             "user@example.com",
		"role":              "subscriber",
		"membership_status": "active",
	}
}

func TestAuthStore_LoginStoresUser(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/auth/login", r.URL.Path)
		writeSuccess(w, userPayload())
	}))
	store := NewAuthStore(c, nil)

	err := store.Login(context.Background(), "user@example.com", "password1234", false)

	require.NoError(t, err)
	snap := store.Snapshot()
	assert.True(t, snap.Authenticated)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Err)
	require.NotNil(t, snap.User)
	assert.Equal(t, "user@example.com", snap.User.Email)
}

func TestAuthStore_LoginFailureKeepsUnauthenticated(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	}))
	store := NewAuthStore(c, nil)

	err := store.Login(context.Background(), "user@example.com", "wrong", false)

	assert.Error(t, err)
	snap := store.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.User)
	assert.Equal(t, "Invalid email or password", snap.Err)
}

func TestAuthStore_LogoutClearsStateEvenWhenRemoteFails(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/login":
			writeSuccess(w, userPayload())
		case "/v1/auth/logout":
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
	}))
	persister := &memoryPersister{}
	store := NewAuthStore(c, persister)

	require.NoError(t, store.Login(context.Background(), "user@example.com", "password1234", false))
	require.True(t, persister.WasAuthenticated())

	err := store.Logout(context.Background())

	assert.Error(t, err)
	snap := store.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.User)
	assert.False(t, persister.WasAuthenticated())
}

func TestAuthStore_RefreshUserSkipsNetworkWhenUnauthenticated(t *testing.T) {
	var calls atomic.Int64
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeSuccess(w, userPayload())
	}))
	store := NewAuthStore(c, nil)

	err := store.RefreshUser(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(0), calls.Load())
	assert.False(t, store.Snapshot().Loading)
}

func TestAuthStore_RefreshUserClearsStateOnAuthError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/login":
			writeSuccess(w, userPayload())
		case "/v1/me":
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "session expired")
		}
	}))
	persister := &memoryPersister{}
	store := NewAuthStore(c, persister)

	require.NoError(t, store.Login(context.Background(), "user@example.com", "password1234", false))

	err := store.RefreshUser(context.Background())

	assert.Error(t, err)
	snap := store.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.User)
	assert.False(t, persister.WasAuthenticated())
}

func TestAuthStore_RefreshUserKeepsStateOnTransientError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/login":
			writeSuccess(w, userPayload())
		case "/v1/me":
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
	}))
	store := NewAuthStore(c, nil)

	require.NoError(t, store.Login(context.Background(), "user@example.com", "password1234", false))

	err := store.RefreshUser(context.Background())

	assert.Error(t, err)
	snap := store.Snapshot()
	assert.True(t, snap.Authenticated)
	require.NotNil(t, snap.User)
}

func TestAuthStore_BootstrapWithoutHintDoesNothing(t *testing.T) {
	var calls atomic.Int64
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeSuccess(w, userPayload())
	}))
	store := NewAuthStore(c, &memoryPersister{})

	store.Bootstrap(context.Background())

	assert.Equal(t, int64(0), calls.Load())
	assert.False(t, store.Snapshot().Authenticated)
}

func TestAuthStore_BootstrapRestoresSession(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/auth/refresh", r.URL.Path)
		writeSuccess(w, userPayload())
	}))
	persister := &memoryPersister{}
	persister.SetAuthenticated(true)
	store := NewAuthStore(c, persister)

	store.Bootstrap(context.Background())

	snap := store.Snapshot()
	assert.True(t, snap.Authenticated)
	require.NotNil(t, snap.User)
	assert.Equal(t, "user-1", snap.User.ID)
}

func TestAuthStore_BootstrapClearsHintOnFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no session")
	}))
	persister := &memoryPersister{}
	persister.SetAuthenticated(true)
	store := NewAuthStore(c, persister)

	store.Bootstrap(context.Background())

	assert.False(t, persister.WasAuthenticated())
	assert.False(t, store.Snapshot().Authenticated)
}
