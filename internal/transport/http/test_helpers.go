package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sickleconnect/server/internal/auth"
	"github.com/sickleconnect/server/internal/config"
	"github.com/sickleconnect/server/internal/core"
	"github.com/sickleconnect/server/internal/service/chat"
	"github.com/sickleconnect/server/internal/service/feed"
	"github.com/sickleconnect/server/internal/store"
	"github.com/sickleconnect/server/internal/store/sqlite"
)

type testEnv struct {
	ts       *httptest.Server
	store    store.Store
	registry *core.Registry
	auth     *auth.Service
}

// newTestEnv builds a full server over an in-memory store.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	disabledLogger := zerolog.New(nil)

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	registry := core.NewRegistry()
	broadcast := core.NewBroadcaster(registry, &disabledLogger)
	chatService := chat.New(st, broadcast, &disabledLogger)
	feedService := feed.New(st, broadcast, &disabledLogger)

	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		JWTSecret:         "test-secret",
		SendBuffer:        16,
	}

	server := NewServer(registry, broadcast, authService, chatService, feedService, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, registry: registry, auth: authService}
}

// registerTestUser registers a patient and returns the token and user.
func (e *testEnv) registerTestUser(t *testing.T, email, name string) (string, *store.User) {
	t.Helper()

	token, user, err := e.auth.Register(context.Background(), auth.Registration{
		Email:    email,
		Password: "password123",
		FullName: name,
		Role:     "patient",
		Genotype: "SS",
	})
	if err != nil {
		t.Fatalf("failed to register %s: %v", email, err)
	}
	return token, user
}
