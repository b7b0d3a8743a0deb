package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ngshijun/clinic-inventory-manager/internal/auth"
	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// commitWriter persists the session before the first byte of the response so
// Set-Cookie headers land in the recorded result.
type commitWriter struct {
	http.ResponseWriter
	commit    func()
	committed bool
}

func (w *commitWriter) WriteHeader(code int) {
	w.flush()
	w.ResponseWriter.WriteHeader(code)
}

func (w *commitWriter) Write(b []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(b)
}

func (w *commitWriter) flush() {
	if w.committed {
		return
	}
	w.committed = true
	w.commit()
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestRouter(t *testing.T) (chi.Router, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sm := shared.NewSessionManager(client, "test_session", time.Hour, false)

	gate := auth.NewGate(map[auth.Role]string{
		auth.RoleAdmin: mustHash(t, "admin-secret"),
		auth.RoleStaff: mustHash(t, "staff-secret"),
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, gate, sm)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sm.Load(req.Context(), req)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(req.Context(), sess)
			cw := &commitWriter{ResponseWriter: w, commit: func() {
				require.NoError(t, sm.Commit(ctx, w, sess))
			}}
			next.ServeHTTP(cw, req.WithContext(ctx))
			cw.flush()
		})
	})
	r.Route("/auth", handler.MountRoutes)
	r.Group(func(r chi.Router) {
		r.Use(auth.Require)
		r.Get("/protected", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			r.Get("/admin-only", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		})
	})
	return r, sm
}

func login(t *testing.T, r chi.Router, password string) (*httptest.ResponseRecorder, []*http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"password":"`+password+`"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec, rec.Result().Cookies()
}

func TestGateResolvesSharedPasswordToAdmin(t *testing.T) {
	hash := mustHash(t, "same-secret")
	gate := auth.NewGate(map[auth.Role]string{
		auth.RoleAdmin: hash,
		auth.RoleStaff: hash,
	})

	role, err := gate.Authenticate(context.Background(), "same-secret")
	require.NoError(t, err)
	require.Equal(t, auth.RoleAdmin, role)

	_, err = gate.Authenticate(context.Background(), "nope")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginMatchesRole(t *testing.T) {
	r, _ := newTestRouter(t)

	rec, cookies := login(t, r, "staff-secret")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"role":"staff"`)
	require.NotEmpty(t, cookies)

	rec, _ = login(t, r, "admin-secret")
	require.Contains(t, rec.Body.String(), `"role":"admin"`)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	r, _ := newTestRouter(t)

	rec, _ := login(t, r, "wrong")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"password":""}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireBlocksAnonymous(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleEnforcesAdmin(t *testing.T) {
	r, _ := newTestRouter(t)

	_, staffCookies := login(t, r, "staff-secret")
	req := httptest.NewRequest(http.MethodGet, "/admin-only", nil)
	for _, c := range staffCookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	_, adminCookies := login(t, r, "admin-secret")
	req = httptest.NewRequest(http.MethodGet, "/admin-only", nil)
	for _, c := range adminCookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionEndpointAndLogout(t *testing.T) {
	r, _ := newTestRouter(t)

	_, cookies := login(t, r, "staff-secret")

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Contains(t, rec.Body.String(), `"authenticated":true`)

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// The same cookie no longer authenticates.
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
