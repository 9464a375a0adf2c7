package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetgrid/fleetgrid/pkg/audit"
	"github.com/fleetgrid/fleetgrid/pkg/auth"
	"github.com/fleetgrid/fleetgrid/pkg/contextkeys"
)

// recorderLogger captures audit events for assertions.
type recorderLogger struct {
	events []*audit.Event
}

func (r *recorderLogger) Record(_ context.Context, event *audit.Event) {
	r.events = append(r.events, event)
}

func (r *recorderLogger) Close() error { return nil }

func newMockTokenManager(t *testing.T) (*auth.TokenManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return auth.NewTokenManager(db, nil), mock
}

func TestAuthMiddlewareHandler(t *testing.T) {
	t.Run("rejects request without authorization header", func(t *testing.T) {
		tm, _ := newMockTokenManager(t)
		mw := NewAuthMiddleware(tm, nil, false)
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"missing authorization header"}`, w.Body.String())
	})

	t.Run("allows anonymous request when optional", func(t *testing.T) {
		tm, _ := newMockTokenManager(t)
		mw := NewAuthMiddleware(tm, nil, true)
		handlerCalled := false
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
			assert.Nil(t, GetAuthContext(r))
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		assert.True(t, handlerCalled)
	})

	t.Run("rejects malformed authorization header", func(t *testing.T) {
		tm, _ := newMockTokenManager(t)
		mw := NewAuthMiddleware(tm, nil, false)
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		for _, header := range []string{"token123", "Basic dXNlcjpwYXNz", "Bearer"} {
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
			assert.JSONEq(t, `{"error":"invalid authorization header format"}`, w.Body.String())
		}
	})

	t.Run("attaches auth context for a valid token", func(t *testing.T) {
		tm, mock := newMockTokenManager(t)

		token, hash, prefix, err := auth.NewTokenGenerator().GenerateToken()
		require.NoError(t, err)

		mock.ExpectQuery("SELECT t.id, t.user_id").
			WithArgs(hash).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "user_id", "token_prefix", "name", "description",
				"expires_at", "last_used_at", "created_at",
				"id", "username", "email", "is_bot", "is_active",
			}).AddRow(
				int64(9), int64(1), prefix, "ci", "",
				nil, nil, time.Now(),
				int64(1), "robot", "", true, true,
			))
		mock.ExpectExec("UPDATE api_tokens SET last_used_at").
			WithArgs(int64(9)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mw := NewAuthMiddleware(tm, nil, false)
		handlerCalled := false
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
			authCtx := GetAuthContext(r)
			require.NotNil(t, authCtx)
			assert.Equal(t, int64(1), authCtx.User.ID)
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.True(t, handlerCalled)
	})

	t.Run("records an audit event for a bad token", func(t *testing.T) {
		tm, _ := newMockTokenManager(t)
		recorder := &recorderLogger{}
		mw := NewAuthMiddleware(tm, recorder, false)
		handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer not-a-real-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		require.Len(t, recorder.events, 1)
		assert.Equal(t, audit.EventTypeTokenValidateFail, recorder.events[0].EventType)
		assert.Equal(t, audit.EventStatusFailure, recorder.events[0].Status)
	})
}

func TestGetAuthContext(t *testing.T) {
	t.Run("returns auth context when present", func(t *testing.T) {
		expected := &auth.AuthContext{User: &auth.User{ID: 123}}
		ctx := contextkeys.WithAuth(context.Background(), expected)
		req := httptest.NewRequest("GET", "/test", nil).WithContext(ctx)

		assert.Same(t, expected, GetAuthContext(req))
	})

	t.Run("returns nil when absent", func(t *testing.T) {
		assert.Nil(t, GetAuthContext(httptest.NewRequest("GET", "/test", nil)))
	})

	t.Run("returns nil for wrong type", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), contextkeys.AuthKey, "wrong_type")
		req := httptest.NewRequest("GET", "/test", nil).WithContext(ctx)

		assert.Nil(t, GetAuthContext(req))
	})
}
