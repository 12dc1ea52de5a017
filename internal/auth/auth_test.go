package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthority(ttl time.Duration) *TokenAuthority {
	a := NewTokenAuthority("test-signing-key", ttl)
	a.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return a
}

func TestTokenRoundTrip(t *testing.T) {
	a := newTestAuthority(time.Hour)

	token := a.Issue("analyst@example.org")
	subject, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "analyst@example.org", subject)
}

func TestTokenExpiry(t *testing.T) {
	a := newTestAuthority(time.Hour)
	token := a.Issue("analyst")

	a.now = func() time.Time { return time.Unix(1_700_000_000, 0).Add(2 * time.Hour) }
	_, err := a.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenTampered(t *testing.T) {
	a := newTestAuthority(time.Hour)
	token := a.Issue("analyst")

	parts := strings.Split(token, ".")
	require.Len(t, parts, 4)

	t.Run("payload edit", func(t *testing.T) {
		forged := parts[0] + ".YWRtaW4." + parts[2] + "." + parts[3]
		_, err := a.Verify(forged)
		assert.ErrorIs(t, err, ErrTokenSignature)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := NewTokenAuthority("another-key", time.Hour)
		other.now = a.now
		_, err := other.Verify(token)
		assert.ErrorIs(t, err, ErrTokenSignature)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, tok := range []string{"", "v1", "v2.a.b.c", "not a token"} {
			_, err := a.Verify(tok)
			assert.ErrorIs(t, err, ErrTokenMalformed, "token %q", tok)
		}
	})
}

func TestRemoteVerifier(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantErr    error
		wantErrMsg string
	}{
		{name: "accepted", status: http.StatusOK},
		{name: "accepted no content", status: http.StatusNoContent},
		{name: "rejected", status: http.StatusUnauthorized, wantErr: ErrInvalidCredentials},
		{name: "forbidden", status: http.StatusForbidden, wantErr: ErrInvalidCredentials},
		{name: "upstream failure", status: http.StatusBadGateway, wantErrMsg: "status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			v := NewRemoteVerifier(srv.URL, time.Second)
			err := v.VerifyCredentials(context.Background(), "analyst", "s3cret")

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			default:
				require.NoError(t, err)
				assert.Equal(t, "analyst", got["username"])
				assert.Equal(t, "s3cret", got["password"])
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	a := newTestAuthority(time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seenSubject string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenSubject = Subject(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token passes through", func(t *testing.T) {
		seenSubject = ""
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
		req.Header.Set("Authorization", "Bearer "+a.Issue("analyst"))

		Middleware(a, true, logger)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "analyst", seenSubject)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)

		Middleware(a, true, logger)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad token rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
		req.Header.Set("Authorization", "Bearer garbage")

		Middleware(a, true, logger)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("disabled passes through", func(t *testing.T) {
		seenSubject = "stale"
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)

		Middleware(a, false, logger)(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, seenSubject)
	})
}
