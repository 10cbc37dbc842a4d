package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type fakeVerifier struct {
	results map[string]*goIdentity.TokenResult
	err     error
	calls   int
}

func (f *fakeVerifier) VerifyToken(_ context.Context, token string) (*goIdentity.TokenResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res, ok := f.results[token]
	if !ok {
		return nil, goIdentity.ErrTokenMalformed
	}
	return res, nil
}

func identityHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := goIdentity.IdentityFromContext(r.Context())
		require.True(t, ok, "identity missing from context")
		_, ok = TokenResultFromContext(r.Context())
		require.True(t, ok, "token result missing from context")
		_, _ = fmt.Fprint(w, id.Username)
	})
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestRequireSession(t *testing.T) {
	v := &fakeVerifier{results: map[string]*goIdentity.TokenResult{
		"good":  {Identity: goIdentity.Identity{ID: "a1", Username: "alice", Verified: true}},
		"stale": {Identity: goIdentity.Identity{ID: "b1", Username: "bob", Verified: true}, RefreshedToken: "fresh"},
	}}
	h := RequireSession(v)(identityHandler(t))

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantBody    string
		wantRefresh string
	}{
		{name: "valid", header: "Bearer good", wantStatus: http.StatusOK, wantBody: "alice"},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK, wantBody: "alice"},
		{name: "refreshed", header: "Bearer stale", wantStatus: http.StatusOK, wantBody: "bob", wantRefresh: "fresh"},
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer   ", wantStatus: http.StatusUnauthorized},
		{name: "rejected token", header: "Bearer bad", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantRefresh, rec.Header().Get(DefaultRefreshHeader))
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			} else {
				body := decodeBody(t, rec)
				assert.False(t, body.Success)
				assert.NotEmpty(t, body.Message)
			}
		})
	}
}

func TestGuardServerErrorIsGeneric(t *testing.T) {
	v := &fakeVerifier{err: fmt.Errorf("redis exploded")}
	h := Guard(v)(identityHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeBody(t, rec).Message)
}

func TestGuardOptions(t *testing.T) {
	v := &fakeVerifier{results: map[string]*goIdentity.TokenResult{
		"stale": {Identity: goIdentity.Identity{ID: "b1", Username: "bob"}, RefreshedToken: "fresh"},
	}}

	var wrote error
	h := Guard(v,
		WithRefreshHeader("X-Token"),
		WithErrorWriter(func(w http.ResponseWriter, _ *http.Request, err error) {
			wrote = err
			w.WriteHeader(http.StatusTeapot)
		}),
	)(identityHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "fresh", rec.Header().Get("X-Token"))
	assert.Empty(t, rec.Header().Get(DefaultRefreshHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.ErrorIs(t, wrote, goIdentity.ErrUnauthorized)
}

func TestNilVerifier(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireSession(nil)(identityHandler(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(goIdentity.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(goIdentity.ErrInvalidOTP))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(goIdentity.ErrTokenExpired))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(goIdentity.ErrRateLimited))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("boom")))
}

func TestWriteErrorIncludesSuggestions(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("update: %w", &goIdentity.UsernameTakenError{Username: "bob", Suggestions: []string{"bob_1", "bob.2"}}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"bob_1", "bob.2"}, decodeBody(t, rec).Suggestions)
}
