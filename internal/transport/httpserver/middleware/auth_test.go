package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pedigree-chart-go/internal/config"
	userdomain "pedigree-chart-go/internal/domain/user"
	"pedigree-chart-go/pkg/logger"
)

type recordingProfiles struct {
	calls  []string
	owners map[string]string
	err    error
}

func (p *recordingProfiles) UpsertProfile(ctx context.Context, userID, nickname, email string) error {
	p.calls = append(p.calls, userID+":"+nickname)
	if p.err != nil {
		return p.err
	}
	if p.owners == nil {
		p.owners = make(map[string]string)
	}
	if owner, ok := p.owners[nickname]; ok && owner != userID {
		return userdomain.ErrNicknameTaken
	}
	p.owners[nickname] = userID
	return nil
}

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == "bad" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "id-" + token,
			"email": token + "@example.com",
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func whoAmI() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = w.Write([]byte(user.Nickname))
	})
}

func TestIdentityBearerAndCookie(t *testing.T) {
	server := newAuthServer(t)
	profiles := &recordingProfiles{}
	identity := NewIdentity(config.AuthConfig{
		URL:            server.URL,
		PublishableKey: "test-key",
		Timeout:        time.Second,
		CookieName:     "sb-access-token",
	}, profiles, logger.NewNop())
	handler := identity.Middleware(whoAmI())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer Alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "alice", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sb-access-token", Value: "bob"})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "bob", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "anonymous", rec.Body.String())

	assert.Equal(t, []string{"id-Alice:alice", "id-bob:bob"}, profiles.calls)
}

func TestIdentityNicknameClaimedByAnotherUser(t *testing.T) {
	server := newAuthServer(t)
	profiles := &recordingProfiles{}
	identity := NewIdentity(config.AuthConfig{
		URL:            server.URL,
		PublishableKey: "test-key",
		Timeout:        time.Second,
	}, profiles, logger.NewNop())
	handler := identity.Middleware(whoAmI())

	visit := func(token string) string {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Body.String()
	}

	assert.Equal(t, "alice", visit("alice"))
	// Same local part, different user id.
	assert.Equal(t, "anonymous", visit("Alice"))
	assert.Equal(t, "alice", visit("alice"))
	assert.Equal(t, []string{"id-alice:alice", "id-Alice:alice", "id-alice:alice"}, profiles.calls)
}

func TestIdentityProfileStoreDown(t *testing.T) {
	profiles := &recordingProfiles{err: errors.New("db down")}
	identity := NewIdentity(config.AuthConfig{SkipAuth: true, MockUserID: "u1", MockNickname: "dev"}, profiles, logger.NewNop())

	rec := httptest.NewRecorder()
	identity.Middleware(whoAmI()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestIdentityBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	identity := NewIdentity(config.AuthConfig{URL: server.URL, PublishableKey: "test-key"}, nil, logger.NewNop())
	handler := identity.Middleware(whoAmI())

	for i := 0; i < 8; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer alice")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, "anonymous", rec.Body.String())
	}
	assert.Equal(t, int32(5), hits.Load())
}

func TestIdentityRejectedTokensKeepBreakerClosed(t *testing.T) {
	server := newAuthServer(t)
	identity := NewIdentity(config.AuthConfig{URL: server.URL, PublishableKey: "test-key"}, nil, logger.NewNop())
	handler := identity.Middleware(whoAmI())

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bad")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer carol")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "carol", rec.Body.String())
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestIdentityVerifiesSignedTokens(t *testing.T) {
	identity := NewIdentity(config.AuthConfig{JWTSecret: "s3cret", CookieName: "sb-access-token"}, nil, logger.NewNop())
	handler := identity.Middleware(whoAmI())
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{
			name:  "valid",
			token: signToken(t, "s3cret", jwt.MapClaims{"sub": "u-1", "email": "Dana@example.com", "exp": exp}),
			want:  "dana",
		},
		{
			name:  "metadata nickname",
			token: signToken(t, "s3cret", jwt.MapClaims{"sub": "u-2", "email": "x@example.com", "exp": exp, "user_metadata": map[string]any{"user_name": "Eve"}}),
			want:  "eve",
		},
		{
			name:  "wrong secret",
			token: signToken(t, "other", jwt.MapClaims{"sub": "u-1", "email": "dana@example.com", "exp": exp}),
			want:  "anonymous",
		},
		{
			name:  "expired",
			token: signToken(t, "s3cret", jwt.MapClaims{"sub": "u-1", "email": "dana@example.com", "exp": time.Now().Add(-time.Hour).Unix()}),
			want:  "anonymous",
		},
		{
			name:  "no expiry",
			token: signToken(t, "s3cret", jwt.MapClaims{"sub": "u-1", "email": "dana@example.com"}),
			want:  "anonymous",
		},
		{
			name:  "garbage",
			token: "not-a-jwt",
			want:  "anonymous",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: "sb-access-token", Value: tt.token})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestIdentityMockUser(t *testing.T) {
	identity := NewIdentity(config.AuthConfig{SkipAuth: true, MockUserID: "u1", MockNickname: "dev"}, nil, logger.NewNop())
	rec := httptest.NewRecorder()
	identity.Middleware(whoAmI()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "dev", rec.Body.String())
}

func TestRequireUserRedirects(t *testing.T) {
	identity := NewIdentity(config.AuthConfig{LoginURL: "https://auth.example.com/login"}, nil, logger.NewNop())
	handler := identity.Middleware(identity.RequireUser(whoAmI()))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?x=1", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "auth.example.com", location.Host)
	assert.Equal(t, "/?x=1", location.Query().Get("redirect_to"))
}

func TestNickname(t *testing.T) {
	assert.Equal(t, "jdoe", Nickname("JDoe@example.com", nil))
	assert.Equal(t, "janed", Nickname("x@example.com", map[string]interface{}{"user_name": "JaneD"}))
	assert.Equal(t, "pref", Nickname("", map[string]interface{}{"preferred_username": "pref", "nickname": 3}))
	assert.Equal(t, "", Nickname("", nil))
}

func TestBearerToken(t *testing.T) {
	token, ok := bearerToken("bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
	_, ok = bearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = bearerToken("Bearer")
	assert.False(t, ok)
}
