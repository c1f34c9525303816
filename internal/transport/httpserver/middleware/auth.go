package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"
	"pedigree-chart-go/internal/config"
	userdomain "pedigree-chart-go/internal/domain/user"
	"pedigree-chart-go/pkg/logger"
)

// Identity resolves the signed-in user from a Supabase-style auth service.
// Anonymous requests pass through; RequireUser redirects them to login.
type Identity struct {
	baseURL    string
	apiKey     string
	jwtSecret  []byte
	cookieName string
	loginURL   string
	logoutURL  string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	profiles   ProfileSaver
	log        logger.Logger
	skipAuth   bool
	mockUser   User
}

type contextKey int

const userKey contextKey = iota

type userResponse struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Sub          string                 `json:"sub"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	User         struct {
		ID  string `json:"id"`
		Sub string `json:"sub"`
	} `json:"user"`
}

type User struct {
	ID       string
	Nickname string
	Email    string
}

type ProfileSaver interface {
	UpsertProfile(ctx context.Context, userID, nickname, email string) error
}

func NewIdentity(cfg config.AuthConfig, profiles ProfileSaver, log logger.Logger) *Identity {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Identity{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.PublishableKey,
		jwtSecret:  []byte(cfg.JWTSecret),
		cookieName: cfg.CookieName,
		loginURL:   cfg.LoginURL,
		logoutURL:  cfg.LogoutURL,
		client: &http.Client{
			Timeout: timeout,
		},
		breaker:  newBreaker(log),
		profiles: profiles,
		log:      log,
		skipAuth: cfg.SkipAuth,
		mockUser: User{
			ID:       strings.TrimSpace(cfg.MockUserID),
			Nickname: strings.TrimSpace(cfg.MockNickname),
			Email:    strings.TrimSpace(cfg.MockEmail),
		},
	}
}

// newBreaker opens after five consecutive auth service failures; requests are
// then treated as anonymous until it half-opens.
func newBreaker(log logger.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "auth",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("auth: circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

func (a *Identity) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := a.resolve(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		// Charts are addressed by nickname, so a user whose nickname is not
		// recorded against their own id is served as anonymous.
		if a.profiles != nil {
			if err := a.profiles.UpsertProfile(r.Context(), user.ID, user.Nickname, user.Email); err != nil {
				if errors.Is(err, userdomain.ErrNicknameTaken) {
					a.log.BusinessError("auth: nickname claimed by another user", err, "user_id", user.ID, "nickname", user.Nickname)
				} else {
					a.log.InternalError("auth: upsert profile failed", err, "user_id", user.ID)
				}
				next.ServeHTTP(w, r)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireUser redirects anonymous requests to the login page.
func (a *Identity) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Redirect(w, r, a.LoginURL(r), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Identity) LoginURL(r *http.Request) string {
	return withRedirect(a.loginURL, r.URL.RequestURI())
}

func (a *Identity) LogoutURL(r *http.Request) string {
	return withRedirect(a.logoutURL, r.URL.RequestURI())
}

func withRedirect(base, target string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	query := u.Query()
	query.Set("redirect_to", target)
	u.RawQuery = query.Encode()
	return u.String()
}

func (a *Identity) resolve(r *http.Request) (User, bool) {
	if a.skipAuth {
		user := a.mockUser
		if user.ID == "" || user.Nickname == "" {
			a.log.Warn("auth: mock user not configured")
			return User{}, false
		}
		return user, true
	}

	token, ok := a.token(r)
	if !ok {
		return User{}, false
	}
	if len(a.jwtSecret) > 0 {
		return a.verifyToken(token)
	}
	if a.baseURL == "" || a.apiKey == "" {
		return User{}, false
	}

	result, err := a.breaker.Execute(func() (interface{}, error) {
		return a.lookupUser(r.Context(), token)
	})
	if err != nil {
		a.log.Warn("auth: user lookup failed", "err", err)
		return User{}, false
	}
	user, _ := result.(User)
	return user, user.ID != ""
}

// lookupUser asks the auth service who owns token. A rejected token yields an
// empty user and no error so it does not count against the breaker.
func (a *Identity) lookupUser(ctx context.Context, token string) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return User{}, fmt.Errorf("auth service status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return User{}, nil
	}

	var payload userResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return User{}, nil
	}

	userID := firstNonEmpty(payload.ID, payload.Sub, payload.User.ID, payload.User.Sub)
	nickname := Nickname(payload.Email, payload.UserMetadata)
	if userID == "" || nickname == "" {
		return User{}, nil
	}

	return User{ID: userID, Nickname: nickname, Email: payload.Email}, nil
}

type tokenClaims struct {
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// verifyToken checks an HS256 access token signed with the project secret.
func (a *Identity) verifyToken(token string) (User, bool) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		a.log.Debug("auth: token rejected", "err", err)
		return User{}, false
	}

	nickname := Nickname(claims.Email, claims.UserMetadata)
	if claims.Subject == "" || nickname == "" {
		return User{}, false
	}
	return User{ID: claims.Subject, Nickname: nickname, Email: claims.Email}, true
}

func (a *Identity) token(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if a.cookieName == "" {
		return "", false
	}
	cookie, err := r.Cookie(a.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Nickname picks the owner name shown in chart URLs: a username from the
// metadata, falling back to the local part of the email.
func Nickname(email string, metadata map[string]interface{}) string {
	name := firstNonEmpty(
		stringFromMap(metadata, "user_name"),
		stringFromMap(metadata, "preferred_username"),
		stringFromMap(metadata, "nickname"),
	)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	return strings.ToLower(strings.TrimSpace(name))
}

func bearerToken(value string) (string, bool) {
	parts := strings.Fields(value)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFromContext(ctx context.Context) (User, bool) {
	value := ctx.Value(userKey)
	user, ok := value.(User)
	if !ok || user.ID == "" {
		return User{}, false
	}
	return user, true
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func stringFromMap(values map[string]interface{}, key string) string {
	if values == nil {
		return ""
	}
	value, ok := values[key]
	if !ok {
		return ""
	}
	parsed, ok := value.(string)
	if !ok {
		return ""
	}
	return parsed
}
