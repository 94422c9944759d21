// Package identity resolves the Argo CD user behind each request and the
// chat panel the request addresses.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/argocd"
	"github.com/gopaljayanthi/argocd-ui-extension/internal/domain"
	"github.com/patrickmn/go-cache"
)

const (
	// TokenCookieName is the cookie the Argo CD UI stores its session token in.
	TokenCookieName = "argocd.token"
	// PanelHeaderName lets one browser keep several independent panels.
	PanelHeaderName = "X-Chat-Panel-ID"
	// DefaultPanelIDValue is used when a request names no panel.
	DefaultPanelIDValue = "default"

	userCacheTTL = 5 * time.Minute
)

type contextKey int

const (
	userKey contextKey = iota
	panelIDKey
)

var panelIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// UserResolver looks up the user owning the token carried by ctx.
type UserResolver interface {
	UserInfo(ctx context.Context) (*domain.User, error)
}

// UserFromContext returns the resolved user, or a placeholder user.
func UserFromContext(ctx context.Context) domain.User {
	if v, ok := ctx.Value(userKey).(domain.User); ok {
		return v
	}
	return domain.User{Username: domain.UnknownUsername}
}

// UsernameFromContext returns the resolved username.
func UsernameFromContext(ctx context.Context) string {
	user := UserFromContext(ctx)
	return user.DisplayName()
}

// PanelIDFromContext returns the panel the request addresses.
func PanelIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(panelIDKey).(string); ok {
		return v
	}
	return DefaultPanelIDValue
}

// WithUser stores user in ctx together with its token for downstream
// Argo CD calls.
func WithUser(ctx context.Context, user domain.User) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	if user.Token != "" {
		ctx = argocd.WithToken(ctx, user.Token)
	}
	return ctx
}

func sanitizePanelID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !panelIDPattern.MatchString(id) {
		return DefaultPanelIDValue
	}
	return id
}

func panelIDFromRequest(r *http.Request) string {
	id := r.Header.Get(PanelHeaderName)
	if id == "" {
		id = r.URL.Query().Get("panel_id")
	}
	return sanitizePanelID(id)
}

// TokenFromRequest returns the Argo CD token from the Authorization header
// or, failing that, the dashboard session cookie.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if tok, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(TokenCookieName); err == nil {
		return c.Value
	}
	return ""
}

// Authenticator memoizes token to user lookups.
type Authenticator struct {
	resolver UserResolver
	fallback string
	users    *cache.Cache
	logger   *slog.Logger
}

// NewAuthenticator creates an Authenticator. fallbackToken is used for
// requests that carry no token of their own.
func NewAuthenticator(resolver UserResolver, fallbackToken string, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		resolver: resolver,
		fallback: fallbackToken,
		users:    cache.New(userCacheTTL, 2*userCacheTTL),
		logger:   logger,
	}
}

func isUnauthorized(err error) bool {
	var statusErr *argocd.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden
	}
	return false
}

// ErrUnauthenticated is returned when the request carries no usable token.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrIdentityUnavailable is returned when Argo CD could not be asked who
// owns a token. The request is refused rather than served under a shared
// placeholder identity.
var ErrIdentityUnavailable = errors.New("identity provider unavailable")

// Resolve returns the user owning token. Only successful lookups are cached.
func (a *Authenticator) Resolve(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		token = a.fallback
	}
	if token == "" {
		return domain.User{}, ErrUnauthenticated
	}

	key := tokenKey(token)
	if v, ok := a.users.Get(key); ok {
		return v.(domain.User), nil
	}

	info, err := a.resolver.UserInfo(argocd.WithToken(ctx, token))
	if err != nil {
		if isUnauthorized(err) {
			return domain.User{}, ErrUnauthenticated
		}
		a.logger.Warn("Failed to resolve Argo CD user", "error", err)
		return domain.User{}, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}

	// Userinfo answers anonymous callers with no username. Serving them would
	// put every such token on the same placeholder panel.
	name := info.DisplayName()
	if name == domain.UnknownUsername {
		return domain.User{}, ErrUnauthenticated
	}

	user := domain.User{Username: name, Token: token}
	a.users.SetDefault(key, user)
	return user, nil
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Middleware injects the resolved user and the addressed panel ID.
func Middleware(auth *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.Resolve(r.Context(), TokenFromRequest(r))
			if errors.Is(err, ErrIdentityUnavailable) {
				writeError(w, http.StatusServiceUnavailable, "identity provider unavailable")
				return
			}
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = context.WithValue(ctx, panelIDKey, panelIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":%q}`, message)
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
