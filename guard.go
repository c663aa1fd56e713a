package identity

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// DefaultCookieName is the session cookie the SPA client carries.
const DefaultCookieName = "token"

// ClaimsContextKey is where the guard stores verified claims on the
// request context.
const ClaimsContextKey = "claims"

var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the SessionClaims in the given context
func WithClaimsContext(ctx context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// ClaimsFromContext finds the claims from the context.
func ClaimsFromContext(ctx context.Context) (*SessionClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*SessionClaims)
	return raw, ok
}

// ClaimsFromFiber extracts verified claims stored by the guard middleware.
func ClaimsFromFiber(c *fiber.Ctx) (*SessionClaims, bool) {
	raw := c.Locals(ClaimsContextKey)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(*SessionClaims)
	return claims, ok
}

// AuthorizationGuard evaluates session claims against per-route predicates.
// An absent or unverifiable token is UNAUTHENTICATED; a verified caller
// failing a predicate is FORBIDDEN. The boundary keeps the two distinct.
type AuthorizationGuard struct {
	tokens     TokenService
	logger     Logger
	cookieName string
}

func NewAuthorizationGuard(tokens TokenService) *AuthorizationGuard {
	return &AuthorizationGuard{
		tokens:     tokens,
		logger:     defLogger{},
		cookieName: DefaultCookieName,
	}
}

func (g *AuthorizationGuard) WithLogger(logger Logger) *AuthorizationGuard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

func (g *AuthorizationGuard) WithCookieName(name string) *AuthorizationGuard {
	if name != "" {
		g.cookieName = name
	}
	return g
}

// Authenticate verifies the session artifact carried by the request,
// looking at the cookie first and the Authorization header second.
func (g *AuthorizationGuard) Authenticate(c *fiber.Ctx) (*SessionClaims, error) {
	raw := c.Cookies(g.cookieName)
	if raw == "" {
		raw = bearerToken(c.Get(fiber.HeaderAuthorization))
	}

	if raw == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := g.tokens.Validate(raw)
	if err != nil {
		g.logger.Debug("session validation failed: %v", err)
		return nil, ErrUnauthenticated
	}

	return claims, nil
}

// HasAnyRole is the role-membership predicate.
func HasAnyRole(claims *SessionClaims, allowed ...AccountRole) bool {
	if claims == nil {
		return false
	}
	return RoleIn(claims.Role(), allowed...)
}

// SubscriptionActive is the subscription predicate; admins bypass it.
func SubscriptionActive(claims *SessionClaims) bool {
	if claims == nil {
		return false
	}
	return claims.SubscriptionActive() || claims.Role() == RoleAdmin
}

// RequireAuthenticated admits any verified session.
func (g *AuthorizationGuard) RequireAuthenticated() fiber.Handler {
	return g.middleware(func(*SessionClaims) bool { return true })
}

// RequireRole admits verified sessions whose role is in the allowed set.
func (g *AuthorizationGuard) RequireRole(allowed ...AccountRole) fiber.Handler {
	return g.middleware(func(claims *SessionClaims) bool {
		return HasAnyRole(claims, allowed...)
	})
}

// RequireSubscription admits verified sessions with an active subscription
// or the admin role.
func (g *AuthorizationGuard) RequireSubscription() fiber.Handler {
	return g.middleware(SubscriptionActive)
}

func (g *AuthorizationGuard) middleware(allow func(*SessionClaims) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := g.Authenticate(c)
		if err != nil {
			return renderError(c, err)
		}

		if !allow(claims) {
			g.logger.Info("forbidden account=%s role=%s path=%s", claims.AccountID(), claims.Role(), c.Path())
			return renderError(c, ErrForbidden)
		}

		c.Locals(ClaimsContextKey, claims)
		c.SetUserContext(WithClaimsContext(c.UserContext(), claims))

		return c.Next()
	}
}

func bearerToken(header string) string {
	const scheme = "Bearer "
	if strings.HasPrefix(header, scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}
	return ""
}
