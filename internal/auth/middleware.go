package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/procurement-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	Username string
	Role     string
}

// AuthMiddleware validates bearer tokens.
type AuthMiddleware struct {
	tokens   *TokenManager
	operator string
}

// NewAuthMiddleware constructs middleware that accepts tokens issued to operator.
func NewAuthMiddleware(tokens *TokenManager, operator string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, operator: operator}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	// tokens for a renamed operator stop working
	if claims.SubjectID != m.operator {
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(principalKey, &Principal{Username: claims.SubjectID, Role: claims.Role})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
