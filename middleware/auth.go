package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"medicose-chatbot-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const identityKey = "identity"

// Claims is the token payload issued by the MediCose auth service.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticate resolves the caller identity from a Bearer token or the
// "token" query parameter (browsers cannot set headers on websockets).
// Missing or invalid tokens leave the request anonymous.
func Authenticate(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.Next()
			return
		}

		identity, err := ParseToken(token, key)
		if err != nil {
			log.Debug().Err(err).Str("path", c.FullPath()).Msg("ignoring invalid token")
			c.Next()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not one of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFrom(c)
		if identity.IsAuthenticated() {
			for _, role := range roles {
				if identity.Role == role {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	}
}

// IdentityFrom returns the identity set by Authenticate, or nil.
func IdentityFrom(c *gin.Context) *models.Identity {
	value, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := value.(*models.Identity)
	return identity
}

// ParseToken verifies an HS256 token and maps its claims to an identity.
func ParseToken(token string, secret []byte) (*models.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}

	identity := &models.Identity{
		UserID: claims.ID,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   models.NormalizeRole(claims.Role),
	}
	if !identity.IsAuthenticated() {
		return nil, errors.New("token carries no user id or email")
	}
	return identity, nil
}

// SignToken issues a token for the identity. Used by tests and local tooling.
func SignToken(identity *models.Identity, secret []byte, claims jwt.RegisteredClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:               identity.UserID,
		Email:            identity.Email,
		Name:             identity.Name,
		Role:             string(identity.Role),
		RegisteredClaims: claims,
	})
	return token.SignedString(secret)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
