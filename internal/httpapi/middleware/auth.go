// Package middleware holds the gin middleware chain: auth bridge, CORS, and
// request logging, adapted from the teacher's http_middleware package.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/rlaxogns100-oss/uniroad-agent/internal/domain"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/ctxutil"
	"github.com/rlaxogns100-oss/uniroad-agent/internal/platform/logger"
)

// AuthMiddleware verifies bearer JWTs against the configured RSA public key
// and attaches the resulting domain.Principal to the request context (spec
// §6 "External Interfaces").
type AuthMiddleware struct {
	log       *logger.Logger
	publicKey interface{}
}

// NewAuthMiddleware parses publicKeyPEM once at startup. An empty PEM means
// auth is disabled (dev mode): RequireAuth then always rejects, matching the
// safer default, while OptionalAuth simply never attaches a principal.
func NewAuthMiddleware(log *logger.Logger, publicKeyPEM string) (*AuthMiddleware, error) {
	am := &AuthMiddleware{log: log.With("middleware", "Auth")}
	if strings.TrimSpace(publicKeyPEM) == "" {
		return am, nil
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, err
	}
	am.publicKey = key
	return am, nil
}

// RequireAuth rejects the request unless a valid bearer token is present,
// used for the session-management routes (spec §6).
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := am.principalFromRequest(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"}})
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// OptionalAuth attaches a principal when a valid token is present but never
// rejects the request, used for the anonymous-eligible chat stream route
// (spec §4.4, §6). The caller falls back to an IP-keyed principal when none
// was attached.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if principal, ok := am.principalFromRequest(c); ok {
			c.Request = c.Request.WithContext(ctxutil.WithPrincipal(c.Request.Context(), principal))
		}
		c.Next()
	}
}

func (am *AuthMiddleware) principalFromRequest(c *gin.Context) (domain.Principal, bool) {
	if am.publicKey == nil {
		return domain.Principal{}, false
	}
	raw := extractToken(c)
	if raw == "" {
		return domain.Principal{}, false
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return am.publicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil || !token.Valid {
		am.log.Debug("auth: token rejected", "error", errString(err))
		return domain.Principal{}, false
	}
	sub, _ := claims["sub"].(string)
	if strings.TrimSpace(sub) == "" {
		return domain.Principal{}, false
	}
	return domain.Principal{Kind: domain.PrincipalUser, ID: sub}, true
}

func extractToken(c *gin.Context) string {
	if q := c.Query("token"); q != "" {
		return q
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
