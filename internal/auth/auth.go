// Package auth verifies bearer tokens and exposes the caller's principal.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// PrincipalKey is the gin context key the verified principal is stored under.
const PrincipalKey = "principal"

var (
	ErrMissingToken = errors.New("missing or invalid authorization header")
	ErrNoPrincipal  = errors.New("token carries no principal")
)

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	secret []byte
	issuer string
	claim  string
}

// NewVerifier creates a verifier. claim names the token claim that holds the
// principal; issuer is checked when non-empty.
func NewVerifier(secret, issuer, claim string) *Verifier {
	if claim == "" {
		claim = "email"
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, claim: claim}
}

// Principal validates token and returns its principal claim.
func (v *Verifier) Principal(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("validate token: %w", err)
	}

	principal, ok := claims[v.claim].(string)
	if !ok || principal == "" {
		return "", ErrNoPrincipal
	}
	return principal, nil
}

// ExtractBearerToken returns the token from an Authorization header value.
func ExtractBearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// principal on the context.
func (v *Verifier) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		principal, err := v.Principal(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

// PrincipalFrom returns the principal RequireAuth stored on c.
func PrincipalFrom(c *gin.Context) (string, bool) {
	principal := c.GetString(PrincipalKey)
	return principal, principal != ""
}
