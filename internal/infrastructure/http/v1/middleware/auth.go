package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"stevedore/internal/core/apperror"
	appctx "stevedore/internal/core/context"
)

// TokenValidator resolves a bearer token to an operator identity.
type TokenValidator interface {
	ValidateToken(tokenString string) (*appctx.OperatorContext, error)
}

// Auth middleware validates bearer tokens and populates the operator context.
// The engine never issues tokens; they come from the site's identity provider.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		operator, err := validator.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		ctx := appctx.WithOperator(c.Request.Context(), operator)
		c.Request = c.Request.WithContext(ctx)

		// Store in gin context for easy access
		c.Set("operator_id", operator.OperatorID)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}

// operatorClaims is the token payload the engine understands. Subject carries
// the operator ID.
type operatorClaims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// JWTValidator validates HS256-signed tokens with a shared secret.
type JWTValidator struct {
	secret []byte
	issuer string
}

// NewJWTValidator creates a validator. A non-empty issuer is enforced on
// every token.
func NewJWTValidator(secret, issuer string) *JWTValidator {
	return &JWTValidator{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// ValidateToken parses and verifies the token, returning the operator identity.
func (v *JWTValidator) ValidateToken(tokenString string) (*appctx.OperatorContext, error) {
	token, err := jwt.ParseWithClaims(tokenString, &operatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*operatorClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}

	return &appctx.OperatorContext{
		OperatorID: claims.Subject,
		Name:       claims.Name,
		Roles:      claims.Roles,
	}, nil
}
