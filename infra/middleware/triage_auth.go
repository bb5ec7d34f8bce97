package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"complaint_triage/pkg/apperr"
	"complaint_triage/pkg/logger"
)

const revokedPrefix = "token:blacklist:"

// OperatorClaims are the claims carried by operator tokens.
type OperatorClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator validates HS256 operator tokens and checks revocation.
type Authenticator struct {
	secret []byte
	redis  *redis.Client
}

// NewAuthenticator creates an Authenticator. A nil redis client disables
// revocation checks.
func NewAuthenticator(secret string, client *redis.Client) *Authenticator {
	return &Authenticator{secret: []byte(secret), redis: client}
}

// Revoke blacklists a token id until expiry.
func (a *Authenticator) Revoke(ctx context.Context, tokenID string, expiry time.Duration) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Set(ctx, revokedPrefix+tokenID, "1", expiry).Err()
}

func (a *Authenticator) isRevoked(ctx context.Context, tokenID string) bool {
	if a.redis == nil || tokenID == "" {
		return false
	}
	n, err := a.redis.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		// Redis 장애 시 토큰 자체 검증만으로 통과
		logger.WithError(err).Warn("token revocation check failed")
		return false
	}
	return n > 0
}

// Parse validates a raw token and returns its claims.
func (a *Authenticator) Parse(tokenString string) (*OperatorClaims, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("JWT secret not configured")
	}

	claims := &OperatorClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unsupported signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(time.Minute),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("missing subject")
	}
	return claims, nil
}

// Middleware requires a valid bearer token and stores the operator id.
func (a *Authenticator) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			return apperr.Unauthorized("missing authorization")
		}

		claims, err := a.Parse(strings.TrimSpace(tokenString))
		if err != nil {
			logger.WithError(err).Warn("JWT validation failed")
			if errors.Is(err, jwt.ErrTokenExpired) {
				return apperr.InvalidToken("token expired")
			}
			return apperr.InvalidToken("invalid token")
		}

		if a.isRevoked(c.UserContext(), claims.ID) {
			return apperr.InvalidToken("token has been revoked")
		}

		c.Locals("operator", claims.Subject)
		c.Locals("operator_email", claims.Email)
		c.SetUserContext(logger.ContextWithUserID(c.UserContext(), claims.Subject))
		return c.Next()
	}
}
