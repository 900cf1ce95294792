// Package middleware provides the HTTP middleware shared by the API: authentication,
// request-scoped logging, rate limiting, metrics and tracing.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"socialhub/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	TokenIssuer   = "socialhub-api"
	TokenAudience = "socialhub-client"

	revokedTokenPrefix = "blacklist:"
)

// ErrTokenRevoked is returned for tokens that were explicitly logged out.
var ErrTokenRevoked = errors.New("token has been revoked")

// TokenClaims is the verified content of an access token.
type TokenClaims struct {
	UserID    uint
	Username  string
	JTI       string
	ExpiresAt time.Time
}

// JWTAuth issues and verifies HS256 access tokens. Revocation is stored in
// Redis when a client is configured.
type JWTAuth struct {
	secret []byte
	ttl    time.Duration
	redis  *redis.Client
	now    func() time.Time
}

func NewJWTAuth(secret string, ttl time.Duration, rdb *redis.Client) *JWTAuth {
	return &JWTAuth{secret: []byte(secret), ttl: ttl, redis: rdb, now: time.Now}
}

// IssueToken signs a new access token for the user.
func (a *JWTAuth) IssueToken(userID uint, username string) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      now.Add(a.ttl).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      generateJTI(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func generateJTI(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String()[:8])
}

// ParseToken verifies signature, issuer, audience and expiry, then checks the
// revocation list.
func (a *JWTAuth) ParseToken(ctx context.Context, tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, err
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, errors.New("invalid subject claim")
	}

	out := &TokenClaims{UserID: uint(userID)}
	out.Username, _ = claims["username"].(string)
	out.JTI, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	if out.JTI != "" && a.redis != nil {
		revoked, err := a.redis.Exists(ctx, revokedTokenPrefix+out.JTI).Result()
		if err != nil {
			Logger.WarnContext(ctx, "token revocation check failed", "error", err)
		} else if revoked > 0 {
			return nil, ErrTokenRevoked
		}
	}

	return out, nil
}

// Revoke blacklists the token until it would have expired anyway.
func (a *JWTAuth) Revoke(ctx context.Context, claims *TokenClaims) error {
	if a.redis == nil || claims == nil || claims.JTI == "" {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(a.now())
	if ttl <= 0 {
		return nil
	}
	return a.redis.Set(ctx, revokedTokenPrefix+claims.JTI, "1", ttl).Err()
}

// Required rejects requests without a valid bearer token and stores the
// caller in c.Locals("userID").
func (a *JWTAuth) Required() fiber.Handler {
	return a.handler(false)
}

// WebSocketRequired is Required for upgrade requests, which may pass the
// token as ?token= because browsers cannot set headers on websockets.
func (a *JWTAuth) WebSocketRequired() fiber.Handler {
	return a.handler(true)
}

// Optional records the caller when a valid token is present and never rejects.
func (a *JWTAuth) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString := bearerToken(c); tokenString != "" {
			if claims, err := a.ParseToken(c.UserContext(), tokenString); err == nil {
				setCaller(c, claims)
			}
		}
		return c.Next()
	}
}

func (a *JWTAuth) handler(allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" && allowQuery {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := a.ParseToken(c.UserContext(), tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		setCaller(c, claims)
		return c.Next()
	}
}

func setCaller(c *fiber.Ctx, claims *TokenClaims) {
	c.Locals("userID", claims.UserID)
	c.Locals("tokenClaims", claims)
	c.SetUserContext(WithUserID(c.UserContext(), claims.UserID))
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
