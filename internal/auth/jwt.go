package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"protectbox/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const actorKey contextKey = "actor"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey string
	// DevHeaders accepts X-Actor-ID / X-Actor-Role / X-Actor-Regional
	// when the request carries no token.
	DevHeaders bool
}

// NewJWTConfig creates a new JWT config
func NewJWTConfig(secretKey string, devHeaders bool) *JWTConfig {
	if secretKey == "" {
		secretKey = "default-secret-key-change-in-production" // Default for development
	}
	return &JWTConfig{SecretKey: secretKey, DevHeaders: devHeaders}
}

// Claims are the token claims: sub is the actor ID
type Claims struct {
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	Regional string `json:"regional,omitempty"`
	jwt.RegisteredClaims
}

func knownRole(r model.Role) bool {
	switch r {
	case model.RoleNationalLead, model.RoleRegionalLead, model.RoleOfficial,
		model.RoleFiscal, model.RoleCaseOpener:
		return true
	}
	return false
}

// Issue signs a token for actor valid for ttl from now
func (c *JWTConfig) Issue(actor model.Actor, ttl time.Duration, now time.Time) (string, error) {
	if !knownRole(actor.Role) {
		return "", fmt.Errorf("%w: %s", ErrUnknownRole, actor.Role)
	}
	claims := Claims{
		Name:     actor.Name,
		Role:     string(actor.Role),
		Regional: actor.Regional,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.SecretKey))
}

// Parse verifies a token and returns the actor it names
func (c *JWTConfig) Parse(tokenString string) (model.Actor, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(c.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return model.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return model.Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	actor := model.Actor{
		ID:       claims.Subject,
		Name:     claims.Name,
		Role:     model.Role(claims.Role),
		Regional: claims.Regional,
	}
	if !knownRole(actor.Role) {
		return model.Actor{}, fmt.Errorf("%w: %s", ErrUnknownRole, claims.Role)
	}
	return actor, nil
}

// FromRequest resolves the actor of a request. The token is taken from the
// Authorization header or, for browser WebSocket clients, the token query
// parameter. found is false for anonymous requests.
func (c *JWTConfig) FromRequest(r *http.Request) (actor model.Actor, found bool, err error) {
	tokenString := r.URL.Query().Get("token")
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return model.Actor{}, false, fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
		}
		tokenString = parts[1]
	}
	if tokenString != "" {
		actor, err := c.Parse(tokenString)
		if err != nil {
			return model.Actor{}, false, err
		}
		return actor, true, nil
	}

	if c.DevHeaders {
		if id := r.Header.Get("X-Actor-ID"); id != "" {
			actor := model.Actor{
				ID:       id,
				Role:     model.Role(strings.ToUpper(r.Header.Get("X-Actor-Role"))),
				Regional: r.Header.Get("X-Actor-Regional"),
			}
			if !knownRole(actor.Role) {
				return model.Actor{}, false, fmt.Errorf("%w: %s", ErrUnknownRole, actor.Role)
			}
			return actor, true, nil
		}
	}
	return model.Actor{}, false, nil
}

// Middleware puts the request's actor, if any, in the context. Anonymous
// requests pass through; handlers that need an actor reject them.
func (c *JWTConfig) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, found, err := c.FromRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if found {
			r = r.WithContext(WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// WithActor stores actor in ctx
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom extracts the actor from context
func ActorFrom(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(model.Actor)
	return actor, ok
}
