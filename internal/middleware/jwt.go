package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/crucial707/licitasis/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type key string

const actorKey key = "actor"

// IssueToken signs a session token for user. The token's jti is a fresh session id that
// ties the LOGIN and LOGOUT audit events of one session together.
func IssueToken(secret []byte, user *models.User, ttl time.Duration) (string, *models.Actor, error) {
	now := time.Now()
	actor := &models.Actor{
		ID:         user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Permission: user.Permission,
		LoginTime:  now,
		SessionID:  uuid.NewString(),
	}

	claims := jwt.MapClaims{
		"user_id":    user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"permission": user.Permission,
		"login_time": now.Unix(),
		"jti":        actor.SessionID,
		"exp":        now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", nil, err
	}
	return signed, actor, nil
}

func JWTMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				jsonError(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

			if err != nil || !token.Valid {
				jsonError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				jsonError(w, "invalid token claims", http.StatusUnauthorized)
				return
			}
			actor, ok := actorFromClaims(claims)
			if !ok {
				jsonError(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func actorFromClaims(claims jwt.MapClaims) (*models.Actor, bool) {
	id, ok := claims["user_id"].(float64)
	if !ok {
		return nil, false
	}
	name, _ := claims["name"].(string)
	if name == "" {
		return nil, false
	}
	actor := &models.Actor{ID: int(id), Name: name}
	actor.Email, _ = claims["email"].(string)
	actor.Permission, _ = claims["permission"].(string)
	actor.SessionID, _ = claims["jti"].(string)
	if lt, ok := claims["login_time"].(float64); ok {
		actor.LoginTime = time.Unix(int64(lt), 0)
	}
	return actor, true
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor *models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the session actor set by JWTMiddleware.
func ActorFromContext(ctx context.Context) (*models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(*models.Actor)
	return actor, ok && actor != nil
}

// GetUserID returns the id of the session actor.
func GetUserID(ctx context.Context) (int, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return 0, false
	}
	return actor.ID, true
}
