package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/outreach/internal/server/handlers"
	"github.com/iudanet/outreach/internal/server/jwt"
)

// TokenValidator проверяет access токен
type TokenValidator interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
}

// AuthMiddleware создает middleware для проверки JWT токена
func AuthMiddleware(logger *slog.Logger, tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "Missing Authorization header", "path", r.URL.Path)
				writeJSONError(w, http.StatusUnauthorized, "missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
				logger.WarnContext(r.Context(), "Invalid Authorization header format")
				writeJSONError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			claims, err := tokens.ValidateAccessToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "Invalid access token", "error", err)
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := handlers.WithUser(r.Context(), claims.UserID, claims.Username)

			logger.DebugContext(ctx, "User authenticated", "user_id", claims.UserID, "username", claims.Username)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
