package middlewares

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftfiles/internal/server/api"
	"github.com/openmined/syftfiles/internal/server/auth"
)

const (
	bearerPrefix    = "Bearer "
	authHeader      = "Authorization"
	userContextKey  = "user"
	scopeContextKey = "scope"
)

// JWTAuth validates the bearer token of every request. Requests that change
// state need a write scoped token.
func JWTAuth(authService *auth.AuthService) gin.HandlerFunc {
	if !authService.IsEnabled() {
		slog.Info("auth middleware disabled")
		return func(ctx *gin.Context) {
			ctx.Next()
		}
	}
	slog.Info("auth middleware enabled")
	return func(ctx *gin.Context) {
		authHeaderValue := ctx.GetHeader(authHeader)
		if authHeaderValue == "" {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized,
				errors.New("Authorization header is missing"))
			return
		}

		if !strings.HasPrefix(authHeaderValue, bearerPrefix) {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized,
				errors.New("Authorization header format must be Bearer {token}"))
			return
		}

		tokenString := strings.TrimPrefix(authHeaderValue, bearerPrefix)
		claims, err := authService.ValidateAccessToken(ctx, tokenString)
		if err != nil {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized, err)
			return
		}

		if !claims.Scope.Allows(requiredScope(ctx.Request.Method)) {
			api.AbortWithError(ctx, http.StatusForbidden, api.CodeUnauthorized,
				errors.New("token is not allowed to write"))
			return
		}

		ctx.Set(userContextKey, claims.Subject)
		ctx.Set(scopeContextKey, claims.Scope)
		ctx.Next()
	}
}

// User returns the subject of the validated token, if any.
func User(ctx *gin.Context) string {
	return ctx.GetString(userContextKey)
}

func requiredScope(method string) auth.Scope {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return auth.ScopeRead
	default:
		return auth.ScopeWrite
	}
}
