package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/3run4/stampcard/utils"
)

const (
	// ContextSessionIDKey is the key used to store the session id in Gin context.
	ContextSessionIDKey = "session_id"
	// ContextRoleKey stores the session role inside Gin context.
	ContextRoleKey = "role"
)

// AuthRequired ensures the request carries a valid bearer token for the given role.
// The token only names a server-side session; handlers look the session up themselves.
func AuthRequired(issuer *utils.TokenIssuer, role string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			ctx.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			ctx.Abort()
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
			ctx.Abort()
			return
		}

		claims, err := issuer.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}
		if claims.Role != role {
			utils.Error(ctx, http.StatusForbidden, 40301, "token not valid for this area")
			ctx.Abort()
			return
		}

		ctx.Set(ContextSessionIDKey, claims.SessionID)
		ctx.Set(ContextRoleKey, claims.Role)
		ctx.Next()
	}
}

// SessionID returns the session id stored by AuthRequired.
func SessionID(ctx *gin.Context) string {
	return ctx.GetString(ContextSessionIDKey)
}
