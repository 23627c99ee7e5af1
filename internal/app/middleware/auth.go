package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"

	"mutuelle/internal/app/config"
	"mutuelle/internal/app/ds"
	"mutuelle/internal/app/dto"
	"mutuelle/internal/app/role"
)

// Ключи контекста gin с данными пользователя
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

// Blacklist чёрный список отозванных токенов
type Blacklist interface {
	IsBlacklisted(ctx context.Context, jwtStr string) (bool, error)
}

type AuthMiddleware struct {
	Blacklist Blacklist
	Config    *config.Config
}

func NewAuthMiddleware(blacklist Blacklist, cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{
		Blacklist: blacklist,
		Config:    cfg,
	}
}

// BearerToken токен из заголовка Authorization без префикса
func BearerToken(gCtx *gin.Context) string {
	return strings.TrimSpace(strings.TrimPrefix(gCtx.GetHeader("Authorization"), "Bearer "))
}

// WithAuthCheck middleware для проверки авторизации с ролями
func (am *AuthMiddleware) WithAuthCheck(assignedRoles ...role.Role) gin.HandlerFunc {
	return func(gCtx *gin.Context) {
		jwtStr := BearerToken(gCtx)
		if jwtStr == "" {
			abort(gCtx, http.StatusUnauthorized, "требуется авторизация")
			return
		}

		blacklisted, err := am.Blacklist.IsBlacklisted(gCtx.Request.Context(), jwtStr)
		if err != nil {
			logrus.Errorf("blacklist check failed: %v", err)
			abort(gCtx, http.StatusUnauthorized, "не удалось проверить токен")
			return
		}
		if blacklisted {
			abort(gCtx, http.StatusUnauthorized, "токен отозван")
			return
		}

		claims, err := am.ParseToken(jwtStr)
		if err != nil {
			abort(gCtx, http.StatusUnauthorized, "недействительный токен")
			return
		}

		if len(assignedRoles) > 0 && !hasRequiredRole(claims.Role, assignedRoles) {
			abort(gCtx, http.StatusForbidden, "недостаточно прав")
			return
		}

		gCtx.Set(ContextUserID, claims.UserID)
		gCtx.Set(ContextUserRole, claims.Role)

		gCtx.Next()
	}
}

// ParseToken парсит и валидирует JWT токен
func (am *AuthMiddleware) ParseToken(tokenString string) (*ds.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ds.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(am.Config.JWT.Token), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ds.JWTClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}

func hasRequiredRole(userRole role.Role, requiredRoles []role.Role) bool {
	for _, requiredRole := range requiredRoles {
		if userRole == requiredRole {
			return true
		}
	}
	return false
}

func abort(gCtx *gin.Context, status int, message string) {
	gCtx.AbortWithStatusJSON(status, dto.ErrorResponse{Status: "fail", Message: message})
}
