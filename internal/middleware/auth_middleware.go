package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authz "github.com/yigit/scms/internal/app/auth"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/pkg/auth"
	"github.com/yigit/scms/internal/pkg/logger"
)

// Context keys set by JWTAuth
const (
	ContextUserID      = "userID"
	ContextUsername    = "username"
	ContextEmail       = "email"
	ContextRoleType    = "roleType"
	ContextIsSuperuser = "isSuperuser"
	ContextClaims      = "claims"
)

// RevocationChecker reports whether an access token id was revoked by a logout
type RevocationChecker interface {
	IsAccessRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthMiddleware for authentication and authorization
type AuthMiddleware struct {
	jwtService *auth.JWTService
	revoked    RevocationChecker
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtService *auth.JWTService, revoked RevocationChecker) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		revoked:    revoked,
	}
}

func abortUnauthorized(c *gin.Context, code dto.ErrorCode, message, details string) {
	errorDetail := dto.NewErrorDetail(code, message).WithDetails(details)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
}

// JWTAuth middleware for JWT token validation
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, dto.ErrorCodeUnauthorized, "Authentication required", "Authorization header missing")
			return
		}

		// Swagger UI sometimes sends the raw token without the scheme
		authHeader = strings.Trim(authHeader, "\"'")
		tokenString, err := auth.ExtractBearerToken(authHeader)
		if err != nil {
			abortUnauthorized(c, dto.ErrorCodeUnauthorized, "Authentication required", "Invalid token format")
			return
		}

		claims, err := m.jwtService.ValidateAndExtractClaims(tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				abortUnauthorized(c, dto.ErrorCodeExpiredToken, "Authentication failed", "Token has expired")
				return
			}
			abortUnauthorized(c, dto.ErrorCodeInvalidToken, "Authentication failed", "Invalid token")
			return
		}

		if m.revoked != nil {
			revoked, err := m.revoked.IsAccessRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				logger.Error().Err(err).Str("jti", claims.ID).Msg("Token revocation check failed")
				errorDetail := dto.NewErrorDetail(dto.ErrorCodeInternalServer, "Internal server error")
				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(errorDetail))
				return
			}
			if revoked {
				abortUnauthorized(c, dto.ErrorCodeInvalidToken, "Authentication failed", "Token has been revoked")
				return
			}
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRoleType, claims.RoleType)
		c.Set(ContextIsSuperuser, claims.IsSuperuser)
		c.Set(ContextClaims, claims)

		c.Next()
	}
}

// AdminRequired rejects callers that are neither admins nor superusers. It must run after JWTAuth.
func (m *AuthMiddleware) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserID); !exists {
			abortUnauthorized(c, dto.ErrorCodeUnauthorized, "Authentication required", "User information not found")
			return
		}

		if !CurrentActor(c).IsAdmin() {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeForbidden, "You do not have permission to perform this action")
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(errorDetail))
			return
		}

		c.Next()
	}
}

// CurrentActor builds the policy actor from the values JWTAuth stored on the context.
// An unauthenticated request yields the zero Actor.
func CurrentActor(c *gin.Context) authz.Actor {
	return authz.Actor{
		UserID:      c.GetInt64(ContextUserID),
		Username:    c.GetString(ContextUsername),
		Role:        models.RoleType(c.GetString(ContextRoleType)),
		IsSuperuser: c.GetBool(ContextIsSuperuser),
	}
}

// CurrentClaims returns the validated token claims of the request
func CurrentClaims(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}
