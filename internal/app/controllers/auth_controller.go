// Package controllers handles HTTP request handling
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/services"
	"github.com/yigit/scms/internal/middleware"
	"github.com/yigit/scms/internal/pkg/auth"
)

// AuthController handles authentication related operations
type AuthController struct {
	authService *services.AuthService
	logger      zerolog.Logger
}

// NewAuthController creates a new AuthController
func NewAuthController(authService *services.AuthService, logger zerolog.Logger) *AuthController {
	return &AuthController{
		authService: authService,
		logger:      logger,
	}
}

func tokenResponse(pair *auth.TokenPair) dto.TokenResponse {
	return dto.TokenResponse{
		Access:           pair.AccessToken,
		Refresh:          pair.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        pair.ExpiresIn,
		RefreshExpiresIn: pair.RefreshExpiresIn,
	}
}

// Register handles user registration
// @Summary Register a new user
// @Description Creates a user account. Student accounts get a student profile with a generated student number. Only one admin may exist.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "User registration information"
// @Success 201 {object} dto.APIResponse{data=dto.AuthResponse} "User registered"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req dto.RegisterRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	session, err := c.authService.Register(ctx.Request.Context(), &req)
	if err != nil {
		c.logger.Warn().Err(err).Str("username", req.Username).Msg("Registration failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, dto.NewSuccessResponse(dto.AuthResponse{
		Message: "User registered successfully",
		User:    dto.FromUser(session.User),
		Tokens:  tokenResponse(session.Tokens),
	}, "User registered successfully"))
}

// Login handles user login
// @Summary User login
// @Description Authenticates a user by username and password and returns a token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.AuthResponse} "Login successful"
// @Failure 400 {object} dto.ErrorResponse "Invalid credentials or disabled account"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req dto.LoginRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	session, err := c.authService.Login(ctx.Request.Context(), &req)
	if err != nil {
		c.logger.Warn().Err(err).Str("username", req.Username).Msg("Login failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.AuthResponse{
		Message: "Login successful",
		User:    dto.FromUser(session.User),
		Tokens:  tokenResponse(session.Tokens),
	}, "Login successful"))
}

// RefreshToken handles refresh token request
// @Summary Refresh access token
// @Description Exchanges a refresh token for a new token pair. The used refresh token is revoked.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.TokenResponse} "Token refreshed successfully"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 401 {object} dto.ErrorResponse "Invalid refresh token"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/token/refresh [post]
func (c *AuthController) RefreshToken(ctx *gin.Context) {
	var req dto.RefreshTokenRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	session, err := c.authService.RefreshToken(ctx.Request.Context(), req.Refresh)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Refresh token failed")
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(tokenResponse(session.Tokens), "Token refreshed successfully"))
}

// Logout revokes the caller's tokens
// @Summary Logout
// @Description Revokes the given refresh token and the access token used for the call
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.LogoutRequest false "Refresh token to revoke"
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse} "Successfully logged out"
// @Failure 400 {object} dto.ErrorResponse "Invalid token"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /auth/logout [post]
func (c *AuthController) Logout(ctx *gin.Context) {
	var req dto.LogoutRequest
	if !middleware.BindOptionalJSON(ctx, &req) {
		return
	}

	claims, ok := middleware.CurrentClaims(ctx)
	if !ok {
		errorDetail := dto.NewErrorDetail(dto.ErrorCodeUnauthorized, "Authentication required")
		ctx.JSON(http.StatusUnauthorized, dto.NewErrorResponse(errorDetail))
		return
	}

	if err := c.authService.Logout(ctx.Request.Context(), claims, req.Refresh); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SuccessResponse{Message: "Successfully logged out"}, "Successfully logged out"))
}
