package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/services"
	"github.com/yigit/scms/internal/middleware"
)

// UserController handles the caller's own account and the user list
type UserController struct {
	userService services.UserService
}

// NewUserController creates a new user controller
func NewUserController(userService services.UserService) *UserController {
	return &UserController{
		userService: userService,
	}
}

// GetProfile returns the authenticated user's profile
// @Summary Get own profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse} "Profile retrieved"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "User not found"
// @Router /auth/profile [get]
func (c *UserController) GetProfile(ctx *gin.Context) {
	user, err := c.userService.GetUserByID(ctx.Request.Context(), middleware.CurrentActor(ctx).UserID)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.FromUser(user), ""))
}

// UpdateProfile updates the authenticated user's profile
// @Summary Update own profile
// @Description PUT and PATCH both apply only the fields present in the body
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse} "Profile updated"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /auth/profile [put]
// @Router /auth/profile [patch]
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	var req dto.UpdateProfileRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	user, err := c.userService.UpdateProfile(ctx.Request.Context(), middleware.CurrentActor(ctx), &req)
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.FromUser(user), "Profile updated successfully"))
}

// ChangePassword changes the authenticated user's password
// @Summary Change password
// @Description Verifies the old password, stores the new one and revokes outstanding refresh tokens
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.ChangePasswordRequest true "Passwords"
// @Success 200 {object} dto.APIResponse{data=dto.SuccessResponse} "Password changed"
// @Failure 400 {object} dto.ErrorResponse "Validation failed"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /auth/change-password [post]
func (c *UserController) ChangePassword(ctx *gin.Context) {
	var req dto.ChangePasswordRequest
	if !middleware.BindJSON(ctx, &req) {
		return
	}

	if err := c.userService.ChangePassword(ctx.Request.Context(), middleware.CurrentActor(ctx), &req); err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.SuccessResponse{Message: "Password changed successfully"}, "Password changed successfully"))
}

// ListUsers lists users
// @Summary List users
// @Description Admins see every user, other callers only themselves
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.ListResponse{results=[]dto.UserResponse}} "Users"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Router /auth/users [get]
func (c *UserController) ListUsers(ctx *gin.Context) {
	users, err := c.userService.ListUsers(ctx.Request.Context(), middleware.CurrentActor(ctx))
	if err != nil {
		middleware.HandleAPIError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse(dto.NewListResponse(dto.FromUsers(users)), ""))
}
