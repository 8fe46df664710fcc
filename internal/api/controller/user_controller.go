package controller

import (
	"net/http"
	"strings"

	"tictactoe-rooms/internal/api/models"
	"tictactoe-rooms/internal/api/response"
	"tictactoe-rooms/internal/api/service"

	"github.com/gin-gonic/gin"
)

// UserController handles user-related HTTP requests.
type UserController struct {
	userService service.UserService
}

// NewUserController creates a new UserController.
func NewUserController(userService service.UserService) *UserController {
	return &UserController{
		userService: userService,
	}
}

// Register handles the user registration endpoint.
func (uc *UserController) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	err := uc.userService.Register(c.Request.Context(), &req)
	if err != nil {
		response.ErrorResponse(c, http.StatusConflict, err.Error())
		return
	}

	response.SuccessResponse(c, gin.H{"message": "User created successfully"})
}

// Login handles the user login endpoint.
func (uc *UserController) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	token, err := uc.userService.Login(c.Request.Context(), &req)
	if err != nil {
		response.ErrorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	response.SuccessResponse(c, models.LoginResponse{Token: token})
}

// GuestLogin handles guest login, returning a generated player ID.
func (uc *UserController) GuestLogin(c *gin.Context) {
	playerID, err := uc.userService.GuestLogin(c.Request.Context())
	if err != nil {
		response.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.SuccessResponse(c, gin.H{"player_id": playerID})
}

// Profile returns the authenticated user's account details.
func (uc *UserController) Profile(c *gin.Context) {
	claims, ok := c.MustGet("claims").(*service.Claims)
	if !ok {
		response.ErrorResponse(c, http.StatusUnauthorized, "missing credentials")
		return
	}

	response.SuccessResponse(c, models.ProfileResponse{
		ID:       claims.UserID,
		Username: claims.Username,
	})
}

// AuthRequired parses the Bearer token and stores its claims on the context.
func (uc *UserController) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			response.ErrorResponse(c, http.StatusUnauthorized, "missing bearer token")
			c.Abort()
			return
		}

		claims, err := uc.userService.ParseToken(token)
		if err != nil {
			response.ErrorResponse(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}
