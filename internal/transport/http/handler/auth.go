package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"askcampus/internal/app"
	"askcampus/internal/transport/http/middleware"
	"askcampus/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=128"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(c, err, "login failed")
		return
	}

	response.OK(c, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"name":     user.Name,
			"role":     user.Role,
		},
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	if actor == nil {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not found in token")
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), actor.ID)
	if err != nil {
		writeServiceError(c, err, "fetch current user failed")
		return
	}

	response.OK(c, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"name":     user.Name,
		"role":     user.Role,
	})
}
