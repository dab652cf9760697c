package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"askcampus/internal/app"
	"askcampus/internal/transport/http/middleware"
	"askcampus/internal/transport/http/response"
)

// UserHandler exposes the admin-only account management endpoints.
type UserHandler struct {
	authService *app.AuthService
}

func NewUserHandler(authService *app.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.authService.ListUsers(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		writeServiceError(c, err, "list users failed")
		return
	}
	response.OK(c, users)
}

func (h *UserHandler) Create(c *gin.Context) {
	var req app.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	user, err := h.authService.CreateUser(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		writeServiceError(c, err, "create user failed")
		return
	}
	response.OK(c, user)
}

func (h *UserHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid user id")
		return
	}
	var req app.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	user, err := h.authService.UpdateUser(c.Request.Context(), middleware.CurrentUser(c), id, req)
	if err != nil {
		writeServiceError(c, err, "update user failed")
		return
	}
	response.OK(c, user)
}

func parseIDParam(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}
