package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"askcampus/internal/app"
	"askcampus/internal/transport/http/middleware"
	"askcampus/internal/transport/http/response"
)

type KnowledgeBaseHandler struct {
	kbService *app.KnowledgeBaseService
}

func NewKnowledgeBaseHandler(kbService *app.KnowledgeBaseService) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{kbService: kbService}
}

func (h *KnowledgeBaseHandler) List(c *gin.Context) {
	kbs, err := h.kbService.List(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		writeServiceError(c, err, "list knowledge bases failed")
		return
	}
	response.OK(c, kbs)
}

func (h *KnowledgeBaseHandler) Create(c *gin.Context) {
	var req app.CreateKBRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	kb, err := h.kbService.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		writeServiceError(c, err, "create knowledge base failed")
		return
	}
	response.OK(c, kb)
}

func (h *KnowledgeBaseHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid knowledge base id")
		return
	}
	kb, err := h.kbService.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		writeServiceError(c, err, "fetch knowledge base failed")
		return
	}
	response.OK(c, kb)
}

func (h *KnowledgeBaseHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid knowledge base id")
		return
	}
	var req app.UpdateKBRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	kb, err := h.kbService.Update(c.Request.Context(), middleware.CurrentUser(c), id, req)
	if err != nil {
		writeServiceError(c, err, "update knowledge base failed")
		return
	}
	response.OK(c, kb)
}

func (h *KnowledgeBaseHandler) Delete(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid knowledge base id")
		return
	}
	if err := h.kbService.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		writeServiceError(c, err, "delete knowledge base failed")
		return
	}
	response.OK(c, nil)
}

func (h *KnowledgeBaseHandler) ResetSlug(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid knowledge base id")
		return
	}
	kb, err := h.kbService.ResetSlug(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		writeServiceError(c, err, "reset slug failed")
		return
	}
	response.OK(c, kb)
}

type SyncKBRequest struct {
	Names []string `json:"names" binding:"required"`
}

func (h *KnowledgeBaseHandler) Sync(c *gin.Context) {
	var req SyncKBRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	created, err := h.kbService.Sync(c.Request.Context(), middleware.CurrentUser(c), req.Names)
	if err != nil {
		writeServiceError(c, err, "sync knowledge bases failed")
		return
	}
	response.OK(c, gin.H{"created": created})
}

type ReplaceManagersRequest struct {
	UserIDs []uint `json:"user_ids" binding:"required"`
}

func (h *KnowledgeBaseHandler) ReplaceManagers(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid knowledge base id")
		return
	}
	var req ReplaceManagersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	kb, err := h.kbService.ReplaceManagers(c.Request.Context(), middleware.CurrentUser(c), id, req.UserIDs)
	if err != nil {
		writeServiceError(c, err, "replace managers failed")
		return
	}
	response.OK(c, kb)
}

// PublicConfig is the unauthenticated lookup the chat page boots from.
func (h *KnowledgeBaseHandler) PublicConfig(c *gin.Context) {
	slug := c.Param("slug")
	cfg, err := h.kbService.PublicConfig(c.Request.Context(), slug)
	if err != nil {
		writeServiceError(c, err, "fetch knowledge base config failed")
		return
	}
	response.OK(c, cfg)
}
