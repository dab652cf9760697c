package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"askcampus/internal/app"
	"askcampus/internal/metrics"
	"askcampus/internal/transport/http/response"
)

// QueryHandler serves the chat front end's semantic search. The route is
// unauthenticated; the collection slug is the capability.
type QueryHandler struct {
	queryService *app.QueryService
}

func NewQueryHandler(queryService *app.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

type QueryRequest struct {
	Slug  string `json:"slug" binding:"required"`
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	start := time.Now()
	results, err := h.queryService.Query(c.Request.Context(), req.Slug, req.Query, req.TopK)
	if err != nil {
		metrics.QueryDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		writeServiceError(c, err, "query failed")
		return
	}
	metrics.QueryDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	metrics.QueryResultsCount.Observe(float64(len(results)))

	response.OK(c, gin.H{"results": results})
}
