package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"askcampus/internal/app"
	"askcampus/internal/metrics"
	"askcampus/internal/pkg/qaimport"
	"askcampus/internal/transport/http/middleware"
	"askcampus/internal/transport/http/response"
)

type CollectionHandler struct {
	collectionService *app.CollectionService
	qaService         *app.QAService
}

func NewCollectionHandler(collectionService *app.CollectionService, qaService *app.QAService) *CollectionHandler {
	return &CollectionHandler{collectionService: collectionService, qaService: qaService}
}

func (h *CollectionHandler) List(c *gin.Context) {
	collections, err := h.collectionService.List(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		writeServiceError(c, err, "list collections failed")
		return
	}
	response.OK(c, collections)
}

func (h *CollectionHandler) Create(c *gin.Context) {
	var req app.CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	collection, err := h.collectionService.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		writeServiceError(c, err, "create collection failed")
		return
	}
	response.OK(c, collection)
}

func (h *CollectionHandler) Get(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collection id")
		return
	}
	collection, err := h.collectionService.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		writeServiceError(c, err, "fetch collection failed")
		return
	}
	response.OK(c, collection)
}

func (h *CollectionHandler) Update(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collection id")
		return
	}
	var req app.UpdateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	collection, err := h.collectionService.Update(c.Request.Context(), middleware.CurrentUser(c), id, req)
	if err != nil {
		writeServiceError(c, err, "update collection failed")
		return
	}
	response.OK(c, collection)
}

func (h *CollectionHandler) Delete(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collection id")
		return
	}
	if err := h.collectionService.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		writeServiceError(c, err, "delete collection failed")
		return
	}
	response.OK(c, nil)
}

func (h *CollectionHandler) ReplaceManagers(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collection id")
		return
	}
	var req ReplaceManagersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	collection, err := h.collectionService.ReplaceManagers(c.Request.Context(), middleware.CurrentUser(c), id, req.UserIDs)
	if err != nil {
		writeServiceError(c, err, "replace managers failed")
		return
	}
	response.OK(c, collection)
}

func (h *CollectionHandler) ListQAs(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collection id")
		return
	}
	qas, err := h.qaService.List(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		writeServiceError(c, err, "list qas failed")
		return
	}
	response.OK(c, qas)
}

func (h *CollectionHandler) CreateQA(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collection id")
		return
	}
	var req app.NewQA
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	qa, err := h.qaService.Create(c.Request.Context(), middleware.CurrentUser(c), id, req)
	if err != nil {
		writeServiceError(c, err, "create qa failed")
		return
	}
	metrics.VectorizedDocuments.Inc()
	response.OK(c, qa)
}

// ImportQAs accepts a multipart upload under the form field "file"; the
// extension decides the parser.
func (h *CollectionHandler) ImportQAs(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collection id")
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing upload file")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "open upload file failed")
		return
	}
	defer file.Close()

	rows, err := qaimport.Parse(fileHeader.Filename, file)
	if err != nil {
		writeServiceError(c, err, "parse import file failed")
		return
	}

	entries := make([]app.NewQA, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, app.NewQA{
			Question: row.Question,
			Answer:   row.Answer,
			Alias:    row.Alias,
			Source:   fileHeader.Filename,
		})
	}
	imported, err := h.qaService.Import(c.Request.Context(), middleware.CurrentUser(c), id, entries)
	if err != nil {
		writeServiceError(c, err, "import qas failed")
		return
	}
	metrics.VectorizedDocuments.Add(float64(imported))
	response.OK(c, gin.H{"imported": imported})
}

type ReconcileRequest struct {
	Original []app.RowSnapshot `json:"original"`
	Edited   []app.RowSnapshot `json:"edited"`
}

func (h *CollectionHandler) Reconcile(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collection id")
		return
	}
	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.qaService.Reconcile(c.Request.Context(), middleware.CurrentUser(c), id, req.Original, req.Edited)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		writeServiceError(c, err, "reconcile failed")
		return
	}
	metrics.ReconcileRuns.WithLabelValues("ok").Inc()
	metrics.ReconcileRowsChanged.WithLabelValues("remove").Add(float64(result.Removed))
	metrics.ReconcileRowsChanged.WithLabelValues("update").Add(float64(result.Updated))
	metrics.ReconcileRowsChanged.WithLabelValues("delete").Add(float64(result.Deleted))
	metrics.ReconcileRowsChanged.WithLabelValues("add").Add(float64(result.Added))
	metrics.VectorizedDocuments.Add(float64(result.Added))
	response.OK(c, result)
}

func (h *CollectionHandler) Analytics(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid collection id")
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	records, err := h.qaService.Analytics(c.Request.Context(), middleware.CurrentUser(c), id, limit)
	if err != nil {
		writeServiceError(c, err, "fetch analytics failed")
		return
	}
	response.OK(c, records)
}

func (h *CollectionHandler) DeleteQA(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid qa id")
		return
	}
	if err := h.qaService.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		writeServiceError(c, err, "delete qa failed")
		return
	}
	response.OK(c, nil)
}
