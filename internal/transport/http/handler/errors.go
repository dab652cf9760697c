package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"askcampus/internal/app"
	"askcampus/internal/pkg/qaimport"
	"askcampus/internal/transport/http/response"
	"askcampus/internal/vectorstore"
)

// writeServiceError maps service-layer errors onto the response envelope.
// fallback is the message used for anything unexpected, so internal details
// never leak to clients.
func writeServiceError(c *gin.Context, err error, fallback string) {
	var partial *app.PartialFailureError
	var forbiddenFields *app.ForbiddenFieldsError
	var missingColumn *qaimport.MissingColumnError

	switch {
	case errors.As(err, &partial):
		response.ErrorWithData(c, http.StatusBadGateway, response.CodePartialFailure, partial.Error(), gin.H{
			"phase":   partial.Phase,
			"row_ids": partial.RowIDs,
		})
	case errors.As(err, &forbiddenFields):
		response.ErrorWithData(c, http.StatusForbidden, response.CodeForbiddenFields, forbiddenFields.Error(), gin.H{
			"fields": forbiddenFields.Fields,
		})
	case errors.As(err, &missingColumn):
		response.Error(c, http.StatusBadRequest, response.CodeMissingColumn, missingColumn.Error())
	case errors.Is(err, app.ErrInvalidCredential):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
	case errors.Is(err, app.ErrUsernameExists):
		response.Error(c, http.StatusBadRequest, response.CodeUsernameExists, err.Error())
	case errors.Is(err, app.ErrDuplicateSlug):
		response.Error(c, http.StatusBadRequest, response.CodeDuplicateSlug, err.Error())
	case errors.Is(err, app.ErrDuplicateName):
		response.Error(c, http.StatusBadRequest, response.CodeDuplicateName, err.Error())
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, qaimport.ErrInvalidFormat):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrForbidden):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	case errors.Is(err, app.ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, vectorstore.ErrUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeVectorUnavailable, "vector store unavailable")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
