package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeUsernameExists     = 40001
	CodeDuplicateName      = 40002
	CodeDuplicateSlug      = 40003
	CodeMissingColumn      = 40004
	CodeUnauthorized       = 40100
	CodeInvalidCredentials = 40101
	CodeForbidden          = 40300
	CodeForbiddenFields    = 40301
	CodeNotFound           = 40400
	CodeInternalServer     = 50000
	CodePartialFailure     = 50001
	CodeVectorUnavailable  = 50301
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// ErrorWithData is for failures that still carry a payload, like a partial
// reconciliation reporting which rows stayed unresolved.
func ErrorWithData(c *gin.Context, httpStatus, code int, message string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}
