package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/charlesng35/snippets/pkg/errors"
	"github.com/charlesng35/snippets/pkg/logger"
)

// requestIDHeader mirrors the header set by the request id middleware.
const requestIDHeader = "X-Request-ID"

// Response is the envelope used by every JSON endpoint except the raw
// plugin payloads.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// Meta describes pagination.
type Meta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

func Paginate(page, perPage int, total int64) *Meta {
	meta := &Meta{Page: page, PerPage: perPage, Total: int(total)}
	if perPage > 0 {
		meta.TotalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return meta
}

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
	})
}

func SuccessWithMeta(c *gin.Context, statusCode int, data interface{}, meta *Meta) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

// Error renders err through the envelope. Errors that are not AppErrors
// become a generic 500 and their text is only logged.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErrors.HTTPStatus(appErr)
	requestID := c.Writer.Header().Get(requestIDHeader)

	if status >= http.StatusInternalServerError {
		fields := []zap.Field{zap.Int("status", status), zap.String("code", appErr.Code)}
		if c.Request != nil {
			fields = append(fields, zap.String("path", c.Request.URL.Path))
		}
		if requestID != "" {
			fields = append(fields, zap.String("request_id", requestID))
		}
		if appErr.Internal != nil {
			fields = append(fields, zap.Error(appErr.Internal))
		}
		logger.WithModule("http").Error("request failed", fields...)
	}

	c.JSON(status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Fields:    appErr.Fields,
			RequestID: requestID,
		},
	})
}
