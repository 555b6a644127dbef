// Package response renders the JSON envelope shared by every API endpoint.
package response

import (
	"net/http"
	"strconv"

	deliverycontext "censo/internal/delivery/context"

	"github.com/labstack/echo/v4"
)

// HeaderContentChecksum carries the hex SHA256 of a downloaded document.
const HeaderContentChecksum = "X-Content-Sha256"

// SuccessResponse wraps every successful JSON payload.
type SuccessResponse struct {
	Data any       `json:"data"`
	Meta *MetaInfo `json:"meta"`
}

// ErrorResponse wraps every failure.
type ErrorResponse struct {
	Error *ErrorInfo `json:"error"`
	Meta  *MetaInfo  `json:"meta"`
}

// ErrorInfo contains detailed error information
type ErrorInfo struct {
	Code    string `json:"code"`              // e.g. "DUPLICATE_FAMILY"
	Message string `json:"message"`           // Spanish, shown to the interviewer
	Details any    `json:"details,omitempty"` // existing family, missing stages, field errors
}

// MetaInfo represents response metadata
type MetaInfo struct {
	RequestID string `json:"request_id"`
}

func meta(c echo.Context) *MetaInfo {
	return &MetaInfo{RequestID: deliverycontext.GetRequestID(c)}
}

// Success returns a successful response
func Success(c echo.Context, statusCode int, data any) error {
	return c.JSON(statusCode, SuccessResponse{Data: data, Meta: meta(c)})
}

// Versioned returns a successful response for a versioned resource, exposing the
// version as a strong ETag so the next write can send it back in If-Match.
func Versioned(c echo.Context, statusCode int, version int64, data any) error {
	c.Response().Header().Set(echo.HeaderETag, strconv.Quote(strconv.FormatInt(version, 10)))

	return Success(c, statusCode, data)
}

// Attachment streams a generated document as a download.
func Attachment(c echo.Context, fileName, contentType, checksum string, content []byte) error {
	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, `attachment; filename="`+fileName+`"`)
	if checksum != "" {
		header.Set(HeaderContentChecksum, checksum)
	}

	return c.Blob(http.StatusOK, contentType, content)
}

// Error returns an error response. Authentication and authorization failures never carry details.
func Error(c echo.Context, statusCode int, errorCode string, message string, details any) error {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		details = nil
	}

	return c.JSON(statusCode, ErrorResponse{
		Error: &ErrorInfo{
			Code:    errorCode,
			Message: message,
			Details: details,
		},
		Meta: meta(c),
	})
}

// BadRequestWithDetails returns a 400 error with details
func BadRequestWithDetails(c echo.Context, errorCode string, message string, details any) error {
	return Error(c, http.StatusBadRequest, errorCode, message, details)
}

// Unauthorized returns a 401 error
func Unauthorized(c echo.Context, errorCode string, message string) error {
	return Error(c, http.StatusUnauthorized, errorCode, message, nil)
}
