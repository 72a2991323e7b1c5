package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/netlog/internal/netlog"
)

// errorResponse is the JSON envelope for every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "expired", "forbidden":
		return http.StatusForbidden
	case "validation_failed":
		return http.StatusBadRequest
	case "store_unavailable":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError aborts the request with the envelope for err.
func writeError(c *gin.Context, err error) {
	kind := netlog.Kind(err)
	status := statusFor(kind)
	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: kind})
}

// badRequest aborts with a validation_failed envelope for malformed input.
func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg, Code: "validation_failed"})
}
