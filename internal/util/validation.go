package util

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/errors"
	"github.com/zfogg/paddock/internal/metrics"
	"github.com/zfogg/paddock/internal/validation"
)

// BindJSON decodes and validates the request body into dst. On failure it
// responds with VALIDATION_ERROR naming the first bad field, or BAD_REQUEST
// for malformed JSON, and returns false.
func BindJSON(c *gin.Context, dst interface{}) bool {
	return bindResult(c, c.ShouldBindJSON(dst), "invalid request body")
}

// BindQuery is BindJSON for query parameters. A value of the wrong type,
// such as season=abc, is a BAD_REQUEST.
func BindQuery(c *gin.Context, dst interface{}) bool {
	return bindResult(c, c.ShouldBindQuery(dst), "invalid query parameters")
}

func bindResult(c *gin.Context, err error, malformed string) bool {
	if err == nil {
		return true
	}
	if fe, ok := validation.FirstError(err); ok {
		metrics.Get().ValidationFailures.WithLabelValues(fe.Field).Inc()
		RespondWithAPIError(c, errors.ValidationError(fe.Field, fe.Message))
		return false
	}
	RespondWithAPIError(c, errors.BadRequest(malformed))
	return false
}
