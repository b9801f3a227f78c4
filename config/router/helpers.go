package router

import (
	"net/http"
	"strings"

	"github.com/akeren/event-referrals/internal/log"
)

// GetLogger returns the request-scoped logger injected by the router, or a
// fresh JSON logger tagged with the request's correlation id.
func GetLogger(ctx *RequestContext) *log.Logger {
	return log.GetLoggerInstanceFromContext(ctx.Request.Context(), nil)
}

func newResult(status int, data any, message string) *ServiceResult {
	return &ServiceResult{StatusCode: status, Data: data, Message: message}
}

func OKResult(data any, message string) *ServiceResult {
	return newResult(http.StatusOK, data, message)
}

// CreatedResult answers 201 with "<resourceName> created successfully".
func CreatedResult(data any, resourceName string) *ServiceResult {
	return newResult(http.StatusCreated, data, resourceName+" created successfully")
}

func TooManyRequestsResult(data RateLimitResponse) *ServiceResult {
	return newResult(http.StatusTooManyRequests, data, "Too Many Requests")
}

func BadRequestResult(message string, payload any) *ServiceResult {
	return newResult(http.StatusBadRequest, payload, message)
}

func NotFoundResult(message string) *ServiceResult {
	return newResult(http.StatusNotFound, nil, message)
}

func InternalServerErrorResult(message string) *ServiceResult {
	return newResult(http.StatusInternalServerError, nil, message)
}

func ErrorResult(statusCode int, message string, data any) *ServiceResult {
	return newResult(statusCode, data, message)
}

// RequestOrigin resolves the public origin used to build absolute links: the
// configured origin when set, else the Origin header, else scheme and host of
// the request itself.
func RequestOrigin(ctx *RequestContext, configured string) string {
	if origin := strings.TrimRight(strings.TrimSpace(configured), "/"); origin != "" {
		return origin
	}

	if origin := strings.TrimRight(strings.TrimSpace(ctx.GetHeader("Origin")), "/"); origin != "" && origin != "null" {
		return origin
	}

	scheme := "http"
	if isHTTPS(ctx) {
		scheme = "https"
	}

	return scheme + "://" + ctx.Request.Host
}

