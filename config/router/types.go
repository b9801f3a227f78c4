package router

import (
	"github.com/gin-gonic/gin"
)

type RequestContext = gin.Context

type MiddlewareFunc = gin.HandlerFunc

// ServiceResult is the envelope every JSON endpoint answers with:
// {"code": <status>, "data": ..., "message": ...}.
type ServiceResult struct {
	StatusCode int    `json:"code"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
}

func (result *ServiceResult) ToJSON() gin.H {
	return gin.H{
		"code":    result.StatusCode,
		"data":    result.Data,
		"message": result.Message,
	}
}

type RateLimitResponse struct {
	Limit      int    `json:"limit"`
	Window     string `json:"window"`
	RetryAfter string `json:"retry_after"`
}

type HandlerFunction func(*RequestContext) *ServiceResult

// StreamHandlerFunction writes its own response. It returns a result only
// when it fails before the first byte of the stream has been written.
type StreamHandlerFunction func(*RequestContext) *ServiceResult

// RESTController groups handlers under one mount point. prepare runs when the
// controller is mounted and registers its handlers.
type RESTController struct {
	name         string
	mountPoint   string
	version      string
	handlerCount int
	prepare      func(*RouterService, *RESTController)
}
