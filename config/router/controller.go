package router

import (
	"context"
	"fmt"
	"net/http"
	"path"

	"github.com/akeren/event-referrals/pkg/ratelimit"
)

const nilResultMessage = "A handler returned no result"

func NewRESTController(name, mountPoint string, prepare func(*RouterService, *RESTController)) *RESTController {
	return &RESTController{
		name:       name,
		mountPoint: path.Join("/", mountPoint),
		prepare:    prepare,
	}
}

// NewVersionedRESTController mounts the controller under /<version>/<mountPoint>.
func NewVersionedRESTController(name, version, mountPoint string, prepare func(*RouterService, *RESTController)) *RESTController {
	return &RESTController{
		name:       name,
		mountPoint: path.Join("/", version, mountPoint),
		version:    version,
		prepare:    prepare,
	}
}

// RateLimitWith replaces the default limiter for every handler of the
// controller that has no limiter of its own.
func (controller *RESTController) RateLimitWith(routerService *RouterService, limiter ratelimit.RateLimiter) *RESTController {
	routerService.bindRateLimiter(controller.mountPoint, limiter)
	return controller
}

func (controller *RESTController) route(relativePath string) string {
	return path.Join(controller.mountPoint, relativePath)
}

// routeKey identifies a registered handler; it is also the rate limit scope
// of a handler-level limiter.
func routeKey(method, route string) string {
	return method + " " + route
}

func (routerService *RouterService) bindRateLimiter(key string, limiter ratelimit.RateLimiter) {
	if limiter == nil {
		return
	}
	if _, taken := routerService.rateLimitOverrides[key]; taken {
		panic(fmt.Sprintf("a rate limiter is already registered for '%s'", key))
	}
	routerService.rateLimitOverrides[key] = limiter
}

func (routerService *RouterService) addHandler(
	controller *RESTController,
	method string,
	limiter ratelimit.RateLimiter,
	relativePath string,
	handler MiddlewareFunc,
	middlewares []MiddlewareFunc,
) {
	route := controller.route(relativePath)
	key := routeKey(method, route)

	if owner, taken := routerService.handlerToControllerMap[key]; taken {
		panic(fmt.Sprintf("%s is already handled by controller '%s'", key, owner.name))
	}
	routerService.handlerToControllerMap[key] = controller
	routerService.bindRateLimiter(key, limiter)

	routerService.engine.Handle(method, route, append(middlewares, handler)...)
	controller.handlerCount++
	routerService.logger.Debug("Handler registered", "method", method, "path", route)
}

func (routerService *RouterService) AddPostHandler(
	controller *RESTController,
	limiter ratelimit.RateLimiter,
	path string,
	handler HandlerFunction,
	middlewares ...MiddlewareFunc,
) {
	routerService.addHandler(controller, http.MethodPost, limiter, path, jsonHandler(handler), middlewares)
}

func (routerService *RouterService) AddGetHandler(
	controller *RESTController,
	limiter ratelimit.RateLimiter,
	path string,
	handler HandlerFunction,
	middlewares ...MiddlewareFunc,
) {
	routerService.addHandler(controller, http.MethodGet, limiter, path, jsonHandler(handler), middlewares)
}

// AddStreamHandler registers a GET handler that keeps the connection open
// (Server-Sent Events). The request timeout middleware does not apply to it;
// the request context is cancelled when the server shuts down.
func (routerService *RouterService) AddStreamHandler(
	controller *RESTController,
	limiter ratelimit.RateLimiter,
	path string,
	handler StreamHandlerFunction,
	middlewares ...MiddlewareFunc,
) {
	routerService.streamingRoutes[controller.route(path)] = true
	routerService.addHandler(controller, http.MethodGet, limiter, path, routerService.streamHandler(handler), middlewares)
}

func jsonHandler(handler HandlerFunction) MiddlewareFunc {
	return func(c *RequestContext) {
		result := handler(c)
		if result == nil {
			result = InternalServerErrorResult(nilResultMessage)
		}
		c.JSON(result.StatusCode, result.ToJSON())
	}
}

func (routerService *RouterService) streamHandler(handler StreamHandlerFunction) MiddlewareFunc {
	return func(c *RequestContext) {
		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()
		stop := context.AfterFunc(routerService.streamsCtx, cancel)
		defer stop()
		c.Request = c.Request.WithContext(ctx)

		if result := handler(c); result != nil && !c.Writer.Written() {
			c.JSON(result.StatusCode, result.ToJSON())
		}
	}
}
