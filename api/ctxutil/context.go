package ctxutil

import (
	"context"

	"factoryops/api/middleware"
	"factoryops/api/response"
	"factoryops/domain/intent"
	"factoryops/infrastructure/persistence"

	"github.com/gin-gonic/gin"
)

// WithRequestID carries the request ID into the request context so SQL
// traces can be correlated with the HTTP log line.
func WithRequestID(ctx *gin.Context) context.Context {
	requestID := response.GetRequestID(ctx)
	return persistence.ContextWithRequestID(ctx.Request.Context(), requestID)
}

// Actor returns the actor set by middleware.ActorMiddleware.
func Actor(ctx *gin.Context) intent.Actor {
	return intent.Actor{
		ID:   ctx.GetString(middleware.ActorIDKey),
		Role: ctx.GetString(middleware.ActorRoleKey),
	}
}
