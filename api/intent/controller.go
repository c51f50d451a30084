/*
Package intent exposes the intent engine over HTTP.

Every intent outcome, business failures included, is answered with 200 and
carries its status in data.status. Only binding errors return 400; a missing
actor header is rejected with 401 by the actor middleware.
*/
package intent

import (
	"net/http"
	"strconv"

	"factoryops/api/ctxutil"
	"factoryops/api/response"
	intentapp "factoryops/application/intent"
	intentdomain "factoryops/domain/intent"

	"github.com/gin-gonic/gin"
)

// Controller Intent endpoints
type Controller struct {
	dispatcher *intentapp.Dispatcher
}

// NewController creates the intent controller
func NewController(dispatcher *intentapp.Dispatcher) *Controller {
	return &Controller{dispatcher: dispatcher}
}

// RegisterRoutes mounts the intent routes; actor guards the whole group
func (c *Controller) RegisterRoutes(router *gin.RouterGroup, actor gin.HandlerFunc) {
	group := router.Group("/intents", actor)
	{
		group.POST("/execute", c.Execute)
		group.POST("/preview", c.Preview)
		group.POST("/confirm", c.Confirm)
		group.GET("/history", c.History)
		group.GET("/categories", c.Categories)
	}
}

// ExecuteRequest Body of execute and preview
type ExecuteRequest struct {
	IntentCode string         `json:"intentCode"`
	Category   string         `json:"category" binding:"required"`
	UserInput  string         `json:"userInput"`
	Context    map[string]any `json:"context"`
}

func (r ExecuteRequest) toRequest(actor intentdomain.Actor) intentdomain.Request {
	return intentdomain.Request{
		IntentCode: r.IntentCode,
		Category:   intentdomain.Category(r.Category),
		UserInput:  r.UserInput,
		Context:    r.Context,
		Actor:      actor,
	}
}

// ConfirmRequest Body of confirm
type ConfirmRequest struct {
	Token string `json:"token" binding:"required"`
}

// Execute runs an intent
// POST /api/v1/intents/execute
func (c *Controller) Execute(ctx *gin.Context) {
	var req ExecuteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleError(ctx, err, "invalid request parameters", http.StatusBadRequest)
		return
	}
	out := c.dispatcher.Execute(ctxutil.WithRequestID(ctx), req.toRequest(ctxutil.Actor(ctx)))
	response.HandleOutcome(ctx, out)
}

// Preview validates an intent without applying it and returns a token
// POST /api/v1/intents/preview
func (c *Controller) Preview(ctx *gin.Context) {
	var req ExecuteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleError(ctx, err, "invalid request parameters", http.StatusBadRequest)
		return
	}
	out := c.dispatcher.Preview(ctxutil.WithRequestID(ctx), req.toRequest(ctxutil.Actor(ctx)))
	response.HandleOutcome(ctx, out)
}

// Confirm commits the change held by a preview token
// POST /api/v1/intents/confirm
func (c *Controller) Confirm(ctx *gin.Context) {
	var req ConfirmRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleError(ctx, err, "invalid request parameters", http.StatusBadRequest)
		return
	}
	out := c.dispatcher.Confirm(ctxutil.WithRequestID(ctx), req.Token, ctxutil.Actor(ctx))
	response.HandleOutcome(ctx, out)
}

// History lists committed changes of one entity, newest first
// GET /api/v1/intents/history?entityType=MATERIAL_BATCH&entityIdentifier=MB-2024-001&limit=20
func (c *Controller) History(ctx *gin.Context) {
	params := map[string]any{
		intentdomain.KeyEntityType:       ctx.Query(intentdomain.KeyEntityType),
		intentdomain.KeyEntityID:         ctx.Query(intentdomain.KeyEntityID),
		intentdomain.KeyEntityIdentifier: ctx.Query(intentdomain.KeyEntityIdentifier),
	}
	if s := ctx.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			response.HandleError(ctx, err, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		params["limit"] = n
	}

	out := c.dispatcher.Execute(ctxutil.WithRequestID(ctx), intentdomain.Request{
		IntentCode: intentapp.IntentEntityHistory,
		Category:   intentdomain.CategoryQuery,
		Context:    params,
		Actor:      ctxutil.Actor(ctx),
	})
	response.HandleOutcome(ctx, out)
}

// Categories lists the registered intents per category
// GET /api/v1/intents/categories
func (c *Controller) Categories(ctx *gin.Context) {
	response.HandleSuccess(ctx, c.dispatcher.Categories(), "ok")
}
