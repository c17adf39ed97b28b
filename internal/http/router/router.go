package router

import (
	"github.com/gin-gonic/gin"

	"kwik.app/dispatch/internal/http/handler"
	"kwik.app/dispatch/internal/service"
)

type RouterConfig struct {
	Triage *handler.TriageHandler
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	conversationHandler := handler.NewConversationHandler(services.Conversations())
	WebhookRouter(router.Group("/webhooks"), conversationHandler)

	v1 := router.Group("/api/v1")
	{
		callHandler := handler.NewCallHandler(services.Calls())
		CallRouter(v1.Group("/calls"), callHandler)

		ConversationRouter(v1.Group("/conversations"), conversationHandler)

		if cfg.Triage != nil {
			TriageRouter(v1.Group("/triage"), cfg.Triage)
		}
	}
}
