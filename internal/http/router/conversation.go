package router

import (
	"github.com/gin-gonic/gin"

	"kwik.app/dispatch/internal/http/handler"
)

func WebhookRouter(router *gin.RouterGroup, handler *handler.ConversationHandler) {
	router.POST("/emotion", handler.Webhook)
}

func ConversationRouter(router *gin.RouterGroup, handler *handler.ConversationHandler) {
	router.GET("/:id", handler.Get)
	router.GET("/:id/flags", handler.Flags)
}
