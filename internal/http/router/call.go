package router

import (
	"github.com/gin-gonic/gin"

	"kwik.app/dispatch/internal/http/handler"
)

func CallRouter(router *gin.RouterGroup, handler *handler.CallHandler) {
	router.POST("", handler.Create)
	router.GET("", handler.List)
	router.GET("/:id", handler.Get)
	router.PATCH("/:id/status", handler.UpdateStatus)
}
