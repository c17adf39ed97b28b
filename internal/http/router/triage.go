package router

import (
	"github.com/gin-gonic/gin"

	"kwik.app/dispatch/internal/http/handler"
)

func TriageRouter(router *gin.RouterGroup, handler *handler.TriageHandler) {
	router.POST("/extract", handler.Extract)
	router.GET("/weights", handler.Weights)
}
