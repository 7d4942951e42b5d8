package router

import (
	"github.com/gin-gonic/gin"

	"relnotes.app/relnotes/internal/http/handler"
)

func SetupRoutes(router *gin.Engine, notes *handler.NotesHandler, artifacts *handler.ArtifactHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		NotesRouter(v1.Group("/notes"), notes)
	}

	router.GET("/artifacts/:name", artifacts.Download)
}

func NotesRouter(rg *gin.RouterGroup, h *handler.NotesHandler) {
	rg.POST("", h.Generate)
}
