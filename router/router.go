package router

import (
	"ShareDrop/config"
	"ShareDrop/internal/handler"
	"ShareDrop/internal/session"
	"ShareDrop/utils"

	"github.com/gin-gonic/gin"
)

// InitRouter builds API routes.
func InitRouter(
	cfg *config.Config,
	sessions *session.Manager,
	uploads *handler.UploadHandler,
	downloads *handler.DownloadHandler,
) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(utils.CORSMiddleware())
	r.Use(sessions.Middleware())

	api := r.Group("/api")
	{
		api.POST("/upload", uploads.Upload)
		api.GET("/upload-success", uploads.UploadSuccess)

		api.GET("/download/:slug", downloads.Confirm)
		api.POST("/download/:slug", downloads.Unlock)
		api.GET("/download/file/:slug", downloads.File)
		api.GET("/download/zip/:slug", downloads.Zip)
	}
	return r
}
