package router

import (
	"MediaVault/internal/handler"
	"MediaVault/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InitRouter builds API routes.
func InitRouter() *gin.Engine {
	r := gin.Default()
	r.Use(utils.CORSMiddleware())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/register", handler.Register)
		api.POST("/login", handler.Login)

		auth := api.Group("")
		auth.Use(utils.AuthMiddleware())

		assets := auth.Group("/assets")
		{
			assets.POST("/upload", handler.UploadAssets)
			assets.POST("/list", handler.ListAssets)
			assets.GET("/:id", handler.GetAsset)
			assets.GET("/:id/url", handler.AssetURL)
			assets.GET("/:id/content", handler.AssetContent)
			assets.POST("/favorite", handler.SetFavorite)
			assets.POST("/delete", handler.DeleteAssets)
			assets.POST("/restore", handler.RestoreAsset)
			assets.POST("/purge", handler.PurgeAsset)
		}

		trash := auth.Group("/trash")
		{
			trash.POST("/list", handler.ListTrash)
			trash.POST("/empty", handler.EmptyTrash)
		}

		folders := auth.Group("/folders")
		{
			folders.GET("", handler.ListFolders)
			folders.POST("/create", handler.CreateFolder)
			folders.POST("/rename", handler.RenameFolder)
			folders.POST("/delete", handler.DeleteFolder)
			folders.POST("/add", handler.AddToFolder)
			folders.POST("/remove", handler.RemoveFromFolder)
		}

		auth.GET("/quota", handler.GetQuota)

		imports := auth.Group("/imports")
		{
			imports.POST("", handler.CreateImport)
			imports.GET("", handler.ListImports)
		}

		admin := auth.Group("/admin")
		admin.Use(utils.AdminMiddleware())
		{
			admin.POST("/quota", handler.SetQuota)
			admin.GET("/ledger/:userID", handler.ReconcileQuota)
		}
	}
	return r
}
