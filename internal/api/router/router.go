package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/imgpress/imgpress/internal/api/handlers/convert"
	"github.com/imgpress/imgpress/internal/middleware"
)

func Setup(h *convert.Handler) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	api := r.Group("/api")

	api.POST("/convert", h.Convert)         // converting a batch of images
	api.GET("/download/:name", h.Download)  // downloading one converted image
	api.GET("/download-all", h.DownloadAll) // downloading everything as a zip

	return r
}
