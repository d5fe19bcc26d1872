package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter 注册全部路由
func NewRouter(h *Handler, version string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger())
	r.MaxMultipartMemory = h.cfg.Upload.MaxSize

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"version":     version,
			"backgrounds": h.backgrounds.Count(),
		})
	})

	api := r.Group("/api/v1")
	{
		api.GET("/backgrounds", h.ListBackgrounds)
		api.POST("/backgrounds/next", h.NextBackground)
		api.POST("/backgrounds/previous", h.PreviousBackground)
		api.POST("/backgrounds/:index/select", h.SelectBackground)
		api.GET("/backgrounds/:index/preview", h.PreviewBackground)

		api.POST("/composite", h.Composite)
		api.GET("/photos", h.ListPhotos)
	}

	return r
}

// NewHTTPServer 包装 gin 路由，带读写超时
func NewHTTPServer(addr string, h *Handler, version string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewRouter(h, version),
		ReadTimeout:  h.cfg.Server.ReadTimeout,
		WriteTimeout: h.cfg.Server.WriteTimeout,
	}
}
