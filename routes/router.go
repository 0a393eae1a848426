package routes

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/bettercampus/config"
	"github.com/cppla/bettercampus/controllers"
	"github.com/cppla/bettercampus/middleware"
	"github.com/cppla/bettercampus/services"
	"github.com/cppla/bettercampus/utils"
	"github.com/cppla/bettercampus/views"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, db *gorm.DB, cache utils.Cache) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file; fall back to plain recovery if it cannot be opened.
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, true))
	} else {
		r.Use(gin.Recovery())
	}

	metrics := middleware.NewMetrics()
	r.Use(metrics.RequestMetrics())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.SetHTMLTemplate(template.Must(views.Load()))
	r.MaxMultipartMemory = cfg.UploadMaxBytes() + (1 << 20)

	svc := services.NewPostService(db,
		services.WithAuthor(cfg.AnonymousUserID),
		services.WithUploader(utils.NewImageUploader(cfg.UploadDir, cfg.UploadMaxBytes())),
		services.WithCache(cache, time.Duration(cfg.CacheTTLSeconds)*time.Second),
		services.WithLogger(utils.Sugar),
	)
	postController := controllers.NewPostController(svc, metrics, cfg.UploadMaxBytes())

	r.GET("/", postController.Index)
	r.POST("/posts", postController.CreatePost)
	r.GET("/posts/:id", postController.GetPost)
	r.POST("/posts/:id/comments", postController.CreateComment)
	r.GET("/api/posts", postController.ListPostsAPI)

	statsController := controllers.NewStatsController(db)
	r.GET("/api/stats", statsController.GetStats)
	r.GET("/api/posts/:id/stats", statsController.GetPostStats)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.Static("/uploads", cfg.UploadDir)

	// Everything else is looked up in the public directory, mounted at "/".
	public := http.FileServer(gin.Dir(cfg.PublicDir, false))
	r.NoRoute(func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodGet && ctx.Request.Method != http.MethodHead {
			utils.Text(ctx, http.StatusNotFound, "Not found")
			return
		}
		public.ServeHTTP(ctx.Writer, ctx.Request)
	})

	return r
}
