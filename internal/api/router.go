package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/bug_triage_server/config"
	"github.com/qs3c/bug_triage_server/internal/api/handler"
	"github.com/qs3c/bug_triage_server/internal/api/middleware"
)

type Router struct {
	uploadHandler    *handler.UploadHandler
	resultHandler    *handler.ResultHandler
	websocketHandler *handler.WebSocketHandler
	cfg              *config.Config
}

func NewRouter(
	uploadHandler *handler.UploadHandler,
	resultHandler *handler.ResultHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		uploadHandler:    uploadHandler,
		resultHandler:    resultHandler,
		websocketHandler: websocketHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		api.GET("/health", handler.Health)

		// WebSocket，令牌放在查询参数里
		api.GET("/ws/progress/:job_id", r.websocketHandler.Progress)

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			authenticated.POST("/upload", r.uploadHandler.Upload)
			authenticated.GET("/file-bugs", r.resultHandler.FileBugs)

			jobs := authenticated.Group("/jobs")
			{
				jobs.GET("", r.resultHandler.ListJobs)
				jobs.GET("/:id", r.resultHandler.GetJob)
				jobs.GET("/:id/status", r.resultHandler.GetJobStatus)
				jobs.GET("/:id/files", r.resultHandler.ListJobFiles)
			}

			project := authenticated.Group("/project")
			{
				project.GET("/dashboard", r.resultHandler.Dashboard)
				project.GET("/my-uploads", r.resultHandler.MyUploads)
			}
		}
	}

	return engine
}
