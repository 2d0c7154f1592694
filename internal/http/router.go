package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"sk3-portal/internal/http/middleware"
	"sk3-portal/internal/model"
)

// ReadinessCheck is one dependency reported by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func NewRouter(handler *Handler, auth middleware.Authenticator, env string, checks ...ReadinessCheck) *gin.Engine {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		ExposeHeaders:   []string{"Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", readiness(checks))

	api := router.Group("/api/v1")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/commuter/login", handler.login(model.RoleCommuter))
		authGroup.POST("/admin/login", handler.login(model.RoleAdmin))
		authGroup.POST("/personnel/login", handler.login(model.RolePersonnel))
		authGroup.POST("/logout", handler.logout)
	}

	emergency := api.Group("/emergency")
	{
		emergency.POST("/location", handler.emergencyLocation)
		emergency.POST("/reports", handler.emergencyReport)
	}

	cookie := handler.cookie.Name

	commuter := api.Group("/commuter")
	commuter.Use(middleware.Session(auth, cookie, model.RoleCommuter))
	{
		commuter.GET("/me", handler.commuterMe)
		commuter.POST("/report/location", handler.commuterLocation)
		commuter.POST("/reports", handler.commuterReport)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.Session(auth, cookie, model.RoleAdmin))
	{
		admin.GET("/views", handler.adminViews)
		admin.GET("/views/:view", handler.adminView)
		admin.GET("/views/:view/stream", handler.stream(handler.complaints.Snapshot, handler.complaints.Subscribe))

		admin.POST("/complaints/:id/assign", handler.assign(model.ComplaintKindStandard))
		admin.POST("/emergency/:id/assign", handler.assign(model.ComplaintKindEmergency))
		admin.POST("/complaints/:id/notify", handler.notify)
		admin.POST("/complaints/:id/archive", handler.archive(model.ComplaintKindStandard))
		admin.POST("/emergency/:id/archive", handler.archive(model.ComplaintKindEmergency))
		admin.GET("/complaints/:id/actions", handler.actions)
		admin.GET("/actions", handler.recentActions)

		admin.POST("/personnel", handler.createPersonnel)
		admin.DELETE("/personnel/:id", handler.deletePersonnel)
		admin.POST("/accounts/:id/approve", handler.approveAccount)
		admin.GET("/drivers/:plate", handler.driverByPlate)
	}

	taskforce := api.Group("/taskforce")
	taskforce.Use(middleware.Session(auth, cookie, model.RolePersonnel))
	{
		taskforce.GET("/views/:view", handler.taskforceView)
		taskforce.GET("/views/:view/stream", handler.stream(handler.taskforce.Snapshot, handler.taskforce.Subscribe))
		taskforce.POST("/complaints/:id/resolve", handler.resolve(model.ComplaintKindStandard))
		taskforce.POST("/complaints/:id/dismiss", handler.dismiss(model.ComplaintKindStandard))
		taskforce.POST("/emergency/:id/resolve", handler.resolve(model.ComplaintKindEmergency))
		taskforce.POST("/emergency/:id/dismiss", handler.dismiss(model.ComplaintKindEmergency))
	}

	return router
}

func readiness(checks []ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		failed := gin.H{}
		for _, check := range checks {
			if err := check.Check(c.Request.Context()); err != nil {
				failed[check.Name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
