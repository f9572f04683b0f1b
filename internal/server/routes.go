package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftfiles/internal/server/auth"
	"github.com/openmined/syftfiles/internal/server/handlers/blob"
	"github.com/openmined/syftfiles/internal/server/handlers/container"
	"github.com/openmined/syftfiles/internal/server/middlewares"
	"github.com/openmined/syftfiles/internal/store"
	"github.com/openmined/syftfiles/internal/version"
	"github.com/shirou/gopsutil/v4/disk"
)

// Services are the dependencies of the http routes.
type Services struct {
	Blobs      store.ContentStore
	Containers store.ContainerStore
	Auth       *auth.AuthService
}

type RouteOptions struct {
	MaxBlobSize int64
	RateLimit   string
	TLS         bool
	// DataDir, when set, adds the free space of its disk to /healthz.
	DataDir string
}

func SetupRoutes(svc *Services, opts *RouteOptions) (http.Handler, error) {
	r := gin.New()

	blobH := blob.New(svc.Blobs, opts.MaxBlobSize)
	containerH := container.New(svc.Containers)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())
	if opts.TLS {
		r.Use(middlewares.HSTS())
	}

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler(opts.DataDir))

	v1 := r.Group("/api/v1")
	v1.Use(middlewares.JWTAuth(svc.Auth))
	if opts.RateLimit != "" {
		limiter, err := middlewares.RateLimiter(opts.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("setup routes: %w", err)
		}
		v1.Use(limiter)
	}
	{
		// blobs
		v1.PUT("/blobs", blobH.Upload)
		v1.GET("/blobs/:address", blobH.Download)
		v1.HEAD("/blobs/:address", blobH.Exists)

		// containers
		v1.POST("/containers", containerH.Create)
		v1.GET("/containers/:address", containerH.Read)
		v1.POST("/containers/:address/versions", containerH.Publish)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

type diskStatus struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

func HealthHandler(dataDir string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if dataDir == "" {
			ctx.PureJSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		usage, err := disk.UsageWithContext(ctx.Request.Context(), dataDir)
		if err != nil {
			slog.Warn("disk usage", "path", dataDir, "error", err)
			ctx.PureJSON(http.StatusOK, gin.H{"status": "ok", "disk_error": err.Error()})
			return
		}
		ctx.PureJSON(http.StatusOK, gin.H{
			"status": "ok",
			"disk": diskStatus{
				Path:        usage.Path,
				Total:       usage.Total,
				Free:        usage.Free,
				UsedPercent: usage.UsedPercent,
			},
		})
	}
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
