// Package rest は QR 打刻用の HTTP API を提供します。
package rest

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/adapters/auth"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/config"
	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/platform/logger"
)

// NewRouter は打刻 API のルーティングを構築します。
func NewRouter(svc job.UseCase, verifier *auth.Verifier, cfg config.HTTPConfig, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(requestLogger(log), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.AllowedOrigins,
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders: []string{"Content-Length", "Retry-After"},
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			MaxAge:        12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	h := &attendanceHandler{svc: svc, log: log}
	limits := newLimiterStore(cfg.CheckInRate, cfg.CheckInBurst)

	v1 := r.Group("/v1/jobs/:jobID", verifier.Middleware())
	v1.POST("/attendance", limits.middleware(), h.markAttendance)
	v1.GET("/attendance", h.getAttendance)
	v1.GET("/attendance-code", auth.RequireRole(job.RoleEmployer), h.attendanceCode)

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("http request",
			zap.String(logger.FieldMethod, c.Request.Method),
			zap.String(logger.FieldPath, c.FullPath()),
			zap.Int(logger.FieldStatus, c.Writer.Status()),
			zap.Int64(logger.FieldDuration, time.Since(start).Milliseconds()),
		)
	}
}
