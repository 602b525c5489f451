// api/router.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// NewRouter собирает маршруты. gatherer может быть nil — тогда /metrics не подключается.
func NewRouter(s *Session, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/meta", MetaHandler(s))
		apiGroup.GET("/catalog/:level", CatalogHandler(s))
		apiGroup.GET("/perf", PerfHandler(s))

		// статические служебные маршруты — до параметризованных
		apiGroup.GET("/grid/_validate", ValidateHandler(s))
		apiGroup.GET("/grid/events", EventsHandler(s))
		apiGroup.PUT("/grid/size", ResizeHandler(s))

		apiGroup.GET("/grid/rows", ListRowsHandler(s))
		apiGroup.GET("/grid/rows/:id", GetRowHandler(s))
		apiGroup.PATCH("/grid/rows/:id/levels/:level", EditHandler(s))
		apiGroup.GET("/grid/rows/:id/levels/:level/options", CellHandler(s))

		apiGroup.POST("/admin/seed", SeedHandler(s))
		apiGroup.POST("/admin/reload", ReloadHandler(s))
	}
	return r
}

// requestLogger пишет запросы через logrus вместо стандартного логгера gin
func requestLogger(l *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := l.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		})
		if len(c.Errors) > 0 {
			entry.Warn(c.Errors.String())
			return
		}
		entry.Debug("request")
	}
}

// RunServer слушает addr до отмены ctx, затем мягко останавливается.
func RunServer(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info("HTTP server shutting down")
	return srv.Shutdown(shutdownCtx)
}
