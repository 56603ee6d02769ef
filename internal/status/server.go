package status

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"StockPipeline/internal/scheduler"

	"github.com/gin-gonic/gin"
)

// RunController is the part of the scheduler the API exposes.
type RunController interface {
	Trigger(trigger string) error
	Latest() (scheduler.RunResult, bool)
	Running() bool
}

// Server serves health, the latest run summary and manual triggers.
type Server struct {
	addr   string
	router *gin.Engine
}

// NewServer builds the status HTTP server.
func NewServer(addr string, runs RunController) *Server {
	if addr == "" {
		addr = ":8080"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "running": runs.Running()})
	})

	v1 := router.Group("/v1")
	v1.GET("/runs/latest", func(c *gin.Context) {
		res, ok := runs.Latest()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no run yet"})
			return
		}
		c.JSON(http.StatusOK, res)
	})
	v1.POST("/runs", func(c *gin.Context) {
		err := runs.Trigger(scheduler.TriggerManual)
		switch {
		case errors.Is(err, scheduler.ErrRunInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusAccepted, gin.H{"status": "started"})
		}
	})

	return &Server{addr: addr, router: router}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Addr() string { return s.addr }

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Printf("[INFO] status server listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("[INFO] HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}
