// Package api exposes the read-side HTTP endpoints: the latest reading and
// the evolution series. Write paths stay with the batch pipeline.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/airgijon/aircore/internal/config"
	"github.com/airgijon/aircore/internal/evolution"
	"github.com/airgijon/aircore/internal/store"
)

// Readings serves the latest stored hourly value.
type Readings interface {
	LatestReading(ctx context.Context, stationID, parameter string) (time.Time, float64, error)
}

// Evolution builds the merged historical+forecast series.
type Evolution interface {
	Evolution(ctx context.Context, now time.Time) ([]evolution.Entry, error)
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg      config.Config
	readings Readings
	evo      Evolution
	engine   *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, readings Readings, evo Evolution) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(corsMiddleware())

	server := &Server{cfg: cfg, readings: readings, evo: evo, engine: engine}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	air := s.engine.Group("/api/v1/air/constitucion")
	{
		air.GET("/pm25", s.handleLatestPM25)
		air.GET("/evolucion", s.handleEvolution)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) handleLatestPM25(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	ts, value, err := s.readings.LatestReading(ctx, s.cfg.StationID, s.cfg.Parameter)
	if errors.Is(err, pgx.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data available"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"estacion": s.cfg.StationID,
		"fecha":    ts,
		"valor":    value,
		"estado":   store.StateFor(s.cfg.Parameter, &value),
	})
}

func (s *Server) handleEvolution(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	entries, err := s.evo.Evolution(ctx, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"estacion":   s.cfg.StationID,
		"datos":      entries,
		"total_dias": len(entries),
	})
}
