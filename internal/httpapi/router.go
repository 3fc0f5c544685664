// Package httpapi serves the conversion service over HTTP for browser uploads.
package httpapi

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/a3tai/mcp-specform/internal/config"
	"github.com/a3tai/mcp-specform/internal/convert"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	shutdownTimeout = 30 * time.Second
)

// NewRouter creates the gin engine with all routes
func NewRouter(cfg *config.Config, service *convert.Service) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.IsDebug() {
		r.Use(gin.Logger())
	}
	r.Use(RequestIDMiddleware())
	if len(cfg.Origins) > 0 {
		r.Use(CORS(cfg.Origins))
	}

	h := NewHandler(service, cfg.Version, cfg.MaxFileSize)

	api := r.Group("/api/v1")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/modes", h.Modes)
		api.POST("/convert", h.Convert)
		api.POST("/preview", h.Preview)
	}

	return r
}

// CORS returns the cross-origin middleware for the configured origins.
// A "*" entry allows every origin.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders: []string{"Content-Disposition", "Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowOrigins = nil
			break
		}
	}
	return cors.New(cfg)
}

// RequestIDMiddleware tags each request with an id, reusing a valid
// incoming X-Request-ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestID returns the id assigned to the request
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Serve runs the HTTP server until ctx is canceled, then shuts it down
func Serve(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on http://%s", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
