package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/sirupsen/logrus"

	"github.com/betagouv/zacharie-sub006/config"
	"github.com/betagouv/zacharie-sub006/internal/domainstore"
	syncengine "github.com/betagouv/zacharie-sub006/internal/sync"
	"github.com/betagouv/zacharie-sub006/internal/tracing"
)

// Server is the local status HTTP server of the field agent. It only exposes
// passive state (health, sync state, pending badge); domain reads and writes
// never go through it.
type Server struct {
	router *gin.Engine
	addr   string
	engine *syncengine.Engine
	store  *domainstore.Store
	log    *logrus.Logger
}

// NewServer creates the status server
func NewServer(cfg *config.ServerConfig, engine *syncengine.Engine, store *domainstore.Store, tracer tracing.Tracer, log *logrus.Logger) *Server {
	gin.SetMode(cfg.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	if app := tracer.Application(); app != nil {
		router.Use(nrgin.Middleware(app))
	}

	s := &Server{
		router: router,
		addr:   cfg.Address,
		engine: engine,
		store:  store,
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/sync/status", s.handleSyncStatus)
	s.router.GET("/badge", s.handleBadge)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleSyncStatus reports the connectivity state and the queue depth; the
// offline indicator in the UI polls this.
func (s *Server) handleSyncStatus(c *gin.Context) {
	pending, err := s.engine.PendingCount()
	if err != nil {
		s.log.WithError(err).Error("Failed to count pending mutations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pending count unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":   s.engine.State(),
		"pending": pending,
	})
}

// handleBadge reports the derived pending-action count for passive display
func (s *Server) handleBadge(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": s.store.PendingActionCount()})
}

// Run serves until the context is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
