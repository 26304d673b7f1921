package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/sirupsen/logrus"

	"github.com/betagouv/zacharie-sub006/config"
	"github.com/betagouv/zacharie-sub006/internal/model"
	"github.com/betagouv/zacharie-sub006/internal/notify"
	"github.com/betagouv/zacharie-sub006/internal/repository"
	"github.com/betagouv/zacharie-sub006/internal/tracing"
)

// envelope is the response wrapper of the authoritative endpoints
type envelope struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

// IngestServer is the server-side write surface the field agents replay
// against. Hops arrive addressed by their deterministic identity, so a replay
// of the same hop upserts instead of duplicating, and each recorded hop
// schedules the handoff notification through the dispatch gate.
type IngestServer struct {
	router *gin.Engine
	addr   string
	hops   repository.IntermediaireRepository
	gate   *notify.Gate
	log    *logrus.Logger
}

// NewIngestServer creates the server-side ingest API
func NewIngestServer(
	cfg *config.ServerConfig,
	hops repository.IntermediaireRepository,
	gate *notify.Gate,
	tracer tracing.Tracer,
	log *logrus.Logger,
) *IngestServer {
	gin.SetMode(cfg.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	if app := tracer.Application(); app != nil {
		router.Use(nrgin.Middleware(app))
	}

	s := &IngestServer{
		router: router,
		addr:   cfg.Address,
		hops:   hops,
		gate:   gate,
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *IngestServer) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.POST("/api/fei-intermediaire/:id", s.handleHopUpsert)
	s.router.GET("/api/fei/:id/intermediaires", s.handleHopList)
}

// handleHopUpsert records one custody hop. The path id is authoritative; a
// body id that disagrees with it is rejected.
func (s *IngestServer) handleHopUpsert(c *gin.Context) {
	var hop model.Intermediaire
	if err := c.ShouldBindJSON(&hop); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Error: "invalid hop payload"})
		return
	}
	id := c.Param("id")
	if hop.UUID == "" {
		hop.UUID = id
	}
	if hop.UUID != id {
		c.JSON(http.StatusBadRequest, envelope{Error: "hop id mismatch"})
		return
	}
	if hop.FicheID == "" {
		c.JSON(http.StatusUnprocessableEntity, envelope{Error: "hop has no fiche"})
		return
	}

	saved, err := s.hops.Upsert(c.Request.Context(), &hop)
	if err != nil {
		s.log.WithError(err).WithField("hop", hop.UUID).Error("Failed to upsert hop")
		c.JSON(http.StatusInternalServerError, envelope{Error: "failed to record hop"})
		return
	}

	s.scheduleHandoffNotice(c.Request.Context(), saved)
	c.JSON(http.StatusOK, envelope{OK: true, Data: saved})
}

// scheduleHandoffNotice hands the hop to the dispatch gate. The gate's guard
// makes this safe against replays; a scheduling failure never fails the write.
func (s *IngestServer) scheduleHandoffNotice(ctx context.Context, hop *model.Intermediaire) {
	recipient := ""
	if hop.UserID != nil {
		recipient = *hop.UserID
	} else if hop.OrgID != nil {
		recipient = *hop.OrgID
	}
	if recipient == "" {
		return
	}

	msg := notify.Message{
		Recipient: recipient,
		Title:     "Carcasses en route",
		Body:      "Une fiche vous a été transmise, ouvrez Zacharie pour la prendre en charge.",
	}
	if err := s.gate.Schedule(ctx, hop.FicheID, "hop-"+hop.UUID, model.ChannelPush, msg); err != nil {
		// Log the error but continue; the hop itself is already recorded
		s.log.WithError(err).WithField("hop", hop.UUID).Warn("Failed to schedule handoff notification")
	}
}

// handleHopList returns the recorded hops of a fiche in sequence order
func (s *IngestServer) handleHopList(c *gin.Context) {
	hops, err := s.hops.FindByFiche(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.log.WithError(err).Error("Failed to list hops")
		c.JSON(http.StatusInternalServerError, envelope{Error: "failed to list hops"})
		return
	}
	c.JSON(http.StatusOK, envelope{OK: true, Data: hops})
}

// Run serves until the context is cancelled, then shuts down gracefully
func (s *IngestServer) Run(ctx context.Context) error {
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
