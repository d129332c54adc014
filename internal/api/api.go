// Package api exposes the running responder over HTTP: live counters, the
// spoof records in force, and endpoints to add records or reload the spoof
// file without a restart.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/resolver"
	"github.com/SaudiLinux/urlget/internal/spoof"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Server is the admin HTTP API.
type Server struct {
	store     *spoof.Store
	stats     *resolver.Stats
	spoofFile string
	log       logrus.FieldLogger

	router *gin.Engine
	http   *http.Server
}

// AddRecordRequest is the body of POST /api/records.
type AddRecordRequest struct {
	Domain string `json:"domain" binding:"required"`
	Type   string `json:"type" binding:"required"`
	Value  string `json:"value" binding:"required"`
}

// New builds the router. spoofFile is what /api/records/reload reads back in
// place of the current records; an empty origins list leaves CORS headers off.
func New(store *spoof.Store, stats *resolver.Stats, spoofFile string, origins []string, log logrus.FieldLogger) *Server {
	s := &Server{store: store, stats: stats, spoofFile: spoofFile, log: log}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	if len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
			MaxAge:       12 * time.Hour,
		}))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := router.Group("/api")
	{
		api.GET("/stats", s.getStats)
		api.GET("/records", s.listRecords)
		api.POST("/records", s.addRecord)
		api.POST("/records/reload", s.reloadRecords)
	}
	s.router = router
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr and serves in the background. It returns the bound
// address.
func (s *Server) Start(addr string) (net.Addr, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: admin api %s: %v", core.ErrBind, addr, err)
	}
	s.http = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("Admin API stopped: %v", err)
		}
	}()
	s.log.Infof("Admin API listening on http://%s", l.Addr())
	return l.Addr(), nil
}

// Shutdown stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("admin request")
	}
}

// GET /api/stats
func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.stats.Snapshot())
}

// GET /api/records
func (s *Server) listRecords(c *gin.Context) {
	records := s.store.Records()
	if records == nil {
		records = []spoof.SpoofRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "records": records})
}

// POST /api/records
func (s *Server) addRecord(c *gin.Context) {
	var req AddRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.AddRecord(req.Domain, req.Type, req.Value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"domain": spoof.NormalizeName(req.Domain), "count": s.store.Len()})
}

// POST /api/records/reload
func (s *Server) reloadRecords(c *gin.Context) {
	if s.spoofFile == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no spoof file configured"})
		return
	}
	n, err := s.store.ReloadFromFile(s.spoofFile)
	if err != nil {
		s.log.Errorf("Reloading %s failed: %v", s.spoofFile, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loaded": n, "count": s.store.Len()})
}
