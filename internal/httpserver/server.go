package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/tracewatch/tracewatch/internal/alerting"
	"github.com/tracewatch/tracewatch/internal/ingest"
	"github.com/tracewatch/tracewatch/internal/model"
)

// CorrelationIDHeader carries the out-of-band correlation id for a batch.
const CorrelationIDHeader = "X-Correlation-ID"

// EntryStore is the narrow buffer contract required by the HTTP API.
type EntryStore interface {
	Append(e model.LogEntry) error
	Entries(correlationID string) []model.LogEntry
	Cleanup(olderThan time.Time) int
	Stats() model.BufferStats
}

// Analyzer is the derived-view contract required by the HTTP API.
type Analyzer interface {
	Trace(correlationID string) model.WorkflowTrace
	Patterns(window time.Duration) model.PatternReport
}

// ConfigAPI is the alert configuration contract required by the HTTP API.
type ConfigAPI interface {
	List() []model.AlertConfig
	Update(id string, patch alerting.ConfigPatch) (model.AlertConfig, error)
}

// HistoryAPI reads back dispatched alerts for incident review.
type HistoryAPI interface {
	RecentAlerts(limit int) ([]model.AlertEvent, error)
}

// Server provides the HTTP ingestion, query, and alert surfaces.
type Server struct {
	addr      string
	entries   EntryStore
	analyzer  Analyzer
	configs   ConfigAPI
	history   HistoryAPI
	limiter   *rate.Limiter
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
	now       func() time.Time
}

// Config holds the server's wiring.
type Config struct {
	Addr        string
	Entries     EntryStore
	Analyzer    Analyzer
	Configs     ConfigAPI
	History     HistoryAPI
	IngestRate  float64 // ingest requests per second, 0 = unlimited
	IngestBurst int
}

// NewServer creates the API server.
func NewServer(conf Config) *Server {
	addr := conf.Addr
	if addr == "" {
		addr = "0.0.0.0:8600"
	}

	var limiter *rate.Limiter
	if conf.IngestRate > 0 {
		burst := conf.IngestBurst
		if burst <= 0 {
			burst = int(conf.IngestRate)
			if burst < 1 {
				burst = 1
			}
		}
		limiter = rate.NewLimiter(rate.Limit(conf.IngestRate), burst)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:     addr,
		entries:  conf.Entries,
		analyzer: conf.Analyzer,
		configs:  conf.Configs,
		history:  conf.History,
		limiter:  limiter,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)

	r.POST("/api/logs", s.rateLimit, s.handleIngest)
	r.GET("/api/logs/:id", s.handleEntries)
	r.POST("/api/logs/cleanup", s.handleCleanup)

	r.GET("/api/trace/:id", s.handleTrace)
	r.GET("/api/errors/patterns", s.handlePatterns)

	r.GET("/api/alerts/configs", s.handleListConfigs)
	r.PATCH("/api/alerts/configs/:id", s.handleUpdateConfig)
	r.GET("/api/alerts/history", s.handleAlertHistory)

	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) rateLimit(c *gin.Context) {
	if s.limiter != nil && !s.limiter.Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "ingestion rate limit exceeded"})
		return
	}
	c.Next()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
		"buffer": s.entries.Stats(),
	})
}

// handleIngest accepts a batch of log entries. Invalid entries are
// skipped; the batch succeeds with the processed count.
func (s *Server) handleIngest(c *gin.Context) {
	var batch ingest.Batch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing logs field"})
		return
	}

	fallbackID := c.GetHeader(CorrelationIDHeader)
	now := s.now()

	processed := 0
	invalid := 0
	for _, wire := range batch.Logs {
		entry, err := wire.Convert(fallbackID, now)
		if err != nil {
			invalid++
			continue
		}
		if err := s.entries.Append(entry); err != nil {
			invalid++
			continue
		}
		processed++
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":         "created",
		"processed_logs": processed,
		"invalid_logs":   invalid,
	})
}

func (s *Server) handleEntries(c *gin.Context) {
	id := c.Param("id")
	entries := s.entries.Entries(id)
	c.JSON(http.StatusOK, gin.H{
		"correlation_id": id,
		"count":          len(entries),
		"logs":           entries,
	})
}

func (s *Server) handleTrace(c *gin.Context) {
	c.JSON(http.StatusOK, s.analyzer.Trace(c.Param("id")))
}

func (s *Server) handlePatterns(c *gin.Context) {
	hours, err := strconv.ParseFloat(c.DefaultQuery("hours", "24"), 64)
	if err != nil || hours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive number"})
		return
	}
	window := time.Duration(hours * float64(time.Hour))
	c.JSON(http.StatusOK, s.analyzer.Patterns(window))
}

func (s *Server) handleCleanup(c *gin.Context) {
	var req struct {
		RetentionHours float64 `json:"retention_hours"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if req.RetentionHours < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "retention_hours must be >= 0"})
		return
	}

	cutoff := s.now().Add(-time.Duration(req.RetentionHours * float64(time.Hour)))
	removed := s.entries.Cleanup(cutoff)
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"removed_entries": removed,
	})
}

func (s *Server) handleListConfigs(c *gin.Context) {
	configs := s.configs.List()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(configs),
		"configs": configs,
	})
}

func (s *Server) handleUpdateConfig(c *gin.Context) {
	var patch alerting.ConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	updated, err := s.configs.Update(c.Param("id"), patch)
	if err != nil {
		if errors.Is(err, alerting.ErrConfigNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleAlertHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	events, err := s.history.RecentAlerts(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read alert history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"alerts": events,
	})
}
