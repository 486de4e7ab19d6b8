// Package api exposes a diagnostics-only HTTP surface: system status,
// health, and read-only risk/position snapshots. It never accepts order
// placement — trading is driven exclusively by the engine's own loop
// (SPEC_FULL.md §6).
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poorman/synapsestrike-auto/internal/risk"
	"github.com/poorman/synapsestrike-auto/metrics"
)

// StatusProvider is whatever the engine exposes for read-only reporting.
// Implemented by *engine.System; kept as an interface here so the api
// package never imports engine (avoids an import cycle, since engine may
// want to mount this server).
type StatusProvider interface {
	SystemStatus() SystemStatus
	RiskStatus() risk.RiskStatus
}

// SystemStatus is the JSON shape returned by GET /status.
type SystemStatus struct {
	Mode          string    `json:"mode"` // "paper" | "live"
	Running       bool      `json:"running"`
	Paused        bool      `json:"paused"`
	StartedAt     time.Time `json:"started_at"`
	UptimeMinutes float64   `json:"uptime_minutes"`
	OpenPositions int       `json:"open_positions"`
	LastScanAt    time.Time `json:"last_scan_at,omitempty"`
}

// Server wraps a gin engine over a StatusProvider. No authentication: it
// is expected to bind to localhost or sit behind an operator-only proxy.
type Server struct {
	provider StatusProvider
	router   *gin.Engine
}

func NewServer(provider StatusProvider) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{provider: provider, router: router}
	router.GET("/health", s.handleHealth)
	router.GET("/status", s.handleStatus)
	router.GET("/risk", s.handleRisk)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.provider.SystemStatus())
}

func (s *Server) handleRisk(c *gin.Context) {
	c.JSON(http.StatusOK, s.provider.RiskStatus())
}
