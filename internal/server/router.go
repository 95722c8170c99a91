package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/townlab/devservices/internal/heartbeat"
	"github.com/townlab/devservices/internal/metrics"
	"github.com/townlab/devservices/internal/service"
)

// Router provides the watchdog's embeddable observation handlers.
// Endpoints:
//
//	GET {basePath}/healthz     liveness of the watchdog itself
//	GET {basePath}/api/status  dispatcher report for every service
//	GET {basePath}/metrics     Prometheus exposition
//
// Everything is read-only; service control stays on the CLI.
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	sup      *service.Supervisor
	basePath string
}

// NewRouter constructs a Router with a configurable basePath.
// Example basePath: "/watchdog" results in /watchdog/healthz etc.
func NewRouter(sup *service.Supervisor, basePath string) *Router {
	return &Router{sup: sup, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/api/status", r.handleStatus)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// The caller shuts it down via http.Server's Close or Shutdown.
func NewServer(addr, basePath string, sup *service.Supervisor) (*http.Server, error) {
	r := NewRouter(sup, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type okResp struct {
	OK bool `json:"ok"`
}

// StatusResp is the /api/status document: the per-service reports in start
// order plus the aggregate verdict the status command exits on. Heartbeat
// carries the patrol document when one is on disk.
type StatusResp struct {
	Services  []service.Report `json:"services"`
	Failed    bool             `json:"failed"`
	Heartbeat *heartbeat.Doc   `json:"heartbeat,omitempty"`
}

func (r *Router) handleHealthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStatus(c *gin.Context) {
	reports := r.sup.StatusAll(c.Request.Context())
	resp := StatusResp{Services: reports, Failed: service.Failed(reports)}
	if doc, err := heartbeat.Read(r.sup.Config().HeartbeatFile()); err == nil {
		resp.Heartbeat = &doc
	}
	writeJSON(c, http.StatusOK, resp)
}
