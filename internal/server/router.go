package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gamewarden/gamewarden/internal/logbuf"
	"github.com/gamewarden/gamewarden/internal/metrics"
	"github.com/gamewarden/gamewarden/internal/mods"
	"github.com/gamewarden/gamewarden/internal/supervisor"
)

// Controller is the slice of the supervisor the HTTP layer drives.
type Controller interface {
	Start() error
	Stop() error
	Kill() error
	Status() supervisor.Snapshot
	Tail(n int) []logbuf.Line
	Subscribe() chan logbuf.Line
	Unsubscribe(ch chan logbuf.Line)
}

// ModLister is implemented by the mod scanner.
type ModLister interface {
	Scan(forceRefresh bool) ([]mods.Info, error)
}

// Router provides embeddable HTTP handlers for the control API.
// Endpoints under basePath:
//
//	POST /start    POST /stop    POST /kill
//	GET  /status   GET  /logs?n=K    GET /mods?refresh=1
//	GET  /console  (websocket, streams live output lines)
//
// Prometheus metrics are served outside basePath on /metrics.
type Router struct {
	ctl      Controller
	mods     ModLister
	basePath string
}

func NewRouter(ctl Controller, lister ModLister, basePath string) *Router {
	return &Router{ctl: ctl, mods: lister, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/kill", r.handleKill)
	group.GET("/status", r.handleStatus)
	group.GET("/logs", r.handleLogs)
	group.GET("/mods", r.handleMods)
	group.GET("/console", r.handleConsole)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, ctl Controller, lister ModLister) *http.Server {
	r := NewRouter(ctl, lister, basePath)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

// controlStatus maps supervisor errors onto HTTP status codes. Lifecycle
// conflicts are 409 so clients can distinguish them from bad requests.
func controlStatus(err error) int {
	switch {
	case errors.Is(err, supervisor.ErrAlreadyRunning), errors.Is(err, supervisor.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, supervisor.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) handleStart(c *gin.Context) {
	if err := r.ctl.Start(); err != nil {
		writeJSON(c, controlStatus(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStop(c *gin.Context) {
	if err := r.ctl.Stop(); err != nil {
		writeJSON(c, controlStatus(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleKill(c *gin.Context) {
	if err := r.ctl.Kill(); err != nil {
		writeJSON(c, controlStatus(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.ctl.Status())
}

func (r *Router) handleLogs(c *gin.Context) {
	n := supervisor.DefaultTailMax
	if s := c.Query("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "n must be a positive integer"})
			return
		}
		n = v
	}
	lines := r.ctl.Tail(n)
	if lines == nil {
		lines = []logbuf.Line{}
	}
	writeJSON(c, http.StatusOK, lines)
}

func (r *Router) handleMods(c *gin.Context) {
	if r.mods == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "mod scanning not configured"})
		return
	}
	list, err := r.mods.Scan(c.Query("refresh") == "1")
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if list == nil {
		list = []mods.Info{}
	}
	writeJSON(c, http.StatusOK, list)
}
