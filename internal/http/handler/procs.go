package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edirooss/scriptd/internal/http/dto"
	mw "github.com/edirooss/scriptd/internal/http/middleware"
	"github.com/edirooss/scriptd/internal/infrastructure/processmgr"
	"github.com/edirooss/scriptd/internal/service"
	"github.com/edirooss/scriptd/pkg/jsonx"
)

const defaultOutputLines = 100

// ProcsHandler provides HTTP handlers for script processes.
//
// Supported operations:
//   - GET    /procs              → List live processes
//   - POST   /procs              → Start a process
//   - GET    /procs/{pid}        → Process status
//   - GET    /procs/{pid}/output → Captured output, newest first
//   - POST   /procs/{pid}/wake   → Post a wake
//   - DELETE /procs/{pid}        → Kill
type ProcsHandler struct {
	log        *zap.Logger
	svc        *service.InterpService
	summarySvc *service.SummaryService
}

func NewProcsHandler(log *zap.Logger, svc *service.InterpService, summarySvc *service.SummaryService) *ProcsHandler {
	return &ProcsHandler{
		log:        log.Named("procs"),
		svc:        svc,
		summarySvc: summarySvc,
	}
}

// Mount registers the routes on g.
func (h *ProcsHandler) Mount(g gin.IRoutes) {
	validPID := mw.RequireValidPID()

	g.GET("/procs", h.List)
	g.POST("/procs", h.Create)
	g.GET("/procs/:pid", validPID, h.Get)
	g.GET("/procs/:pid/output", validPID, h.Output)
	g.POST("/procs/:pid/wake", validPID, h.Wake)
	g.DELETE("/procs/:pid", validPID, h.Delete)
}

// Create handles POST /procs.
//
// Status Codes:
//   - 201 Created → {"pid": n}, Location header
//   - 400 Bad Request → Invalid JSON, missing source, assembly or start failure
//   - 503 Service Unavailable → Process limit reached
func (h *ProcsHandler) Create(c *gin.Context) {
	var body dto.ProcCreate
	if err := jsonx.ParseStrictJSONBody(c.Request, &body); err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	req, err := body.ToExecRequest()
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	pid, err := h.svc.Exec(req)
	if err != nil {
		c.Error(err)
		switch {
		case errors.Is(err, processmgr.ErrTooManyProcesses):
			c.JSON(http.StatusServiceUnavailable, gin.H{"message": err.Error()})
		case errors.Is(err, service.ErrInvalidProgram):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		}
		return
	}
	h.summarySvc.Invalidate()

	c.Header("Location", "/api/procs/"+strconv.FormatInt(pid, 10))
	c.JSON(http.StatusCreated, gin.H{"pid": pid})
}

// List handles GET /procs. ?force=1 bypasses the cache.
func (h *ProcsHandler) List(c *gin.Context) {
	if c.Query("force") == "1" {
		h.summarySvc.Invalidate()
	}

	res, err := h.summarySvc.Get(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.Header("X-Cache", map[bool]string{true: "HIT", false: "MISS"}[res.CacheHit])
	c.Header("X-Summary-Generated-At", strconv.FormatInt(res.GeneratedAt.UnixMilli(), 10))
	c.Header("X-Total-Count", strconv.Itoa(len(res.Data)))
	c.JSON(http.StatusOK, res.Data)
}

// Get handles GET /procs/{pid}. Absent processes answer 404 with state Gone.
func (h *ProcsHandler) Get(c *gin.Context) {
	pid := mw.GetPID(c)
	st := h.svc.Status(pid)

	out := dto.ProcStatus{
		PID:    pid,
		State:  st.State.Kind.String(),
		Reason: st.State.Reason,
		Cycles: st.Cycles,
	}
	if st.State.Kind == processmgr.Gone {
		c.JSON(http.StatusNotFound, out)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Output handles GET /procs/{pid}/output?lines=n (n >= 1, default 100).
func (h *ProcsHandler) Output(c *gin.Context) {
	pid := mw.GetPID(c)

	n := defaultOutputLines
	if s := c.Query("lines"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "lines must be a positive integer"})
			return
		}
		n = v
	}

	lines := h.svc.Output(pid, n)
	if lines == nil && h.svc.Status(pid).State.Kind == processmgr.Gone {
		c.JSON(http.StatusNotFound, gin.H{"message": "process not found"})
		return
	}
	if lines == nil {
		lines = []string{}
	}
	c.JSON(http.StatusOK, lines)
}

// Wake handles POST /procs/{pid}/wake. Wakes for unknown pids are absorbed.
func (h *ProcsHandler) Wake(c *gin.Context) {
	h.svc.Wake(mw.GetPID(c))
	c.Status(http.StatusAccepted)
}

// Delete handles DELETE /procs/{pid}.
func (h *ProcsHandler) Delete(c *gin.Context) {
	reason := c.Query("reason")
	if reason == "" {
		reason = "killed by request"
	}

	if err := h.svc.Kill(mw.GetPID(c), reason); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	h.summarySvc.Invalidate()
	c.Status(http.StatusAccepted)
}
