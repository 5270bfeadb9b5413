package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edirooss/scriptd/internal/http/dto"
	"github.com/edirooss/scriptd/internal/service"
	"github.com/edirooss/scriptd/pkg/jsonx"
)

// LimitsHandler reads and adjusts the live-process limit.
type LimitsHandler struct {
	svc *service.InterpService
}

func NewLimitsHandler(svc *service.InterpService) *LimitsHandler {
	return &LimitsHandler{svc: svc}
}

func (h *LimitsHandler) Mount(g gin.IRoutes) {
	g.GET("/limits", h.Get)
	g.PUT("/limits", h.Update)
}

// Get handles GET /limits → {"max_procs": n, "live": n}.
func (h *LimitsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Usage())
}

// Update handles PUT /limits. Lowering the limit never kills anything;
// new processes are refused until enough of the current ones finish.
func (h *LimitsHandler) Update(c *gin.Context) {
	var body dto.LimitsUpdate
	if err := jsonx.ParseStrictJSONBody(c.Request, &body); err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	n, err := body.MaxProcsValue()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	h.svc.SetMaxProcs(n)
	c.JSON(http.StatusOK, h.svc.Usage())
}
