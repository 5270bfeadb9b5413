package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edirooss/scriptd/internal/service"
)

const (
	defaultExits = 20
	maxExits     = 1000
)

// ExitsHandler serves the exit history.
type ExitsHandler struct {
	svc *service.ExitService
}

func NewExitsHandler(svc *service.ExitService) *ExitsHandler {
	return &ExitsHandler{svc: svc}
}

// Recent handles GET /exits?n=20.
func (h *ExitsHandler) Recent(c *gin.Context) {
	n := int64(defaultExits)
	if s := c.Query("n"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid n"})
			return
		}
		n = min(v, maxExits)
	}

	recs, err := h.svc.Recent(c.Request.Context(), n)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.Header("X-Total-Count", strconv.Itoa(len(recs)))
	source := "memory"
	if h.svc.Persistent() {
		source = "redis"
	}
	c.Header("X-Exit-Source", source)
	c.JSON(http.StatusOK, recs)
}
