package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// rcvDataRequest/nodeErrorRequest/timeoutRequest are the JSON bodies the
// client bootstrap posts against the server's RPC surface (spec.md §4.8,
// §6). DeadlineSeconds on a start_timeout call is the composition's own
// computed timeout (composition.SystemComposition.Timeout), sent once by
// the client rather than recomputed server-side.
type rcvDataRequest struct {
	Hash   string `json:"hash" binding:"required"`
	Result any    `json:"result"`
}

type nodeErrorRequest struct {
	Hash   string `json:"hash" binding:"required"`
	Reason string `json:"reason"`
}

type timeoutRequest struct {
	Hash            string  `json:"hash" binding:"required"`
	DeadlineSeconds float64 `json:"deadline_seconds"`
}

// buildRouter wires spec.md §4.8's four RPC methods as JSON POST routes,
// grounded on the teacher's engine/infra/server/router package's use of
// gin as Compozy's own control-plane transport.
func (s *Server) buildRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/rcv_data", func(c *gin.Context) {
		var req rcvDataRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.rcvData(req.Hash, req.Result); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.POST("/node_error", func(c *gin.Context) {
		var req nodeErrorRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.nodeError(req.Hash, req.Reason); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.POST("/start_timeout", func(c *gin.Context) {
		var req timeoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		deadline := time.Duration(req.DeadlineSeconds * float64(time.Second))
		if err := s.startTimeout(req.Hash, deadline); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.POST("/stop_timeout", func(c *gin.Context) {
		var req timeoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.stopTimeout(req.Hash); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"nodes": s.nodeStatuses()})
	})

	if s.cfg.MonitoringEnabled {
		r.GET(s.cfg.MonitoringPath, gin.WrapH(s.metrics.Handler()))
	}

	s.router = r
}
