package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pomodoro/daemon/internal/apperr"
	"pomodoro/daemon/internal/schedule"
	"pomodoro/daemon/internal/snapshot"
	"pomodoro/daemon/internal/timer"
)

// TimerHandler exposes the coordinator's external triggers over HTTP.
type TimerHandler struct {
	core         *timer.Coordinator
	pub          *snapshot.Publisher
	snapshotPath string
}

func NewTimerHandler(core *timer.Coordinator, pub *snapshot.Publisher, snapshotPath string) *TimerHandler {
	return &TimerHandler{core: core, pub: pub, snapshotPath: snapshotPath}
}

func (h *TimerHandler) GetState(c *gin.Context) {
	view, apiErr := h.core.State()
	h.respond(c, view, apiErr)
}

func (h *TimerHandler) Start(c *gin.Context) {
	view, apiErr := h.core.Start()
	h.respond(c, view, apiErr)
}

func (h *TimerHandler) Pause(c *gin.Context) {
	view, apiErr := h.core.Pause()
	h.respond(c, view, apiErr)
}

func (h *TimerHandler) Toggle(c *gin.Context) {
	view, apiErr := h.core.Toggle()
	h.respond(c, view, apiErr)
}

func (h *TimerHandler) Skip(c *gin.Context) {
	view, apiErr := h.core.Skip()
	h.respond(c, view, apiErr)
}

func (h *TimerHandler) ResetPhase(c *gin.Context) {
	view, apiErr := h.core.ResetPhase()
	h.respond(c, view, apiErr)
}

func (h *TimerHandler) ResetCycle(c *gin.Context) {
	view, apiErr := h.core.ResetCycle()
	h.respond(c, view, apiErr)
}

// StartPhase handles the deep-link jump: /phase/:index/start.
func (h *TimerHandler) StartPhase(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		writeError(c, apperr.BadRequest("invalid_phase_index", "phase index must be an integer"))
		return
	}
	view, apiErr := h.core.StartPhase(index)
	h.respond(c, view, apiErr)
}

func (h *TimerHandler) ResumeSignal(c *gin.Context) {
	view, apiErr := h.core.HandleResumeSignal()
	h.respond(c, view, apiErr)
}

func (h *TimerHandler) StartFlow(c *gin.Context) {
	view, apiErr := h.core.StartFlow()
	h.respond(c, view, apiErr)
}

func (h *TimerHandler) StopFlow(c *gin.Context) {
	view, apiErr := h.core.StopFlow()
	h.respond(c, view, apiErr)
}

type cadenceRequest struct {
	Cadence string `json:"cadence"`
}

func (h *TimerHandler) SetCadence(c *gin.Context) {
	var req cadenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.BadRequest("invalid_json", "invalid request body"))
		return
	}
	policy, ok := schedule.ParseCadence(req.Cadence)
	if !ok {
		writeError(c, apperr.BadRequest("invalid_cadence", "cadence must be normal or power_saving"))
		return
	}
	view, apiErr := h.core.SetCadence(policy)
	h.respond(c, view, apiErr)
}

func (h *TimerHandler) GetHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	sessions, apiErr := h.core.History(c.Request.Context(), limit)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetSnapshot returns the same projection the snapshot file carries, for
// display surfaces that prefer polling over watching the file.
func (h *TimerHandler) GetSnapshot(c *gin.Context) {
	if snap, ok := h.pub.Last(); ok {
		c.JSON(http.StatusOK, snap)
		return
	}
	if snap, ok := snapshot.Read(h.snapshotPath); ok {
		c.JSON(http.StatusOK, snap)
		return
	}
	writeError(c, apperr.NotFound("no_snapshot", "no snapshot published yet"))
}

func (h *TimerHandler) respond(c *gin.Context, view *timer.StateView, apiErr *apperr.Error) {
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, view)
}
