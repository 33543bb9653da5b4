package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusRequested = "requested"

	errHoldTimeSave = "failed to save hold time"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// doorStateBody is the common door status payload.
func (h *Handler) doorStateBody() gin.H {
	return gin.H{
		"state":         h.door.State().String(),
		"connected":     h.door.IsConnected(),
		"hold_time_sec": h.door.HoldTime(),
	}
}

// @Summary      Open door (manual)
// @Description  Fire-and-forget: the state only changes once the controller reports door motion.
// @Tags         door
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/door/open [post]
// @Security     BearerAuth
func (h *Handler) openDoor(c *gin.Context) {
	h.door.OpenDoor()
	c.JSON(http.StatusOK, gin.H{"status": statusRequested, "door": h.doorStateBody()})
}

// @Summary      Close door
// @Tags         door
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/door/close [post]
// @Security     BearerAuth
func (h *Handler) closeDoor(c *gin.Context) {
	h.door.CloseDoor()
	c.JSON(http.StatusOK, gin.H{"status": statusRequested, "door": h.doorStateBody()})
}

// @Summary      Door state
// @Tags         door
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/door/state [get]
// @Security     BearerAuth
func (h *Handler) doorState(c *gin.Context) {
	c.JSON(http.StatusOK, h.doorStateBody())
}

type holdTimeRequest struct {
	Seconds int `json:"seconds" binding:"min=0"`
}

// @Summary      Set auto-close hold time
// @Tags         door
// @Accept       json
// @Produce      json
// @Param        body  body  holdTimeRequest  true  "Hold time payload"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/door/hold-time [put]
// @Security     BearerAuth
func (h *Handler) setHoldTime(c *gin.Context) {
	var req holdTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	// Runtime first, then persistence: the controller must honor the new
	// value even if the settings row write fails.
	h.door.SetHoldTime(req.Seconds)
	if err := h.services.Settings.SetHoldTime(req.Seconds); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errHoldTimeSave, "settings_hold_time_failed", err, "seconds", req.Seconds)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "door": h.doorStateBody()})
}
