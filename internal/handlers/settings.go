package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type toggleRequest struct {
	// Name is one of the settings toggle columns:
	// passcode_enabled | fingerprint_enabled | face_recognition_enabled
	Name    string `json:"name" binding:"required"`
	Enabled bool   `json:"enabled"`
}

// @Summary      Get settings
// @Tags         settings
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/settings [get]
// @Security     BearerAuth
func (h *Handler) getSettings(c *gin.Context) {
	// Get never fails hard: a store outage serves the last-known snapshot.
	s, _ := h.services.Settings.Get()
	c.JSON(http.StatusOK, s)
}

// @Summary      Flip a feature toggle
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        body  body  toggleRequest  true  "Toggle payload"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/settings/toggles [put]
// @Security     BearerAuth
func (h *Handler) setToggle(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	if err := h.services.Settings.SetToggle(req.Name, req.Enabled); err != nil {
		// Unknown toggle names are caller errors; anything else is storage.
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}
