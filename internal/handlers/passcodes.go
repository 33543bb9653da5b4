package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"smartdoor/internal/service"

	"github.com/gin-gonic/gin"
)

type mainPasscodeRequest struct {
	Code string `json:"code" binding:"required"`
}

type guestPasscodeRequest struct {
	Code         string `json:"code" binding:"required"`
	MinutesValid int    `json:"minutes_valid,omitempty"` // default 60
	OneTime      bool   `json:"one_time,omitempty"`
}

// @Summary      Set main passcode
// @Description  Replaces the current main passcode. Exactly 4 digits.
// @Tags         passcodes
// @Accept       json
// @Produce      json
// @Param        body  body  mainPasscodeRequest  true  "Passcode payload"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/passcodes/main [put]
// @Security     BearerAuth
func (h *Handler) setMainPasscode(c *gin.Context) {
	var req mainPasscodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	if err := h.services.Passcodes.SetMain(req.Code); err != nil {
		if errors.Is(err, service.ErrInvalidCode) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to set main passcode", "passcode_set_main_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Reveal main passcode
// @Description  Returns the decrypted main passcode, or empty when the vault is disabled.
// @Tags         passcodes
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/passcodes/main/reveal [get]
// @Security     BearerAuth
func (h *Handler) revealMainPasscode(c *gin.Context) {
	code, err := h.services.Passcodes.RevealMain()
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to reveal passcode", "passcode_reveal_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

// @Summary      Create guest passcode
// @Tags         passcodes
// @Accept       json
// @Produce      json
// @Param        body  body  guestPasscodeRequest  true  "Guest payload"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/passcodes/guest [post]
// @Security     BearerAuth
func (h *Handler) createGuestPasscode(c *gin.Context) {
	var req guestPasscodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	id, err := h.services.Passcodes.CreateGuest(req.Code, req.MinutesValid, req.OneTime)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCode) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to create guest passcode", "passcode_create_guest_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "id": id})
}

// @Summary      List active guest passcodes
// @Tags         passcodes
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, guests"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/passcodes/guest [get]
// @Security     BearerAuth
func (h *Handler) listGuestPasscodes(c *gin.Context) {
	guests, err := h.services.Passcodes.ListActiveGuests()
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to list guest passcodes", "passcode_list_guests_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(guests), "guests": guests})
}

// @Summary      Delete guest passcode
// @Tags         passcodes
// @Produce      json
// @Param        id  path  int  true  "Guest passcode id"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/passcodes/guest/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteGuestPasscode(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.services.Passcodes.DeleteGuest(id); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to delete guest passcode", "passcode_delete_guest_failed", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}
