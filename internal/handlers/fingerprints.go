package handlers

import (
	"net/http"
	"strconv"

	"smartdoor/internal/fingerprint"

	"github.com/gin-gonic/gin"
)

// respondProvisioning maps a channel result to HTTP: hardware refusals and
// timeouts are 502 (the upstream device failed), success is 200.
func (h *Handler) respondProvisioning(c *gin.Context, op string, res fingerprint.Result) {
	if !res.OK {
		if h.log != nil {
			h.log.Warnw("fingerprint_op_failed", "op", op, "message", res.Message)
		}
		c.JSON(http.StatusBadGateway, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Enroll fingerprint
// @Description  Blocks until the sensor finishes or the enroll timeout passes. Value is the enrolled slot id.
// @Tags         fingerprints
// @Produce      json
// @Success      200  {object}  fingerprint.Result
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  fingerprint.Result
// @Router       /api/v1/fingerprints/enroll [post]
// @Security     BearerAuth
func (h *Handler) enrollFingerprint(c *gin.Context) {
	h.respondProvisioning(c, "enroll", h.fp.Enroll())
}

// @Summary      Delete fingerprint
// @Tags         fingerprints
// @Produce      json
// @Param        id  path  int  true  "Sensor slot id"
// @Success      200  {object}  fingerprint.Result
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  fingerprint.Result
// @Router       /api/v1/fingerprints/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteFingerprint(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	h.respondProvisioning(c, "delete", h.fp.Delete(id))
}

// @Summary      Delete all fingerprints
// @Tags         fingerprints
// @Produce      json
// @Success      200  {object}  fingerprint.Result
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  fingerprint.Result
// @Router       /api/v1/fingerprints [delete]
// @Security     BearerAuth
func (h *Handler) deleteAllFingerprints(c *gin.Context) {
	h.respondProvisioning(c, "delete_all", h.fp.DeleteAll())
}

// @Summary      First empty sensor slot
// @Tags         fingerprints
// @Produce      json
// @Success      200  {object}  fingerprint.Result
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  fingerprint.Result
// @Router       /api/v1/fingerprints/first-empty [get]
// @Security     BearerAuth
func (h *Handler) firstEmptySlot(c *gin.Context) {
	h.respondProvisioning(c, "first_empty", h.fp.FirstEmptySlot())
}
