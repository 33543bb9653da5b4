package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	errYearMonthInvalid = "invalid 'year'/'month'; use year=2025&month=8"
	errLoadLogs         = "failed to load logs"
)

// parseYearMonth reads the required year/month query pair.
func parseYearMonth(c *gin.Context) (int, time.Month, bool) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil || year < 2000 || year > 2200 {
		return 0, 0, false
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, time.Month(month), true
}

// @Summary      List access log for a month
// @Tags         logs
// @Produce      json
// @Param        year   query  int  true  "Year"   example(2025)
// @Param        month  query  int  true  "Month"  example(8)
// @Success      200  {object}  map[string]interface{}  "count, entries"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) listLogs(c *gin.Context) {
	year, month, ok := parseYearMonth(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": errYearMonthInvalid})
		return
	}
	entries, err := h.services.AccessLog.ListMonth(year, month)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadLogs, "logs_list_failed", err, "year", year, "month", month)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "entries": entries})
}

// @Summary      Recent granted openings
// @Tags         logs
// @Produce      json
// @Param        limit  query  int  false  "Max entries (default 20)"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/logs/recent [get]
// @Security     BearerAuth
func (h *Handler) recentOpenings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.services.AccessLog.RecentOpenings(limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadLogs, "logs_recent_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "entries": entries})
}

// @Summary      Clear access log for a month
// @Tags         logs
// @Produce      json
// @Param        year   query  int  true  "Year"
// @Param        month  query  int  true  "Month"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/logs [delete]
// @Security     BearerAuth
func (h *Handler) clearLogs(c *gin.Context) {
	year, month, ok := parseYearMonth(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": errYearMonthInvalid})
		return
	}
	if err := h.services.AccessLog.ClearMonth(year, month); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to clear logs", "logs_clear_failed", err, "year", year, "month", month)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Delete one access-log entry
// @Tags         logs
// @Produce      json
// @Param        id  path  string  true  "Entry id"
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/logs/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteLog(c *gin.Context) {
	if err := h.services.AccessLog.Delete(c.Param("id")); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to delete log entry", "logs_delete_failed", err, "id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}
