package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"thermostat_control/internal/models"
	"thermostat_control/internal/service"

	"github.com/gin-gonic/gin"
)

const layoutDateTime = "2006-01-02 15:04:05"

// queryTimeLayouts are tried in order; the last one is date-only.
var queryTimeLayouts = []string{time.RFC3339, layoutDateTime, time.DateOnly}

type logsQuery struct {
	From       string `form:"from"`
	To         string `form:"to"`
	Type       string `form:"type"`
	Thermostat string `form:"thermostat"`
	Operator   int    `form:"operator" binding:"omitempty,min=1"`
	Limit      int    `form:"limit" binding:"omitempty,min=1"`
}

// LogsResponse is the body of GET /api/v1/logs.
type LogsResponse struct {
	Count  int                      `json:"count"`
	Events []models.ThermostatEvent `json:"events"`
}

// @Summary      List logs
// @Description  Newest events matching the filters, returned oldest first. 'to' given as a date covers that whole day.
// @Tags         logs
// @Produce      json
// @Param        from        query   string  false  "Start of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-08-01)
// @Param        to          query   string  false  "End of range, inclusive"  example(2025-08-31)
// @Param        type        query   string  false  "Event type"  Enums(ENABLE,DISABLE,SETPOINT,SETTINGS,ALARM_ACK,HEATER_ON,HEATER_OFF,ALARM,SCHEDULED_SHUTDOWN)
// @Param        thermostat  query   string  false  "Thermostat id"
// @Param        operator    query   int     false  "Operator id"
// @Param        limit       query   int     false  "Max events (default 500, capped at 5000)"
// @Success      200   {object}  LogsResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	var q logsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
		return
	}

	from, _, err := parseQueryTime(q.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from': " + err.Error()})
		return
	}
	to, dateOnly, err := parseQueryTime(q.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to': " + err.Error()})
		return
	}
	if dateOnly {
		to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	filter := service.LogFilter{
		From:         from,
		To:           to,
		Type:         q.Type,
		ThermostatID: q.Thermostat,
		OperatorID:   q.Operator,
		Limit:        q.Limit,
	}
	events, err := h.services.EventLog.List(c.Request.Context(), filter)
	switch {
	case errors.Is(err, service.ErrInvalidTimeRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": "'from' must be <= 'to'"})
		return
	case errors.Is(err, service.ErrUnknownEventType), errors.Is(err, service.ErrInvalidLimit):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load logs", "logs_list_failed", err,
			"thermostat_id", filter.ThermostatID, "type", filter.Type)
		return
	}
	c.JSON(http.StatusOK, LogsResponse{Count: len(events), Events: events})
}

// parseQueryTime parses s with queryTimeLayouts and reports whether it had no time part.
// An empty s yields the zero time.
func parseQueryTime(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	for i, layout := range queryTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), i == len(queryTimeLayouts)-1, nil
		}
	}
	return time.Time{}, false, errors.New("use RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'")
}
