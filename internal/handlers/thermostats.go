package handlers

import (
	"errors"
	"net/http"
	"time"

	"thermostat_control/internal/engine"
	"thermostat_control/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK           = "ok"
	statusEnabled      = "enabled"
	statusDisabled     = "disabled"
	statusSetpointSet  = "setpoint_set"
	statusAcknowledged = "acknowledged"
	statusRecorded     = "recorded"

	errUnknownThermostat = "unknown thermostat"
	errGetState          = "failed to load state"
	errControl           = "failed to update thermostat"
	errInvalidBodyPref   = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// respondControlError maps service errors of a control call to a status code.
func (h *Handler) respondControlError(c *gin.Context, id, logKey string, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownThermostat):
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownThermostat})
	case errors.Is(err, engine.ErrInvalidSetpoint), errors.Is(err, engine.ErrMalformedSample):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errControl, logKey, err, "thermostat_id", id)
	}
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, id, status string, extra gin.H) {
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(c.Request.Context(), id)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

type setpointRequest struct {
	Setpoint *float64 `json:"setpoint" binding:"required"`
}

// SetpointRequest is an exported model for Swagger docs of the setpoint payload.
type SetpointRequest struct {
	// Target temperature in °C, must be > 0
	Setpoint float64 `json:"setpoint" example:"21.5"`
}

// SampleRequest is a temperature reading pushed over HTTP.
type SampleRequest struct {
	Source string   `json:"source" binding:"required" example:"v1/home/boiler/T1/value"`
	Value  *float64 `json:"value" binding:"required" example:"20.4"`
	// Observation time, RFC3339; defaults to the server clock
	ObservedAt time.Time `json:"observed_at,omitempty" example:"2025-01-10T12:00:00Z"`
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

// @Summary      List thermostats
// @Tags         thermostats
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, thermostats"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/thermostats [get]
// @Security     BearerAuth
func (h *Handler) listThermostats(c *gin.Context) {
	states, err := h.services.Monitoring.ListStates(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "thermostat_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":       len(states),
		"thermostats": states,
	})
}

// @Summary      Get thermostat state
// @Tags         thermostats
// @Produce      json
// @Param        id   path      string  true  "Thermostat id"
// @Success      200  {object}  models.ThermostatState
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/thermostats/{id}/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	id := c.Param("id")
	st, err := h.services.Monitoring.GetState(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUnknownThermostat) {
			c.JSON(http.StatusNotFound, gin.H{"error": errUnknownThermostat})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "thermostat_get_state_failed", err, "thermostat_id", id)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Get thermostat settings
// @Tags         thermostats
// @Produce      json
// @Param        id   path      string  true  "Thermostat id"
// @Success      200  {object}  service.SettingsView
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/thermostats/{id}/settings [get]
// @Security     BearerAuth
func (h *Handler) getSettings(c *gin.Context) {
	id := c.Param("id")
	v, err := h.services.Monitoring.GetSettings(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUnknownThermostat) {
			c.JSON(http.StatusNotFound, gin.H{"error": errUnknownThermostat})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "thermostat_get_settings_failed", err, "thermostat_id", id)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary      Enable thermostat
// @Tags         thermostats
// @Produce      json
// @Param        id   path      string  true  "Thermostat id"
// @Success      200  {object}  map[string]interface{}  "status, state"
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/thermostats/{id}/enable [post]
// @Security     BearerAuth
func (h *Handler) enable(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.Control.Enable(c.Request.Context(), id); err != nil {
		h.respondControlError(c, id, "thermostat_enable_failed", err)
		return
	}
	h.log.Infow("thermostat_enabled", "thermostat_id", id, operatorKey, currentOperator(c))
	h.respondWithStatusAndState(c, id, statusEnabled, nil)
}

// @Summary      Disable thermostat
// @Description  The heater is released on the next regulator tick
// @Tags         thermostats
// @Produce      json
// @Param        id   path      string  true  "Thermostat id"
// @Success      200  {object}  map[string]interface{}  "status, state"
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/thermostats/{id}/disable [post]
// @Security     BearerAuth
func (h *Handler) disable(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.Control.Disable(c.Request.Context(), id); err != nil {
		h.respondControlError(c, id, "thermostat_disable_failed", err)
		return
	}
	h.log.Infow("thermostat_disabled", "thermostat_id", id, operatorKey, currentOperator(c))
	h.respondWithStatusAndState(c, id, statusDisabled, nil)
}

// @Summary      Set setpoint
// @Tags         thermostats
// @Accept       json
// @Produce      json
// @Param        id    path   string           true  "Thermostat id"
// @Param        body  body   SetpointRequest  true  "Setpoint payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/thermostats/{id}/setpoint [post]
// @Security     BearerAuth
func (h *Handler) setSetpoint(c *gin.Context) {
	id := c.Param("id")
	var req setpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Control.SetSetpoint(c.Request.Context(), id, *req.Setpoint); err != nil {
		h.respondControlError(c, id, "thermostat_set_setpoint_failed", err)
		return
	}
	h.respondWithStatusAndState(c, id, statusSetpointSet, gin.H{"setpoint": *req.Setpoint})
}

// @Summary      Apply settings patch
// @Description  Every recognized key is validated on its own; invalid keys are reported and skipped
// @Tags         thermostats
// @Accept       json
// @Produce      json
// @Param        id    path   string                  true  "Thermostat id"
// @Param        body  body   map[string]interface{}  true  "Partial settings"
// @Success      200   {object}  engine.PatchReport
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/thermostats/{id}/settings [post]
// @Security     BearerAuth
func (h *Handler) applySettings(c *gin.Context) {
	id := c.Param("id")
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if patch == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + "expected a JSON object"})
		return
	}
	report, err := h.services.Control.ApplySettings(c.Request.Context(), id, patch)
	if err != nil {
		h.respondControlError(c, id, "thermostat_apply_settings_failed", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// @Summary      Acknowledge alarm
// @Tags         thermostats
// @Produce      json
// @Param        id   path      string  true  "Thermostat id"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/thermostats/{id}/ack-alarm [post]
// @Security     BearerAuth
func (h *Handler) ackAlarm(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.Control.AcknowledgeAlarm(c.Request.Context(), id); err != nil {
		h.respondControlError(c, id, "thermostat_ack_alarm_failed", err)
		return
	}
	h.log.Infow("alarm_acknowledged", "thermostat_id", id, operatorKey, currentOperator(c))
	h.respondWithStatusAndState(c, id, statusAcknowledged, nil)
}

// @Summary      Record temperature sample
// @Tags         thermostats
// @Accept       json
// @Produce      json
// @Param        id    path   string         true  "Thermostat id"
// @Param        body  body   SampleRequest  true  "Sample payload"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/thermostats/{id}/samples [post]
// @Security     BearerAuth
func (h *Handler) recordSample(c *gin.Context) {
	id := c.Param("id")
	var req SampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Control.RecordSample(c.Request.Context(), id, req.Source, *req.Value, req.ObservedAt); err != nil {
		h.respondControlError(c, id, "thermostat_record_sample_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusRecorded})
}
