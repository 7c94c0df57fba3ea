package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"thermostat_control/internal/service"

	"github.com/gin-gonic/gin"
)

// operatorKey holds the authenticated operator id in the gin context.
const operatorKey = "operator_id"

var (
	errMissingAuth   = errors.New("missing Authorization header")
	errMalformedAuth = errors.New("invalid Authorization header format")
)

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingAuth
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || scheme != "Bearer" || token == "" {
		return "", errMalformedAuth
	}
	return token, nil
}

// requireOperator rejects requests without a valid bearer token and tags the
// request context with the operator, so control events are attributed to them.
func (h *Handler) requireOperator(c *gin.Context) {
	token, err := bearerToken(c.GetHeader("Authorization"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	operatorID, err := h.services.ParseToken(token)
	if err != nil {
		h.log.Debugw("token_rejected", "err", err, "path", c.FullPath())
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	c.Set(operatorKey, operatorID)
	c.Request = c.Request.WithContext(service.WithOperator(c.Request.Context(), operatorID))
	c.Next()
}

// currentOperator returns the id stored by requireOperator, or 0.
func currentOperator(c *gin.Context) int {
	return c.GetInt(operatorKey)
}

// accessLog writes one line per request. Server errors log at warn level.
func (h *Handler) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()

	status := c.Writer.Status()
	kv := []interface{}{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", status,
		"duration", time.Since(start).String(),
	}
	if id := currentOperator(c); id > 0 {
		kv = append(kv, operatorKey, id)
	}
	if status >= http.StatusInternalServerError {
		h.log.Warnw("http_request", kv...)
		return
	}
	h.log.Debugw("http_request", kv...)
}
