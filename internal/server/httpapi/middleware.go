package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/relaytale/internal/common"
	"github.com/dmitrijs2005/relaytale/internal/logging"
	"github.com/dmitrijs2005/relaytale/internal/server/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger logs every request except health and metrics probes, and
// records request metrics. A request id is taken from X-Request-ID or
// generated, and echoed back.
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(latency.Seconds())

		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		args := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"ip", c.ClientIP(),
			"latency", latency,
			"request_id", requestID,
		}

		ctx := c.Request.Context()
		switch {
		case len(c.Errors) > 0 && status >= http.StatusInternalServerError:
			log.Error(ctx, "Server error", append(args, "error", c.Errors.Last().Err)...)
		case status >= http.StatusInternalServerError:
			log.Error(ctx, "Server error", args...)
		case status >= http.StatusBadRequest:
			log.Warn(ctx, "Client error", args...)
		default:
			log.Info(ctx, "Request completed", args...)
		}
	}
}

// Authenticate resolves the caller from a bearer token or the access token
// cookie and stores their user id in the gin context. Requests without a
// usable identity are rejected here.
func (h *Handler) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := h.accessToken(c)
		if token == "" {
			tokenVerificationsTotal.WithLabelValues("missing").Inc()
			h.handleServiceError(c, common.ErrorUnauthorized)
			return
		}

		id, err := auth.ParseIdentity(token, h.secret)
		if err != nil {
			tokenVerificationsTotal.WithLabelValues("failure").Inc()
			h.log.Debug(c.Request.Context(), "access token rejected", "error", err)
			h.handleServiceError(c, err)
			return
		}
		tokenVerificationsTotal.WithLabelValues("success").Inc()

		user, err := h.users.EnsureUser(c.Request.Context(), id.ExternalID)
		if err != nil {
			h.handleServiceError(c, err)
			return
		}

		c.Set(common.UserIDContextKey, user.ID)
		c.Set(userNameContextKey, id.UserName)
		c.Next()
	}
}

const userNameContextKey = "user_name"

func (h *Handler) accessToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := c.Cookie(h.cookieName); err == nil {
		return cookie
	}
	return ""
}

func userID(c *gin.Context) string {
	return c.GetString(common.UserIDContextKey)
}
