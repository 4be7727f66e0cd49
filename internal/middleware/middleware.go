package middleware

import (
	"log"
	"time"

	"communication-service/internal/utils"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const CorrelationIDHeader = "X-Correlation-ID"

// Setup installs the global middleware chain: a correlation id per
// request and an access log line carrying it.
func Setup(e *echo.Echo) {
	e.Use(correlationID)
	e.Use(requestLogger)
}

// correlationID tags every request. An inbound id from an upstream proxy
// is kept so one request can be traced across services.
func correlationID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(CorrelationIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("correlation_id", id)
		c.Response().Header().Set(CorrelationIDHeader, id)
		return next(c)
	}
}

func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		req := c.Request()
		log.Printf("[http] %s %s %d %s ip=%s ua=%q cid=%v",
			req.Method,
			req.URL.Path,
			c.Response().Status,
			time.Since(start),
			utils.GetIPAddress(req),
			utils.GetUserAgent(req),
			c.Get("correlation_id"),
		)
		return err
	}
}
