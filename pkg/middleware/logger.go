package middleware

import (
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
)

func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}
			stop := time.Now()

			ctx := c.Request().Context()
			fields := context.LogFields(ctx)
			fields["uri"] = req.RequestURI
			fields["status"] = res.Status
			fields["route"] = c.Path()
			fields["protocol"] = req.Proto
			fields["user_agent"] = req.UserAgent()
			fields["response_time"] = stop.Sub(start).String()
			fields["request_size"] = req.Header.Get(echo.HeaderContentLength)
			fields["response_size"] = strconv.FormatInt(res.Size, 10)

			logger.WithContext(ctx).WithFields(fields).Info("Request")

			return nil
		}
	}
}
