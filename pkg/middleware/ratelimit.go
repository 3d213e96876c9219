package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"coinport.io/pkg/common"
	"coinport.io/pkg/logger"
	"coinport.io/pkg/metrics"
	"coinport.io/pkg/ratelimit"
)

func RateLimit(store *ratelimit.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := c.ClientIP() + ":" + route

		if !store.Allow(key) {
			// 限流属于"可控拒绝"，不要打堆栈（webhook 重试风暴会炸日志）
			logger.Warn(c, "http rate limited",
				zap.String("request_id", common.RequestIDFromGin(c)),
				zap.String("ip", c.ClientIP()),
				zap.String("route", route),
			)
			metrics.RateLimitBlockTotal.WithLabelValues("deposit-service", route, "token_bucket").Inc()
			common.Fail(c, http.StatusTooManyRequests, 1003001, "请求过于频繁")
			c.Abort()
			return
		}
		c.Next()
	}
}
