package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
	"coinport.io/internal/deposit/handler"
	"coinport.io/pkg/middleware"
	"coinport.io/pkg/ratelimit"
)

// NewRouter 组装 gin 引擎
// 中间件顺序：trace → request id → cors → recover → 限流
func NewRouter(webhook *handler.Webhook, account *handler.Account, qps float64, burst int) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(otelgin.Middleware("deposit-service"))
	r.Use(middleware.ReqId())
	r.Use(cors.Default())
	r.Use(middleware.Recover())

	if qps <= 0 {
		qps = 50
	}
	if burst <= 0 {
		burst = 100
	}
	store := ratelimit.NewStore(rate.Limit(qps), burst, 10*time.Minute)
	r.Use(middleware.RateLimit(store))

	// /metrics 也挂在这个引擎上
	prom := ginprometheus.NewPrometheus("gin")
	prom.Use(r)

	api := r.Group("/api")
	{
		api.POST("/webhooks/deposit", webhook.Receive)
		api.GET("/webhooks/events", webhook.ListEvents)

		api.GET("/accounts/:account_id/balance", account.Balance)
		api.POST("/accounts/:account_id/deposit-address", account.ProvisionAddress)
	}

	return r
}
