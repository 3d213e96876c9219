package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"coinport.io/internal/deposit/domain"
	"coinport.io/internal/deposit/service"
	"coinport.io/pkg/common"
	"coinport.io/pkg/logger"
	"coinport.io/pkg/xerr"
)

// webhookAck 索引服务约定的应答格式，跟内部统一返回格式是两套
type webhookAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Webhook struct {
	receiver *service.Receiver
	events   domain.EventRepo
}

func NewWebhook(receiver *service.Receiver, events domain.EventRepo) *Webhook {
	return &Webhook{
		receiver: receiver,
		events:   events,
	}
}

// Receive POST /api/webhooks/deposit
// 无条件 200：只要原始事件存下来了就 ack，处理结果从不同步暴露。
// 对端超时/非 2xx 都会重投，慢处理会引发重复投递风暴，所以这里绝不等下游。
func (h *Webhook) Receive(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusInternalServerError, webhookAck{
			Success: false,
			Message: "Failed to process webhook",
		})
		return
	}

	_, err = h.receiver.Receive(
		c.Request.Context(),
		payload,
		c.Request.Header,
		c.ClientIP(),
		c.Request.UserAgent(),
	)
	if err != nil {
		// 只有落库失败才会走到这里，500 让对端重投
		logger.Error(c, "persist raw webhook event failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, webhookAck{
			Success: false,
			Message: "Failed to process webhook",
		})
		return
	}

	c.JSON(http.StatusOK, webhookAck{
		Success: true,
		Message: "Webhook received",
	})
}

// ListEvents GET /api/webhooks/events?processed=true&page=1&limit=20
// 运维面：处理结果不回给 webhook 调用方，出了问题从这里查
func (h *Webhook) ListEvents(c *gin.Context) {
	var processed *bool
	if raw := c.Query("processed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			common.Fail(c, http.StatusBadRequest, xerr.RequestParamsError, "processed 参数必须是布尔值")
			return
		}
		processed = &v
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	events, err := h.events.ListEvents(c.Request.Context(), processed, page, limit)
	if err != nil {
		common.FailLogged(c, http.StatusInternalServerError, xerr.DbError, "查询事件失败", err)
		return
	}
	common.Success(c, events)
}
