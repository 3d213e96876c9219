package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"coinport.io/internal/deposit/domain"
	"coinport.io/internal/deposit/repo/persistence"
	"coinport.io/internal/deposit/service"
	"coinport.io/internal/deposit/worker"
	"coinport.io/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("handler-test", "error")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newRepo(t *testing.T) *persistence.Repo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := persistence.New(db)
	require.NoError(t, repo.AutoMigrate())
	return repo
}

func newWebhookRouter(receiver *service.Receiver, events domain.EventRepo) *gin.Engine {
	h := NewWebhook(receiver, events)
	r := gin.New()
	r.POST("/api/webhooks/deposit", h.Receive)
	r.GET("/api/webhooks/events", h.ListEvents)
	return r
}

func TestWebhookReceive_落库即200(t *testing.T) {
	repo := newRepo(t)
	pool := worker.New(&worker.Config{ConsumerCount: 1, QueueSize: 16}, func(ctx context.Context, job worker.Job) error {
		return nil
	})
	// 消费池不启动：只验证接收边界，不跑处理链路
	router := newWebhookRouter(service.NewReceiver(repo, pool), repo)

	body := []byte(`{"subscriptionType":"native-coin-transfer","toAddress":"0xabc","amount":"1","txId":"tx-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/deposit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// 对端约定的 ack 格式，处理结果不在这里暴露
	require.Equal(t, http.StatusOK, w.Code)
	var ack webhookAck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.True(t, ack.Success)
	assert.Equal(t, "Webhook received", ack.Message)

	// 原始事件已经落库，payload 原样保存，状态 received
	events, err := repo.ListEvents(context.Background(), nil, 1, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, body, events[0].Payload)
	assert.False(t, events[0].Processed)
	assert.NotEmpty(t, events[0].EventID)
}

// 落库失败的打桩
type failingEventRepo struct{ domain.EventRepo }

func (f *failingEventRepo) CreateEvent(ctx context.Context, event *domain.RawWebhookEvent) error {
	return assert.AnError
}

func TestWebhookReceive_落库失败回500(t *testing.T) {
	pool := worker.New(&worker.Config{ConsumerCount: 1, QueueSize: 16}, func(ctx context.Context, job worker.Job) error {
		return nil
	})
	failing := &failingEventRepo{}
	router := newWebhookRouter(service.NewReceiver(failing, pool), failing)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/deposit", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// 非 2xx 会让对端重投，事件不会丢
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var ack webhookAck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.False(t, ack.Success)
	assert.Equal(t, "Failed to process webhook", ack.Message)
}

func TestWebhookReceive_队列满也回200(t *testing.T) {
	repo := newRepo(t)
	pool := worker.New(&worker.Config{ConsumerCount: 1, QueueSize: 1}, func(ctx context.Context, job worker.Job) error {
		return nil
	})
	// 不启动消费者，第二条开始队列就是满的
	router := newWebhookRouter(service.NewReceiver(repo, pool), repo)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/deposit", bytes.NewReader([]byte(`{}`)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	// 三条都落库了，队列满只影响处理时机
	events, err := repo.ListEvents(context.Background(), nil, 1, 10)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestListEvents_参数校验(t *testing.T) {
	repo := newRepo(t)
	pool := worker.New(&worker.Config{ConsumerCount: 1, QueueSize: 16}, func(ctx context.Context, job worker.Job) error {
		return nil
	})
	router := newWebhookRouter(service.NewReceiver(repo, pool), repo)

	req := httptest.NewRequest(http.MethodGet, "/api/webhooks/events?processed=maybe", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/webhooks/events", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
