package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/service"
	"gorm.io/gorm"
)

const (
	sessionUserIDKey   = "user_id"
	sessionUsernameKey = "username"
	defaultLoadTimeout = 5 * time.Second
)

// Options 汇总 API 的可配置项。
type Options struct {
	UploadDir         string
	UploadURL         string
	GenerationBaseURL string
	Generation        service.GenerationSettings
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	sessions    *service.Sessions
	auth        *service.AuthService
	system      *service.SystemSettingService
	reviews     service.ReviewGenerator
	uploadDir   string
	uploadURL   string
	now         func() time.Time
	loadTimeout time.Duration
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, sessions *service.Sessions, opts Options) *API {
	systemService := service.NewSystemSettingService(db, opts.Generation)
	systemService.SetBaseURL(opts.GenerationBaseURL)

	uploadURL := strings.TrimRight(strings.TrimSpace(opts.UploadURL), "/")
	if uploadURL == "" {
		uploadURL = "/static/uploads"
	}
	uploadDir := strings.TrimSpace(opts.UploadDir)
	if uploadDir == "" {
		uploadDir = "web/static/uploads"
	}

	return &API{
		db:          db,
		sessions:    sessions,
		auth:        service.NewAuthService(db),
		system:      systemService,
		reviews:     service.NewAIReviewService(systemService, opts.GenerationBaseURL),
		uploadDir:   uploadDir,
		uploadURL:   uploadURL,
		now:         time.Now,
		loadTimeout: defaultLoadTimeout,
	}
}

// SetReviewGenerator 替换周报生成实现，主要用于测试。
func (a *API) SetReviewGenerator(g service.ReviewGenerator) {
	if g != nil {
		a.reviews = g
	}
}

// SetClock 替换统计使用的时间来源，主要用于测试。
func (a *API) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	a.now = now
}

// controller 解析设备与会话身份并返回已完成首次加载的控制器。
// 没有设备 Cookie 的匿名只读请求拿到的是只含默认数据的临时控制器，不会登记设备。
func (a *API) controller(c *gin.Context) (*service.SyncController, bool) {
	identity := sessionIdentity(c)
	deviceID, known := deviceIDFromCookie(c)

	var (
		ctrl *service.SyncController
		err  error
	)
	switch {
	case !known && identity == "" && isReadOnly(c.Request.Method):
		a.issueDeviceID(c)
		ctrl, err = a.sessions.Transient(c.Request.Context())
	default:
		if !known {
			deviceID = a.issueDeviceID(c)
		}
		ctrl, err = a.sessions.Get(c.Request.Context(), deviceID, identity)
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "加载数据失败")
		return nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), a.loadTimeout)
	defer cancel()
	if err := ctrl.WaitLoaded(ctx); err != nil {
		respondError(c, http.StatusServiceUnavailable, "数据同步中，请稍后重试")
		return nil, false
	}
	return ctrl, true
}

func isReadOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func sessionIdentity(c *gin.Context) string {
	session := sessions.Default(c)
	if username, ok := session.Get(sessionUsernameKey).(string); ok {
		return strings.TrimSpace(username)
	}
	return ""
}
