package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/habitlog/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GenerationSettings 描述周报生成所需的可配置项。
type GenerationSettings struct {
	APIKey       string
	Model        string
	ReviewPrompt string
}

// KeyConfigured 表示是否已配置 API Key，后台展示时不回传明文。
func (s GenerationSettings) KeyConfigured() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// SystemSettingsInput 用于更新系统设置。APIKey 为 nil 表示保持原值。
type SystemSettingsInput struct {
	APIKey       *string
	Model        string
	ReviewPrompt string
}

// SystemSettingService 提供系统设置的读取与更新能力。
// 数据库中的非空值优先，其次回退到启动配置。
type SystemSettingService struct {
	db         *gorm.DB
	fallback   GenerationSettings
	httpClient httpDoer
	baseURL    string
}

// NewSystemSettingService 构造 SystemSettingService。
func NewSystemSettingService(gdb *gorm.DB, fallback GenerationSettings) *SystemSettingService {
	return &SystemSettingService{
		db:         gdb,
		fallback:   fallback,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultGenerationBaseURL,
	}
}

var settingKeys = []string{
	db.SettingKeyGenerationAPIKey,
	db.SettingKeyGenerationModel,
	db.SettingKeyReviewPrompt,
}

// GetSettings 读取系统设置，未设置的项使用启动配置。
func (s *SystemSettingService) GetSettings() (GenerationSettings, error) {
	result := GenerationSettings{
		APIKey:       strings.TrimSpace(s.fallback.APIKey),
		Model:        strings.TrimSpace(s.fallback.Model),
		ReviewPrompt: strings.TrimSpace(s.fallback.ReviewPrompt),
	}
	if result.Model == "" {
		result.Model = DefaultGenerationModel
	}
	if s.db == nil {
		return result, nil
	}

	var records []db.SystemSetting
	if err := s.db.Where("key IN ?", settingKeys).Find(&records).Error; err != nil {
		return result, fmt.Errorf("load system settings: %w", err)
	}

	for _, record := range records {
		value := strings.TrimSpace(record.Value)
		if value == "" {
			continue
		}
		switch record.Key {
		case db.SettingKeyGenerationAPIKey:
			result.APIKey = value
		case db.SettingKeyGenerationModel:
			result.Model = value
		case db.SettingKeyReviewPrompt:
			result.ReviewPrompt = value
		}
	}

	return result, nil
}

// UpdateSettings 保存系统设置，空字符串表示清除该项并回退到启动配置。
func (s *SystemSettingService) UpdateSettings(input SystemSettingsInput) (GenerationSettings, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if input.APIKey != nil {
			if err := upsertSetting(tx, db.SettingKeyGenerationAPIKey, strings.TrimSpace(*input.APIKey)); err != nil {
				return err
			}
		}
		if err := upsertSetting(tx, db.SettingKeyGenerationModel, strings.TrimSpace(input.Model)); err != nil {
			return err
		}
		return upsertSetting(tx, db.SettingKeyReviewPrompt, strings.TrimSpace(input.ReviewPrompt))
	})
	if err != nil {
		return GenerationSettings{}, fmt.Errorf("update system settings: %w", err)
	}

	return s.GetSettings()
}

func upsertSetting(tx *gorm.DB, key, value string) error {
	setting := db.SystemSetting{Key: key, Value: value}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&setting).Error; err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

// SetHTTPClient 替换用于连通性测试的 HTTP 客户端，主要面向测试场景。
func (s *SystemSettingService) SetHTTPClient(client httpDoer) {
	if client == nil {
		s.httpClient = &http.Client{Timeout: 10 * time.Second}
		return
	}
	s.httpClient = client
}

// SetBaseURL 覆盖生成接口的基础地址。
func (s *SystemSettingService) SetBaseURL(base string) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultGenerationBaseURL
	}
	s.baseURL = base
}

// TestConnection 调用模型列表接口验证 API Key 是否可用。
func (s *SystemSettingService) TestConnection(ctx context.Context, apiKey string) error {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return ErrGenerationAPIKeyMissing
	}

	client := s.httpClient
	if client == nil {
		client = http.DefaultClient
	}

	endpoint := s.baseURL + "/models?key=" + url.QueryEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("User-Agent", "habitlog-admin/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("请求生成接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return fmt.Errorf("生成接口返回错误：%s (%s)", resp.Status, msg)
		}
		return fmt.Errorf("生成接口返回错误：%s", resp.Status)
	}

	return nil
}
