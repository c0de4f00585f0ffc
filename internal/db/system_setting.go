package db

import "gorm.io/gorm"

// SystemSetting 存储后台可配置的系统级键值对。
type SystemSetting struct {
	gorm.Model
	Key   string `gorm:"size:100;uniqueIndex;not null"`
	Value string `gorm:"type:text"`
}

// TableName 自定义表名以保持命名一致。
func (SystemSetting) TableName() string {
	return "system_settings"
}

const (
	// SettingKeyGenerationAPIKey 表示文本生成接口的 API Key。
	SettingKeyGenerationAPIKey = "generation_api_key"
	// SettingKeyGenerationModel 表示文本生成所使用的模型名称。
	SettingKeyGenerationModel = "generation_model"
	// SettingKeyReviewPrompt 表示自定义的周报提示词开头。
	SettingKeyReviewPrompt = "review_prompt"
)
