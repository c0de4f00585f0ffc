package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string `mapstructure:"listen_addr"`
	Port              string `mapstructure:"port"`
	DatabasePath      string `mapstructure:"database_path"`
	DataDir           string `mapstructure:"data_dir"`
	SessionSecret     string `mapstructure:"session_secret"`
	GinMode           string `mapstructure:"gin_mode"`
	UploadDir         string `mapstructure:"upload_dir"`
	UploadURLPath     string `mapstructure:"upload_url_path"`
	GenerationBaseURL string `mapstructure:"generation_base_url"`
	GenerationModel   string `mapstructure:"generation_model"`
	GenerationAPIKey  string `mapstructure:"generation_api_key"`
	ReviewPrompt      string `mapstructure:"review_prompt"`
	ReadingHabitID    string `mapstructure:"reading_habit_id"`
	SuperRootUserName string `mapstructure:"super_root_user_name"`
	SuperRootPassword string `mapstructure:"super_root_password"`
	// SessionIdleTTL 是设备控制器无访问后被回收的时间
	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
}

// Default 返回所有配置项的默认值。
func Default() AppConfig {
	return AppConfig{
		Port:              "8080",
		DatabasePath:      "habitlog.db",
		DataDir:           "~/.habitlog",
		SessionSecret:     "habitlog-dev-secret",
		GinMode:           "release",
		UploadDir:         "web/static/uploads",
		UploadURLPath:     "/static/uploads",
		GenerationBaseURL: "https://generativelanguage.googleapis.com/v1beta",
		GenerationModel:   "gemini-2.5-flash",
		ReadingHabitID:    "h1",
		SessionIdleTTL:    30 * time.Minute,
	}
}

// Load 依次读取 .env、habitlog.yaml 与 HABITLOG_* 环境变量，并为缺失项提供默认值。
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("habitlog") // .yaml is implicit
	v.SetEnvPrefix("HABITLOG")
	v.AutomaticEnv()

	if override := os.Getenv("HABITLOG_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")

	return load(v)
}

func load(v *viper.Viper) (AppConfig, error) {
	cfg := Default()
	v.SetDefault("listen_addr", "")
	v.SetDefault("port", cfg.Port)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("session_secret", cfg.SessionSecret)
	v.SetDefault("gin_mode", cfg.GinMode)
	v.SetDefault("upload_dir", cfg.UploadDir)
	v.SetDefault("upload_url_path", cfg.UploadURLPath)
	v.SetDefault("generation_base_url", cfg.GenerationBaseURL)
	v.SetDefault("generation_model", cfg.GenerationModel)
	v.SetDefault("generation_api_key", "")
	v.SetDefault("review_prompt", "")
	v.SetDefault("reading_habit_id", cfg.ReadingHabitID)
	v.SetDefault("super_root_user_name", "")
	v.SetDefault("super_root_password", "")
	v.SetDefault("session_idle_ttl", cfg.SessionIdleTTL)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config unmarshal: %w", err)
	}

	return normalize(cfg)
}

// normalize 去除空白，空值回退默认值，并展开路径中的 ~。
func normalize(cfg AppConfig) (AppConfig, error) {
	def := Default()
	pick := func(value, fallback string) string {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
		return fallback
	}

	cfg.Port = pick(cfg.Port, def.Port)
	cfg.ListenAddr = pick(cfg.ListenAddr, ":"+cfg.Port)
	cfg.DatabasePath = pick(cfg.DatabasePath, def.DatabasePath)
	cfg.DataDir = pick(cfg.DataDir, def.DataDir)
	cfg.SessionSecret = pick(cfg.SessionSecret, def.SessionSecret)
	cfg.GinMode = pick(cfg.GinMode, def.GinMode)
	cfg.UploadDir = pick(cfg.UploadDir, def.UploadDir)
	cfg.UploadURLPath = pick(cfg.UploadURLPath, def.UploadURLPath)
	cfg.GenerationBaseURL = strings.TrimRight(pick(cfg.GenerationBaseURL, def.GenerationBaseURL), "/")
	cfg.GenerationModel = pick(cfg.GenerationModel, def.GenerationModel)
	cfg.GenerationAPIKey = strings.TrimSpace(cfg.GenerationAPIKey)
	cfg.ReviewPrompt = strings.TrimSpace(cfg.ReviewPrompt)
	cfg.ReadingHabitID = pick(cfg.ReadingHabitID, def.ReadingHabitID)
	cfg.SuperRootUserName = strings.TrimSpace(cfg.SuperRootUserName)
	cfg.SuperRootPassword = strings.TrimSpace(cfg.SuperRootPassword)
	if cfg.SessionIdleTTL <= 0 {
		cfg.SessionIdleTTL = def.SessionIdleTTL
	}

	var err error
	if cfg.DataDir, err = homedir.Expand(cfg.DataDir); err != nil {
		return cfg, fmt.Errorf("expand data_dir: %w", err)
	}
	if cfg.DatabasePath, err = homedir.Expand(cfg.DatabasePath); err != nil {
		return cfg, fmt.Errorf("expand database_path: %w", err)
	}
	return cfg, nil
}
