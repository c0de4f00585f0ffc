package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/habitlog/internal/calendar"
	"github.com/habitlog/internal/model"
	"github.com/habitlog/internal/store"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	// ErrReviewInProgress 表示已有一次周报生成正在进行。
	ErrReviewInProgress = errors.New("review generation in progress")
	// ErrReviewFailed 统一表示周报生成失败（网络错误、非 2xx 响应或缺少文本）。
	ErrReviewFailed = errors.New("review generation failed")
)

const maxReviewLogRunes = 1024

var (
	reviewMarkdown = goldmark.New(
		goldmark.WithExtensions(extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	reviewSanitizer = bluemonday.UGCPolicy()
)

// ReviewGenerator 定义周报文本的生成能力，便于在控制器中注入不同实现。
type ReviewGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AIReviewService 基于文本生成接口生成最近 7 天的习惯周报。
type AIReviewService struct {
	client *generationClient
}

// NewAIReviewService 构造 AIReviewService，baseURL 为空时使用默认地址。
func NewAIReviewService(settings *SystemSettingService, baseURL string) *AIReviewService {
	return &AIReviewService{client: newGenerationClient(settings, baseURL)}
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (s *AIReviewService) SetHTTPClient(client httpDoer) {
	s.client.SetHTTPClient(client)
}

// SetBaseURL 覆盖生成接口地址。
func (s *AIReviewService) SetBaseURL(base string) {
	s.client.SetBaseURL(base)
}

// Generate 提交提示词并返回生成的文本，任何失败都包装为 ErrReviewFailed。
func (s *AIReviewService) Generate(ctx context.Context, prompt string) (string, error) {
	logReviewExchange("prompt", prompt)

	settings, err := s.client.settings.GetSettings()
	if err != nil {
		log.Printf("[AI REVIEW] load settings failed: %v", err)
		return "", fmt.Errorf("%w: 读取系统设置失败: %w", ErrReviewFailed, err)
	}

	text, err := s.client.generate(ctx, settings, prompt)
	if err != nil {
		log.Printf("[AI REVIEW] generate failed: %v", err)
		return "", fmt.Errorf("%w: %w", ErrReviewFailed, err)
	}

	logReviewExchange("response", text)
	return text, nil
}

type reviewDay struct {
	Date      string   `json:"date"`
	Completed []string `json:"completed"`
}

// BuildReviewPrompt 构造周报提示词：习惯名称列表，以及截至 now 的 7 天 {date, completed} 数据。
// 无法解析为当前习惯的 ID 会被丢弃。
func BuildReviewPrompt(habits []model.Habit, records model.RecordMap, now time.Time) string {
	names := model.HabitNames(habits)

	week := make([]reviewDay, 0, 7)
	for _, day := range calendar.Past7Days(now) {
		date := calendar.FormatDate(day)
		completed := make([]string, 0, len(records[date]))
		for _, id := range records[date] {
			if name, ok := names[id]; ok && name != "" {
				completed = append(completed, name)
			}
		}
		week = append(week, reviewDay{Date: date, Completed: completed})
	}
	weekJSON, _ := json.Marshal(week)

	habitNames := make([]string, 0, len(habits))
	for _, habit := range habits {
		habitNames = append(habitNames, habit.Name)
	}

	var b strings.Builder
	b.WriteString("あなたは親切でモチベーションを上げるのが上手な「AI習慣コーチ」です。\n")
	b.WriteString("ユーザーの直近7日間の習慣トラッカーのデータをもとに、日本語で短いフィードバックを行ってください。\n\n")
	b.WriteString("【ユーザーの習慣リスト】\n")
	b.WriteString(strings.Join(habitNames, ", "))
	b.WriteString("\n\n【直近7日間の実績】\n")
	b.Write(weekJSON)
	b.WriteString("\n\n【出力フォーマット】\n")
	b.WriteString("以下の3つのセクションで構成してください。マークダウン形式は使わず、プレーンテキストで見やすく改行してください。絵文字を効果的に使ってください。\n\n")
	b.WriteString("1. 👏 今週のGoodポイント\n")
	b.WriteString("(一番頑張った習慣や、継続できている点を具体的に褒める)\n\n")
	b.WriteString("2. 💡 気づきと分析\n")
	b.WriteString("(サボり気味な傾向や、曜日による偏りなどがあれば優しく指摘。なければ全体のバランスについてコメント)\n\n")
	b.WriteString("3. 🎯 来週のワンポイント・アドバイス\n")
	b.WriteString("(来週意識すると良い小さな目標や、モチベーションが上がる言葉)\n")
	return b.String()
}

// RenderReviewHTML 把周报文本渲染为安全的 HTML，保留换行。
func RenderReviewHTML(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := reviewMarkdown.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render review: %w", err)
	}
	return string(reviewSanitizer.SanitizeBytes(buf.Bytes())), nil
}

// GenerateReview 基于当前状态生成周报。同一时间只允许一次请求；
// 无论成功与否 loading 标记都会被清除，成功的文本写入本机缓存（与登录状态无关）。
func (c *SyncController) GenerateReview(ctx context.Context, generator ReviewGenerator) (string, error) {
	c.mu.Lock()
	if err := c.ensureLoadedLocked(); err != nil {
		c.mu.Unlock()
		return "", err
	}
	if c.aiLoading {
		c.mu.Unlock()
		return "", ErrReviewInProgress
	}
	c.aiLoading = true
	prompt := BuildReviewPrompt(c.state.Habits, c.state.Records, c.now())
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.aiLoading = false
		c.mu.Unlock()
	}()

	text, err := generator.Generate(ctx, prompt)
	if err != nil {
		if !errors.Is(err, ErrReviewFailed) {
			err = fmt.Errorf("%w: %w", ErrReviewFailed, err)
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrReviewFailed
	}

	c.mu.Lock()
	c.aiText = text
	c.writeLocalString(store.KeyAIAnalysis, text)
	c.mu.Unlock()
	return text, nil
}

// AIAnalysis 返回最近一次生成的周报文本。
func (c *SyncController) AIAnalysis() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aiText
}

func logReviewExchange(phase, content string) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		log.Printf("[AI REVIEW] %s: <empty>", phase)
		return
	}
	runeCount := utf8.RuneCountInString(trimmed)
	log.Printf("[AI REVIEW] %s (runes=%d): %s", phase, runeCount, truncateRunes(trimmed, maxReviewLogRunes))
}

func truncateRunes(input string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(input)
	if len(runes) <= limit {
		return input
	}
	return string(runes[:limit]) + "…(truncated)"
}
