package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultGenerationBaseURL 是文本生成接口的默认地址。
	DefaultGenerationBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultGenerationModel 是未配置模型时使用的默认模型。
	DefaultGenerationModel = "gemini-2.5-flash"
)

// ErrGenerationAPIKeyMissing 表示未配置文本生成接口的 API Key。
var ErrGenerationAPIKeyMissing = errors.New("generation api key is required")

type generationPart struct {
	Text string `json:"text"`
}

type generationContent struct {
	Role  string           `json:"role,omitempty"`
	Parts []generationPart `json:"parts"`
}

type generationRequest struct {
	SystemInstruction *generationContent  `json:"systemInstruction,omitempty"`
	Contents          []generationContent `json:"contents"`
}

type generationResponse struct {
	Candidates []struct {
		Content generationContent `json:"content"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// settingsSource 提供当前生效的生成设置。
type settingsSource interface {
	GetSettings() (GenerationSettings, error)
}

// generationClient 调用 generateContent 接口，只取第一个候选的第一段文本。
type generationClient struct {
	settings settingsSource
	http     httpDoer
	baseURL  string
}

func newGenerationClient(settings settingsSource, baseURL string) *generationClient {
	c := &generationClient{
		settings: settings,
		http:     &http.Client{Timeout: 180 * time.Second},
	}
	c.SetBaseURL(baseURL)
	return c
}

func (c *generationClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 180 * time.Second}
		return
	}
	c.http = client
}

func (c *generationClient) SetBaseURL(base string) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultGenerationBaseURL
	}
	c.baseURL = base
}

// generate 使用调用方已读取的设置发起请求，ReviewPrompt 作为 system instruction。
func (c *generationClient) generate(ctx context.Context, settings GenerationSettings, prompt string) (string, error) {
	apiKey := strings.TrimSpace(settings.APIKey)
	if apiKey == "" {
		return "", ErrGenerationAPIKeyMissing
	}
	model := strings.TrimSpace(settings.Model)
	if model == "" {
		model = DefaultGenerationModel
	}

	payload := generationRequest{
		Contents: []generationContent{{Parts: []generationPart{{Text: prompt}}}},
	}
	if trimmed := strings.TrimSpace(settings.ReviewPrompt); trimmed != "" {
		payload.SystemInstruction = &generationContent{Parts: []generationPart{{Text: trimmed}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("构造请求失败: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(model), url.QueryEscape(apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("创建生成请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "habitlog-review/1.0")

	client := c.http
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("请求生成接口失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("读取生成接口响应失败: %w", err)
	}

	var decoded generationResponse
	decodeErr := json.Unmarshal(respBody, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMsg := ""
		if decodeErr == nil {
			errMsg = strings.TrimSpace(decoded.Error.Message)
		}
		if errMsg == "" {
			errMsg = resp.Status
		}
		return "", fmt.Errorf("生成接口返回错误：%s", errMsg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("解析生成接口响应失败: %w", decodeErr)
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("生成接口未返回结果")
	}
	text := decoded.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return "", errors.New("生成接口返回空文本")
	}
	return text, nil
}
