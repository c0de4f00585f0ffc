package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/habitlog/internal/model"
	"github.com/habitlog/internal/store"
)

type fakeHTTPClient struct {
	handler func(*http.Request) (*http.Response, error)
}

func (f fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if f.handler == nil {
		return nil, errors.New("no handler configured")
	}
	return f.handler(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func newTestReviewService(t *testing.T, apiKey string, handler func(*http.Request) (*http.Response, error)) *AIReviewService {
	t.Helper()
	settings := NewSystemSettingService(setupServiceDB(t), GenerationSettings{APIKey: apiKey, Model: "gemini-test"})
	svc := NewAIReviewService(settings, "https://generation.test/v1beta/")
	svc.SetHTTPClient(fakeHTTPClient{handler: handler})
	return svc
}

func TestBuildReviewPrompt(t *testing.T) {
	habits := []model.Habit{{ID: "h1", Name: "読書"}, {ID: "h2", Name: "日記"}}
	records := model.RecordMap{
		"2024-03-10": {"h1", "ghost"},
		"2024-03-04": {"h2"},
		"2024-03-03": {"h1"},
	}

	prompt := BuildReviewPrompt(habits, records, testNow)

	if !strings.Contains(prompt, "【ユーザーの習慣リスト】\n読書, 日記\n") {
		t.Fatalf("prompt should list habit names, got:\n%s", prompt)
	}
	if !strings.Contains(prompt, `{"date":"2024-03-04","completed":["日記"]}`) {
		t.Fatalf("prompt should contain the first day of the window:\n%s", prompt)
	}
	if !strings.Contains(prompt, `{"date":"2024-03-10","completed":["読書"]}`) {
		t.Fatalf("unresolvable ids should be dropped:\n%s", prompt)
	}
	if strings.Contains(prompt, "2024-03-03") {
		t.Fatal("prompt window should be exactly 7 days")
	}
	if strings.Count(prompt, `"date"`) != 7 {
		t.Fatalf("expected 7 days in prompt, got %d", strings.Count(prompt, `"date"`))
	}
}

func TestAIReviewServiceGenerate(t *testing.T) {
	svc := newTestReviewService(t, "key-123", func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "key-123" {
			t.Fatalf("unexpected key %s", got)
		}

		var payload generationRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(payload.Contents) != 1 || payload.Contents[0].Parts[0].Text != "プロンプト" {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		if payload.SystemInstruction != nil {
			t.Fatal("system instruction should be omitted when not configured")
		}

		return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"よく頑張りました"}]}}]}`), nil
	})

	text, err := svc.Generate(context.Background(), "プロンプト")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if text != "よく頑張りました" {
		t.Fatalf("unexpected text %q", text)
	}
}

type countingSettings struct {
	settings GenerationSettings
	calls    int
}

func (c *countingSettings) GetSettings() (GenerationSettings, error) {
	c.calls++
	return c.settings, nil
}

func TestAIReviewServiceReadsSettingsOnce(t *testing.T) {
	src := &countingSettings{settings: GenerationSettings{APIKey: "key-1", Model: "gemini-test", ReviewPrompt: "コーチとして答える"}}
	svc := &AIReviewService{client: newGenerationClient(src, "https://generation.test/v1beta")}
	svc.SetHTTPClient(fakeHTTPClient{handler: func(r *http.Request) (*http.Response, error) {
		var payload generationRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if payload.SystemInstruction == nil || payload.SystemInstruction.Parts[0].Text != "コーチとして答える" {
			t.Fatalf("review prompt should be sent as system instruction: %+v", payload.SystemInstruction)
		}
		return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`), nil
	}})

	if _, err := svc.Generate(context.Background(), "プロンプト"); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("settings should be read once per review, got %d", src.calls)
	}
}

func TestAIReviewServiceFailuresAreUniform(t *testing.T) {
	cases := []struct {
		name    string
		apiKey  string
		handler func(*http.Request) (*http.Response, error)
	}{
		{
			name:   "network error",
			apiKey: "k",
			handler: func(*http.Request) (*http.Response, error) {
				return nil, errors.New("connection reset")
			},
		},
		{
			name:   "non success status",
			apiKey: "k",
			handler: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusInternalServerError, `{"error":{"message":"boom"}}`), nil
			},
		},
		{
			name:   "missing text",
			apiKey: "k",
			handler: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `{"candidates":[]}`), nil
			},
		},
		{
			name:   "malformed body",
			apiKey: "k",
			handler: func(*http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusOK, `<html>`), nil
			},
		},
		{
			name:   "missing key",
			apiKey: "",
			handler: func(*http.Request) (*http.Response, error) {
				t.Fatal("request should not be sent without an api key")
				return nil, nil
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestReviewService(t, tc.apiKey, tc.handler)
			if _, err := svc.Generate(context.Background(), "p"); !errors.Is(err, ErrReviewFailed) {
				t.Fatalf("expected ErrReviewFailed, got %v", err)
			}
		})
	}
}

type stubGenerator struct {
	mu      sync.Mutex
	prompts []string
	text    string
	err     error
	block   chan struct{}
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	return s.text, s.err
}

func TestGenerateReviewCachesText(t *testing.T) {
	ctrl, local := newGuestController(t)
	gen := &stubGenerator{text: "今週もお疲れさまでした"}

	text, err := ctrl.GenerateReview(context.Background(), gen)
	if err != nil {
		t.Fatalf("GenerateReview returned error: %v", err)
	}
	if text != gen.text || ctrl.AIAnalysis() != gen.text {
		t.Fatalf("unexpected review text %q", text)
	}
	if val, _, _ := local.Get(store.KeyAIAnalysis); val != gen.text {
		t.Fatalf("review should be cached locally, got %q", val)
	}
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "読書, 日記") {
		t.Fatalf("unexpected prompt: %v", gen.prompts)
	}
	if ctrl.Snapshot().AILoading {
		t.Fatal("loading flag should be cleared")
	}
}

func TestGenerateReviewClearsLoadingOnFailure(t *testing.T) {
	ctrl, local := newGuestController(t)
	gen := &stubGenerator{err: errors.New("boom")}

	if _, err := ctrl.GenerateReview(context.Background(), gen); !errors.Is(err, ErrReviewFailed) {
		t.Fatalf("expected ErrReviewFailed, got %v", err)
	}
	if ctrl.Snapshot().AILoading {
		t.Fatal("loading flag should be cleared after failure")
	}
	if _, ok, _ := local.Get(store.KeyAIAnalysis); ok {
		t.Fatal("failed review must not be cached")
	}
}

func TestGenerateReviewRejectsDuplicateSubmission(t *testing.T) {
	ctrl, _ := newGuestController(t)
	gen := &stubGenerator{text: "ok", block: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := ctrl.GenerateReview(context.Background(), gen)
		done <- err
	}()

	eventually(t, "first review never started", func() bool { return ctrl.Snapshot().AILoading })

	if _, err := ctrl.GenerateReview(context.Background(), gen); !errors.Is(err, ErrReviewInProgress) {
		t.Fatalf("expected ErrReviewInProgress, got %v", err)
	}

	close(gen.block)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first review failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first review did not finish")
	}
}

func TestRenderReviewHTML(t *testing.T) {
	html, err := RenderReviewHTML("1. 👏 今週のGoodポイント\n読書が続いています<script>alert(1)</script>")
	if err != nil {
		t.Fatalf("RenderReviewHTML returned error: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("script tags should be sanitized: %s", html)
	}
	if !strings.Contains(html, "<br") {
		t.Fatalf("line breaks should be preserved: %s", html)
	}

	empty, _ := RenderReviewHTML("   ")
	if empty != "" {
		t.Fatalf("expected empty html, got %q", empty)
	}
}
