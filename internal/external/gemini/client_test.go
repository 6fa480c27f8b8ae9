package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/morita/kabuto/internal/contracts"
	"github.com/morita/kabuto/pkg/config"
	"github.com/morita/kabuto/pkg/httputil"
	"github.com/morita/kabuto/pkg/logger"
)

func newTestClient(t *testing.T, baseURL, apiKey string) *Client {
	t.Helper()

	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "error",
		LogFormat: "json",
		Gemini: config.GeminiConfig{
			APIKey:  apiKey,
			Model:   "gemini-pro",
			BaseURL: baseURL,
		},
	}

	log := logger.NewWithWriter(io.Discard, "error")
	httpClient := httputil.New(cfg, log).WithRetry(0, 0)

	return NewClient(cfg, httpClient, log)
}

func sampleRecord() contracts.StockRecord {
	return contracts.StockRecord{
		Rank:          1,
		Code:          "7203",
		Name:          "トヨタ自動車",
		ChangePercent: 5.23,
		SourceURL:     "https://kabutan.jp/warning/value_increase",
	}
}

func TestAnalyze_Success(t *testing.T) {
	var gotPath, gotKey string
	var gotReq generateRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		json.NewDecoder(r.Body).Decode(&gotReq)

		json.NewEncoder(w).Encode(generateResponse{
			Candidates: []candidate{{
				Content: content{Parts: []part{
					{Text: "決算上方修正が好感されました。詳細: https://example.com/news/123, 参照ください。"},
				}},
			}},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "test-key")
	result := client.Analyze(context.Background(), sampleRecord())

	if gotPath != "/models/gemini-pro:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("key = %q, want test-key", gotKey)
	}
	if len(gotReq.SafetySettings) != 4 {
		t.Errorf("safety settings count = %d, want 4", len(gotReq.SafetySettings))
	}

	if !strings.Contains(result.AnalysisText, "決算上方修正") {
		t.Errorf("AnalysisText = %q", result.AnalysisText)
	}
	if len(result.SourceURLs) != 1 || result.SourceURLs[0] != "https://example.com/news/123" {
		t.Errorf("SourceURLs = %v, want trailing punctuation trimmed", result.SourceURLs)
	}
}

func TestAnalyze_Blocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{
			PromptFeedback: &promptFeedback{BlockReason: "SAFETY"},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "test-key")
	result := client.Analyze(context.Background(), sampleRecord())

	if !strings.Contains(result.AnalysisText, "分析がブロックされました") ||
		!strings.Contains(result.AnalysisText, "SAFETY") {
		t.Errorf("AnalysisText = %q", result.AnalysisText)
	}
	if len(result.SourceURLs) != 0 {
		t.Errorf("SourceURLs = %v, want empty", result.SourceURLs)
	}
}

func TestAnalyze_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "test-key")
	result := client.Analyze(context.Background(), sampleRecord())

	if result.AnalysisText != "分析結果がありませんでした。" {
		t.Errorf("AnalysisText = %q", result.AnalysisText)
	}
}

func TestAnalyze_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"API key not valid"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "bad-key")
	result := client.Analyze(context.Background(), sampleRecord())

	if !strings.Contains(result.AnalysisText, "分析失敗 (APIエラー)") {
		t.Errorf("AnalysisText = %q", result.AnalysisText)
	}
}

func TestAnalyze_MissingAPIKey(t *testing.T) {
	client := newTestClient(t, "https://unused.example.com", "")
	result := client.Analyze(context.Background(), sampleRecord())

	if !strings.Contains(result.AnalysisText, "APIキーが設定されていません") {
		t.Errorf("AnalysisText = %q", result.AnalysisText)
	}
}

func TestBuildPrompt(t *testing.T) {
	record := contracts.StockRecord{
		Code:          "4585",
		Name:          "ＵＭＮファーマ",
		ChangePercent: -21.5,
		IsStopLimit:   true,
		SourceURL:     "https://kabutan.jp/warning/pts_night_price_decrease",
	}

	prompt := buildPrompt(record)

	for _, want := range []string{
		"PTS市場",
		"「ＵＭＮファーマ」",
		"コード: 4585",
		"21.50% 下落",
		"(ストップ高/安)",
		"回答は日本語で",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q: %s", want, prompt)
		}
	}
}

func TestBuildPrompt_RegularGainer(t *testing.T) {
	prompt := buildPrompt(sampleRecord())

	if !strings.Contains(prompt, "Regular市場") {
		t.Errorf("prompt should name the regular market: %s", prompt)
	}
	if !strings.Contains(prompt, "5.23% 上昇") {
		t.Errorf("prompt should carry the absolute change and direction: %s", prompt)
	}
	if strings.Contains(prompt, "ストップ") {
		t.Errorf("non stop-limit stock should not get the stop-limit suffix: %s", prompt)
	}
}

func TestExtractSourceURLs(t *testing.T) {
	text := "参考: https://example.com/a. また http://example.org/b;  と関連 https://example.net/c"
	urls := extractSourceURLs(text)

	want := []string{"https://example.com/a", "http://example.org/b", "https://example.net/c"}
	if len(urls) != len(want) {
		t.Fatalf("len(urls) = %d, want %d: %v", len(urls), len(want), urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}

	if got := extractSourceURLs("URLなし"); got != nil {
		t.Errorf("expected nil for text without URLs, got %v", got)
	}
}
