package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linsalefe/anabot/pkg/anabot/bot"
	"github.com/linsalefe/anabot/pkg/anabot/config"
	"github.com/linsalefe/anabot/pkg/anabot/knowledge"
)

func testConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		BaseURL:     baseURL,
		APIKey:      "sk-teste",
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   220,
		Timeout:     5 * time.Second,
	}
}

func completionHandler(t *testing.T, reply string, capture *chatRequest) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-teste" {
			t.Errorf("authorization header = %q", got)
		}
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("decoding request: %v", err)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": reply}},
			},
		})
	}
}

func TestGenerate(t *testing.T) {
	t.Run("sends persona, history and message", func(t *testing.T) {
		var captured chatRequest
		srv := httptest.NewServer(completionHandler(t, "Olá! Sou a Ana, do CENAT.", &captured))
		defer srv.Close()

		c := NewClient(testConfig(srv.URL), "Ana", "CENAT", "America/Fortaleza", nil)
		reply, err := c.Generate(context.Background(), bot.PromptContext{
			Phone:   "5585911112222",
			Message: "quais cursos vocês têm?",
			Intent:  bot.IntentCourses,
			History: []bot.Turn{
				{Role: bot.RoleUser, Text: "oi"},
				{Role: bot.RoleAssistant, Text: "Olá! Como posso ajudar?"},
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		if reply != "Olá! Sou a Ana, do CENAT." {
			t.Errorf("reply = %q", reply)
		}

		if captured.Model != "gpt-4o-mini" || captured.Temperature != 0.2 || captured.MaxTokens != 220 {
			t.Errorf("request parameters: %+v", captured)
		}
		if len(captured.Messages) != 4 {
			t.Fatalf("expected 4 messages, got %d", len(captured.Messages))
		}
		if captured.Messages[0].Role != "system" || !strings.Contains(captured.Messages[0].Content, "Você é Ana") {
			t.Errorf("system message: %+v", captured.Messages[0])
		}
		if !strings.Contains(captured.Messages[0].Content, "#AGENDAR") {
			t.Error("system prompt missing the handoff marker rule")
		}
		if captured.Messages[1].Role != "user" || captured.Messages[2].Role != "assistant" {
			t.Errorf("history roles: %+v", captured.Messages[1:3])
		}
		if last := captured.Messages[3]; last.Role != "user" || last.Content != "quais cursos vocês têm?" {
			t.Errorf("last message: %+v", last)
		}
	})

	t.Run("product details reach the prompt", func(t *testing.T) {
		var captured chatRequest
		srv := httptest.NewServer(completionHandler(t, "ok", &captured))
		defer srv.Close()

		c := NewClient(testConfig(srv.URL), "Ana", "CENAT", "America/Fortaleza", nil)
		_, err := c.Generate(context.Background(), bot.PromptContext{
			Message: "quero saber mais",
			Product: &knowledge.Product{
				Slug:      "pos-teste",
				Title:     "Pós Teste",
				Type:      "pos",
				Dates:     "março de 2026",
				EnrollURL: "https://example.com/inscricao",
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		system := captured.Messages[0].Content
		for _, want := range []string{"Pós Teste", "março de 2026", "https://example.com/inscricao"} {
			if !strings.Contains(system, want) {
				t.Errorf("system prompt missing %q", want)
			}
		}
	})

	t.Run("upstream error surfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"message": "rate limited"},
			})
		}))
		defer srv.Close()

		c := NewClient(testConfig(srv.URL), "Ana", "CENAT", "America/Fortaleza", nil)
		_, err := c.Generate(context.Background(), bot.PromptContext{Message: "oi"})
		if err == nil || !strings.Contains(err.Error(), "rate limited") {
			t.Errorf("expected rate limit error, got %v", err)
		}
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
		}))
		defer srv.Close()

		c := NewClient(testConfig(srv.URL), "Ana", "CENAT", "America/Fortaleza", nil)
		if _, err := c.Generate(context.Background(), bot.PromptContext{Message: "oi"}); err == nil {
			t.Error("expected error for empty choices")
		}
	})

	t.Run("context deadline aborts the call", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		c := NewClient(testConfig(srv.URL), "Ana", "CENAT", "America/Fortaleza", nil)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := c.Generate(ctx, bot.PromptContext{Message: "oi"}); err == nil {
			t.Error("expected deadline error")
		}
	})

	t.Run("long reply is clamped to three lines", func(t *testing.T) {
		srv := httptest.NewServer(completionHandler(t,
			"linha um\nlinha dois\nlinha três\nlinha quatro\nlinha cinco", nil))
		defer srv.Close()

		c := NewClient(testConfig(srv.URL), "Ana", "CENAT", "America/Fortaleza", nil)
		reply, err := c.Generate(context.Background(), bot.PromptContext{Message: "oi"})
		if err != nil {
			t.Fatal(err)
		}
		if got := strings.Count(reply, "\n"); got != 2 {
			t.Errorf("expected 3 lines, got %d breaks in %q", got+1, reply)
		}
	})
}

func TestDryRun(t *testing.T) {
	t.Run("missing key forces dry run", func(t *testing.T) {
		cfg := testConfig("")
		cfg.APIKey = ""
		c := NewClient(cfg, "Ana", "CENAT", "America/Fortaleza", nil)
		if !c.DryRun() {
			t.Fatal("expected dry-run without credentials")
		}
	})

	t.Run("deterministic reply", func(t *testing.T) {
		cfg := testConfig("")
		cfg.DryRun = true
		c := NewClient(cfg, "Ana", "CENAT", "America/Fortaleza", nil)

		pc := bot.PromptContext{DisplayName: "Maria", Message: "oi"}
		first, _ := c.Generate(context.Background(), pc)
		second, _ := c.Generate(context.Background(), pc)
		if first != second {
			t.Errorf("dry-run reply not deterministic: %q vs %q", first, second)
		}
		if !strings.Contains(first, "Maria") || !strings.Contains(first, "Ana") {
			t.Errorf("dry-run reply missing persona: %q", first)
		}
	})

	t.Run("mentions the selected product", func(t *testing.T) {
		cfg := testConfig("")
		cfg.DryRun = true
		c := NewClient(cfg, "Ana", "CENAT", "America/Fortaleza", nil)

		reply, _ := c.Generate(context.Background(), bot.PromptContext{
			DisplayName: "Maria",
			Product:     &knowledge.Product{Title: "Pós Teste"},
		})
		if !strings.Contains(reply, "Pós Teste") {
			t.Errorf("dry-run reply missing product: %q", reply)
		}
	})
}

func TestClampLines(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"short text unchanged", "Olá! Tudo bem?", "Olá! Tudo bem?"},
		{"blank lines dropped", "linha um\n\n\n\nlinha dois", "linha um\nlinha dois"},
		{"extra lines cut", "a\nb\nc\nd", "a\nb\nc"},
		{"whitespace trimmed", "  oi  \n", "oi"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := clampLines(tc.in, 3); got != tc.want {
				t.Errorf("clampLines(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}

	t.Run("single long block splits on sentences", func(t *testing.T) {
		in := strings.Repeat("Esta é uma frase razoavelmente longa sobre o curso. ", 6)
		got := clampLines(in, 3)
		lines := strings.Split(got, "\n")
		if len(lines) > 3 {
			t.Fatalf("expected at most 3 lines, got %d", len(lines))
		}
		if len(lines) < 2 {
			t.Errorf("long block should be rebalanced, got %q", got)
		}
	})
}

func TestTrimBaseURL(t *testing.T) {
	if got := trimBaseURL(""); got != "https://api.openai.com/v1" {
		t.Errorf("default base url = %q", got)
	}
	if got := trimBaseURL("http://localhost:9999/v1///"); got != "http://localhost:9999/v1" {
		t.Errorf("trailing slashes kept: %q", got)
	}
}
