package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/meetdex/internal/domain"
)

func newChatServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		handler(w, body)
	}))
}

func writeChatResponse(w http.ResponseWriter, content string, toolCalls []map[string]any) {
	msg := map[string]any{"role": "assistant", "content": content}
	if toolCalls != nil {
		msg["tool_calls"] = toolCalls
	}
	resp := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"model":   "test-model",
		"choices": []map[string]any{{"index": 0, "message": msg, "finish_reason": "stop"}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestLLM(baseURL string) *LLM {
	return NewLLM(&LLMConfig{
		APIKey:   "test-key",
		BaseURL:  baseURL,
		Model:    "test-model",
		Provider: "test",
		Logger:   zap.NewNop(),
	})
}

func TestChatReturnsContent(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, body map[string]any) {
		writeChatResponse(w, "the answer", nil)
	})
	defer srv.Close()

	got, err := newTestLLM(srv.URL).Chat(context.Background(), []domain.ChatMessage{
		domain.SystemMessage("be brief"),
		domain.UserMessage("question"),
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "the answer" {
		t.Errorf("got %q", got)
	}
}

func TestChatProviderErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestLLM(srv.URL).Chat(context.Background(), []domain.ChatMessage{domain.UserMessage("q")})
	if !errors.Is(err, domain.ErrLLMProviderError) {
		t.Errorf("expected ErrLLMProviderError, got %v", err)
	}
}

func TestChatJSONUnmarshalsObject(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, body map[string]any) {
		if rf, ok := body["response_format"].(map[string]any); !ok || rf["type"] != "json_object" {
			t.Errorf("expected response_format json_object, got %v", body["response_format"])
		}
		writeChatResponse(w, `{"selected": 2, "reasoning": "best match"}`, nil)
	})
	defer srv.Close()

	var out struct {
		Selected  int    `json:"selected"`
		Reasoning string `json:"reasoning"`
	}
	if err := newTestLLM(srv.URL).ChatJSON(context.Background(), []domain.ChatMessage{domain.UserMessage("pick")}, &out); err != nil {
		t.Fatalf("ChatJSON: %v", err)
	}
	if out.Selected != 2 || out.Reasoning != "best match" {
		t.Errorf("got %+v", out)
	}
}

func TestChatJSONStripsFences(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, body map[string]any) {
		writeChatResponse(w, "```json\n{\"selected\": 1}\n```", nil)
	})
	defer srv.Close()

	var out struct {
		Selected int `json:"selected"`
	}
	if err := newTestLLM(srv.URL).ChatJSON(context.Background(), []domain.ChatMessage{domain.UserMessage("pick")}, &out); err != nil {
		t.Fatalf("ChatJSON: %v", err)
	}
	if out.Selected != 1 {
		t.Errorf("got %+v", out)
	}
}

func TestChatJSONRepairsInvalidEscapes(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, body map[string]any) {
		writeChatResponse(w, `{"reasoning": "it\'s the budget review"}`, nil)
	})
	defer srv.Close()

	var out struct {
		Reasoning string `json:"reasoning"`
	}
	if err := newTestLLM(srv.URL).ChatJSON(context.Background(), []domain.ChatMessage{domain.UserMessage("pick")}, &out); err != nil {
		t.Fatalf("ChatJSON: %v", err)
	}
	if out.Reasoning != "it's the budget review" {
		t.Errorf("got %q", out.Reasoning)
	}
}

func TestChatJSONMalformedAfterRepair(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, body map[string]any) {
		writeChatResponse(w, "not json at all", nil)
	})
	defer srv.Close()

	var out map[string]any
	err := newTestLLM(srv.URL).ChatJSON(context.Background(), []domain.ChatMessage{domain.UserMessage("pick")}, &out)
	if !errors.Is(err, domain.ErrMalformedLLMOutput) {
		t.Errorf("expected ErrMalformedLLMOutput, got %v", err)
	}
}

func TestChatWithToolsReturnsCalls(t *testing.T) {
	srv := newChatServer(t, func(w http.ResponseWriter, body map[string]any) {
		tools, ok := body["tools"].([]any)
		if !ok || len(tools) != 1 {
			t.Errorf("expected 1 tool in request, got %v", body["tools"])
		}
		writeChatResponse(w, "", []map[string]any{{
			"id":   "call_1",
			"type": "function",
			"function": map[string]any{
				"name":      "search_meetings",
				"arguments": `{"query": "budget"}`,
			},
		}})
	})
	defer srv.Close()

	resp, err := newTestLLM(srv.URL).ChatWithTools(
		context.Background(),
		[]domain.ChatMessage{domain.UserMessage("find budget meetings")},
		[]domain.ToolDescriptor{{
			Name:        "search_meetings",
			Description: "Search meeting titles",
			Parameters:  `{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`,
		}},
	)
	if err != nil {
		t.Fatalf("ChatWithTools: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "search_meetings" || tc.Arguments != `{"query": "budget"}` {
		t.Errorf("got %+v", tc)
	}
}

func TestStripJSONFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, c := range cases {
		if got := stripJSONFences(c.in); got != c.want {
			t.Errorf("stripJSONFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
