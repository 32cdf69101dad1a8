package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIProvider_Complete(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"content": "{\"a\":1}", "role": "assistant"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("test-key", server.URL, "")
	if p.Name() != "openai" {
		t.Errorf("Expected 'openai', got '%s'", p.Name())
	}

	resp, err := p.Complete(context.Background(), CompletionRequest{
		System:   "be terse",
		User:     "hi",
		Model:    "gpt-4o-mini",
		JSONMode: true,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != `{"a":1}` {
		t.Errorf("Expected JSON content, got '%s'", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("Expected 15 tokens, got %d", resp.Usage.TotalTokens)
	}

	if body["model"] != "gpt-4o-mini" {
		t.Errorf("Expected model in request, got %v", body["model"])
	}
	format, _ := body["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("Expected json_object response format, got %v", body["response_format"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("Expected system and user messages, got %d", len(msgs))
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be terse" {
		t.Errorf("Unexpected system message: %v", first)
	}
}

func TestOpenAIProvider_EmbedBatch(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		// Out of order on purpose.
		w.Write([]byte(`{
			"object": "list",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.0, 1.0]},
				{"object": "embedding", "index": 0, "embedding": [1.0, 0.0]}
			],
			"model": "text-embedding-ada-002"
		}`))
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("test-key", server.URL, "")
	vecs, err := p.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("Expected 2 vectors, got %d", len(vecs))
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("Expected vectors ordered by index, got %v", vecs)
	}
	if body["model"] != DefaultOpenAIEmbeddingModel {
		t.Errorf("Expected default embedding model, got %v", body["model"])
	}
}

func TestOpenAIProvider_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	p, _ := NewOpenAIProvider("test-key", server.URL, "")
	if _, err := p.Complete(context.Background(), CompletionRequest{User: "hi", Model: "gpt-4o"}); err == nil {
		t.Error("Expected provider error to propagate")
	}
	if _, err := p.Embed(context.Background(), "hi"); err == nil {
		t.Error("Expected embedding error to propagate")
	}
}

func TestOpenAIProvider_Init(t *testing.T) {
	_, err := NewOpenAIProvider("", "", "")
	if err == nil {
		t.Error("Expected error for empty key")
	}
}

func TestOllamaProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/chat":
			w.Write([]byte(`{"message": {"role": "assistant", "content": "hi from ollama"}, "done": true, "eval_count": 10, "prompt_eval_count": 5}`))
		case "/api/embed":
			w.Write([]byte(`{"model": "nomic-embed-text", "embeddings": [[0.1, 0.2], [0.3, 0.4]]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL, "")
	if err != nil {
		t.Fatalf("NewOllamaProvider failed: %v", err)
	}
	if p.Name() != "ollama" {
		t.Errorf("Expected 'ollama', got '%s'", p.Name())
	}

	resp, err := p.Complete(context.Background(), CompletionRequest{User: "hi", Model: "llama3.2", JSONMode: true})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "hi from ollama" {
		t.Errorf("Expected 'hi from ollama', got '%s'", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("Expected 15 tokens, got %d", resp.Usage.TotalTokens)
	}

	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 2 || vecs[1][1] != 0.4 {
		t.Errorf("Unexpected embeddings %v", vecs)
	}

	if _, err := p.EmbedBatch(context.Background(), []string{"only one"}); err == nil {
		t.Error("Expected count mismatch error")
	}
}

func TestAnthropicProvider(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_123",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "hello from claude"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 5, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	p, _ := NewAnthropicProvider("test-key", server.URL)
	if p.Name() != "anthropic" {
		t.Errorf("Expected 'anthropic', got '%s'", p.Name())
	}

	resp, err := p.Complete(context.Background(), CompletionRequest{System: "sys", User: "hi", Model: "claude-3-5-haiku-latest"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "hello from claude" {
		t.Errorf("Expected 'hello from claude', got '%s'", resp.Content)
	}
	if resp.Usage.TotalTokens != 10 {
		t.Errorf("Expected 10 tokens, got %d", resp.Usage.TotalTokens)
	}
	if body["model"] != "claude-3-5-haiku-latest" {
		t.Errorf("Expected model in request, got %v", body["model"])
	}

	if _, err := p.Embed(context.Background(), "x"); !errors.Is(err, ErrEmbeddingsUnsupported) {
		t.Errorf("Expected ErrEmbeddingsUnsupported, got %v", err)
	}
}

func TestGeminiProvider_Name(t *testing.T) {
	p, err := NewGeminiProvider("fake-key", "")
	if err != nil {
		t.Logf("Skipping Gemini Name test due to client init error: %v", err)
		return
	}
	defer p.Close()
	if p.Name() != "gemini" {
		t.Errorf("Expected 'gemini', got '%s'", p.Name())
	}
}

func TestCLIProvider(t *testing.T) {
	p, err := NewCLIProvider("echo", []string{"-n"})
	if err != nil {
		t.Fatalf("NewCLIProvider failed: %v", err)
	}

	resp, err := p.Complete(context.Background(), CompletionRequest{User: "hello cli"})
	if err != nil {
		t.Skipf("echo not available: %v", err)
	}
	if resp.Content != "hello cli" {
		t.Errorf("Expected echoed prompt, got %q", resp.Content)
	}

	if _, err := NewCLIProvider("", nil); err == nil {
		t.Error("Expected error for empty binary path")
	}
}

func TestStubProvider(t *testing.T) {
	p := NewStubProvider("first", "second")
	if p.Name() != "stub" {
		t.Errorf("Expected 'stub', got '%s'", p.Name())
	}

	for _, want := range []string{"first", "second", "Task complete."} {
		resp, err := p.Complete(context.Background(), CompletionRequest{User: "hi"})
		if err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
		if resp.Content != want {
			t.Errorf("Expected %q, got %q", want, resp.Content)
		}
	}

	last, ok := p.LastRequest()
	if !ok || last.User != "hi" {
		t.Errorf("Expected recorded request, got %+v", last)
	}
}

func TestStubProvider_Canceled(t *testing.T) {
	p := NewStubProvider()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Complete(ctx, CompletionRequest{User: "hi"}); err == nil {
		t.Error("Expected error on canceled context")
	}
}

func TestHashEmbedding(t *testing.T) {
	a := HashEmbedding("The quick brown fox", 32)
	b := HashEmbedding("the quick brown fox!", 32)
	c := HashEmbedding("completely unrelated words here", 32)

	if len(a) != 32 {
		t.Fatalf("Expected 32 dims, got %d", len(a))
	}
	if dot(a, b) < 0.999 {
		t.Errorf("Expected identical word bags to embed identically, got %f", dot(a, b))
	}
	if dot(a, c) >= dot(a, b) {
		t.Errorf("Expected unrelated text to score lower")
	}

	zero := HashEmbedding("", 8)
	for _, v := range zero {
		if v != 0 {
			t.Fatal("Expected zero vector for empty text")
		}
	}
}

func TestCachedProvider(t *testing.T) {
	stub := NewStubProvider()
	c, err := NewCachedProvider(stub, 100)
	if err != nil {
		t.Fatalf("NewCachedProvider failed: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if _, err := c.Embed(ctx, "alpha"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if _, err := c.Embed(ctx, "alpha"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if stub.EmbedCalls != 1 {
		t.Errorf("Expected cached embedding to skip provider, got %d calls", stub.EmbedCalls)
	}

	vecs, err := c.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("Expected 3 vectors, got %d", len(vecs))
	}
	if len(stub.BatchSizes) != 1 || stub.BatchSizes[0] != 2 {
		t.Errorf("Expected only cache misses to be sent, got batches %v", stub.BatchSizes)
	}
	if dot(vecs[0], HashEmbedding("alpha", StubDimensions)) < 0.999 {
		t.Error("Expected cached vector to keep input position")
	}
}

func TestComposite(t *testing.T) {
	chat := NewStubProvider("from chat")
	embed := NewStubProvider()
	c := NewComposite(chat, embed)

	if !strings.Contains(c.Name(), "+") {
		t.Errorf("Unexpected composite name %q", c.Name())
	}

	resp, err := c.Complete(context.Background(), CompletionRequest{User: "hi"})
	if err != nil || resp.Content != "from chat" {
		t.Fatalf("Unexpected completion %v, %v", resp, err)
	}
	if _, err := c.EmbedBatch(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if embed.EmbedCalls != 1 || chat.EmbedCalls != 0 {
		t.Errorf("Expected embeddings routed to embedder, got chat=%d embed=%d", chat.EmbedCalls, embed.EmbedCalls)
	}
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
